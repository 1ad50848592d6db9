package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Advert payload layout
	AdvertPubKeySize    = PubKeySize
	AdvertTimestampSize = 4
	AdvertSignatureSize = SignatureSize
	AdvertMinSize       = AdvertPubKeySize + AdvertTimestampSize + AdvertSignatureSize // 100 bytes

	// AppData flags - node types (lower 4 bits)
	NodeTypeChat     = 0x01
	NodeTypeRepeater = 0x02
	NodeTypeRoom     = 0x03
	NodeTypeSensor   = 0x04

	// AppData flags - presence flags (upper 4 bits)
	FlagHasName = 0x80

	// MaxNodeName is the longest node name carried in an advert.
	MaxNodeName = 16

	// Group payload layout: channel hash + truncated MAC + ciphertext
	GroupChannelHashSize = 1
	GroupMACSize         = 2
	GroupCipherBlockSize = 16
	GroupMinPayloadSize  = GroupChannelHashSize + GroupMACSize + GroupCipherBlockSize

	// Text payload layout: timestamp + flags + text
	TextHeaderSize = 5
)

var (
	ErrAdvertTooShort = errors.New("advert payload too short")
	ErrGroupTooShort  = errors.New("group payload too short")
	ErrTextTooShort   = errors.New("text payload too short")
	ErrNameTooLong    = errors.New("node name too long")
)

// AdvertPayload is a parsed node advertisement.
// Layout: [pubkey:32][timestamp:4 LE][signature:64][appdata...]
// where appdata is [flags:1][name...] when present.
type AdvertPayload struct {
	PubKey    [PubKeySize]byte
	Timestamp uint32
	Signature [SignatureSize]byte
	Flags     uint8
	NodeType  uint8 // lower 4 bits of flags
	Name      string
}

// ParseAdvertPayload parses an ADVERT payload into its components.
func ParseAdvertPayload(data []byte) (*AdvertPayload, error) {
	if len(data) < AdvertMinSize {
		return nil, fmt.Errorf("%w: expected at least %d bytes, got %d",
			ErrAdvertTooShort, AdvertMinSize, len(data))
	}

	advert := &AdvertPayload{}
	copy(advert.PubKey[:], data[0:32])
	advert.Timestamp = binary.LittleEndian.Uint32(data[32:36])
	copy(advert.Signature[:], data[36:100])

	if len(data) > AdvertMinSize {
		appData := data[AdvertMinSize:]
		advert.Flags = appData[0]
		advert.NodeType = appData[0] & 0x0F
		if advert.Flags&FlagHasName != 0 && len(appData) > 1 {
			name := appData[1:]
			if len(name) > MaxNodeName {
				name = name[:MaxNodeName]
			}
			advert.Name = string(name)
		}
	}

	return advert, nil
}

// SigningBytes returns the bytes covered by the advert signature:
// pubkey, timestamp, and appdata.
func (a *AdvertPayload) SigningBytes() []byte {
	buf := make([]byte, 0, AdvertPubKeySize+AdvertTimestampSize+1+len(a.Name))
	buf = append(buf, a.PubKey[:]...)
	var ts [4]byte
	binary.LittleEndian.PutUint32(ts[:], a.Timestamp)
	buf = append(buf, ts[:]...)
	buf = append(buf, a.Flags)
	buf = append(buf, a.Name...)
	return buf
}

// Encode serializes the advert payload. The Signature field must already
// be populated (over SigningBytes).
func (a *AdvertPayload) Encode() ([]byte, error) {
	if len(a.Name) > MaxNodeName {
		return nil, fmt.Errorf("%w: %d > %d", ErrNameTooLong, len(a.Name), MaxNodeName)
	}
	buf := make([]byte, 0, AdvertMinSize+1+len(a.Name))
	buf = append(buf, a.PubKey[:]...)
	var ts [4]byte
	binary.LittleEndian.PutUint32(ts[:], a.Timestamp)
	buf = append(buf, ts[:]...)
	buf = append(buf, a.Signature[:]...)
	buf = append(buf, a.Flags)
	buf = append(buf, a.Name...)
	return buf, nil
}

// NodeTypeName returns a human-readable name for the node type.
func NodeTypeName(t uint8) string {
	switch t {
	case NodeTypeChat:
		return "chat"
	case NodeTypeRepeater:
		return "repeater"
	case NodeTypeRoom:
		return "room"
	case NodeTypeSensor:
		return "sensor"
	default:
		if t == 0 {
			return "unknown"
		}
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// GroupPayload is a parsed GRP_TXT payload.
// Layout: [channel_hash:1][mac:2][ciphertext: 16*k]
type GroupPayload struct {
	ChannelHash uint8
	// Sealed holds MAC + ciphertext, the input expected by the channel
	// decrypt routine.
	Sealed []byte
}

// ParseGroupPayload splits a GRP_TXT payload into channel hash and sealed
// (MAC + ciphertext) portions.
func ParseGroupPayload(data []byte) (*GroupPayload, error) {
	if len(data) < GroupMinPayloadSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrGroupTooShort, len(data), GroupMinPayloadSize)
	}
	return &GroupPayload{
		ChannelHash: data[0],
		Sealed:      data[GroupChannelHashSize:],
	}, nil
}

// EncodeGroupPayload builds a GRP_TXT payload from the channel hash and the
// sealed MAC + ciphertext bytes.
func EncodeGroupPayload(channelHash uint8, sealed []byte) []byte {
	payload := make([]byte, GroupChannelHashSize+len(sealed))
	payload[0] = channelHash
	copy(payload[GroupChannelHashSize:], sealed)
	return payload
}

// TextPayload is a parsed direct TXT_MSG payload.
// Layout: [timestamp:4 LE][flags:1][text]
type TextPayload struct {
	Timestamp uint32
	Flags     uint8
	Text      string
}

// ParseTextPayload parses a direct text message payload.
func ParseTextPayload(data []byte) (*TextPayload, error) {
	if len(data) < TextHeaderSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrTextTooShort, len(data), TextHeaderSize)
	}
	text := data[TextHeaderSize:]
	for i, b := range text {
		if b == 0 {
			text = text[:i]
			break
		}
	}
	return &TextPayload{
		Timestamp: binary.LittleEndian.Uint32(data[0:4]),
		Flags:     data[4],
		Text:      string(text),
	}, nil
}

// EncodeTextPayload builds a direct text message payload.
func EncodeTextPayload(timestamp uint32, flags uint8, text string) []byte {
	buf := make([]byte, TextHeaderSize+len(text))
	binary.LittleEndian.PutUint32(buf[0:4], timestamp)
	buf[4] = flags
	copy(buf[TextHeaderSize:], text)
	return buf
}
