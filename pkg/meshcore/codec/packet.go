// Package codec implements the MeshCore binary packet format.
//
// Wire format: [Header(1)] [TransportCodes(4)?] [PathLen(1)] [Path(var)] [Payload(var)]
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxPathSize is the maximum number of 1-byte node hashes in a path.
	MaxPathSize = 64
	// MaxPayloadSize is the maximum payload length in bytes.
	MaxPayloadSize = 184
	// MaxPacketSize is the largest serialized packet: header + transport
	// codes + path length + path + payload.
	MaxPacketSize = 1 + 4 + 1 + MaxPathSize + MaxPayloadSize

	// PubKeySize is the Ed25519 public key size used throughout the protocol.
	PubKeySize = 32
	// SignatureSize is the Ed25519 signature size.
	SignatureSize = 64
)

// Route types (bits 0-1 of the header byte).
const (
	RouteTypeTransportFlood  = 0x00
	RouteTypeFlood           = 0x01
	RouteTypeDirect          = 0x02
	RouteTypeTransportDirect = 0x03
)

// Payload types (bits 2-5 of the header byte).
const (
	PayloadTypeReq       = 0x00
	PayloadTypeResponse  = 0x01
	PayloadTypeTxtMsg    = 0x02
	PayloadTypeAck       = 0x03
	PayloadTypeAdvert    = 0x04
	PayloadTypeGrpTxt    = 0x05
	PayloadTypeGrpData   = 0x06
	PayloadTypeAnonReq   = 0x07
	PayloadTypePath      = 0x08
	PayloadTypeTrace     = 0x09
	PayloadTypeMultipart = 0x0A
	PayloadTypeControl   = 0x0B
	PayloadTypeRawCustom = 0x0F
)

// Payload versions (bits 6-7 of the header byte).
const (
	PayloadVersion1 = 0x00
	PayloadVersion2 = 0x01
	PayloadVersion3 = 0x02
	PayloadVersion4 = 0x03
)

// Header bit masks and shifts.
const (
	PHRouteMask = 0x03
	PHTypeShift = 2
	PHTypeMask  = 0x0F
	PHVerShift  = 6
	PHVerMask   = 0x03
)

var (
	ErrBufferTooSmall = errors.New("buffer too small")
	ErrPacketTooShort = errors.New("packet too short")
	ErrPathTooLong    = errors.New("path exceeds maximum length")
	ErrPayloadTooLong = errors.New("payload exceeds maximum length")
	ErrPathFull       = errors.New("path is full")
)

// MakeHeader builds a header byte from route type, payload type and version.
func MakeHeader(route, payloadType, version uint8) uint8 {
	return (route & PHRouteMask) |
		((payloadType & PHTypeMask) << PHTypeShift) |
		((version & PHVerMask) << PHVerShift)
}

// Packet is a MeshCore packet. Path and Payload are bounded by MaxPathSize
// and MaxPayloadSize; Serialize and Deserialize enforce the limits.
type Packet struct {
	Header         uint8
	TransportCodes [2]uint16
	Path           []byte
	Payload        []byte
}

// RouteType returns bits 0-1 of the header.
func (p *Packet) RouteType() uint8 { return p.Header & PHRouteMask }

// PayloadType returns bits 2-5 of the header.
func (p *Packet) PayloadType() uint8 { return (p.Header >> PHTypeShift) & PHTypeMask }

// Version returns bits 6-7 of the header.
func (p *Packet) Version() uint8 { return (p.Header >> PHVerShift) & PHVerMask }

// HasTransportCodes reports whether the route type carries transport codes.
func (p *Packet) HasTransportCodes() bool {
	rt := p.RouteType()
	return rt == RouteTypeTransportFlood || rt == RouteTypeTransportDirect
}

// IsValid checks structural limits on the packet.
func (p *Packet) IsValid() bool {
	if p.RouteType() > RouteTypeTransportDirect {
		return false
	}
	if p.PayloadType() > PayloadTypeRawCustom {
		return false
	}
	return len(p.Path) <= MaxPathSize && len(p.Payload) <= MaxPayloadSize
}

// Serialize writes the packet into buf and returns the number of bytes
// written, or an error if buf is too small or the packet exceeds its limits.
func (p *Packet) Serialize(buf []byte) (int, error) {
	if len(p.Path) > MaxPathSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrPathTooLong, len(p.Path), MaxPathSize)
	}
	if len(p.Payload) > MaxPayloadSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrPayloadTooLong, len(p.Payload), MaxPayloadSize)
	}

	need := 2 + len(p.Path) + len(p.Payload)
	if p.HasTransportCodes() {
		need += 4
	}
	if len(buf) < need {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, need, len(buf))
	}

	offset := 0
	buf[offset] = p.Header
	offset++

	if p.HasTransportCodes() {
		binary.LittleEndian.PutUint16(buf[offset:], p.TransportCodes[0])
		binary.LittleEndian.PutUint16(buf[offset+2:], p.TransportCodes[1])
		offset += 4
	}

	buf[offset] = uint8(len(p.Path))
	offset++
	offset += copy(buf[offset:], p.Path)
	offset += copy(buf[offset:], p.Payload)

	return offset, nil
}

// Bytes serializes the packet into a freshly allocated slice.
func (p *Packet) Bytes() ([]byte, error) {
	buf := make([]byte, MaxPacketSize)
	n, err := p.Serialize(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Deserialize parses a packet from buf and returns the number of bytes
// consumed. All remaining bytes after the path are treated as payload.
// Untrusted input is rejected with an error; buf is never read out of
// bounds.
func (p *Packet) Deserialize(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("%w: %d bytes", ErrPacketTooShort, len(buf))
	}

	*p = Packet{}
	offset := 0
	p.Header = buf[offset]
	offset++

	if p.HasTransportCodes() {
		if offset+4 > len(buf) {
			return 0, fmt.Errorf("%w: missing transport codes", ErrPacketTooShort)
		}
		p.TransportCodes[0] = binary.LittleEndian.Uint16(buf[offset:])
		p.TransportCodes[1] = binary.LittleEndian.Uint16(buf[offset+2:])
		offset += 4
	}

	if offset >= len(buf) {
		return 0, fmt.Errorf("%w: missing path length", ErrPacketTooShort)
	}
	pathLen := int(buf[offset])
	offset++

	if pathLen > MaxPathSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrPathTooLong, pathLen, MaxPathSize)
	}
	if offset+pathLen > len(buf) {
		return 0, fmt.Errorf("%w: truncated path", ErrPacketTooShort)
	}
	p.Path = append([]byte(nil), buf[offset:offset+pathLen]...)
	offset += pathLen

	payloadLen := len(buf) - offset
	if payloadLen > MaxPayloadSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrPayloadTooLong, payloadLen, MaxPayloadSize)
	}
	if payloadLen > 0 {
		p.Payload = append([]byte(nil), buf[offset:]...)
		offset += payloadLen
	}

	return offset, nil
}

// AddToPath appends a node hash to the path. Fails if the path is full;
// the path is never truncated.
func (p *Packet) AddToPath(nodeHash byte) error {
	if len(p.Path) >= MaxPathSize {
		return ErrPathFull
	}
	p.Path = append(p.Path, nodeHash)
	return nil
}

// IsInPath reports whether nodeHash already appears in the path.
func (p *Packet) IsInPath(nodeHash byte) bool {
	for _, h := range p.Path {
		if h == nodeHash {
			return true
		}
	}
	return false
}

// RouteTypeName returns a human-readable name for a route type.
func RouteTypeName(rt uint8) string {
	switch rt {
	case RouteTypeTransportFlood:
		return "transport-flood"
	case RouteTypeFlood:
		return "flood"
	case RouteTypeDirect:
		return "direct"
	case RouteTypeTransportDirect:
		return "transport-direct"
	default:
		return fmt.Sprintf("unknown(%d)", rt)
	}
}

// PayloadTypeName returns a human-readable name for a payload type.
func PayloadTypeName(pt uint8) string {
	switch pt {
	case PayloadTypeReq:
		return "req"
	case PayloadTypeResponse:
		return "response"
	case PayloadTypeTxtMsg:
		return "txt-msg"
	case PayloadTypeAck:
		return "ack"
	case PayloadTypeAdvert:
		return "advert"
	case PayloadTypeGrpTxt:
		return "grp-txt"
	case PayloadTypeGrpData:
		return "grp-data"
	case PayloadTypeAnonReq:
		return "anon-req"
	case PayloadTypePath:
		return "path"
	case PayloadTypeTrace:
		return "trace"
	case PayloadTypeMultipart:
		return "multipart"
	case PayloadTypeControl:
		return "control"
	case PayloadTypeRawCustom:
		return "raw-custom"
	default:
		return fmt.Sprintf("unknown(%d)", pt)
	}
}
