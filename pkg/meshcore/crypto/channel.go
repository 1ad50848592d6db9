// Package crypto implements the MeshCore group-channel cipher.
//
// The construction (AES-128-ECB with a 2-byte truncated HMAC-SHA256 tag)
// is an interoperability requirement of the existing wire protocol and
// must not be replaced with a stronger scheme.
package crypto

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// ChannelKeySize is the AES-128 channel key size.
	ChannelKeySize = 16
	// ChannelBlockSize is the AES block size.
	ChannelBlockSize = 16
	// ChannelMACSize is the truncated HMAC-SHA256 tag size.
	ChannelMACSize = 2
	// channelSecretSize is the expanded HMAC key size: the 16-byte channel
	// key followed by 16 zero bytes.
	channelSecretSize = 32
	// maxWorkingSize bounds the padded plaintext and ciphertext buffers.
	maxWorkingSize = 256

	// PublicChannelName is the well-known default channel.
	PublicChannelName = "#Public"

	// MaxChannelText is the longest channel message text.
	MaxChannelText = 100
)

// publicChannelKey is the well-known PSK shared by every device for the
// default public channel. Base64: izOH6cXN6mrJ5e26oRXNcg==
var publicChannelKey = []byte{
	0x8b, 0x33, 0x87, 0xe9, 0xc5, 0xcd, 0xea, 0x6a,
	0xc9, 0xe5, 0xed, 0xba, 0xa1, 0x15, 0xcd, 0x72,
}

var (
	ErrInvalidKeySize     = errors.New("invalid key size: must be 16 bytes")
	ErrMACMismatch        = errors.New("MAC verification failed")
	ErrCiphertextTooShort = errors.New("ciphertext too short for MAC")
	ErrNotBlockAligned    = errors.New("ciphertext not block-aligned")
	ErrMessageTooLong     = errors.New("message exceeds maximum working size")
	ErrPlaintextTooShort  = errors.New("plaintext too short")
)

// PublicChannelKey returns the fixed key for the default public channel.
// This provides wire-format compatibility, not secrecy.
func PublicChannelKey() []byte {
	key := make([]byte, ChannelKeySize)
	copy(key, publicChannelKey)
	return key
}

// DeriveChannelKey derives the 16-byte symmetric key for a channel.
// The well-known public channel always maps to the fixed key; other
// channels hash the password (or the channel name when no password is set)
// with SHA-256 and take the first 16 bytes.
func DeriveChannelKey(password, channelName string) []byte {
	if channelName == PublicChannelName || channelName == "Public" {
		return PublicChannelKey()
	}

	src := channelName
	if password != "" {
		src = password
	}
	hash := sha256.Sum256([]byte(src))
	return hash[:ChannelKeySize]
}

// ComputeChannelHash computes the 1-byte channel selector transmitted
// on-air: the first byte of SHA256(key).
func ComputeChannelHash(key []byte) uint8 {
	hash := sha256.Sum256(key)
	return hash[0]
}

// expandedMACKey builds the 32-byte HMAC key: channel key + 16 zero bytes.
func expandedMACKey(key []byte) []byte {
	k := make([]byte, channelSecretSize)
	copy(k, key)
	return k
}

func computeMAC(macKey, ciphertext []byte) [ChannelMACSize]byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write(ciphertext)
	sum := mac.Sum(nil)
	return [ChannelMACSize]byte{sum[0], sum[1]}
}

// EncryptChannelMessage encrypts a channel message payload.
// Plaintext is zero-padded to the block size and encrypted block-by-block
// with AES-128-ECB; the result is [mac:2][ciphertext].
func EncryptChannelMessage(key, plaintext []byte) ([]byte, error) {
	if len(key) != ChannelKeySize {
		return nil, ErrInvalidKeySize
	}

	paddedLen := ((len(plaintext) + ChannelBlockSize - 1) / ChannelBlockSize) * ChannelBlockSize
	if paddedLen > maxWorkingSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLong, paddedLen, maxWorkingSize)
	}

	padded := make([]byte, paddedLen)
	copy(padded, plaintext)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	ciphertext := make([]byte, paddedLen)
	for i := 0; i < paddedLen; i += ChannelBlockSize {
		block.Encrypt(ciphertext[i:i+ChannelBlockSize], padded[i:i+ChannelBlockSize])
	}

	mac := computeMAC(expandedMACKey(key), ciphertext)

	out := make([]byte, ChannelMACSize+paddedLen)
	copy(out[:ChannelMACSize], mac[:])
	copy(out[ChannelMACSize:], ciphertext)
	return out, nil
}

// DecryptChannelMessage verifies and decrypts [mac:2][ciphertext].
// The tag is checked with the 32-byte expanded key first, then with the
// bare 16-byte key. Older device generations tag with the short key and
// both must keep working. Trailing zero padding is stripped.
func DecryptChannelMessage(key, input []byte) ([]byte, error) {
	if len(key) != ChannelKeySize {
		return nil, ErrInvalidKeySize
	}
	if len(input) < ChannelMACSize+1 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextTooShort, len(input))
	}

	recvMAC := input[:ChannelMACSize]
	ciphertext := input[ChannelMACSize:]

	mac := computeMAC(expandedMACKey(key), ciphertext)
	if recvMAC[0] != mac[0] || recvMAC[1] != mac[1] {
		mac = computeMAC(key, ciphertext)
		if recvMAC[0] != mac[0] || recvMAC[1] != mac[1] {
			return nil, ErrMACMismatch
		}
	}

	if len(ciphertext)%ChannelBlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotBlockAligned, len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += ChannelBlockSize {
		block.Decrypt(plaintext[i:i+ChannelBlockSize], ciphertext[i:i+ChannelBlockSize])
	}

	// Strip trailing zero padding to recover the original length.
	end := len(plaintext)
	for end > 0 && plaintext[end-1] == 0 {
		end--
	}
	return plaintext[:end], nil
}

// BuildChannelPlaintext builds the application-layer plaintext for a
// channel message: [timestamp:4 LE][flags:1]["sender: text"].
func BuildChannelPlaintext(timestamp uint32, sender, text string) []byte {
	var sb strings.Builder
	if sender != "" {
		sb.WriteString(sender)
		sb.WriteString(": ")
	}
	sb.WriteString(text)
	content := sb.String()

	buf := make([]byte, 5+len(content))
	binary.LittleEndian.PutUint32(buf[0:4], timestamp)
	buf[4] = 0
	copy(buf[5:], content)
	return buf
}

// ParseChannelPlaintext parses a decrypted channel payload.
// The first ": " separator splits sender from text; without one the whole
// remainder is the text and sender is empty.
func ParseChannelPlaintext(plaintext []byte) (timestamp uint32, flags uint8, sender, text string, err error) {
	if len(plaintext) < 5 {
		return 0, 0, "", "", fmt.Errorf("%w: %d bytes", ErrPlaintextTooShort, len(plaintext))
	}

	timestamp = binary.LittleEndian.Uint32(plaintext[0:4])
	flags = plaintext[4]

	content := plaintext[5:]
	for i, b := range content {
		if b == 0 {
			content = content[:i]
			break
		}
	}

	sender, text, found := SplitSender(string(content))
	if !found {
		sender = ""
		text = string(content)
	}
	return timestamp, flags, sender, text, nil
}

// SplitSender extracts a sender name from "Name: message" content.
// The name must be 1-32 printable characters.
func SplitSender(content string) (sender, text string, found bool) {
	idx := strings.Index(content, ": ")
	if idx == -1 {
		return "", content, false
	}

	candidate := content[:idx]
	if len(candidate) < 1 || len(candidate) > 32 {
		return "", content, false
	}
	for _, r := range candidate {
		if r < 32 || r == 127 {
			return "", content, false
		}
	}

	return candidate, content[idx+2:], true
}
