package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublicChannelKey(t *testing.T) {
	want, err := hex.DecodeString("8b3387e9c5cdea6ac9e5edbaa115cd72")
	require.NoError(t, err)
	require.Equal(t, want, PublicChannelKey())

	// Returned key is a copy; mutating it must not poison the original.
	k := PublicChannelKey()
	k[0] ^= 0xFF
	require.Equal(t, want, PublicChannelKey())
}

func TestDeriveChannelKey(t *testing.T) {
	require.Equal(t, PublicChannelKey(), DeriveChannelKey("", "#Public"))
	require.Equal(t, PublicChannelKey(), DeriveChannelKey("", "Public"))

	nameHash := sha256.Sum256([]byte("#private"))
	require.Equal(t, nameHash[:16], DeriveChannelKey("", "#private"))

	passHash := sha256.Sum256([]byte("hunter2"))
	require.Equal(t, passHash[:16], DeriveChannelKey("hunter2", "#private"))
}

func TestComputeChannelHash(t *testing.T) {
	key := PublicChannelKey()
	want := sha256.Sum256(key)
	require.Equal(t, want[0], ComputeChannelHash(key))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := PublicChannelKey()
	plaintext := BuildChannelPlaintext(1700000000, "Alice", "hello mesh")

	sealed, err := EncryptChannelMessage(key, plaintext)
	require.NoError(t, err)
	require.Equal(t, 0, (len(sealed)-ChannelMACSize)%ChannelBlockSize)

	got, err := DecryptChannelMessage(key, sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)

	ts, flags, sender, text, err := ParseChannelPlaintext(got)
	require.NoError(t, err)
	require.Equal(t, uint32(1700000000), ts)
	require.Equal(t, uint8(0), flags)
	require.Equal(t, "Alice", sender)
	require.Equal(t, "hello mesh", text)
}

func TestEncryptPadsToBlockSize(t *testing.T) {
	key := PublicChannelKey()
	for _, n := range []int{1, 15, 16, 17, 32, 100} {
		sealed, err := EncryptChannelMessage(key, bytes.Repeat([]byte{'a'}, n))
		require.NoError(t, err)
		ctLen := len(sealed) - ChannelMACSize
		require.Equal(t, 0, ctLen%ChannelBlockSize, "plaintext length %d", n)
		require.GreaterOrEqual(t, ctLen, n)
	}
}

func TestEncryptRejectsOversize(t *testing.T) {
	key := PublicChannelKey()
	_, err := EncryptChannelMessage(key, make([]byte, 257))
	require.ErrorIs(t, err, ErrMessageTooLong)

	// 256 bytes is exactly the working limit.
	_, err = EncryptChannelMessage(key, make([]byte, 256))
	require.NoError(t, err)
}

func TestDecryptDetectsTampering(t *testing.T) {
	key := PublicChannelKey()
	sealed, err := EncryptChannelMessage(key, []byte("do not touch"))
	require.NoError(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0x01
	_, err = DecryptChannelMessage(key, tampered)
	require.ErrorIs(t, err, ErrMACMismatch)
}

func TestDecryptWrongKey(t *testing.T) {
	sealed, err := EncryptChannelMessage(PublicChannelKey(), []byte("secret"))
	require.NoError(t, err)

	_, err = DecryptChannelMessage(DeriveChannelKey("", "#other"), sealed)
	require.ErrorIs(t, err, ErrMACMismatch)
}

func TestDecryptBareKeyMACFallback(t *testing.T) {
	// Older senders computed the tag with the bare 16-byte key instead of
	// the 32-byte expanded key. Re-tag a ciphertext that way and make sure
	// it still decrypts.
	key := PublicChannelKey()
	plaintext := []byte("legacy tagged")
	sealed, err := EncryptChannelMessage(key, plaintext)
	require.NoError(t, err)

	ciphertext := sealed[ChannelMACSize:]
	legacyMAC := computeMAC(key, ciphertext)
	legacy := append(legacyMAC[:], ciphertext...)

	got, err := DecryptChannelMessage(key, legacy)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestDecryptRejectsShortInput(t *testing.T) {
	_, err := DecryptChannelMessage(PublicChannelKey(), []byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestDecryptRejectsBadKeySize(t *testing.T) {
	_, err := DecryptChannelMessage([]byte("short"), make([]byte, 18))
	require.ErrorIs(t, err, ErrInvalidKeySize)
	_, err = EncryptChannelMessage([]byte("short"), []byte("x"))
	require.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestParseChannelPlaintextNoSender(t *testing.T) {
	buf := BuildChannelPlaintext(5, "", "just text")
	_, _, sender, text, err := ParseChannelPlaintext(buf)
	require.NoError(t, err)
	require.Equal(t, "", sender)
	require.Equal(t, "just text", text)
}

func TestParseChannelPlaintextTooShort(t *testing.T) {
	_, _, _, _, err := ParseChannelPlaintext([]byte{1, 2, 3, 4})
	require.ErrorIs(t, err, ErrPlaintextTooShort)
}

func TestSplitSender(t *testing.T) {
	tests := []struct {
		content string
		sender  string
		text    string
		found   bool
	}{
		{"Alice: hi", "Alice", "hi", true},
		{"no separator here", "", "no separator here", false},
		{": leading", "", ": leading", false},
		{"with spaces in name: ok", "with spaces in name", "ok", true},
		{"123456789012345678901234567890123: too long", "", "123456789012345678901234567890123: too long", false},
	}
	for _, tt := range tests {
		sender, text, found := SplitSender(tt.content)
		require.Equal(t, tt.found, found, tt.content)
		require.Equal(t, tt.sender, sender, tt.content)
		require.Equal(t, tt.text, text, tt.content)
	}
}
