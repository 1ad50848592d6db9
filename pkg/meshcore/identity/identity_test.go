package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ezmesh/ezmesh/pkg/store"
)

func TestInitGeneratesAndPersists(t *testing.T) {
	kv := store.NewMemoryStore()

	id, err := Init(kv)
	require.NoError(t, err)
	require.Len(t, id.PublicKey(), 32)
	require.Equal(t, id.PublicKey()[0], id.PathHash())
	require.True(t, strings.HasPrefix(id.FullID(), id.ShortID()))
	require.Equal(t, "Node-"+id.ShortID(), id.Name())

	// A second Init against the same store must load the same identity.
	again, err := Init(kv)
	require.NoError(t, err)
	require.Equal(t, id.PublicKey(), again.PublicKey())
	require.Equal(t, id.Name(), again.Name())
}

func TestInitDetectsCorruptSeed(t *testing.T) {
	kv := store.NewMemoryStore()
	require.NoError(t, kv.Put("identity/seed", []byte("too short")))

	_, err := Init(kv)
	require.ErrorIs(t, err, ErrCorruptKeyData)
}

func TestInitDetectsPubKeyMismatch(t *testing.T) {
	kv := store.NewMemoryStore()
	id, err := Init(kv)
	require.NoError(t, err)

	wrong := id.PublicKey()
	wrong[0] ^= 0xFF
	require.NoError(t, kv.Put("identity/pubkey", wrong))

	_, err = Init(kv)
	require.ErrorIs(t, err, ErrCorruptKeyData)
}

func TestSetName(t *testing.T) {
	kv := store.NewMemoryStore()
	id, err := Init(kv)
	require.NoError(t, err)

	require.ErrorIs(t, id.SetName(""), ErrEmptyName)

	require.NoError(t, id.SetName("BaseStation"))
	require.Equal(t, "BaseStation", id.Name())

	require.NoError(t, id.SetName("a-very-long-node-name-indeed"))
	require.Equal(t, "a-very-long-node", id.Name())

	// The new name survives a reload.
	again, err := Init(kv)
	require.NoError(t, err)
	require.Equal(t, "a-very-long-node", again.Name())
}

func TestSignVerify(t *testing.T) {
	id, err := Init(store.NewMemoryStore())
	require.NoError(t, err)

	msg := []byte("advert contents")
	sig := id.Sign(msg)
	require.True(t, Verify(msg, sig, id.PublicKey()))
	require.False(t, Verify([]byte("tampered"), sig, id.PublicKey()))

	other, err := Init(store.NewMemoryStore())
	require.NoError(t, err)
	require.False(t, Verify(msg, sig, other.PublicKey()))

	require.False(t, Verify(msg, sig[:10], id.PublicKey()))
	require.False(t, Verify(msg, sig, []byte("bad key")))
}

func TestSharedSecretSymmetry(t *testing.T) {
	alice, err := Init(store.NewMemoryStore())
	require.NoError(t, err)
	bob, err := Init(store.NewMemoryStore())
	require.NoError(t, err)

	ab, err := alice.SharedSecret(bob.PublicKey())
	require.NoError(t, err)
	ba, err := bob.SharedSecret(alice.PublicKey())
	require.NoError(t, err)
	require.Equal(t, ab, ba)
	require.Len(t, ab, 32)

	carol, err := Init(store.NewMemoryStore())
	require.NoError(t, err)
	ac, err := alice.SharedSecret(carol.PublicKey())
	require.NoError(t, err)
	require.NotEqual(t, ab, ac)
}

func TestSharedSecretRejectsBadKey(t *testing.T) {
	id, err := Init(store.NewMemoryStore())
	require.NoError(t, err)

	_, err = id.SharedSecret([]byte("not a curve point"))
	require.Error(t, err)
}

func TestPubKeyToX25519(t *testing.T) {
	id, err := Init(store.NewMemoryStore())
	require.NoError(t, err)

	x, err := PubKeyToX25519(id.PublicKey())
	require.NoError(t, err)
	require.Len(t, x, 32)

	// The conversion is deterministic.
	x2, err := PubKeyToX25519(id.PublicKey())
	require.NoError(t, err)
	require.Equal(t, x, x2)
}
