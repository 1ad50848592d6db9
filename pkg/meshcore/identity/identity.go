// Package identity manages the node's Ed25519 identity: keypair
// generation and persistence, signing, and the derived X25519 key
// agreement that lets one keypair serve both roles.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"

	"github.com/ezmesh/ezmesh/pkg/store"
)

const (
	// MaxNodeName is the longest persisted node name.
	MaxNodeName = 16

	keySeed     = "identity/seed"
	keyPubKey   = "identity/pubkey"
	keyNodeName = "identity/name"
)

var (
	ErrNoIdentity     = errors.New("no persisted identity")
	ErrCorruptKeyData = errors.New("corrupt persisted key data")
	ErrEmptyName      = errors.New("node name must not be empty")
)

// Identity is a node's cryptographic identity. The key material is
// immutable after creation; only the display name may change.
type Identity struct {
	name string
	seed []byte // 32-byte Ed25519 seed
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey

	store store.KeyValueStore
}

// Init loads the persisted identity from kv, generating and persisting a
// new one on first boot. Generation or persistence failure is fatal to
// mesh functionality: without a keypair the node has no routing identity.
func Init(kv store.KeyValueStore) (*Identity, error) {
	id, err := load(kv)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNoIdentity) {
		return nil, err
	}

	id, err = generate(kv)
	if err != nil {
		return nil, fmt.Errorf("identity generation failed: %w", err)
	}
	if err := id.save(); err != nil {
		return nil, fmt.Errorf("identity persistence failed: %w", err)
	}
	return id, nil
}

func load(kv store.KeyValueStore) (*Identity, error) {
	seed, err := kv.Get(keySeed)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoIdentity
	}
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes", ErrCorruptKeyData, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	// The public key is persisted alongside the seed; verify consistency.
	if stored, err := kv.Get(keyPubKey); err == nil {
		if len(stored) != ed25519.PublicKeySize || !pub.Equal(ed25519.PublicKey(stored)) {
			return nil, fmt.Errorf("%w: public key mismatch", ErrCorruptKeyData)
		}
	}

	id := &Identity{seed: seed, priv: priv, pub: pub, store: kv}
	if name, err := kv.Get(keyNodeName); err == nil && len(name) > 0 {
		id.name = string(name)
	} else {
		id.name = "Node-" + id.ShortID()
	}
	return id, nil
}

func generate(kv store.KeyValueStore) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	id := &Identity{
		seed:  priv.Seed(),
		priv:  priv,
		pub:   pub,
		store: kv,
	}
	id.name = "Node-" + id.ShortID()
	return id, nil
}

func (id *Identity) save() error {
	if err := id.store.Put(keySeed, id.seed); err != nil {
		return err
	}
	if err := id.store.Put(keyPubKey, id.pub); err != nil {
		return err
	}
	return id.store.Put(keyNodeName, []byte(id.name))
}

// Name returns the node's display name.
func (id *Identity) Name() string { return id.name }

// SetName updates and persists the display name, truncated to MaxNodeName.
func (id *Identity) SetName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNodeName {
		name = name[:MaxNodeName]
	}
	id.name = name
	return id.store.Put(keyNodeName, []byte(name))
}

// PublicKey returns the 32-byte Ed25519 public key.
func (id *Identity) PublicKey() []byte {
	out := make([]byte, len(id.pub))
	copy(out, id.pub)
	return out
}

// PathHash is the 1-byte routing hash: the first byte of the public key.
// It is not unique across the network; collisions are expected.
func (id *Identity) PathHash() byte { return id.pub[0] }

// ShortID returns the first 3 bytes of the public key as hex.
func (id *Identity) ShortID() string { return hex.EncodeToString(id.pub[:3]) }

// FullID returns the first 6 bytes of the public key as hex.
func (id *Identity) FullID() string { return hex.EncodeToString(id.pub[:6]) }

// Sign signs message with the node's Ed25519 private key.
func (id *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(id.priv, message)
}

// Verify checks an Ed25519 signature against an arbitrary public key.
func Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// PubKeyToX25519 converts an Ed25519 public key to the corresponding
// X25519 public key via the Edwards-to-Montgomery birational map
// u = (1+y)/(1-y).
func PubKeyToX25519(edPubKey []byte) ([]byte, error) {
	point, err := new(edwards25519.Point).SetBytes(edPubKey)
	if err != nil {
		return nil, fmt.Errorf("invalid Ed25519 public key: %w", err)
	}
	return point.BytesMontgomery(), nil
}

// SharedSecret computes the X25519 shared secret with a peer, given the
// peer's Ed25519 signing public key. The private scalar is derived from
// the signing seed (SHA-512, low 32 bytes, RFC 7748 clamp), so either
// party computes the same secret from its own seed and the other's key.
func (id *Identity) SharedSecret(peerEdPubKey []byte) ([]byte, error) {
	peerX, err := PubKeyToX25519(peerEdPubKey)
	if err != nil {
		return nil, err
	}

	h := sha512.Sum512(id.seed)
	var scalar [32]byte
	copy(scalar[:], h[:32])
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64

	secret, err := curve25519.X25519(scalar[:], peerX)

	// Clear sensitive intermediates before returning.
	for i := range h {
		h[i] = 0
	}
	for i := range scalar {
		scalar[i] = 0
	}

	if err != nil {
		return nil, fmt.Errorf("shared secret computation failed: %w", err)
	}
	return secret, nil
}
