package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/curve25519"
)

var (
	ErrInvalidKey    = errors.New("invalid key")
	ErrNoPrivateKey  = errors.New("identity has no private key")
	ErrKeyGeneration = errors.New("key generation failed")
)

// Key sizes
const (
	// PublicKeySize is the wire size of a public identity:
	// Ed25519 verify key (32) followed by X25519 exchange key (32)
	PublicKeySize = 64

	// SignatureSize is the size of an Ed25519 signature
	SignatureSize = ed25519.SignatureSize
)

// Identity holds a node's keypairs: an Ed25519 pair for signing and an
// X25519 pair for encryption. A public-only identity (built from peer key
// material) can verify and encrypt; signing and decryption require the
// private halves.
type Identity struct {
	signPub  ed25519.PublicKey
	signPriv ed25519.PrivateKey

	dhPub  [32]byte
	dhPriv [32]byte

	hasPrivate bool
}

// Generate creates a new identity with fresh Ed25519 and X25519 keypairs
func Generate() *Identity {
	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		// ed25519.GenerateKey only fails when the source of randomness
		// fails, which is unrecoverable
		panic(ErrKeyGeneration)
	}

	var dhPriv [32]byte
	if _, err := rand.Read(dhPriv[:]); err != nil {
		panic(ErrKeyGeneration)
	}

	var dhPub [32]byte
	curve25519.ScalarBaseMult(&dhPub, &dhPriv)

	return &Identity{
		signPub:    signPub,
		signPriv:   signPriv,
		dhPub:      dhPub,
		dhPriv:     dhPriv,
		hasPrivate: true,
	}
}

// FromPublicBytes builds a public-only identity from its 64-byte wire
// encoding: Ed25519 verify key followed by X25519 exchange key.
func FromPublicBytes(b []byte) (*Identity, error) {
	if len(b) != PublicKeySize {
		return nil, ErrInvalidKey
	}

	id := &Identity{
		signPub: make(ed25519.PublicKey, ed25519.PublicKeySize),
	}
	copy(id.signPub, b[:32])
	copy(id.dhPub[:], b[32:])

	return id, nil
}

// FromPrivateBytes restores a full identity from its 96-byte private
// encoding: Ed25519 seed (32) followed by X25519 private key (32) and the
// X25519 public key (32).
func FromPrivateBytes(b []byte) (*Identity, error) {
	if len(b) != 96 {
		return nil, ErrInvalidKey
	}

	signPriv := ed25519.NewKeyFromSeed(b[:32])

	id := &Identity{
		signPub:    signPriv.Public().(ed25519.PublicKey),
		signPriv:   signPriv,
		hasPrivate: true,
	}
	copy(id.dhPriv[:], b[32:64])
	copy(id.dhPub[:], b[64:96])

	return id, nil
}

// PublicBytes returns the 64-byte public wire encoding
func (id *Identity) PublicBytes() []byte {
	buf := make([]byte, PublicKeySize)
	copy(buf[:32], id.signPub)
	copy(buf[32:], id.dhPub[:])
	return buf
}

// PrivateBytes returns the 96-byte private encoding, or an error for a
// public-only identity
func (id *Identity) PrivateBytes() ([]byte, error) {
	if !id.hasPrivate {
		return nil, ErrNoPrivateKey
	}

	buf := make([]byte, 96)
	copy(buf[:32], id.signPriv.Seed())
	copy(buf[32:64], id.dhPriv[:])
	copy(buf[64:96], id.dhPub[:])
	return buf, nil
}

// HasPrivate reports whether the identity holds its private key halves
func (id *Identity) HasPrivate() bool {
	return id.hasPrivate
}

// Sign signs data with the Ed25519 private key. Requires the private half.
func (id *Identity) Sign(data []byte) ([]byte, error) {
	if !id.hasPrivate {
		return nil, ErrNoPrivateKey
	}
	return ed25519.Sign(id.signPriv, data), nil
}

// Verify checks an Ed25519 signature over data against the identity's
// public key. Fails closed: malformed signatures, wrong lengths and
// cryptographic mismatches all return false.
func (id *Identity) Verify(data []byte, signature []byte) bool {
	if len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(id.signPub, data, signature)
}

// String returns a short hex fingerprint of the public key
func (id *Identity) String() string {
	return hex.EncodeToString(id.signPub[:8])
}
