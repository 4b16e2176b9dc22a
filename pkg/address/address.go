package address

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

var ErrInvalidHashLength = errors.New("invalid hash length")

// Hash sizes
const (
	// FullHashSize is the size of a full BLAKE2b-256 name hash
	FullHashSize = 32

	// HashSize is the size of a truncated, routable address hash
	HashSize = 16
)

// Hash represents a truncated destination address (16 bytes).
// It is a lookup key only and carries no ownership semantics.
type Hash [HashSize]byte

// FullHash represents a full BLAKE2b-256 hash (32 bytes)
type FullHash [FullHashSize]byte

// DeriveHash computes the full name hash for a public key and context strings.
// The derivation is deterministic: identical inputs always produce the
// identical hash. Context strings (application name, aspects) are joined with
// a "." separator before hashing, so ("app", "aspect") and ("app.aspect")
// hash identically by construction.
func DeriveHash(publicKey []byte, context ...string) FullHash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for invalid key sizes; nil key never fails
		panic(err)
	}

	h.Write(publicKey)
	for i, part := range context {
		if i > 0 {
			h.Write([]byte("."))
		}
		h.Write([]byte(part))
	}

	var full FullHash
	copy(full[:], h.Sum(nil))
	return full
}

// Truncate returns the routable address hash: the first 16 bytes of the full
// hash. Pure truncation, no additional mixing.
func Truncate(full FullHash) Hash {
	var addr Hash
	copy(addr[:], full[:HashSize])
	return addr
}

// FromBytes builds an address hash from a raw 16-byte slice
func FromBytes(b []byte) (Hash, error) {
	var addr Hash
	if len(b) != HashSize {
		return addr, ErrInvalidHashLength
	}
	copy(addr[:], b)
	return addr, nil
}

// String returns the hex representation of the address hash
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero checks if the address hash is all zeros
func (h Hash) IsZero() bool {
	zero := Hash{}
	return h == zero
}

// String returns the hex representation of the full hash
func (f FullHash) String() string {
	return hex.EncodeToString(f[:])
}
