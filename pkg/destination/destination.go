package destination

import (
	"errors"
	"fmt"
	"strings"

	"github.com/veilmesh/veilmesh/pkg/address"
	"github.com/veilmesh/veilmesh/pkg/identity"
)

var (
	ErrWrongMode       = errors.New("operation not supported by destination mode")
	ErrNoIdentity      = errors.New("destination has no identity")
	ErrPayloadTooLarge = errors.New("payload exceeds encryption limit")
	ErrEmptyName       = errors.New("destination name must not be empty")
)

// Mode selects the crypto scheme of a destination
type Mode uint8

const (
	// ModePlain passes payloads through unmodified
	ModePlain Mode = iota

	// ModeSingle uses asymmetric encryption bound to one identity
	ModeSingle

	// ModeGroup uses a pre-shared 16-byte symmetric key
	ModeGroup
)

// MaxPlaintextSize is the practical per-message plaintext ceiling. It tracks
// the fragmentation ceiling of the packet layer so that any encryptable
// payload is also deliverable.
const MaxPlaintextSize = 1 << 26 // 64 MiB

// Destination is an addressable endpoint with exactly one crypto mode.
// Immutable once constructed.
type Destination struct {
	mode     Mode
	name     string
	hash     address.Hash
	fullHash address.FullHash

	identity *identity.Identity // ModeSingle only
	groupKey [GroupKeySize]byte // ModeGroup only
}

// NewSingle creates a single-peer destination bound to an identity. An
// identity with a private half yields a destination that can decrypt and
// announce; a public-only identity yields an outbound (encrypt-only) one.
func NewSingle(id *identity.Identity, context ...string) (*Destination, error) {
	if id == nil {
		return nil, ErrNoIdentity
	}

	name, err := joinName(context)
	if err != nil {
		return nil, err
	}

	full := address.DeriveHash(id.PublicBytes(), context...)

	return &Destination{
		mode:     ModeSingle,
		name:     name,
		hash:     address.Truncate(full),
		fullHash: full,
		identity: id,
	}, nil
}

// NewGroup creates a destination sharing a 16-byte symmetric key. The key is
// distributed out of band; it never influences the address.
func NewGroup(key []byte, context ...string) (*Destination, error) {
	if len(key) != GroupKeySize {
		return nil, ErrInvalidKeyLength
	}

	name, err := joinName(context)
	if err != nil {
		return nil, err
	}

	full := address.DeriveHash(nil, context...)

	d := &Destination{
		mode:     ModeGroup,
		name:     name,
		hash:     address.Truncate(full),
		fullHash: full,
	}
	copy(d.groupKey[:], key)
	return d, nil
}

// NewPlain creates an unencrypted destination, used for discovery and
// announce traffic where confidentiality is not required
func NewPlain(context ...string) (*Destination, error) {
	name, err := joinName(context)
	if err != nil {
		return nil, err
	}

	full := address.DeriveHash(nil, context...)

	return &Destination{
		mode:     ModePlain,
		name:     name,
		hash:     address.Truncate(full),
		fullHash: full,
	}, nil
}

// Mode returns the destination's crypto mode
func (d *Destination) Mode() Mode {
	return d.mode
}

// Name returns the joined context string ("app.aspect...")
func (d *Destination) Name() string {
	return d.name
}

// Hash returns the routable 16-byte address hash
func (d *Destination) Hash() address.Hash {
	return d.hash
}

// Identity returns the bound identity for single-mode destinations, nil
// otherwise
func (d *Destination) Identity() *identity.Identity {
	return d.identity
}

// Encrypt transforms an outbound payload according to the destination mode.
// Single mode encrypts to the bound identity's public key, group mode seals
// with the shared key, plain mode copies the payload unchanged.
func (d *Destination) Encrypt(data []byte) ([]byte, error) {
	if len(data) > MaxPlaintextSize {
		return nil, ErrPayloadTooLarge
	}

	switch d.mode {
	case ModePlain:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case ModeSingle:
		return d.identity.Encrypt(data)
	case ModeGroup:
		return GroupEncrypt(d.groupKey[:], data)
	default:
		return nil, ErrWrongMode
	}
}

// Decrypt reverses Encrypt for an inbound payload. Single mode requires the
// bound identity's private half. Any integrity or authenticity failure is a
// hard error; no partial plaintext is returned.
func (d *Destination) Decrypt(data []byte) ([]byte, error) {
	switch d.mode {
	case ModePlain:
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case ModeSingle:
		return d.identity.Decrypt(data)
	case ModeGroup:
		return GroupDecrypt(d.groupKey[:], data)
	default:
		return nil, ErrWrongMode
	}
}

func joinName(context []string) (string, error) {
	if len(context) == 0 {
		return "", ErrEmptyName
	}
	for _, part := range context {
		if part == "" {
			return "", ErrEmptyName
		}
		if strings.Contains(part, ".") {
			return "", fmt.Errorf("context part %q must not contain separators", part)
		}
	}
	return strings.Join(context, "."), nil
}
