package destination

import (
	"encoding/binary"
	"errors"
	"strings"

	"github.com/veilmesh/veilmesh/pkg/address"
	"github.com/veilmesh/veilmesh/pkg/identity"
)

var (
	ErrInvalidAnnounce   = errors.New("invalid announce")
	ErrAnnounceSignature = errors.New("announce signature verification failed")
	ErrAnnounceMismatch  = errors.New("announce does not match destination hash")
)

// MaxAnnounceAppData bounds the application data carried in an announce
const MaxAnnounceAppData = 256

// Announce is the self-proving discovery payload of a single-mode
// destination: the public identity, the destination name, optional
// application data and a signature binding all of it to the address hash.
type Announce struct {
	PublicKey [identity.PublicKeySize]byte
	Name      string
	AppData   []byte
	Signature [identity.SignatureSize]byte
}

// NewAnnounce builds and signs an announce for the destination. Requires a
// single-mode destination whose identity holds its private key.
func (d *Destination) NewAnnounce(appData []byte) (*Announce, error) {
	if d.mode != ModeSingle {
		return nil, ErrWrongMode
	}
	if !d.identity.HasPrivate() {
		return nil, identity.ErrNoPrivateKey
	}
	if len(appData) > MaxAnnounceAppData {
		return nil, ErrPayloadTooLarge
	}

	a := &Announce{
		Name:    d.name,
		AppData: append([]byte(nil), appData...),
	}
	copy(a.PublicKey[:], d.identity.PublicBytes())

	sig, err := d.identity.Sign(a.signedData(d.hash))
	if err != nil {
		return nil, err
	}
	copy(a.Signature[:], sig)

	return a, nil
}

// Encode encodes the announce to bytes
func (a *Announce) Encode() []byte {
	nameBytes := []byte(a.Name)
	size := identity.PublicKeySize + 2 + len(nameBytes) + 2 + len(a.AppData) + identity.SignatureSize
	buf := make([]byte, size)
	offset := 0

	copy(buf[offset:], a.PublicKey[:])
	offset += identity.PublicKeySize

	binary.BigEndian.PutUint16(buf[offset:], uint16(len(nameBytes)))
	offset += 2

	copy(buf[offset:], nameBytes)
	offset += len(nameBytes)

	binary.BigEndian.PutUint16(buf[offset:], uint16(len(a.AppData)))
	offset += 2

	copy(buf[offset:], a.AppData)
	offset += len(a.AppData)

	copy(buf[offset:], a.Signature[:])

	return buf
}

// Decode decodes the announce from bytes
func (a *Announce) Decode(buf []byte) error {
	offset := 0

	if len(buf) < identity.PublicKeySize+2 {
		return ErrInvalidAnnounce
	}

	copy(a.PublicKey[:], buf[offset:offset+identity.PublicKeySize])
	offset += identity.PublicKeySize

	nameLen := int(binary.BigEndian.Uint16(buf[offset:]))
	offset += 2

	if len(buf) < offset+nameLen+2 {
		return ErrInvalidAnnounce
	}

	a.Name = string(buf[offset : offset+nameLen])
	offset += nameLen

	appDataLen := int(binary.BigEndian.Uint16(buf[offset:]))
	offset += 2

	if appDataLen > MaxAnnounceAppData {
		return ErrInvalidAnnounce
	}
	if len(buf) != offset+appDataLen+identity.SignatureSize {
		return ErrInvalidAnnounce
	}

	a.AppData = make([]byte, appDataLen)
	copy(a.AppData, buf[offset:offset+appDataLen])
	offset += appDataLen

	copy(a.Signature[:], buf[offset:])

	return nil
}

// Validate checks an announce received for the given address hash: the
// signature must verify against the embedded public key, and the hash must
// re-derive from that key and the announced name. Returns the announcer's
// public-only identity on success.
func (a *Announce) Validate(hash address.Hash) (*identity.Identity, error) {
	id, err := identity.FromPublicBytes(a.PublicKey[:])
	if err != nil {
		return nil, ErrInvalidAnnounce
	}

	if !id.Verify(a.signedData(hash), a.Signature[:]) {
		return nil, ErrAnnounceSignature
	}

	context := strings.Split(a.Name, ".")
	derived := address.Truncate(address.DeriveHash(a.PublicKey[:], context...))
	if derived != hash {
		return nil, ErrAnnounceMismatch
	}

	return id, nil
}

// signedData is the byte string covered by the announce signature
func (a *Announce) signedData(hash address.Hash) []byte {
	buf := make([]byte, 0, address.HashSize+identity.PublicKeySize+len(a.Name)+len(a.AppData))
	buf = append(buf, hash[:]...)
	buf = append(buf, a.PublicKey[:]...)
	buf = append(buf, a.Name...)
	buf = append(buf, a.AppData...)
	return buf
}
