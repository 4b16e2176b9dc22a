package packet

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"

	"github.com/veilmesh/veilmesh/pkg/address"
)

var (
	ErrInvalidHeader  = errors.New("invalid packet header")
	ErrInvalidFlags   = errors.New("invalid packet flags")
	ErrOversizedFrame = errors.New("frame exceeds maximum size")
	ErrInvalidReceipt = errors.New("invalid receipt payload")
)

// Wire format constants
const (
	// HeaderSize is the fixed packet header: one flags byte followed by the
	// 16-byte destination address hash
	HeaderSize = 1 + address.HashSize

	// MaxPayloadSize is the maximum data chunk carried by a single
	// fragment. It is a policy constant chosen independent of any physical
	// MTU, so a once-fragmented message stays deliverable unmodified over
	// every interface in the system.
	MaxPayloadSize = 1024

	// MaxFrameSize bounds a complete encoded packet on the wire
	MaxFrameSize = HeaderSize + FragmentOverhead + MaxPayloadSize
)

// Flags byte layout. The two high bits are reserved and must be zero.
const (
	FlagFragmented uint8 = 0x01 // payload is one fragment of a larger message
	FlagReceipt    uint8 = 0x02 // payload is a 32-byte delivery receipt

	modeMask  uint8 = 0x0C
	modeShift       = 2

	kindMask  uint8 = 0x30
	kindShift       = 4

	reservedMask uint8 = 0xC0
)

// Mode is the wire encoding of a destination's crypto mode
type Mode uint8

const (
	ModePlain Mode = iota
	ModeSingle
	ModeGroup
)

// Kind is the wire encoding of a packet's role
type Kind uint8

const (
	KindData Kind = iota
	KindAnnounce
)

// MessageIDSize is the size of a message identifier
const MessageIDSize = 32

// MessageID identifies a message across fragmentation and receipts
type MessageID [MessageIDSize]byte

// Packet is the wire unit: a 17-byte header and a bounded payload.
// Transient, constructed per send/receive event.
type Packet struct {
	Kind        Kind
	Mode        Mode
	Fragmented  bool
	Receipt     bool
	Destination address.Hash
	Payload     []byte
}

// NewMessageID generates a random message identifier for fragmented sends
func NewMessageID() MessageID {
	var id MessageID
	if _, err := rand.Read(id[:]); err != nil {
		panic(err)
	}
	return id
}

// DeriveMessageID computes the deterministic identifier of an unfragmented
// message: BLAKE2b-256 over the destination hash and the wire payload. Both
// ends of a delivery compute the same value, so receipts can reference a
// message that never carried an explicit identifier.
func DeriveMessageID(dst address.Hash, payload []byte) MessageID {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	h.Write(dst[:])
	h.Write(payload)

	var id MessageID
	copy(id[:], h.Sum(nil))
	return id
}

// String returns a short hex form of the message ID
func (id MessageID) String() string {
	return hex.EncodeToString(id[:8])
}

// Encode encodes the packet to a wire frame
func (p *Packet) Encode() []byte {
	buf := make([]byte, HeaderSize+len(p.Payload))

	buf[0] = p.flags()
	copy(buf[1:1+address.HashSize], p.Destination[:])
	copy(buf[HeaderSize:], p.Payload)

	return buf
}

// Decode decodes a wire frame into the packet. Unknown flag bits, invalid
// mode/kind values and oversized frames are format failures.
func (p *Packet) Decode(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrInvalidHeader
	}
	if len(buf) > MaxFrameSize {
		return ErrOversizedFrame
	}

	flags := buf[0]
	if flags&reservedMask != 0 {
		return ErrInvalidFlags
	}

	mode := Mode((flags & modeMask) >> modeShift)
	if mode > ModeGroup {
		return ErrInvalidFlags
	}

	kind := Kind((flags & kindMask) >> kindShift)
	if kind > KindAnnounce {
		return ErrInvalidFlags
	}

	p.Fragmented = flags&FlagFragmented != 0
	p.Receipt = flags&FlagReceipt != 0
	p.Mode = mode
	p.Kind = kind

	copy(p.Destination[:], buf[1:1+address.HashSize])

	p.Payload = make([]byte, len(buf)-HeaderSize)
	copy(p.Payload, buf[HeaderSize:])

	return nil
}

func (p *Packet) flags() uint8 {
	var flags uint8
	if p.Fragmented {
		flags |= FlagFragmented
	}
	if p.Receipt {
		flags |= FlagReceipt
	}
	flags |= uint8(p.Mode) << modeShift
	flags |= uint8(p.Kind) << kindShift
	return flags
}

// NewReceipt builds a receipt packet confirming delivery of a message
func NewReceipt(dst address.Hash, id MessageID) *Packet {
	payload := make([]byte, MessageIDSize)
	copy(payload, id[:])

	return &Packet{
		Kind:        KindData,
		Mode:        ModePlain,
		Receipt:     true,
		Destination: dst,
		Payload:     payload,
	}
}

// ReceiptID extracts the message identifier from a receipt packet
func (p *Packet) ReceiptID() (MessageID, error) {
	var id MessageID
	if !p.Receipt || len(p.Payload) != MessageIDSize {
		return id, ErrInvalidReceipt
	}
	copy(id[:], p.Payload)
	return id, nil
}
