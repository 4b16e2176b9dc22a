package packet

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/veilmesh/veilmesh/pkg/address"
)

var (
	ErrInvalidFragment = errors.New("invalid fragment record")
	ErrTooManyChunks   = errors.New("payload exceeds fragmentation ceiling")
)

// FragmentOverhead is the fixed size of a fragment record before its chunk:
// source hash (16) + message ID (32) + index (2) + total (2)
const FragmentOverhead = address.HashSize + MessageIDSize + 2 + 2

// MaxMessageSize is the absolute ceiling on a fragmentable payload,
// bounded by the 16-bit fragment index space
const MaxMessageSize = math.MaxUint16 * MaxPayloadSize

// Fragment is one bounded slice of a larger message, carried in the payload
// of a packet with the fragmentation flag set
type Fragment struct {
	Source    address.Hash
	MessageID MessageID
	Index     uint16
	Total     uint16
	Chunk     []byte
}

// Encode encodes the fragment record to bytes
func (f *Fragment) Encode() []byte {
	buf := make([]byte, FragmentOverhead+len(f.Chunk))
	offset := 0

	copy(buf[offset:], f.Source[:])
	offset += address.HashSize

	copy(buf[offset:], f.MessageID[:])
	offset += MessageIDSize

	binary.BigEndian.PutUint16(buf[offset:], f.Index)
	offset += 2

	binary.BigEndian.PutUint16(buf[offset:], f.Total)
	offset += 2

	copy(buf[offset:], f.Chunk)

	return buf
}

// Decode decodes a fragment record from bytes
func (f *Fragment) Decode(buf []byte) error {
	if len(buf) < FragmentOverhead {
		return ErrInvalidFragment
	}
	if len(buf) > FragmentOverhead+MaxPayloadSize {
		return ErrInvalidFragment
	}

	offset := 0

	copy(f.Source[:], buf[offset:offset+address.HashSize])
	offset += address.HashSize

	copy(f.MessageID[:], buf[offset:offset+MessageIDSize])
	offset += MessageIDSize

	f.Index = binary.BigEndian.Uint16(buf[offset:])
	offset += 2

	f.Total = binary.BigEndian.Uint16(buf[offset:])
	offset += 2

	if f.Total == 0 || f.Index >= f.Total {
		return ErrInvalidFragment
	}

	f.Chunk = make([]byte, len(buf)-offset)
	copy(f.Chunk, buf[offset:])

	return nil
}

// Split wraps a payload into packets for the destination. A payload that
// fits MaxPayloadSize yields a single unflagged packet and a deterministic
// message ID; larger payloads are sliced into consecutive chunks, each
// wrapped into a flagged packet carrying a fragment record under a fresh
// random message ID. Splitting fails only when the chunk count cannot be
// represented.
func Split(dst address.Hash, mode Mode, source address.Hash, payload []byte) ([]*Packet, MessageID, error) {
	if len(payload) <= MaxPayloadSize {
		p := &Packet{
			Kind:        KindData,
			Mode:        mode,
			Destination: dst,
			Payload:     append([]byte(nil), payload...),
		}
		return []*Packet{p}, DeriveMessageID(dst, p.Payload), nil
	}

	if len(payload) > MaxMessageSize {
		return nil, MessageID{}, ErrTooManyChunks
	}

	total := (len(payload) + MaxPayloadSize - 1) / MaxPayloadSize
	id := NewMessageID()

	packets := make([]*Packet, 0, total)
	for i := 0; i < total; i++ {
		start := i * MaxPayloadSize
		end := start + MaxPayloadSize
		if end > len(payload) {
			end = len(payload)
		}

		frag := &Fragment{
			Source:    source,
			MessageID: id,
			Index:     uint16(i),
			Total:     uint16(total),
		}
		frag.Chunk = append([]byte(nil), payload[start:end]...)

		packets = append(packets, &Packet{
			Kind:        KindData,
			Mode:        mode,
			Fragmented:  true,
			Destination: dst,
			Payload:     frag.Encode(),
		})
	}

	return packets, id, nil
}
