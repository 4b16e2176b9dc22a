package packet

import (
	"errors"
	"sync"
	"time"

	"github.com/veilmesh/veilmesh/pkg/address"
)

var (
	ErrTotalMismatch = errors.New("fragment total does not match buffer")
	ErrTableFull     = errors.New("reassembly table full")
)

// DefaultMaxInflight bounds concurrently reassembling messages
const DefaultMaxInflight = 256

// reassemblyKey identifies an in-flight message by source and message ID
type reassemblyKey struct {
	source address.Hash
	id     MessageID
}

// buffer collects the chunks of one in-flight message. Chunks arrive in any
// order; concatenation on completion is index-ordered.
type buffer struct {
	chunks  map[uint16][]byte
	total   uint16
	created time.Time
}

// ReassemblyTable tracks per-message reassembly buffers. It carries its own
// lock so that reassembly progress never contends with routing or handler
// state.
type ReassemblyTable struct {
	mu          sync.Mutex
	buffers     map[reassemblyKey]*buffer
	maxInflight int
}

// NewReassemblyTable creates a table bounded to maxInflight concurrent
// messages; zero selects the default bound
func NewReassemblyTable(maxInflight int) *ReassemblyTable {
	if maxInflight <= 0 {
		maxInflight = DefaultMaxInflight
	}
	return &ReassemblyTable{
		buffers:     make(map[reassemblyKey]*buffer),
		maxInflight: maxInflight,
	}
}

// Add appends a fragment chunk to its message buffer, creating the buffer on
// first sight. When the final missing chunk arrives the buffer is destroyed
// and the complete payload returned. Duplicate chunks are ignored.
func (t *ReassemblyTable) Add(frag *Fragment) ([]byte, bool, error) {
	key := reassemblyKey{source: frag.Source, id: frag.MessageID}

	t.mu.Lock()
	defer t.mu.Unlock()

	buf, ok := t.buffers[key]
	if !ok {
		if len(t.buffers) >= t.maxInflight {
			return nil, false, ErrTableFull
		}
		buf = &buffer{
			chunks:  make(map[uint16][]byte),
			total:   frag.Total,
			created: time.Now(),
		}
		t.buffers[key] = buf
	}

	if frag.Total != buf.total {
		return nil, false, ErrTotalMismatch
	}

	if _, dup := buf.chunks[frag.Index]; !dup {
		buf.chunks[frag.Index] = frag.Chunk
	}

	if len(buf.chunks) < int(buf.total) {
		return nil, false, nil
	}

	delete(t.buffers, key)

	size := 0
	for _, chunk := range buf.chunks {
		size += len(chunk)
	}

	payload := make([]byte, 0, size)
	for i := uint16(0); i < buf.total; i++ {
		payload = append(payload, buf.chunks[i]...)
	}

	return payload, true, nil
}

// Sweep evicts buffers older than maxAge and returns how many were dropped.
// Partial, stale messages are discarded, never delivered truncated.
func (t *ReassemblyTable) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for key, buf := range t.buffers {
		if buf.created.Before(cutoff) {
			delete(t.buffers, key)
			evicted++
		}
	}
	return evicted
}

// Inflight returns the number of messages currently reassembling
func (t *ReassemblyTable) Inflight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffers)
}
