package transport

import (
	"sync"
	"time"

	"github.com/veilmesh/veilmesh/pkg/packet"
)

// receiptTable holds the single handler slot and the dedup set guaranteeing
// exactly-once receipt dispatch per message identifier. The dedup set
// outlives handler replacement: a receipt seen under one handler is never
// re-raised to its successor.
type receiptTable struct {
	mu      sync.Mutex
	handler ReceiptHandler
	seen    map[packet.MessageID]time.Time
}

func newReceiptTable() *receiptTable {
	return &receiptTable{
		seen: make(map[packet.MessageID]time.Time),
	}
}

// setHandler replaces the handler slot
func (rt *receiptTable) setHandler(h ReceiptHandler) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.handler = h
}

// claim marks a message identifier as delivered and returns the installed
// handler. The second return is false for identifiers already claimed; the
// handler must only be invoked when it is true. The handler reference is
// returned rather than invoked so the caller can run it outside the lock.
func (rt *receiptTable) claim(id packet.MessageID) (ReceiptHandler, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, dup := rt.seen[id]; dup {
		return nil, false
	}

	rt.seen[id] = time.Now()
	return rt.handler, true
}

// sweep expires dedup entries older than the horizon. An identifier expired
// here could in principle be re-raised by an extremely late duplicate; the
// horizon is sized well beyond plausible link-layer retransmission delays.
func (rt *receiptTable) sweep(horizon time.Duration) {
	cutoff := time.Now().Add(-horizon)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	for id, seen := range rt.seen {
		if seen.Before(cutoff) {
			delete(rt.seen, id)
		}
	}
}
