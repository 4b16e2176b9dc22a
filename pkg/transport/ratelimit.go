package transport

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/veilmesh/veilmesh/pkg/address"
)

// announceLimiter applies a token bucket per announced hash and evicts idle
// entries as a side effect of use, so a chatty peer cannot starve announce
// processing for everyone else
type announceLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	byHash  map[address.Hash]*limiterEntry
	hits    uint64
	idleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newAnnounceLimiter(rps float64, burst int) *announceLimiter {
	return &announceLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byHash:  make(map[address.Hash]*limiterEntry),
		idleTTL: 10 * time.Minute,
	}
}

// allow reports whether one announce for the hash may be processed at now
func (l *announceLimiter) allow(hash address.Hash, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byHash[hash]
	if !ok {
		e = &limiterEntry{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: now,
		}
		l.byHash[hash] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for hash, entry := range l.byHash {
			if entry.lastSeen.Before(cutoff) {
				delete(l.byHash, hash)
			}
		}
	}

	return allowed
}
