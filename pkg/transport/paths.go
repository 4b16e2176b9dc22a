package transport

import (
	"sync"
	"time"

	"github.com/veilmesh/veilmesh/pkg/address"
)

// pathTable records which interfaces have recently carried traffic from a
// destination hash. It is advisory routing state: a missing entry only
// means outbound packets flood all interfaces.
type pathTable struct {
	mu      sync.Mutex
	entries map[address.Hash]map[string]time.Time
}

func newPathTable() *pathTable {
	return &pathTable{
		entries: make(map[address.Hash]map[string]time.Time),
	}
}

// learn records that traffic from hash arrived on the named interface
func (pt *pathTable) learn(hash address.Hash, ifaceName string) {
	if hash.IsZero() {
		return
	}

	pt.mu.Lock()
	defer pt.mu.Unlock()

	paths, ok := pt.entries[hash]
	if !ok {
		paths = make(map[string]time.Time)
		pt.entries[hash] = paths
	}
	paths[ifaceName] = time.Now()
}

// candidates returns the interface names believed to reach the hash
func (pt *pathTable) candidates(hash address.Hash) []string {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	paths, ok := pt.entries[hash]
	if !ok {
		return nil
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	return names
}

// forgetInterface drops every path learned through a detached interface
func (pt *pathTable) forgetInterface(ifaceName string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	for hash, paths := range pt.entries {
		delete(paths, ifaceName)
		if len(paths) == 0 {
			delete(pt.entries, hash)
		}
	}
}

// sweep expires paths not refreshed within ttl
func (pt *pathTable) sweep(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)

	pt.mu.Lock()
	defer pt.mu.Unlock()

	for hash, paths := range pt.entries {
		for name, seen := range paths {
			if seen.Before(cutoff) {
				delete(paths, name)
			}
		}
		if len(paths) == 0 {
			delete(pt.entries, hash)
		}
	}
}
