package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veilmesh/veilmesh/pkg/identity"
)

// Default housekeeping parameters
const (
	DefaultReassemblyTimeout = 30 * time.Second
	DefaultReceiptHorizon    = 5 * time.Minute
	DefaultPathTTL           = 10 * time.Minute
	DefaultAnnounceRate      = 1.0
	DefaultAnnounceBurst     = 5
)

// Config configures a Transport. The zero value is usable: a throwaway node
// identity is generated and all housekeeping parameters take their
// defaults.
type Config struct {
	// Name tags log lines and metric labels
	Name string

	// Identity is the node identity whose hash marks outgoing fragments.
	// Generated when nil.
	Identity *identity.Identity

	// ReassemblyTimeout evicts incomplete messages; stale partial payloads
	// are dropped, never delivered truncated
	ReassemblyTimeout time.Duration

	// ReceiptHorizon bounds how long delivered message IDs are remembered
	// for receipt deduplication
	ReceiptHorizon time.Duration

	// PathTTL expires reachability entries not refreshed by traffic
	PathTTL time.Duration

	// AnnounceRate and AnnounceBurst bound per-peer announce processing
	AnnounceRate  float64
	AnnounceBurst int

	// MaxInflight bounds concurrently reassembling messages
	MaxInflight int

	// Peers, when set, remembers validated announcers
	Peers PeerStore

	// Metrics, when set, receives the transport's counters
	Metrics prometheus.Registerer
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "tp"
	}
	if c.Identity == nil {
		c.Identity = identity.Generate()
	}
	if c.ReassemblyTimeout <= 0 {
		c.ReassemblyTimeout = DefaultReassemblyTimeout
	}
	if c.ReceiptHorizon <= 0 {
		c.ReceiptHorizon = DefaultReceiptHorizon
	}
	if c.PathTTL <= 0 {
		c.PathTTL = DefaultPathTTL
	}
	if c.AnnounceRate <= 0 {
		c.AnnounceRate = DefaultAnnounceRate
	}
	if c.AnnounceBurst <= 0 {
		c.AnnounceBurst = DefaultAnnounceBurst
	}
}
