package transport

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/veilmesh/veilmesh/pkg/address"
	"github.com/veilmesh/veilmesh/pkg/destination"
	"github.com/veilmesh/veilmesh/pkg/iface"
	"github.com/veilmesh/veilmesh/pkg/identity"
	"github.com/veilmesh/veilmesh/pkg/packet"
)

var (
	ErrNoInterfaces       = errors.New("no interfaces attached")
	ErrDuplicateInterface = errors.New("interface name already attached")
	ErrUnknownInterface   = errors.New("interface not attached")
)

// janitorInterval paces the background sweeps of reassembly buffers, the
// receipt dedup set and the path table
const janitorInterval = time.Second

// Receipt is a delivery confirmation raised to the registered handler:
// the confirmed message identifier and its arrival time
type Receipt struct {
	MessageID  packet.MessageID
	ReceivedAt time.Time
}

// ReceiptHandler receives delivery confirmations. Invoked synchronously on
// the receive path, exactly once per distinct message identifier.
type ReceiptHandler interface {
	OnReceipt(r Receipt)
}

// InboundHandler receives decrypted payloads addressed to a registered
// destination
type InboundHandler func(dst address.Hash, payload []byte)

// AnnounceHandler receives validated announces: the announced destination
// hash, the announcer's public identity and its application data
type AnnounceHandler func(dst address.Hash, id *identity.Identity, appData []byte)

// PeerStore remembers announcing peers. Satisfied by keystore.Store;
// optional.
type PeerStore interface {
	RememberPeer(hash address.Hash, publicKey []byte) error
}

// Transport multiplexes packets over a set of attached interfaces, maintains
// reachability state per destination hash, drives fragmentation/reassembly
// and dispatches delivery receipts. All state is safe for use from
// concurrent interface callbacks; each logical resource is locked
// independently so one stalled interface cannot block the others' traffic.
type Transport struct {
	name      string
	localHash address.Hash
	cfg       Config

	ifMu       sync.RWMutex
	interfaces map[string]iface.Interface

	destMu       sync.RWMutex
	destinations map[address.Hash]*destination.Destination

	inboundMu  sync.RWMutex
	inbound    InboundHandler
	onAnnounce AnnounceHandler

	paths      *pathTable
	reassembly *packet.ReassemblyTable
	receipts   *receiptTable
	announces  *announceLimiter
	metrics    *metrics

	peers PeerStore

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a transport from the config and starts its housekeeping loop
func New(cfg Config) *Transport {
	cfg.applyDefaults()

	full := address.DeriveHash(cfg.Identity.PublicBytes(), "veilmesh", "node")

	t := &Transport{
		name:         cfg.Name,
		localHash:    address.Truncate(full),
		cfg:          cfg,
		interfaces:   make(map[string]iface.Interface),
		destinations: make(map[address.Hash]*destination.Destination),
		paths:        newPathTable(),
		reassembly:   packet.NewReassemblyTable(cfg.MaxInflight),
		receipts:     newReceiptTable(),
		announces:    newAnnounceLimiter(cfg.AnnounceRate, cfg.AnnounceBurst),
		metrics:      newMetrics(cfg.Name, cfg.Metrics),
		peers:        cfg.Peers,
		stop:         make(chan struct{}),
	}

	go t.janitor()

	return t
}

// LocalHash returns the transport node's own address hash, used as the
// source of outgoing fragments
func (t *Transport) LocalHash() address.Hash {
	return t.localHash
}

// Close stops the housekeeping loop. Attached interfaces are not closed;
// they belong to the caller.
func (t *Transport) Close() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

// AttachInterface adds a physical medium to the active set. Safe while
// traffic is flowing.
func (t *Transport) AttachInterface(ifc iface.Interface) error {
	t.ifMu.Lock()
	defer t.ifMu.Unlock()

	if _, ok := t.interfaces[ifc.Name()]; ok {
		return ErrDuplicateInterface
	}
	t.interfaces[ifc.Name()] = ifc
	return nil
}

// DetachInterface removes a medium from the active set and forgets every
// path learned through it
func (t *Transport) DetachInterface(name string) error {
	t.ifMu.Lock()
	_, ok := t.interfaces[name]
	delete(t.interfaces, name)
	t.ifMu.Unlock()

	if !ok {
		return ErrUnknownInterface
	}

	t.paths.forgetInterface(name)
	return nil
}

// RegisterDestination makes a destination addressable through this
// transport: inbound packets for its hash are decrypted and delivered
func (t *Transport) RegisterDestination(d *destination.Destination) {
	t.destMu.Lock()
	defer t.destMu.Unlock()
	t.destinations[d.Hash()] = d
}

// DeregisterDestination removes a destination from the registry
func (t *Transport) DeregisterDestination(hash address.Hash) {
	t.destMu.Lock()
	defer t.destMu.Unlock()
	delete(t.destinations, hash)
}

// SetReceiptHandler installs the single receipt handler slot; a subsequent
// call replaces the previous handler
func (t *Transport) SetReceiptHandler(h ReceiptHandler) {
	t.receipts.setHandler(h)
}

// SetInboundHandler installs the callback receiving decrypted payloads of
// registered destinations
func (t *Transport) SetInboundHandler(h InboundHandler) {
	t.inboundMu.Lock()
	defer t.inboundMu.Unlock()
	t.inbound = h
}

// SetAnnounceHandler installs the callback receiving validated announces
func (t *Transport) SetAnnounceHandler(h AnnounceHandler) {
	t.inboundMu.Lock()
	defer t.inboundMu.Unlock()
	t.onAnnounce = h
}

// SendResult reports the outcome of a send: the message identifier receipts
// will reference and any per-interface send failures. A failure on one
// interface never aborts dispatch to the others.
type SendResult struct {
	MessageID  packet.MessageID
	Dispatched int
	Errors     map[string]error
}

// Send encrypts the payload for the destination, fragments it and hands
// every resulting packet to each interface routed toward the destination,
// or to all attached interfaces when no path is known yet. It returns once
// all fragments are handed to the interface layer; delivery confirmation
// arrives out-of-band through the receipt handler.
func (t *Transport) Send(d *destination.Destination, payload []byte) (*SendResult, error) {
	ciphertext, err := d.Encrypt(payload)
	if err != nil {
		return nil, err
	}

	packets, msgID, err := packet.Split(d.Hash(), wireMode(d.Mode()), t.localHash, ciphertext)
	if err != nil {
		return nil, err
	}

	targets := t.routeTargets(d.Hash())
	if len(targets) == 0 {
		return nil, ErrNoInterfaces
	}

	result := &SendResult{
		MessageID: msgID,
		Errors:    make(map[string]error),
	}

	for _, p := range packets {
		frame := p.Encode()
		for _, ifc := range targets {
			if _, failed := result.Errors[ifc.Name()]; failed {
				continue
			}
			if err := ifc.Send(frame); err != nil {
				result.Errors[ifc.Name()] = fmt.Errorf("send on %s: %w", ifc.Name(), err)
				t.metrics.interfaceErrors.Inc()
				continue
			}
		}
	}

	for _, ifc := range targets {
		if result.Errors[ifc.Name()] == nil {
			result.Dispatched++
		}
	}

	return result, nil
}

// Announce broadcasts a signed announce for a registered single-mode
// destination on every attached interface
func (t *Transport) Announce(d *destination.Destination, appData []byte) error {
	a, err := d.NewAnnounce(appData)
	if err != nil {
		return err
	}

	p := &packet.Packet{
		Kind:        packet.KindAnnounce,
		Mode:        packet.ModePlain,
		Destination: d.Hash(),
		Payload:     a.Encode(),
	}
	frame := p.Encode()

	t.ifMu.RLock()
	targets := make([]iface.Interface, 0, len(t.interfaces))
	for _, ifc := range t.interfaces {
		targets = append(targets, ifc)
	}
	t.ifMu.RUnlock()

	if len(targets) == 0 {
		return ErrNoInterfaces
	}

	for _, ifc := range targets {
		if err := ifc.Send(frame); err != nil {
			t.metrics.interfaceErrors.Inc()
			log.Printf("tp(%s): announce send failed on %s: %v", t.name, ifc.Name(), err)
		}
	}

	return nil
}

// routeTargets resolves the interfaces believed to reach the destination,
// falling back to every attached interface when no path is known
func (t *Transport) routeTargets(dst address.Hash) []iface.Interface {
	names := t.paths.candidates(dst)

	t.ifMu.RLock()
	defer t.ifMu.RUnlock()

	if len(names) > 0 {
		targets := make([]iface.Interface, 0, len(names))
		for _, name := range names {
			if ifc, ok := t.interfaces[name]; ok {
				targets = append(targets, ifc)
			}
		}
		if len(targets) > 0 {
			return targets
		}
	}

	targets := make([]iface.Interface, 0, len(t.interfaces))
	for _, ifc := range t.interfaces {
		targets = append(targets, ifc)
	}
	return targets
}

// janitor periodically evicts stale reassembly buffers, expired receipt
// dedup entries and dead paths
func (t *Transport) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if evicted := t.reassembly.Sweep(t.cfg.ReassemblyTimeout); evicted > 0 {
				t.metrics.reassemblyTimeouts.Add(float64(evicted))
			}
			t.receipts.sweep(t.cfg.ReceiptHorizon)
			t.paths.sweep(t.cfg.PathTTL)
		}
	}
}

func wireMode(m destination.Mode) packet.Mode {
	switch m {
	case destination.ModeSingle:
		return packet.ModeSingle
	case destination.ModeGroup:
		return packet.ModeGroup
	default:
		return packet.ModePlain
	}
}
