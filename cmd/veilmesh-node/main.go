package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veilmesh/veilmesh/pkg/address"
	"github.com/veilmesh/veilmesh/pkg/config"
	"github.com/veilmesh/veilmesh/pkg/destination"
	"github.com/veilmesh/veilmesh/pkg/identity"
	"github.com/veilmesh/veilmesh/pkg/keystore"
	"github.com/veilmesh/veilmesh/pkg/transport"
)

const announceInterval = 5 * time.Minute

var (
	configPath = flag.String("config", "./veilmesh.yaml", "Path to node configuration")
	listenAddr = flag.String("listen", "", "TCP listen address (overrides config)")
	peerAddrs  = flag.String("peers", "", "Comma-separated TCP peers to dial")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var store *keystore.Store
	var peers transport.PeerStore
	if cfg.Keystore != "" {
		store, err = keystore.Open(cfg.Keystore)
		if err != nil {
			log.Fatalf("Failed to open keystore: %v", err)
		}
		defer store.Close()
		peers = store
		log.Printf("✓ Keystore opened at %s", cfg.Keystore)
	}

	id, err := loadOrGenerateIdentity(store, cfg.Name)
	if err != nil {
		log.Fatalf("Failed to load identity: %v", err)
	}
	log.Printf("✓ Node identity %s", id)

	tp := transport.New(transport.Config{
		Name:              cfg.Name,
		Identity:          id,
		ReassemblyTimeout: cfg.Transport.ReassemblyTimeout,
		ReceiptHorizon:    cfg.Transport.ReceiptHorizon,
		PathTTL:           cfg.Transport.PathTTL,
		AnnounceRate:      cfg.Transport.AnnounceRate,
		AnnounceBurst:     cfg.Transport.AnnounceBurst,
		MaxInflight:       cfg.Transport.MaxInflight,
		Peers:             peers,
		Metrics:           prometheus.DefaultRegisterer,
	})
	defer tp.Close()

	inbox, err := destination.NewSingle(id, "veilmesh", "node")
	if err != nil {
		log.Fatalf("Failed to create inbox destination: %v", err)
	}
	tp.RegisterDestination(inbox)

	tp.SetInboundHandler(func(dst address.Hash, payload []byte) {
		log.Printf("📨 %d bytes for %s", len(payload), dst)
	})
	tp.SetAnnounceHandler(func(dst address.Hash, from *identity.Identity, appData []byte) {
		log.Printf("📡 Announce for %s from %s (%d bytes app data)", dst, from, len(appData))
	})

	attach := func(conn net.Conn) {
		ti := newTCPInterface(fmt.Sprintf("tcp/%s", conn.RemoteAddr()), conn)
		if err := tp.AttachInterface(ti); err != nil {
			log.Printf("Attach %s: %v", ti.Name(), err)
			ti.Close()
			return
		}
		log.Printf("✓ Interface %s attached", ti.Name())

		go ti.readLoop(tp.HandleInbound, func(ti *tcpInterface) {
			tp.DetachInterface(ti.Name())
			log.Printf("Interface %s detached", ti.Name())
		})
	}

	addr := *listenAddr
	if addr == "" {
		for _, ic := range cfg.Interfaces {
			if ic.Type == "tcp" && ic.Options["listen"] == "true" {
				addr = ic.Address
				break
			}
		}
	}
	var ln net.Listener
	if addr != "" {
		ln, err = serveTCP(addr, attach)
		if err != nil {
			log.Fatalf("Failed to listen on %s: %v", addr, err)
		}
		defer ln.Close()
		log.Printf("✓ Listening on %s", addr)
	}

	for _, peer := range dialTargets(cfg, *peerAddrs) {
		conn, err := net.DialTimeout("tcp", peer, 10*time.Second)
		if err != nil {
			log.Printf("⚠️  Dial %s: %v", peer, err)
			continue
		}
		attach(conn)
	}

	go announceLoop(tp, inbox, cfg.Name)

	log.Printf("✓ Node %s up, inbox %s", cfg.Name, inbox.Hash())

	waitForShutdown()
}

// loadOrGenerateIdentity restores the named node identity from the keystore,
// generating and persisting a fresh one on first run. Without a keystore the
// identity is ephemeral.
func loadOrGenerateIdentity(store *keystore.Store, name string) (*identity.Identity, error) {
	if store == nil {
		log.Println("No keystore configured, using ephemeral identity")
		return identity.Generate(), nil
	}

	id, err := store.LoadIdentity(name)
	if err == nil {
		return id, nil
	}
	if err != keystore.ErrNotFound {
		return nil, err
	}

	log.Println("Generating new node identity...")
	id = identity.Generate()
	if err := store.SaveIdentity(name, id); err != nil {
		return nil, err
	}
	return id, nil
}

func dialTargets(cfg config.NodeConfig, flagPeers string) []string {
	var targets []string
	for _, ic := range cfg.Interfaces {
		if ic.Type == "tcp" && ic.Options["listen"] != "true" {
			targets = append(targets, ic.Address)
		}
	}
	for _, p := range strings.Split(flagPeers, ",") {
		if p = strings.TrimSpace(p); p != "" {
			targets = append(targets, p)
		}
	}
	return targets
}

// announceLoop periodically re-announces the inbox so new peers learn a path
func announceLoop(tp *transport.Transport, d *destination.Destination, name string) {
	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()

	for {
		if err := tp.Announce(d, []byte(name)); err != nil && err != transport.ErrNoInterfaces {
			log.Printf("⚠️  Announce: %v", err)
		}
		<-ticker.C
	}
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received %v, shutting down...", sig)
}
