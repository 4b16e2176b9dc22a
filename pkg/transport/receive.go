package transport

import (
	"log"
	"time"

	"github.com/veilmesh/veilmesh/pkg/address"
	"github.com/veilmesh/veilmesh/pkg/destination"
	"github.com/veilmesh/veilmesh/pkg/iface"
	"github.com/veilmesh/veilmesh/pkg/packet"
)

// HandleInbound is the entry point an interface owner invokes for every raw
// frame the medium delivers. It performs header decoding, reassembly,
// decryption/verification and receipt dispatch. Malformed, unverifiable or
// undeliverable frames are dropped and counted; nothing on this path
// escapes as a failure to the interface.
func (t *Transport) HandleInbound(ifc iface.Interface, frame []byte) {
	p := &packet.Packet{}
	if err := p.Decode(frame); err != nil {
		t.metrics.droppedFrames.Inc()
		return
	}

	switch {
	case p.Receipt:
		t.handleReceipt(p)
	case p.Kind == packet.KindAnnounce:
		t.handleAnnounce(p, ifc)
	case p.Fragmented:
		t.handleFragment(p, ifc)
	default:
		id := packet.DeriveMessageID(p.Destination, p.Payload)
		t.deliver(p.Destination, p.Payload, id, address.Hash{}, ifc)
	}
}

// handleReceipt deduplicates and dispatches a delivery confirmation. The
// handler runs synchronously and sees each message identifier once,
// regardless of link-layer retransmission.
func (t *Transport) handleReceipt(p *packet.Packet) {
	id, err := p.ReceiptID()
	if err != nil {
		t.metrics.droppedFrames.Inc()
		return
	}

	handler, first := t.receipts.claim(id)
	if !first {
		t.metrics.duplicateReceipts.Inc()
		return
	}

	t.metrics.receiptsDelivered.Inc()
	if handler != nil {
		handler.OnReceipt(Receipt{MessageID: id, ReceivedAt: time.Now()})
	}
}

// handleAnnounce validates a discovery announce, learns the path toward the
// announced destination and surfaces the announcer to the consumer.
// Announce processing is rate-limited per announced hash.
func (t *Transport) handleAnnounce(p *packet.Packet, ifc iface.Interface) {
	if !t.announces.allow(p.Destination, time.Now()) {
		t.metrics.droppedFrames.Inc()
		return
	}

	a := &destination.Announce{}
	if err := a.Decode(p.Payload); err != nil {
		t.metrics.droppedFrames.Inc()
		return
	}

	announcer, err := a.Validate(p.Destination)
	if err != nil {
		t.metrics.cryptoFailures.Inc()
		return
	}

	t.paths.learn(p.Destination, ifc.Name())

	if t.peers != nil {
		if err := t.peers.RememberPeer(p.Destination, announcer.PublicBytes()); err != nil {
			log.Printf("tp(%s): remember peer %s: %v", t.name, p.Destination, err)
		}
	}

	t.inboundMu.RLock()
	handler := t.onAnnounce
	t.inboundMu.RUnlock()

	if handler != nil {
		handler(p.Destination, announcer, a.AppData)
	}
}

// handleFragment feeds one fragment into the reassembly table and delivers
// the message once the final missing chunk arrives. Fragments may arrive in
// any order and over different interfaces.
func (t *Transport) handleFragment(p *packet.Packet, ifc iface.Interface) {
	frag := &packet.Fragment{}
	if err := frag.Decode(p.Payload); err != nil {
		t.metrics.droppedFrames.Inc()
		return
	}

	t.paths.learn(frag.Source, ifc.Name())

	payload, complete, err := t.reassembly.Add(frag)
	if err != nil {
		t.metrics.droppedFrames.Inc()
		return
	}
	if !complete {
		return
	}

	t.deliver(p.Destination, payload, frag.MessageID, frag.Source, ifc)
}

// deliver hands a complete ciphertext to its registered destination,
// confirms delivery with a receipt out the arrival interface and raises the
// plaintext to the inbound handler. Unregistered hashes and decryption
// failures drop the message.
func (t *Transport) deliver(dst address.Hash, ciphertext []byte, id packet.MessageID, source address.Hash, ifc iface.Interface) {
	t.destMu.RLock()
	d, ok := t.destinations[dst]
	t.destMu.RUnlock()

	if !ok {
		t.metrics.unroutableFrames.Inc()
		return
	}

	plaintext, err := d.Decrypt(ciphertext)
	if err != nil {
		t.metrics.cryptoFailures.Inc()
		return
	}

	receipt := packet.NewReceipt(source, id)
	if err := ifc.Send(receipt.Encode()); err != nil {
		t.metrics.interfaceErrors.Inc()
		log.Printf("tp(%s): receipt send failed on %s: %v", t.name, ifc.Name(), err)
	}

	t.inboundMu.RLock()
	handler := t.inbound
	t.inboundMu.RUnlock()

	if handler != nil {
		handler(dst, plaintext)
	}
}
