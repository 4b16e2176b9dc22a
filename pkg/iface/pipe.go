package iface

import "sync"

// PipeEnd is one side of an in-memory frame pipe. Frames sent on one end
// are delivered synchronously to the receiver installed on the other end.
// Used by tests and local composition; it is not a physical driver.
type PipeEnd struct {
	name string

	mu       sync.Mutex
	peer     *PipeEnd
	receiver func(frame []byte)
	closed   bool
}

// Pipe creates a connected pair of in-memory interfaces
func Pipe(nameA, nameB string) (*PipeEnd, *PipeEnd) {
	a := &PipeEnd{name: nameA}
	b := &PipeEnd{name: nameB}
	a.peer = b
	b.peer = a
	return a, b
}

// Name implements Interface
func (p *PipeEnd) Name() string {
	return p.name
}

// SetReceiver installs the callback invoked with every frame arriving from
// the peer end
func (p *PipeEnd) SetReceiver(fn func(frame []byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receiver = fn
}

// Send implements Interface: the frame is copied and handed to the peer's
// receiver on the calling goroutine
func (p *PipeEnd) Send(frame []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrInterfaceClosed
	}
	peer := p.peer
	p.mu.Unlock()

	peer.mu.Lock()
	receiver := peer.receiver
	closed := peer.closed
	peer.mu.Unlock()

	if closed || receiver == nil {
		return ErrInterfaceClosed
	}

	receiver(append([]byte(nil), frame...))
	return nil
}

// Close tears the end down; subsequent sends from either side fail
func (p *PipeEnd) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.receiver = nil
}
