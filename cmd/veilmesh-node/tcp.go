package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/veilmesh/veilmesh/pkg/iface"
	"github.com/veilmesh/veilmesh/pkg/packet"
)

// tcpInterface frames packets over a TCP connection with a 2-byte big-endian
// length prefix. One instance per connection; the protocol core never sees
// the socket.
type tcpInterface struct {
	name string

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

var _ iface.Interface = (*tcpInterface)(nil)

func newTCPInterface(name string, conn net.Conn) *tcpInterface {
	return &tcpInterface{name: name, conn: conn}
}

func (t *tcpInterface) Name() string {
	return t.name
}

func (t *tcpInterface) Send(frame []byte) error {
	if len(frame) > packet.MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds wire limit", len(frame))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return iface.ErrInterfaceClosed
	}

	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(frame)))

	if _, err := t.conn.Write(prefix[:]); err != nil {
		return err
	}
	_, err := t.conn.Write(frame)
	return err
}

func (t *tcpInterface) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		t.conn.Close()
	}
}

// readLoop feeds incoming frames to the handler until the connection drops,
// then invokes done
func (t *tcpInterface) readLoop(handler func(iface.Interface, []byte), done func(*tcpInterface)) {
	var prefix [2]byte

	for {
		if _, err := io.ReadFull(t.conn, prefix[:]); err != nil {
			break
		}

		size := binary.BigEndian.Uint16(prefix[:])
		if size == 0 || int(size) > packet.MaxFrameSize {
			log.Printf("tcp(%s): invalid frame length %d, dropping connection", t.name, size)
			break
		}

		frame := make([]byte, size)
		if _, err := io.ReadFull(t.conn, frame); err != nil {
			break
		}

		handler(t, frame)
	}

	t.Close()
	done(t)
}

// serveTCP accepts inbound connections and hands each one to attach
func serveTCP(addr string, attach func(conn net.Conn)) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Printf("tcp: accept: %v", err)
				continue
			}
			attach(conn)
		}
	}()

	return ln, nil
}
