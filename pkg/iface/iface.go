// Package iface defines the boundary between the transport core and a
// physical medium. Concrete drivers (TCP, serial, radio RPC) live outside
// the core; they only need to satisfy Interface and feed received frames to
// the transport's inbound entry point.
package iface

import "errors"

var ErrInterfaceClosed = errors.New("interface closed")

// Interface is a logical handle to a physical medium. Implementations hold
// no protocol state; they move opaque frames.
type Interface interface {
	// Name identifies the interface within a transport instance
	Name() string

	// Send hands one raw frame to the medium. Fire-and-forget from the
	// core's perspective: an error reports a local send failure, not a
	// delivery failure.
	Send(frame []byte) error
}
