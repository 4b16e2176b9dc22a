package iface

import (
	"bytes"
	"testing"
)

func TestPipeDeliversFrames(t *testing.T) {
	a, b := Pipe("a", "b")

	if a.Name() != "a" || b.Name() != "b" {
		t.Fatalf("Name() = %q, %q", a.Name(), b.Name())
	}

	var got []byte
	b.SetReceiver(func(frame []byte) { got = frame })

	frame := []byte{0x01, 0x02, 0x03}
	if err := a.Send(frame); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("received %x, want %x", got, frame)
	}

	// The delivered frame is a copy, not a view of the sender's buffer
	frame[0] = 0xFF
	if got[0] == 0xFF {
		t.Error("receiver observed the sender's buffer")
	}
}

func TestPipeSendWithoutReceiver(t *testing.T) {
	a, _ := Pipe("a", "b")

	if err := a.Send([]byte("x")); err != ErrInterfaceClosed {
		t.Errorf("Send() error = %v, want %v", err, ErrInterfaceClosed)
	}
}

func TestPipeClosedEnds(t *testing.T) {
	a, b := Pipe("a", "b")
	b.SetReceiver(func([]byte) { t.Error("receiver invoked after close") })

	b.Close()
	if err := a.Send([]byte("x")); err != ErrInterfaceClosed {
		t.Errorf("Send() to closed peer error = %v, want %v", err, ErrInterfaceClosed)
	}

	a.Close()
	if err := a.Send([]byte("x")); err != ErrInterfaceClosed {
		t.Errorf("Send() from closed end error = %v, want %v", err, ErrInterfaceClosed)
	}
}
