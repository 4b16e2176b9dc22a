package packet

import (
	"bytes"
	"testing"

	"github.com/veilmesh/veilmesh/pkg/address"
)

func testHash(b byte) address.Hash {
	var h address.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestPacketEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		packet *Packet
	}{
		{
			name: "plain data",
			packet: &Packet{
				Kind:        KindData,
				Mode:        ModePlain,
				Destination: testHash(0x11),
				Payload:     []byte("payload"),
			},
		},
		{
			name: "single mode fragment",
			packet: &Packet{
				Kind:        KindData,
				Mode:        ModeSingle,
				Fragmented:  true,
				Destination: testHash(0x22),
				Payload:     make([]byte, FragmentOverhead+1),
			},
		},
		{
			name: "group announce",
			packet: &Packet{
				Kind:        KindAnnounce,
				Mode:        ModeGroup,
				Destination: testHash(0x33),
				Payload:     []byte("announce body"),
			},
		},
		{
			name: "receipt",
			packet: &Packet{
				Kind:        KindData,
				Mode:        ModePlain,
				Receipt:     true,
				Destination: testHash(0x44),
				Payload:     make([]byte, MessageIDSize),
			},
		},
		{
			name: "empty payload",
			packet: &Packet{
				Kind:        KindData,
				Mode:        ModePlain,
				Destination: testHash(0x55),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.packet.Encode()

			if len(encoded) != HeaderSize+len(tt.packet.Payload) {
				t.Errorf("Encode() length = %d, want %d", len(encoded), HeaderSize+len(tt.packet.Payload))
			}

			decoded := &Packet{}
			if err := decoded.Decode(encoded); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if decoded.Kind != tt.packet.Kind {
				t.Errorf("Kind = %v, want %v", decoded.Kind, tt.packet.Kind)
			}
			if decoded.Mode != tt.packet.Mode {
				t.Errorf("Mode = %v, want %v", decoded.Mode, tt.packet.Mode)
			}
			if decoded.Fragmented != tt.packet.Fragmented {
				t.Errorf("Fragmented = %v, want %v", decoded.Fragmented, tt.packet.Fragmented)
			}
			if decoded.Receipt != tt.packet.Receipt {
				t.Errorf("Receipt = %v, want %v", decoded.Receipt, tt.packet.Receipt)
			}
			if decoded.Destination != tt.packet.Destination {
				t.Errorf("Destination = %s, want %s", decoded.Destination, tt.packet.Destination)
			}
			if !bytes.Equal(decoded.Payload, tt.packet.Payload) {
				t.Error("Payload mismatch")
			}
		})
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	valid := (&Packet{Destination: testHash(1), Payload: []byte("ok")}).Encode()

	reserved := append([]byte(nil), valid...)
	reserved[0] |= 0x80

	badMode := append([]byte(nil), valid...)
	badMode[0] |= modeMask // mode value 3 is unassigned

	badKind := append([]byte(nil), valid...)
	badKind[0] |= kindMask // kind value 3 is unassigned

	tests := []struct {
		name    string
		frame   []byte
		wantErr error
	}{
		{name: "empty", frame: nil, wantErr: ErrInvalidHeader},
		{name: "short header", frame: make([]byte, HeaderSize-1), wantErr: ErrInvalidHeader},
		{name: "reserved bits", frame: reserved, wantErr: ErrInvalidFlags},
		{name: "unknown mode", frame: badMode, wantErr: ErrInvalidFlags},
		{name: "unknown kind", frame: badKind, wantErr: ErrInvalidFlags},
		{name: "oversized", frame: make([]byte, MaxFrameSize+1), wantErr: ErrOversizedFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Packet{}
			if err := p.Decode(tt.frame); err != tt.wantErr {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeriveMessageIDDeterministic(t *testing.T) {
	dst := testHash(0xAA)
	payload := []byte("some ciphertext")

	first := DeriveMessageID(dst, payload)
	second := DeriveMessageID(dst, payload)
	if first != second {
		t.Error("DeriveMessageID() not deterministic")
	}

	if other := DeriveMessageID(dst, []byte("other ciphertext")); other == first {
		t.Error("different payloads derived identical message IDs")
	}
	if other := DeriveMessageID(testHash(0xBB), payload); other == first {
		t.Error("different destinations derived identical message IDs")
	}
}

func TestNewMessageIDUnique(t *testing.T) {
	seen := make(map[MessageID]bool)
	for i := 0; i < 100; i++ {
		id := NewMessageID()
		if seen[id] {
			t.Fatal("NewMessageID() repeated an identifier")
		}
		seen[id] = true
	}
}

func TestReceiptRoundTrip(t *testing.T) {
	dst := testHash(0x01)
	id := NewMessageID()

	receipt := NewReceipt(dst, id)

	decoded := &Packet{}
	if err := decoded.Decode(receipt.Encode()); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !decoded.Receipt {
		t.Fatal("decoded packet lost the receipt flag")
	}

	got, err := decoded.ReceiptID()
	if err != nil {
		t.Fatalf("ReceiptID() error = %v", err)
	}
	if got != id {
		t.Errorf("ReceiptID() = %s, want %s", got, id)
	}
}

func TestReceiptIDRejectsMalformed(t *testing.T) {
	notReceipt := &Packet{Destination: testHash(1), Payload: make([]byte, MessageIDSize)}
	if _, err := notReceipt.ReceiptID(); err != ErrInvalidReceipt {
		t.Errorf("ReceiptID() error = %v, want %v", err, ErrInvalidReceipt)
	}

	shortReceipt := &Packet{Receipt: true, Destination: testHash(1), Payload: make([]byte, MessageIDSize-1)}
	if _, err := shortReceipt.ReceiptID(); err != ErrInvalidReceipt {
		t.Errorf("ReceiptID() error = %v, want %v", err, ErrInvalidReceipt)
	}
}
