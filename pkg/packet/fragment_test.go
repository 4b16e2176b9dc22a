package packet

import (
	"bytes"
	"testing"
)

func TestSplitSmallPayload(t *testing.T) {
	dst := testHash(0x10)
	src := testHash(0x20)
	payload := []byte("fits in one frame")

	packets, id, err := Split(dst, ModeSingle, src, payload)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("Split() produced %d packets, want 1", len(packets))
	}

	p := packets[0]
	if p.Fragmented {
		t.Error("small payload was flagged as fragmented")
	}
	if !bytes.Equal(p.Payload, payload) {
		t.Error("small payload was transformed")
	}
	if id != DeriveMessageID(dst, payload) {
		t.Error("message ID for an unfragmented packet is not the derived one")
	}

	// The packet payload must not alias the caller's buffer
	payload[0] = 'X'
	if p.Payload[0] == 'X' {
		t.Error("Split() aliased the input buffer")
	}
}

func TestSplitLargePayload(t *testing.T) {
	dst := testHash(0x10)
	src := testHash(0x20)

	payload := make([]byte, 4*MaxPayloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	packets, id, err := Split(dst, ModeSingle, src, payload)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(packets) != 4 {
		t.Fatalf("Split() produced %d packets, want 4", len(packets))
	}

	var reassembled []byte
	for i, p := range packets {
		if !p.Fragmented {
			t.Fatalf("packet %d missing the fragmentation flag", i)
		}
		if p.Destination != dst {
			t.Fatalf("packet %d addressed to %s", i, p.Destination)
		}
		if len(p.Encode()) > MaxFrameSize {
			t.Fatalf("packet %d exceeds the frame bound", i)
		}

		frag := &Fragment{}
		if err := frag.Decode(p.Payload); err != nil {
			t.Fatalf("Decode() fragment %d error = %v", i, err)
		}
		if frag.Source != src {
			t.Fatalf("fragment %d source = %s, want %s", i, frag.Source, src)
		}
		if frag.MessageID != id {
			t.Fatalf("fragment %d carries a different message ID", i)
		}
		if int(frag.Index) != i {
			t.Fatalf("fragment %d index = %d", i, frag.Index)
		}
		if frag.Total != 4 {
			t.Fatalf("fragment %d total = %d, want 4", i, frag.Total)
		}
		if len(frag.Chunk) > MaxPayloadSize {
			t.Fatalf("fragment %d chunk exceeds %d bytes", i, MaxPayloadSize)
		}

		reassembled = append(reassembled, frag.Chunk...)
	}

	if !bytes.Equal(reassembled, payload) {
		t.Error("concatenated chunks differ from the original payload")
	}
}

func TestSplitUnevenPayload(t *testing.T) {
	payload := make([]byte, 2*MaxPayloadSize+100)

	packets, _, err := Split(testHash(1), ModePlain, testHash(2), payload)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(packets) != 3 {
		t.Fatalf("Split() produced %d packets, want 3", len(packets))
	}

	last := &Fragment{}
	if err := last.Decode(packets[2].Payload); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(last.Chunk) != 100 {
		t.Errorf("final chunk length = %d, want 100", len(last.Chunk))
	}
}

func TestSplitRejectsOversizedMessage(t *testing.T) {
	payload := make([]byte, MaxMessageSize+1)

	if _, _, err := Split(testHash(1), ModePlain, testHash(2), payload); err != ErrTooManyChunks {
		t.Errorf("Split() error = %v, want %v", err, ErrTooManyChunks)
	}
}

func TestFragmentEncodeDecode(t *testing.T) {
	frag := &Fragment{
		Source:    testHash(0xAB),
		MessageID: NewMessageID(),
		Index:     3,
		Total:     9,
		Chunk:     []byte("one slice of a larger message"),
	}

	decoded := &Fragment{}
	if err := decoded.Decode(frag.Encode()); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if decoded.Source != frag.Source {
		t.Errorf("Source = %s, want %s", decoded.Source, frag.Source)
	}
	if decoded.MessageID != frag.MessageID {
		t.Error("MessageID mismatch")
	}
	if decoded.Index != frag.Index || decoded.Total != frag.Total {
		t.Errorf("position = %d/%d, want %d/%d", decoded.Index, decoded.Total, frag.Index, frag.Total)
	}
	if !bytes.Equal(decoded.Chunk, frag.Chunk) {
		t.Error("Chunk mismatch")
	}
}

func TestFragmentDecodeMalformed(t *testing.T) {
	zeroTotal := (&Fragment{Source: testHash(1), Index: 0, Total: 1, Chunk: []byte("x")}).Encode()
	zeroTotal[FragmentOverhead-2] = 0
	zeroTotal[FragmentOverhead-1] = 0

	outOfRange := (&Fragment{Source: testHash(1), Index: 0, Total: 1, Chunk: []byte("x")}).Encode()
	outOfRange[FragmentOverhead-4] = 0
	outOfRange[FragmentOverhead-3] = 5 // index 5 of total 1

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "truncated record", data: make([]byte, FragmentOverhead-1)},
		{name: "oversized chunk", data: make([]byte, FragmentOverhead+MaxPayloadSize+1)},
		{name: "zero total", data: zeroTotal},
		{name: "index out of range", data: outOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Fragment{}
			if err := f.Decode(tt.data); err != ErrInvalidFragment {
				t.Errorf("Decode() error = %v, want %v", err, ErrInvalidFragment)
			}
		})
	}
}
