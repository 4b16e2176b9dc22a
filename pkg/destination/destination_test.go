package destination

import (
	"bytes"
	"testing"

	"github.com/veilmesh/veilmesh/pkg/address"
	"github.com/veilmesh/veilmesh/pkg/identity"
)

func TestNewSingleAddress(t *testing.T) {
	id := identity.Generate()

	d, err := NewSingle(id, "app", "aspect")
	if err != nil {
		t.Fatalf("NewSingle() error = %v", err)
	}

	if d.Mode() != ModeSingle {
		t.Errorf("Mode() = %v, want %v", d.Mode(), ModeSingle)
	}
	if d.Name() != "app.aspect" {
		t.Errorf("Name() = %q, want %q", d.Name(), "app.aspect")
	}

	want := address.Truncate(address.DeriveHash(id.PublicBytes(), "app", "aspect"))
	if d.Hash() != want {
		t.Errorf("Hash() = %s, want %s", d.Hash(), want)
	}
}

func TestConstructorValidation(t *testing.T) {
	id := identity.Generate()

	tests := []struct {
		name    string
		build   func() (*Destination, error)
		wantErr error
	}{
		{
			name:    "single without identity",
			build:   func() (*Destination, error) { return NewSingle(nil, "app") },
			wantErr: ErrNoIdentity,
		},
		{
			name:    "single without context",
			build:   func() (*Destination, error) { return NewSingle(id) },
			wantErr: ErrEmptyName,
		},
		{
			name:    "group with short key",
			build:   func() (*Destination, error) { return NewGroup(make([]byte, 8), "app") },
			wantErr: ErrInvalidKeyLength,
		},
		{
			name:    "group with long key",
			build:   func() (*Destination, error) { return NewGroup(make([]byte, 32), "app") },
			wantErr: ErrInvalidKeyLength,
		},
		{
			name:    "plain with empty part",
			build:   func() (*Destination, error) { return NewPlain("app", "") },
			wantErr: ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.build(); err != tt.wantErr {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestContextPartsMayNotContainSeparator(t *testing.T) {
	if _, err := NewPlain("app.aspect"); err == nil {
		t.Error("NewPlain() accepted a context part containing the separator")
	}
}

func TestSingleEncryptDecrypt(t *testing.T) {
	id := identity.Generate()

	// The receiving side holds the private identity; the sending side
	// builds the same destination from the public half only
	inbound, err := NewSingle(id, "app", "inbox")
	if err != nil {
		t.Fatalf("NewSingle() error = %v", err)
	}

	peer, err := identity.FromPublicBytes(id.PublicBytes())
	if err != nil {
		t.Fatalf("FromPublicBytes() error = %v", err)
	}
	outbound, err := NewSingle(peer, "app", "inbox")
	if err != nil {
		t.Fatalf("NewSingle() error = %v", err)
	}

	if inbound.Hash() != outbound.Hash() {
		t.Fatal("inbound and outbound destinations derived different hashes")
	}

	data := []byte("per-destination encryption")
	token, err := outbound.Encrypt(data)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	plaintext, err := inbound.Decrypt(token)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(plaintext, data) {
		t.Errorf("Decrypt() = %q, want %q", plaintext, data)
	}

	// Tampering is a hard error, never a silent pass-through
	token[len(token)-1] ^= 0x01
	if _, err := inbound.Decrypt(token); err == nil {
		t.Error("Decrypt() succeeded on tampered ciphertext")
	}
}

func TestGroupDestinationRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, GroupKeySize)

	a, err := NewGroup(key, "app", "channel")
	if err != nil {
		t.Fatalf("NewGroup() error = %v", err)
	}
	b, err := NewGroup(key, "app", "channel")
	if err != nil {
		t.Fatalf("NewGroup() error = %v", err)
	}

	// Any key holder can decrypt; the key never influences the address
	if a.Hash() != b.Hash() {
		t.Error("same context derived different group hashes")
	}

	token, err := a.Encrypt([]byte("to the group"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	plaintext, err := b.Decrypt(token)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if string(plaintext) != "to the group" {
		t.Errorf("Decrypt() = %q", plaintext)
	}
}

func TestPlainPassThrough(t *testing.T) {
	d, err := NewPlain("app", "announce")
	if err != nil {
		t.Fatalf("NewPlain() error = %v", err)
	}

	data := []byte("in the clear")
	out, err := d.Encrypt(data)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("Encrypt() transformed plain payload: %q", out)
	}

	// The copy must be independent of the caller's buffer
	data[0] = 'X'
	if out[0] == 'X' {
		t.Error("Encrypt() aliased the input buffer")
	}

	back, err := d.Decrypt(out)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(back, out) {
		t.Errorf("Decrypt() = %q, want %q", back, out)
	}
}

func TestEncryptOversizedPayload(t *testing.T) {
	d, err := NewPlain("app")
	if err != nil {
		t.Fatalf("NewPlain() error = %v", err)
	}

	huge := make([]byte, MaxPlaintextSize+1)
	if _, err := d.Encrypt(huge); err != ErrPayloadTooLarge {
		t.Errorf("Encrypt() error = %v, want %v", err, ErrPayloadTooLarge)
	}
}
