package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestSealOpen(t *testing.T) {
	c, err := New(testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	plain := []byte(`{"version":"1.0","vectors":[]}`)

	sealed, err := c.Seal(plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatal("sealed payload lacks prefix")
	}
	if bytes.Contains(sealed, []byte("vectors")) {
		t.Fatal("sealed payload leaks plaintext")
	}

	again, _ := c.Seal(plain)
	if bytes.Equal(sealed, again) {
		t.Error("two seals of the same plaintext should differ (random nonce)")
	}

	got, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Open = %q, want %q", got, plain)
	}
}

func TestOpen_PlaintextPassesThrough(t *testing.T) {
	c, _ := New(testKey)
	plain := []byte(`{"version":"1.0"}`)
	got, err := c.Open(plain)
	if err != nil || !bytes.Equal(got, plain) {
		t.Errorf("Open(plaintext) = %q, %v", got, err)
	}
}

func TestOpen_WrongKey(t *testing.T) {
	c1, _ := New(testKey)
	c2, _ := New(strings.Repeat("ab", 32))
	sealed, _ := c1.Seal([]byte("secret"))
	if _, err := c2.Open(sealed); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Open with wrong key: err = %v, want ErrDecrypt", err)
	}
	if _, err := c1.Open(sealed[:len(magic)+3]); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Open truncated: err = %v, want ErrDecrypt", err)
	}
}

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"raw", testKey, false},
		{"hex", strings.Repeat("0f", 32), false},
		{"base64", "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=", false},
		{"short", "too-short", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := DeriveKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(k) != 32 {
				t.Errorf("key length = %d", len(k))
			}
		})
	}
}
