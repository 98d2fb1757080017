// Package crypto seals byte payloads with AES-256-GCM. It encrypts vector
// snapshots at rest.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// magic prefixes sealed payloads so plaintext snapshots written before
// encryption was enabled still load.
var magic = []byte("GMEM-AESGCM1\n")

var ErrDecrypt = errors.New("crypto: decrypt failed: invalid key or corrupted data")

// Cipher seals and opens payloads with one key.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a key in any form accepted by DeriveKey.
func New(key string) (*Cipher, error) {
	keyBytes, err := DeriveKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: gcm}, nil
}

// Seal returns magic + nonce + ciphertext + tag.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(magic)+len(nonce)+len(plaintext)+c.aead.Overhead())
	out = append(out, magic...)
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, plaintext, nil), nil
}

// Open reverses Seal. Payloads without the magic prefix are returned as is.
func (c *Cipher) Open(data []byte) ([]byte, error) {
	if !IsSealed(data) {
		return data, nil
	}
	body := data[len(magic):]
	n := c.aead.NonceSize()
	if len(body) < n {
		return nil, ErrDecrypt
	}
	plaintext, err := c.aead.Open(nil, body[:n], body[n:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// IsSealed reports whether data carries the sealed-payload prefix.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// DeriveKey converts the input string to a 32-byte AES key.
// Accepts: hex-encoded (64 chars), base64-encoded (44 chars), or raw 32 bytes.
func DeriveKey(input string) ([]byte, error) {
	if len(input) == 64 {
		if b, err := hex.DecodeString(input); err == nil {
			return b, nil
		}
	}
	if len(input) == 44 && strings.HasSuffix(input, "=") {
		if b, err := base64.StdEncoding.DecodeString(input); err == nil && len(b) == 32 {
			return b, nil
		}
	}
	if len(input) == 32 {
		return []byte(input), nil
	}
	return nil, fmt.Errorf("crypto: key must be 32 bytes (hex-encoded 64 chars, base64 44 chars, or raw 32 bytes), got %d chars", len(input))
}
