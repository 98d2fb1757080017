package vectorstore

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/gomemory/internal/crypto"
)

// EncryptedSnapshot seals snapshot bytes before handing them to the wrapped
// store. Existing plaintext snapshots are still readable.
type EncryptedSnapshot struct {
	inner  SnapshotStore
	cipher *crypto.Cipher
}

func NewEncryptedSnapshot(inner SnapshotStore, key string) (*EncryptedSnapshot, error) {
	c, err := crypto.New(key)
	if err != nil {
		return nil, err
	}
	return &EncryptedSnapshot{inner: inner, cipher: c}, nil
}

func (e *EncryptedSnapshot) Location() string { return e.inner.Location() + " (encrypted)" }

func (e *EncryptedSnapshot) Read(ctx context.Context) ([]byte, error) {
	data, err := e.inner.Read(ctx)
	if err != nil {
		return nil, err
	}
	plain, err := e.cipher.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", e.inner.Location(), err)
	}
	return plain, nil
}

func (e *EncryptedSnapshot) Write(ctx context.Context, data []byte) error {
	sealed, err := e.cipher.Seal(data)
	if err != nil {
		return fmt.Errorf("seal snapshot: %w", err)
	}
	return e.inner.Write(ctx, sealed)
}

func (e *EncryptedSnapshot) Size(ctx context.Context) (int64, error) { return e.inner.Size(ctx) }
