package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileSnapshot stores the snapshot as a single JSON file, replaced atomically.
type FileSnapshot struct {
	path string
}

func NewFileSnapshot(path string) *FileSnapshot {
	return &FileSnapshot{path: path}
}

func (f *FileSnapshot) Location() string { return f.path }

func (f *FileSnapshot) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	return data, err
}

func (f *FileSnapshot) Write(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (f *FileSnapshot) Size(_ context.Context) (int64, error) {
	info, err := os.Stat(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrSnapshotNotFound
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
