package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

const (
	recordFileExt = ".json"
	lockFileExt   = ".lock"
)

// RecordStore keeps each logical file as a JSON array under dir.
// Reads and writes take an advisory lock on a sibling ".lock" file so that a
// second process sharing the directory never observes a half-written file.
type RecordStore struct {
	dir string
	mu  sync.Mutex
}

var _ store.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates dir if needed and returns a store rooted there.
func NewRecordStore(dir string) (*RecordStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: data dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	slog.Info("file record store opened", "dir", dir)
	return &RecordStore{dir: dir}, nil
}

// Dir returns the data directory.
func (s *RecordStore) Dir() string { return s.dir }

func (s *RecordStore) ListFiles(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", store.ErrStorage, s.dir, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordFileExt) {
			continue
		}
		files = append(files, strings.TrimSuffix(name, recordFileExt))
	}
	sort.Strings(files)
	return files, nil
}

func (s *RecordStore) ReadAll(_ context.Context, file string) ([]store.Record, error) {
	path, err := s.pathFor(file)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := lockFile(path+lockFileExt, false)
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %v", store.ErrStorage, file, err)
	}
	defer unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", store.ErrStorage, file, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var records []store.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", store.ErrStorage, file, err)
	}
	return records, nil
}

func (s *RecordStore) WriteAll(_ context.Context, file string, records []store.Record) error {
	path, err := s.pathFor(file)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := lockFile(path+lockFileExt, true)
	if err != nil {
		return fmt.Errorf("%w: lock %s: %v", store.ErrStorage, file, err)
	}
	defer unlock()

	if len(records) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %v", store.ErrStorage, file, err)
		}
		return nil
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", store.ErrStorage, file, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", store.ErrStorage, file, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", store.ErrStorage, file, err)
	}
	return nil
}

func (s *RecordStore) Close() error { return nil }

// pathFor maps a logical file name to its JSON path, rejecting names that
// would escape the data directory.
func (s *RecordStore) pathFor(file string) (string, error) {
	if file == "" || strings.ContainsAny(file, `/\`) || file == "." || file == ".." {
		return "", fmt.Errorf("%w: invalid file name %q", store.ErrValidation, file)
	}
	return filepath.Join(s.dir, file+recordFileExt), nil
}
