// Package memstore is a process-local RecordStore. It backs the "memory"
// storage backend and the engine tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

type RecordStore struct {
	mu    sync.Mutex
	files map[string][]store.Record

	// FailWrites makes WriteAll return store.ErrStorage.
	FailWrites bool
}

func New() *RecordStore {
	return &RecordStore{files: make(map[string][]store.Record)}
}

func (s *RecordStore) ListFiles(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for f := range s.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

func (s *RecordStore) ReadAll(_ context.Context, file string) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.files[file]), nil
}

func (s *RecordStore) WriteAll(_ context.Context, file string, records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return store.ErrStorage
	}
	if len(records) == 0 {
		delete(s.files, file)
		return nil
	}
	s.files[file] = cloneAll(records)
	return nil
}

func (s *RecordStore) Close() error { return nil }

func cloneAll(in []store.Record) []store.Record {
	if len(in) == 0 {
		return nil
	}
	out := make([]store.Record, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}
