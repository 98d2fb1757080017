package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/vecmath"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = "1.0"

// ErrSnapshotNotFound is returned by SnapshotStore.Read and Size when nothing
// has been saved yet.
var ErrSnapshotNotFound = errors.New("vectorstore: snapshot not found")

// SnapshotStore persists the serialized snapshot bytes.
type SnapshotStore interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Size(ctx context.Context) (int64, error)
	// Location describes where the snapshot lives, for logs.
	Location() string
}

type snapshotFile struct {
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Vectors   []json.RawMessage `json:"vectors"`
}

// Save writes the current entries to the snapshot store. Concurrent callers,
// including the autosave task, never write at the same time. A call that
// joins a write started before its own mutations runs another one, so on a
// nil return every change made before Save was called is persisted.
func (s *Store) Save(ctx context.Context) error {
	if s.snap == nil {
		return nil
	}
	s.mu.RLock()
	want := s.version
	s.mu.RUnlock()

	for {
		_, err, _ := s.saveGroup.Do("save", func() (any, error) {
			return nil, s.save(ctx)
		})
		if err != nil {
			return err
		}
		s.mu.RLock()
		done := s.savedVersion >= want
		s.mu.RUnlock()
		if done {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Store) save(ctx context.Context) error {
	s.mu.RLock()
	version := s.version
	slots := s.orderedLocked()
	vectors := make([]json.RawMessage, 0, len(slots))
	for _, sl := range slots {
		data, err := json.Marshal(sl.entry)
		if err != nil {
			s.mu.RUnlock()
			return fmt.Errorf("encode vector %s: %w", sl.entry.ID, err)
		}
		vectors = append(vectors, data)
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snapshotFile{
		Version:   SnapshotVersion,
		Timestamp: time.Now().UTC(),
		Vectors:   vectors,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.snap.Write(ctx, data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	s.mu.Lock()
	if version > s.savedVersion {
		s.savedVersion = version
	}
	s.mu.Unlock()

	s.logger.Debug("vector snapshot saved", "vectors", len(vectors), "location", s.snap.Location())
	return nil
}

// Load replaces the in-memory entries with the snapshot contents. A missing
// snapshot leaves the store empty. An undecodable snapshot also leaves it
// empty and dirty, so the next save replaces it; malformed entries are
// skipped.
func (s *Store) Load(ctx context.Context) error {
	if s.snap == nil {
		return nil
	}
	data, err := s.snap.Read(ctx)
	if errors.Is(err, ErrSnapshotNotFound) {
		s.logger.Info("no vector snapshot found, starting empty", "location", s.snap.Location())
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.logger.Warn("vector snapshot unreadable, starting empty",
			"location", s.snap.Location(), "bytes", len(data), "error", err)
		s.mu.Lock()
		s.entries = make(map[string]*slot)
		s.nextSeq = 0
		s.version++
		s.mu.Unlock()
		return nil
	}
	if file.Version != SnapshotVersion {
		s.logger.Warn("vector snapshot version differs", "version", file.Version, "expected", SnapshotVersion)
	}

	entries := make(map[string]*slot, len(file.Vectors))
	var seq uint64
	skipped := 0
	for i, raw := range file.Vectors {
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			s.logger.Warn("skipping malformed vector entry", "index", i, "error", err)
			skipped++
			continue
		}
		if e.ID == "" || strings.TrimSpace(e.Content) == "" || !vecmath.Validate(e.Embedding) {
			s.logger.Warn("skipping incomplete vector entry", "index", i, "id", e.ID)
			skipped++
			continue
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = e.CreatedAt
		}
		if existing, ok := entries[e.ID]; ok {
			existing.entry = &e
			continue
		}
		seq++
		entries[e.ID] = &slot{entry: &e, seq: seq}
	}

	s.mu.Lock()
	s.entries = entries
	s.nextSeq = seq
	s.version++
	s.savedVersion = s.version
	s.mu.Unlock()

	s.logger.Info("vector snapshot loaded", "vectors", len(entries), "skipped", skipped, "location", s.snap.Location())
	return nil
}

// Start launches the autosave task. It is a no-op without a snapshot store
// or with a zero interval.
func (s *Store) Start() {
	if s.snap == nil || s.interval <= 0 || s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.autosaveLoop(ctx, s.done)
	s.logger.Info("vector autosave started", "interval", s.interval)
}

func (s *Store) autosaveLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Dirty() {
				continue
			}
			if err := s.Save(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("vector autosave failed", "error", err)
			}
		}
	}
}

// Close stops autosave, if running, and saves a dirty store once. A failing
// final save is logged only.
func (s *Store) Close(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}

	if s.snap == nil || !s.Dirty() {
		return
	}
	if err := s.Save(ctx); err != nil {
		s.logger.Error("final vector snapshot failed", "error", err)
	}
}
