// Package vectorstore holds record embeddings in memory, answers exact cosine
// similarity queries over all of them, and snapshots them to durable storage.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nextlevelbuilder/gomemory/internal/store"
	"github.com/nextlevelbuilder/gomemory/internal/vecmath"
)

// DefaultThreshold is the minimum similarity used when a caller passes none.
const DefaultThreshold = 0.7

var (
	ErrEmptyContent = errors.New("vectorstore: content must not be empty")
	ErrNotFound     = errors.New("vectorstore: vector not found")
)

// Entry is one stored vector and the text it was computed from.
type Entry struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"embedding"`
	Content   string         `json:"content"`
	Metadata  store.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Embedding = vecmath.Clone(e.Embedding)
	c.Metadata = e.Metadata.Clone()
	return &c
}

// Result is a single similarity hit.
type Result struct {
	ID         string         `json:"id"`
	Similarity float64        `json:"similarity"`
	Content    string         `json:"content"`
	Metadata   store.Metadata `json:"metadata,omitempty"`
}

// Stats describes the store for diagnostics.
type Stats struct {
	TotalVectors      int       `json:"totalVectors"`
	AverageDimensions float64   `json:"averageDimensions"`
	SnapshotSizeBytes int64     `json:"snapshotSizeBytes"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// Options configures a Store.
type Options struct {
	// Snapshot persists the store. Nil keeps vectors in memory only.
	Snapshot SnapshotStore
	// AutosaveInterval flushes a dirty store periodically once Start is
	// called. Zero disables autosave.
	AutosaveInterval time.Duration
	// Precision is the number of decimals kept per component (default 6).
	Precision int
	Logger    *slog.Logger
}

type slot struct {
	entry *Entry
	seq   uint64 // insertion order, used to break similarity ties
}

// Store is a keyed collection of vectors with exact similarity search.
type Store struct {
	mu           sync.RWMutex
	entries      map[string]*slot
	nextSeq      uint64
	version      uint64 // bumped on every mutation
	savedVersion uint64 // version captured by the last successful save

	snap      SnapshotStore
	interval  time.Duration
	precision int
	logger    *slog.Logger

	saveGroup singleflight.Group
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates an empty store. Call Load to restore a snapshot and Start to
// begin autosaving.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	precision := opts.Precision
	if precision <= 0 {
		precision = vecmath.DefaultPrecision
	}
	return &Store{
		entries:   make(map[string]*slot),
		snap:      opts.Snapshot,
		interval:  opts.AutosaveInterval,
		precision: precision,
		logger:    logger,
	}
}

// Add stores (or replaces) the vector for id. The embedding is quantized.
func (s *Store) Add(id string, embedding []float32, content string, meta store.Metadata) error {
	if !vecmath.Validate(embedding) {
		return vecmath.ErrInvalidVector
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	now := time.Now().UTC()
	e := &Entry{
		ID:        id,
		Embedding: vecmath.Quantize(embedding, s.precision),
		Content:   content,
		Metadata:  meta.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[id]; ok {
		e.CreatedAt = existing.entry.CreatedAt
		existing.entry = e
	} else {
		s.nextSeq++
		s.entries[id] = &slot{entry: e, seq: s.nextSeq}
	}
	s.version++
	return nil
}

// Update replaces an existing vector. It fails with ErrNotFound for unknown ids.
func (s *Store) Update(id string, embedding []float32, content string, meta store.Metadata) error {
	s.mu.RLock()
	_, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Add(id, embedding, content, meta)
}

// Remove deletes id and reports whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	s.version++
	return true
}

// Get returns a copy of the entry for id.
func (s *Store) Get(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return sl.entry.clone(), true
}

// Has reports whether a vector exists for id.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// IDs returns all ids in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slots := s.orderedLocked()
	out := make([]string, len(slots))
	for i, sl := range slots {
		out[i] = sl.entry.ID
	}
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes every vector.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return
	}
	s.entries = make(map[string]*slot)
	s.version++
}

// Dirty reports whether there are mutations not yet saved.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.savedVersion
}

func (s *Store) orderedLocked() []*slot {
	slots := make([]*slot, 0, len(s.entries))
	for _, sl := range s.entries {
		slots = append(slots, sl)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].seq < slots[j].seq })
	return slots
}

// SearchSimilar compares query against every stored vector and returns those
// with similarity >= threshold, most similar first (ties in insertion order),
// truncated to limit. limit <= 0 means no limit.
func (s *Store) SearchSimilar(query []float32, limit int, threshold float64) ([]Result, error) {
	if !vecmath.Validate(query) {
		return nil, vecmath.ErrInvalidVector
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return []Result{}, nil
	}

	type scored struct {
		slot *slot
		sim  float64
	}
	hits := make([]scored, 0, len(s.entries))
	for _, sl := range s.entries {
		sim, err := vecmath.CosineSimilarity(query, sl.entry.Embedding)
		if err != nil {
			s.logger.Warn("vector store: skipping entry", "id", sl.entry.ID, "error", err)
			continue
		}
		if sim >= threshold {
			hits = append(hits, scored{slot: sl, sim: sim})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		return hits[i].slot.seq < hits[j].slot.seq
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			ID:         h.slot.entry.ID,
			Similarity: h.sim,
			Content:    h.slot.entry.Content,
			Metadata:   h.slot.entry.Metadata.Clone(),
		}
	}
	return results, nil
}

// Stats reports counts, average dimensionality, snapshot size and the most
// recent update time (now when empty).
func (s *Store) Stats(ctx context.Context) Stats {
	s.mu.RLock()
	st := Stats{TotalVectors: len(s.entries)}
	var dims int
	var last time.Time
	for _, sl := range s.entries {
		dims += len(sl.entry.Embedding)
		if sl.entry.UpdatedAt.After(last) {
			last = sl.entry.UpdatedAt
		}
	}
	s.mu.RUnlock()

	if st.TotalVectors > 0 {
		st.AverageDimensions = float64(dims) / float64(st.TotalVectors)
		st.LastUpdated = last
	} else {
		st.LastUpdated = time.Now().UTC()
	}
	if s.snap != nil {
		size, err := s.snap.Size(ctx)
		if err != nil && !errors.Is(err, ErrSnapshotNotFound) {
			s.logger.Warn("vector store: snapshot size unavailable", "error", err)
		}
		st.SnapshotSizeBytes = size
	}
	return st
}
