// Package memory is the retrieval engine: it keeps the record cache, the
// inverted index and the vector store in step with durable storage, and
// answers filtered, keyword, semantic and hybrid queries.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/gomemory/internal/embedding"
	"github.com/nextlevelbuilder/gomemory/internal/filter"
	"github.com/nextlevelbuilder/gomemory/internal/store"
	"github.com/nextlevelbuilder/gomemory/internal/tracing"
	"github.com/nextlevelbuilder/gomemory/internal/vecmath"
	"github.com/nextlevelbuilder/gomemory/internal/vectorstore"
)

// ErrSemanticDisabled is returned by vector operations when no embedding
// provider is configured.
var ErrSemanticDisabled = errors.New("memory: semantic search is not enabled")

// State is the engine lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Options wires an Engine to its collaborators.
type Options struct {
	Store store.RecordStore
	// Gateway produces embeddings. Nil, or a gateway without a provider,
	// disables semantic search.
	Gateway *embedding.Gateway
	// Vectors holds embeddings. Nil creates an in-memory store.
	Vectors *vectorstore.Store
	// CacheSize bounds the record cache (default 1000).
	CacheSize int
	// TemporaryTTL sets expiresAt on new TEMPORARY records; 0 means no expiry.
	TemporaryTTL time.Duration
	// ReindexConcurrency bounds parallel provider calls during reindexing.
	ReindexConcurrency int
	// ReindexBatchSize is the number of texts per provider call when reindexing.
	ReindexBatchSize int
	Logger           *slog.Logger
}

// Engine orchestrates cache, index, vector store and durable storage.
// Mutations are serialized by mu; reads take the read lock so they never
// observe a half-applied write.
type Engine struct {
	initMu sync.Mutex
	state  State

	mu       sync.RWMutex
	store    store.RecordStore
	gateway  *embedding.Gateway
	vectors  *vectorstore.Store
	cache    *RecordCache
	index    *RecordIndex
	semantic bool

	temporaryTTL       time.Duration
	reindexConcurrency int
	reindexBatchSize   int
	logger             *slog.Logger
	now                func() time.Time
}

// NewEngine creates an engine. Nothing is loaded until the first operation.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("memory: record store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	vectors := opts.Vectors
	if vectors == nil {
		vectors = vectorstore.New(vectorstore.Options{Logger: logger})
	}
	concurrency := opts.ReindexConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	batch := opts.ReindexBatchSize
	if batch <= 0 {
		batch = 16
	}
	return &Engine{
		store:              opts.Store,
		gateway:            opts.Gateway,
		vectors:            vectors,
		cache:              NewRecordCache(opts.CacheSize, logger),
		index:              NewRecordIndex(),
		temporaryTTL:       opts.TemporaryTTL,
		reindexConcurrency: concurrency,
		reindexBatchSize:   batch,
		logger:             logger,
		now:                func() time.Time { return time.Now().UTC() },
	}, nil
}

// State reports the lifecycle state.
func (e *Engine) State() State {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	return e.state
}

// SemanticEnabled reports whether an embedding provider is configured. It is
// only meaningful once the engine is ready.
func (e *Engine) SemanticEnabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.semantic
}

// Init loads durable records and the vector snapshot. Later calls are no-ops
// once the engine is ready; a failed load leaves it uninitialized.
func (e *Engine) Init(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.state == StateReady {
		return nil
	}
	e.state = StateInitializing

	ctx, span := tracing.Start(ctx, "memory.init")
	err := e.load(ctx)
	tracing.End(span, err)
	if err != nil {
		e.state = StateUninitialized
		return err
	}
	e.state = StateReady
	return nil
}

func (e *Engine) load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	files, err := e.store.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("list memory files: %w", err)
	}

	var all []*store.Record
	for _, file := range files {
		records, err := e.store.ReadAll(ctx, file)
		if err != nil {
			return fmt.Errorf("read memory file %s: %w", file, err)
		}
		for i := range records {
			r := &records[i]
			if r.ID == "" {
				e.logger.Warn("skipping stored record without id", "file", file, "position", i)
				continue
			}
			if err := store.ValidateRecord(r); err != nil {
				e.logger.Warn("skipping invalid stored record", "file", file, "id", r.ID, "error", err)
				continue
			}
			all = append(all, r)
		}
	}

	// Oldest first, so the cache keeps the most recent records when full.
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	e.cache.Clear()
	e.index.Clear()
	known := make(map[string]*store.Record, len(all))
	for _, r := range all {
		e.cache.Set(r.ID, r)
		e.index.Add(r)
		known[r.ID] = r
	}

	if err := e.vectors.Load(ctx); err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}
	orphans := 0
	for _, id := range e.vectors.IDs() {
		if _, ok := known[id]; !ok {
			e.vectors.Remove(id)
			orphans++
		}
	}
	restored := 0
	for id, r := range known {
		if len(r.Embedding) == 0 || e.vectors.Has(id) {
			continue
		}
		if err := e.vectors.Add(id, r.Embedding, r.Content, r.Metadata); err == nil {
			restored++
		}
	}

	e.semantic = e.gateway.IsConfigured()
	e.logger.Info("memory engine ready",
		"records", len(all), "files", len(files), "cached", e.cache.Len(),
		"vectors", e.vectors.Count(), "orphan_vectors", orphans, "restored_vectors", restored,
		"semantic", e.semantic)
	return nil
}

// Close stops vector autosave, flushes unsaved vectors and releases the
// gateway. The record store is owned by the caller.
func (e *Engine) Close(ctx context.Context) {
	e.vectors.Close(ctx)
	if e.gateway != nil {
		e.gateway.Close()
	}
}

// SetCacheSize resizes the record cache.
func (e *Engine) SetCacheSize(n int) { e.cache.SetMaxSize(n) }

// SetTemporaryTTL changes the expiry applied to new TEMPORARY records.
func (e *Engine) SetTemporaryTTL(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.temporaryTTL = d
}

// CreateInput describes a new record.
type CreateInput struct {
	Content        string
	Type           store.RecordType
	ConversationID string
	Tags           []string
	Metadata       store.Metadata
}

// Create validates and stores a new record. An embedding failure is logged
// and the record is stored without a vector.
func (e *Engine) Create(ctx context.Context, in CreateInput) (rec *store.Record, err error) {
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "memory.create", attribute.String("memory.type", string(in.Type)))
	defer func() { tracing.End(span, err) }()

	now := e.now()
	r := &store.Record{
		ID:             store.GenNewID(),
		Content:        in.Content,
		Type:           in.Type,
		ConversationID: strings.TrimSpace(in.ConversationID),
		CreatedAt:      now,
		UpdatedAt:      now,
		Tags:           normalizeTags(in.Tags),
		Metadata:       in.Metadata.Clone(),
	}
	if r.Type == "" {
		r.Type = store.TypeGlobal
	}
	if err := store.ValidateRecord(r); err != nil {
		return nil, err
	}

	outcome := e.embed(ctx, r.Content)

	e.mu.Lock()
	defer e.mu.Unlock()

	if r.Type == store.TypeTemporary && e.temporaryTTL > 0 {
		exp := now.Add(e.temporaryTTL)
		r.ExpiresAt = &exp
	}
	if v, ok := outcome.Vector(); ok {
		r.Embedding = vecmath.Quantize(v.Embedding, vecmath.DefaultPrecision)
	}

	file := store.FileFor(r)
	records, err := e.store.ReadAll(ctx, file)
	if err != nil {
		return nil, err
	}
	records = append(records, *r)
	if err := e.store.WriteAll(ctx, file, records); err != nil {
		return nil, err
	}

	e.cache.Set(r.ID, r)
	e.index.Add(r)
	if len(r.Embedding) > 0 {
		if err := e.vectors.Add(r.ID, r.Embedding, r.Content, r.Metadata); err != nil {
			e.logger.Warn("vector not stored", "id", r.ID, "error", err)
		}
	}

	e.logger.Debug("memory created", "id", r.ID, "type", r.Type, "file", file, "embedding", outcome.String())
	return r.Clone(), nil
}

// embed is the write-path embedding: failures degrade to WithoutVector.
func (e *Engine) embed(ctx context.Context, text string) embedding.Outcome {
	if !e.gateway.IsConfigured() {
		return embedding.WithoutVector(embedding.ErrNotConfigured)
	}
	out := e.gateway.TryEmbed(ctx, text)
	if reason := out.Reason(); reason != nil {
		e.logger.Warn("embedding failed, storing memory without vector", "error", reason)
	}
	return out
}

// UpdateInput carries the fields to change. Nil fields are left untouched.
type UpdateInput struct {
	Content  *string
	Tags     *[]string
	Metadata store.Metadata // replaces the existing map when non-nil
}

// Update changes a record's content, tags or metadata. Changed content is
// re-embedded; if that fails the stale vector is dropped.
func (e *Engine) Update(ctx context.Context, id string, in UpdateInput) (rec *store.Record, err error) {
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "memory.update", attribute.String("memory.id", id))
	defer func() { tracing.End(span, err) }()

	if in.Content == nil && in.Tags == nil && in.Metadata == nil {
		return nil, fmt.Errorf("%w: nothing to update", store.ErrValidation)
	}
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		return nil, fmt.Errorf("%w: content must not be empty", store.ErrValidation)
	}

	var outcome embedding.Outcome
	if in.Content != nil {
		outcome = e.embed(ctx, *in.Content)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	loc, err := e.locate(ctx, id)
	if err != nil {
		return nil, err
	}
	old := &loc.records[loc.pos]

	updated := old.Clone()
	contentChanged := false
	if in.Content != nil && *in.Content != old.Content {
		updated.Content = *in.Content
		contentChanged = true
	}
	if in.Tags != nil {
		updated.Tags = normalizeTags(*in.Tags)
	}
	if in.Metadata != nil {
		updated.Metadata = in.Metadata.Clone()
	}
	updated.UpdatedAt = e.now()
	if err := store.ValidateRecord(updated); err != nil {
		return nil, err
	}

	if contentChanged {
		updated.Embedding = nil
		if v, ok := outcome.Vector(); ok {
			updated.Embedding = vecmath.Quantize(v.Embedding, vecmath.DefaultPrecision)
		}
	}

	oldCopy := old.Clone()
	loc.records[loc.pos] = *updated
	if err := e.store.WriteAll(ctx, loc.file, loc.records); err != nil {
		return nil, err
	}

	e.cache.Set(id, updated)
	e.index.Update(oldCopy, updated)
	switch {
	case len(updated.Embedding) > 0:
		if err := e.vectors.Add(id, updated.Embedding, updated.Content, updated.Metadata); err != nil {
			e.logger.Warn("vector not stored", "id", id, "error", err)
		}
	case contentChanged:
		e.vectors.Remove(id)
	}

	return updated.Clone(), nil
}

// Delete removes a record from storage, cache, index and vector store.
func (e *Engine) Delete(ctx context.Context, id string) (err error) {
	if err := e.Init(ctx); err != nil {
		return err
	}
	ctx, span := tracing.Start(ctx, "memory.delete", attribute.String("memory.id", id))
	defer func() { tracing.End(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteLocked(ctx, id)
}

func (e *Engine) deleteLocked(ctx context.Context, id string) error {
	loc, err := e.locate(ctx, id)
	if err != nil {
		return err
	}
	old := loc.records[loc.pos]
	remaining := append(loc.records[:loc.pos:loc.pos], loc.records[loc.pos+1:]...)
	if err := e.store.WriteAll(ctx, loc.file, remaining); err != nil {
		return err
	}

	e.cache.Delete(id)
	e.index.Remove(&old)
	e.vectors.Remove(id)
	e.logger.Debug("memory deleted", "id", id, "file", loc.file)
	return nil
}

// location pins a record inside its durable file.
type location struct {
	file    string
	records []store.Record
	pos     int
}

// locate finds id in durable storage, checking the cached record's file first.
func (e *Engine) locate(ctx context.Context, id string) (*location, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", store.ErrValidation)
	}

	var files []string
	if r, ok := e.cache.Get(id); ok {
		files = append(files, store.FileFor(r))
	} else {
		all, err := e.store.ListFiles(ctx)
		if err != nil {
			return nil, err
		}
		files = all
	}

	for _, file := range files {
		records, err := e.store.ReadAll(ctx, file)
		if err != nil {
			return nil, err
		}
		for i := range records {
			if records[i].ID == id {
				return &location{file: file, records: records, pos: i}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
}

// Get returns one record by id from the cache, falling back to storage.
func (e *Engine) Get(ctx context.Context, id string) (*store.Record, error) {
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if r, ok := e.cache.Get(id); ok {
		return r, nil
	}
	loc, err := e.locate(ctx, id)
	if err != nil {
		return nil, err
	}
	return loc.records[loc.pos].Clone(), nil
}

// ReadQuery selects records. Limit <= 0 returns everything after Offset.
type ReadQuery struct {
	Text           string
	Tags           []string
	Type           store.RecordType
	ConversationID string
	Metadata       store.Metadata
	DateFrom       time.Time
	DateTo         time.Time
	// Filter is an optional CEL expression applied after index selection.
	Filter string
	Limit  int
	Offset int
}

func (q ReadQuery) criteria() Criteria {
	return Criteria{
		Text:           q.Text,
		Tags:           q.Tags,
		Type:           q.Type,
		ConversationID: q.ConversationID,
		Metadata:       q.Metadata,
		DateFrom:       q.DateFrom,
		DateTo:         q.DateTo,
	}
}

// Read returns matching records, newest first, paginated by Offset and Limit.
func (e *Engine) Read(ctx context.Context, q ReadQuery) (recs []*store.Record, err error) {
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	_, span := tracing.Start(ctx, "memory.read")
	defer func() { tracing.End(span, err) }()

	var f *filter.Filter
	if strings.TrimSpace(q.Filter) != "" {
		if f, err = filter.Compile(q.Filter); err != nil {
			return nil, err
		}
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", store.ErrValidation)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.readLocked(q, f), nil
}

func (e *Engine) readLocked(q ReadQuery, f *filter.Filter) []*store.Record {
	var candidates []*store.Record
	crit := q.criteria()
	if !crit.IsEmpty() {
		ids := e.index.Search(crit)
		candidates = make([]*store.Record, 0, len(ids))
		for id := range ids {
			r, ok := e.cache.Get(id)
			if !ok {
				e.logger.Debug("indexed record missing from cache", "id", id)
				continue
			}
			candidates = append(candidates, r)
		}
	} else {
		candidates = e.cache.Entries()
	}

	now := e.now()
	out := candidates[:0]
	for _, r := range candidates {
		if q.Type != "" && r.Type != q.Type {
			continue
		}
		if q.ConversationID != "" && r.ConversationID != q.ConversationID {
			continue
		}
		if r.Expired(now) {
			continue
		}
		if f != nil && !f.Match(r) {
			continue
		}
		out = append(out, r)
	}

	sortNewestFirst(out)
	return paginate(out, q.Offset, q.Limit)
}

func sortNewestFirst(recs []*store.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup && t != "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
