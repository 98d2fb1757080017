package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/gomemory/internal/store"
	"github.com/nextlevelbuilder/gomemory/internal/tracing"
	"github.com/nextlevelbuilder/gomemory/internal/vecmath"
	"github.com/nextlevelbuilder/gomemory/internal/vectorstore"
)

const (
	DefaultSearchLimit   = 10
	DefaultKeywordWeight = 0.3
)

// Hit sources.
const (
	SourceVector  = "vector"
	SourceKeyword = "keyword"
	SourceHybrid  = "hybrid"
)

// SemanticQuery is a similarity search request.
type SemanticQuery struct {
	Query string
	Limit int
	// Threshold is the minimum cosine similarity; nil means 0.7.
	Threshold *float64
	Hybrid    bool
	// KeywordWeight applies in hybrid mode; nil means 0.3.
	KeywordWeight *float64
}

// SearchHit is one ranked result. In hybrid mode Similarity is the combined
// score and may exceed 1.
type SearchHit struct {
	Record     *store.Record `json:"record"`
	Similarity float64       `json:"similarity"`
	Source     string        `json:"source"`
}

// SemanticSearch embeds the query and ranks stored vectors by cosine
// similarity. In hybrid mode keyword matches are merged in additively:
// vector-only hits score s*(1-w), keyword-only hits score w, and hits found
// by both score s*(1-w)+w.
func (e *Engine) SemanticSearch(ctx context.Context, q SemanticQuery) (hits []SearchHit, err error) {
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "memory.semantic_search", attribute.Bool("memory.hybrid", q.Hybrid))
	defer func() { tracing.End(span, err) }()

	if strings.TrimSpace(q.Query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", store.ErrValidation)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	threshold := vectorstore.DefaultThreshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}
	weight := DefaultKeywordWeight
	if q.KeywordWeight != nil {
		weight = *q.KeywordWeight
	}
	if weight < 0 || weight > 1 {
		return nil, fmt.Errorf("%w: keywordWeight must be within [0, 1]", store.ErrValidation)
	}

	if !e.SemanticEnabled() {
		return nil, ErrSemanticDisabled
	}
	res, err := e.gateway.GenerateEmbedding(ctx, q.Query)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	vecHits, err := e.vectors.SearchSimilar(res.Embedding, limit, threshold)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if !q.Hybrid {
		hits = make([]SearchHit, 0, len(vecHits))
		for _, vh := range vecHits {
			r, ok := e.hydrate(vh.ID)
			if !ok || r.Expired(now) {
				continue
			}
			hits = append(hits, SearchHit{Record: r, Similarity: vh.Similarity, Source: SourceVector})
		}
		return hits, nil
	}

	keyword := e.readLocked(ReadQuery{Text: q.Query, Limit: int(math.Ceil(float64(limit) / 2))}, nil)
	return e.mergeHybrid(vecHits, keyword, weight, limit), nil
}

// mergeHybrid combines vector and keyword results by id. Ties keep vector
// order first, then keyword order.
func (e *Engine) mergeHybrid(vecHits []vectorstore.Result, keyword []*store.Record, weight float64, limit int) []SearchHit {
	now := e.now()
	byID := make(map[string]int, len(vecHits)+len(keyword))
	merged := make([]SearchHit, 0, len(vecHits)+len(keyword))

	for _, vh := range vecHits {
		r, ok := e.hydrate(vh.ID)
		if !ok || r.Expired(now) {
			continue
		}
		byID[vh.ID] = len(merged)
		merged = append(merged, SearchHit{Record: r, Similarity: vh.Similarity * (1 - weight), Source: SourceVector})
	}
	for _, r := range keyword {
		if i, ok := byID[r.ID]; ok {
			merged[i].Similarity += weight
			merged[i].Source = SourceHybrid
			continue
		}
		byID[r.ID] = len(merged)
		merged = append(merged, SearchHit{Record: r, Similarity: weight, Source: SourceKeyword})
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Similarity > merged[j].Similarity })
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// hydrate resolves a vector id to its record. Vectors whose record is not
// cached are dropped from results.
func (e *Engine) hydrate(id string) (*store.Record, bool) {
	r, ok := e.cache.Get(id)
	if !ok {
		e.logger.Debug("vector hit without cached record", "id", id)
	}
	return r, ok
}

// CalculateSimilarity embeds both texts and returns their cosine similarity.
func (e *Engine) CalculateSimilarity(ctx context.Context, text1, text2 string) (sim float64, err error) {
	if err := e.Init(ctx); err != nil {
		return 0, err
	}
	ctx, span := tracing.Start(ctx, "memory.calculate_similarity")
	defer func() { tracing.End(span, err) }()

	if strings.TrimSpace(text1) == "" || strings.TrimSpace(text2) == "" {
		return 0, fmt.Errorf("%w: both texts are required", store.ErrValidation)
	}
	if !e.SemanticEnabled() {
		return 0, ErrSemanticDisabled
	}
	res, err := e.gateway.GenerateEmbeddings(ctx, []string{text1, text2})
	if err != nil {
		return 0, err
	}
	return vecmath.CosineSimilarity(res[0].Embedding, res[1].Embedding)
}

// ReindexOptions controls GenerateEmbeddingsForExisting.
type ReindexOptions struct {
	// Force re-embeds records that already carry an embedding.
	Force bool
}

// ReindexReport summarizes a reindex run.
type ReindexReport struct {
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Errors    []string      `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
}

type reindexItem struct {
	file string
	pos  int
	rec  store.Record
	vec  []float32
	err  error
}

// GenerateEmbeddingsForExisting embeds every stored record that lacks a
// vector (or every record with Force), persists the embeddings and saves the
// vector snapshot. Per-record failures are reported, not returned.
func (e *Engine) GenerateEmbeddingsForExisting(ctx context.Context, opts ReindexOptions) (report *ReindexReport, err error) {
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "memory.reindex", attribute.Bool("memory.force", opts.Force))
	defer func() { tracing.End(span, err) }()

	if !e.SemanticEnabled() {
		return nil, ErrSemanticDisabled
	}
	started := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	files, err := e.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	report = &ReindexReport{}
	contents := make(map[string][]store.Record, len(files))
	var todo []*reindexItem
	for _, file := range files {
		records, err := e.store.ReadAll(ctx, file)
		if err != nil {
			return nil, err
		}
		contents[file] = records
		for i := range records {
			report.Total++
			if len(records[i].Embedding) > 0 && e.vectors.Has(records[i].ID) && !opts.Force {
				report.Skipped++
				continue
			}
			todo = append(todo, &reindexItem{file: file, pos: i, rec: records[i]})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.reindexConcurrency)
	for start := 0; start < len(todo); start += e.reindexBatchSize {
		batch := todo[start:min(start+e.reindexBatchSize, len(todo))]
		g.Go(func() error {
			e.embedBatch(gctx, batch)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirty := make(map[string]bool)
	for _, it := range todo {
		if it.err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", it.rec.ID, it.err))
			continue
		}
		r := &contents[it.file][it.pos]
		r.Embedding = vecmath.Quantize(it.vec, vecmath.DefaultPrecision)
		if err := e.vectors.Add(r.ID, r.Embedding, r.Content, r.Metadata); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", r.ID, err))
			continue
		}
		if e.cache.Has(r.ID) {
			e.cache.Set(r.ID, r)
		}
		dirty[it.file] = true
		report.Processed++
	}

	for file := range dirty {
		if err := e.store.WriteAll(ctx, file, contents[file]); err != nil {
			return nil, err
		}
	}
	if err := e.vectors.Save(ctx); err != nil {
		e.logger.Warn("vector snapshot after reindex failed", "error", err)
	}

	report.Duration = time.Since(started)
	e.logger.Info("reindex finished",
		"total", report.Total, "processed", report.Processed,
		"skipped", report.Skipped, "failed", report.Failed, "duration", report.Duration)
	return report, nil
}

// embedBatch embeds a batch in one call and falls back to one call per
// record when the batch fails, so one bad record cannot sink its neighbours.
func (e *Engine) embedBatch(ctx context.Context, batch []*reindexItem) {
	texts := make([]string, len(batch))
	for i, it := range batch {
		texts[i] = it.rec.Content
	}
	results, err := e.gateway.GenerateEmbeddings(ctx, texts)
	if err == nil {
		for i, it := range batch {
			it.vec = results[i].Embedding
		}
		return
	}
	if len(batch) == 1 {
		batch[0].err = err
		return
	}
	e.logger.Debug("batch embedding failed, retrying per record", "size", len(batch), "error", err)
	for _, it := range batch {
		res, err := e.gateway.GenerateEmbedding(ctx, it.rec.Content)
		if err != nil {
			it.err = err
			continue
		}
		it.vec = res.Embedding
	}
}

// VectorStats describes the vector store and the embedding configuration.
type VectorStats struct {
	vectorstore.Stats
	Enabled    bool   `json:"enabled"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// VectorStats reports vector store statistics.
func (e *Engine) VectorStats(ctx context.Context) (*VectorStats, error) {
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	st := &VectorStats{Stats: e.vectors.Stats(ctx), Enabled: e.SemanticEnabled()}
	if st.Enabled {
		if p := e.gateway.Provider(); p != nil {
			st.Provider = p.Name()
			st.Model = p.Model()
			st.Dimensions = p.Dimensions()
		}
	}
	return st, nil
}

// Stats is an overview of the engine.
type Stats struct {
	State        string                   `json:"state"`
	TotalRecords int                      `json:"totalRecords"`
	ByType       map[store.RecordType]int `json:"byType"`
	Expired      int                      `json:"expired"`
	Cache        CacheStats               `json:"cache"`
	Index        IndexStats               `json:"index"`
	Vectors      VectorStats              `json:"vectors"`
}

// Stats reports record counts by type together with cache, index and vector
// statistics. Counts come from the index so they include records evicted
// from the cache.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	vs, err := e.VectorStats(ctx)
	if err != nil {
		return nil, err
	}

	state := e.State()

	e.mu.RLock()
	defer e.mu.RUnlock()

	st := &Stats{
		State:   state.String(),
		ByType:  make(map[store.RecordType]int, 3),
		Cache:   e.cache.Stats(),
		Index:   e.index.Stats(),
		Vectors: *vs,
	}
	now := e.now()
	for _, t := range []store.RecordType{store.TypeGlobal, store.TypeConversation, store.TypeTemporary} {
		n := len(e.index.Search(Criteria{Type: t}))
		st.ByType[t] = n
		st.TotalRecords += n
	}
	for _, r := range e.cache.Entries() {
		if r.Expired(now) {
			st.Expired++
		}
	}
	return st, nil
}

// SweepExpired deletes every record whose expiry is not after now and
// returns how many were removed.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) (removed int, err error) {
	if err := e.Init(ctx); err != nil {
		return 0, err
	}
	ctx, span := tracing.Start(ctx, "memory.sweep_expired")
	defer func() {
		span.SetAttributes(attribute.Int("memory.removed", removed))
		tracing.End(span, err)
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	files, err := e.store.ListFiles(ctx)
	if err != nil {
		return 0, err
	}
	for _, file := range files {
		records, err := e.store.ReadAll(ctx, file)
		if err != nil {
			return removed, err
		}
		kept := records[:0:0]
		var gone []store.Record
		for _, r := range records {
			if r.Expired(now) {
				gone = append(gone, r)
				continue
			}
			kept = append(kept, r)
		}
		if len(gone) == 0 {
			continue
		}
		if err := e.store.WriteAll(ctx, file, kept); err != nil {
			return removed, err
		}
		for i := range gone {
			e.cache.Delete(gone[i].ID)
			e.index.Remove(&gone[i])
			e.vectors.Remove(gone[i].ID)
		}
		removed += len(gone)
	}
	if removed > 0 {
		e.logger.Info("expired memories removed", "count", removed)
	}
	return removed, nil
}
