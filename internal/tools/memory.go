package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/memory"
	"github.com/nextlevelbuilder/gomemory/internal/store"
	"github.com/nextlevelbuilder/gomemory/pkg/protocol"
)

// MemoryEngine is the retrieval engine as seen by the tools.
type MemoryEngine interface {
	Create(ctx context.Context, in memory.CreateInput) (*store.Record, error)
	Read(ctx context.Context, q memory.ReadQuery) ([]*store.Record, error)
	Update(ctx context.Context, id string, in memory.UpdateInput) (*store.Record, error)
	Delete(ctx context.Context, id string) error
	SemanticSearch(ctx context.Context, q memory.SemanticQuery) ([]memory.SearchHit, error)
	GenerateEmbeddingsForExisting(ctx context.Context, opts memory.ReindexOptions) (*memory.ReindexReport, error)
	CalculateSimilarity(ctx context.Context, text1, text2 string) (float64, error)
	VectorStats(ctx context.Context) (*memory.VectorStats, error)
	Stats(ctx context.Context) (*memory.Stats, error)
}

// RegisterMemoryTools registers every memory tool backed by engine.
func RegisterMemoryTools(r *Registry, engine MemoryEngine) {
	r.Register(&CreateMemoryTool{engine: engine})
	r.Register(&ReadMemoriesTool{engine: engine})
	r.Register(&UpdateMemoryTool{engine: engine})
	r.Register(&DeleteMemoryTool{engine: engine})
	r.Register(&SemanticSearchTool{engine: engine})
	r.Register(&GenerateEmbeddingsTool{engine: engine})
	r.Register(&CalculateSimilarityTool{engine: engine})
	r.Register(&VectorStatsTool{engine: engine})
	r.Register(&MemoryStatsTool{engine: engine})
}

// RecordView is a record as returned to callers. The embedding itself is
// omitted; HasEmbedding reports whether one is stored.
type RecordView struct {
	ID             string           `json:"id"`
	Content        string           `json:"content"`
	Type           store.RecordType `json:"type"`
	ConversationID string           `json:"conversationId,omitempty"`
	Tags           []string         `json:"tags"`
	Metadata       store.Metadata   `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	ExpiresAt      *time.Time       `json:"expiresAt,omitempty"`
	HasEmbedding   bool             `json:"hasEmbedding"`
}

func viewOf(r *store.Record) RecordView {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return RecordView{
		ID:             r.ID,
		Content:        r.Content,
		Type:           r.Type,
		ConversationID: r.ConversationID,
		Tags:           tags,
		Metadata:       r.Metadata,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		ExpiresAt:      r.ExpiresAt,
		HasEmbedding:   len(r.Embedding) > 0,
	}
}

func viewsOf(recs []*store.Record) []RecordView {
	out := make([]RecordView, len(recs))
	for i, r := range recs {
		out[i] = viewOf(r)
	}
	return out
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

var typeProp = map[string]any{
	"type":        "string",
	"enum":        []string{"GLOBAL", "CONVERSATION", "TEMPORARY"},
	"description": "Record type. CONVERSATION records require conversationId.",
}

var tagsProp = map[string]any{
	"type":        "array",
	"items":       map[string]any{"type": "string"},
	"description": "Free-form labels, matched case-insensitively.",
}

// --- create_memory ---

type CreateMemoryTool struct{ engine MemoryEngine }

func (t *CreateMemoryTool) Name() string          { return protocol.ToolCreateMemory }
func (t *CreateMemoryTool) GuardedArgs() []string { return []string{"content"} }
func (t *CreateMemoryTool) Description() string {
	return "Store a new memory. The memory is embedded for semantic search when an embedding provider is configured; if embedding fails the memory is still stored."
}
func (t *CreateMemoryTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"content":        prop("string", "Text to remember."),
		"type":           typeProp,
		"conversationId": prop("string", "Conversation the memory belongs to."),
		"tags":           tagsProp,
		"metadata":       prop("object", "Arbitrary JSON metadata. Scalar values are indexed for exact-match filtering."),
	}, "content")
}

func (t *CreateMemoryTool) Execute(ctx context.Context, args map[string]any) *Result {
	var in memory.CreateInput
	var err error
	if in.Content, err = requiredString(args, "content"); err != nil {
		return FromError(err)
	}
	if in.Type, err = typeArg(args, "type"); err != nil {
		return FromError(err)
	}
	if in.ConversationID, _, err = stringArg(args, "conversationId"); err != nil {
		return FromError(err)
	}
	if in.Tags, _, err = stringsArg(args, "tags"); err != nil {
		return FromError(err)
	}
	if in.Metadata, _, err = metadataArg(args, "metadata"); err != nil {
		return FromError(err)
	}

	rec, err := t.engine.Create(ctx, in)
	if err != nil {
		return FromError(err)
	}
	msg := "Memory created"
	if len(rec.Embedding) == 0 {
		msg = "Memory created without embedding"
	}
	return NewResult(viewOf(rec), msg)
}

// --- read_memories ---

type ReadMemoriesTool struct{ engine MemoryEngine }

func (t *ReadMemoriesTool) Name() string   { return protocol.ToolReadMemories }
func (t *ReadMemoriesTool) ReadOnly() bool { return true }
func (t *ReadMemoriesTool) Description() string {
	return "List memories matching keyword, tag, type, conversation, metadata and date filters, newest first. With no filters, returns cached memories."
}
func (t *ReadMemoriesTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"query":          prop("string", "Keywords; every word must appear in the memory."),
		"type":           typeProp,
		"conversationId": prop("string", "Only memories of this conversation."),
		"tags":           tagsProp,
		"metadata":       prop("object", "Exact-match metadata filters (scalar values)."),
		"dateFrom":       prop("string", "Created on or after (RFC 3339 or YYYY-MM-DD)."),
		"dateTo":         prop("string", "Created on or before (RFC 3339 or YYYY-MM-DD)."),
		"filter":         prop("string", "CEL expression over id, content, type, conversationId, tags, metadata, createdAt, updatedAt, hasEmbedding."),
		"limit":          prop("number", "Maximum results (default: all)."),
		"offset":         prop("number", "Results to skip."),
	})
}

func (t *ReadMemoriesTool) Execute(ctx context.Context, args map[string]any) *Result {
	var q memory.ReadQuery
	var err error
	if q.Text, _, err = stringArg(args, "query"); err != nil {
		return FromError(err)
	}
	if q.Type, err = typeArg(args, "type"); err != nil {
		return FromError(err)
	}
	if q.ConversationID, _, err = stringArg(args, "conversationId"); err != nil {
		return FromError(err)
	}
	if q.Tags, _, err = stringsArg(args, "tags"); err != nil {
		return FromError(err)
	}
	if q.Metadata, _, err = metadataArg(args, "metadata"); err != nil {
		return FromError(err)
	}
	if q.DateFrom, err = timeArg(args, "dateFrom", false); err != nil {
		return FromError(err)
	}
	if q.DateTo, err = timeArg(args, "dateTo", true); err != nil {
		return FromError(err)
	}
	if q.Filter, _, err = stringArg(args, "filter"); err != nil {
		return FromError(err)
	}
	if q.Limit, _, err = intArg(args, "limit"); err != nil {
		return FromError(err)
	}
	if q.Offset, _, err = intArg(args, "offset"); err != nil {
		return FromError(err)
	}

	recs, err := t.engine.Read(ctx, q)
	if err != nil {
		return FromError(err)
	}
	return NewResult(viewsOf(recs), fmt.Sprintf("Found %d memories", len(recs)))
}

// --- update_memory ---

type UpdateMemoryTool struct{ engine MemoryEngine }

func (t *UpdateMemoryTool) Name() string          { return protocol.ToolUpdateMemory }
func (t *UpdateMemoryTool) GuardedArgs() []string { return []string{"content"} }
func (t *UpdateMemoryTool) Description() string {
	return "Change a memory's content, tags or metadata. Changed content is re-embedded."
}
func (t *UpdateMemoryTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"id":       prop("string", "Memory id."),
		"content":  prop("string", "New content."),
		"tags":     tagsProp,
		"metadata": prop("object", "Replacement metadata."),
	}, "id")
}

func (t *UpdateMemoryTool) Execute(ctx context.Context, args map[string]any) *Result {
	id, err := requiredString(args, "id")
	if err != nil {
		return FromError(err)
	}
	var in memory.UpdateInput
	if s, ok, err := stringArg(args, "content"); err != nil {
		return FromError(err)
	} else if ok {
		in.Content = &s
	}
	if tags, ok, err := stringsArg(args, "tags"); err != nil {
		return FromError(err)
	} else if ok {
		in.Tags = &tags
	}
	if in.Metadata, _, err = metadataArg(args, "metadata"); err != nil {
		return FromError(err)
	}

	rec, err := t.engine.Update(ctx, id, in)
	if err != nil {
		return FromError(err)
	}
	return NewResult(viewOf(rec), "Memory updated")
}

// --- delete_memory ---

type DeleteMemoryTool struct{ engine MemoryEngine }

func (t *DeleteMemoryTool) Name() string        { return protocol.ToolDeleteMemory }
func (t *DeleteMemoryTool) Description() string { return "Delete a memory and its embedding." }
func (t *DeleteMemoryTool) Parameters() map[string]any {
	return objectSchema(map[string]any{"id": prop("string", "Memory id.")}, "id")
}

func (t *DeleteMemoryTool) Execute(ctx context.Context, args map[string]any) *Result {
	id, err := requiredString(args, "id")
	if err != nil {
		return FromError(err)
	}
	if err := t.engine.Delete(ctx, id); err != nil {
		return FromError(err)
	}
	return NewResult(map[string]string{"id": id}, "Memory deleted")
}

// --- semantic_search ---

type SemanticSearchTool struct{ engine MemoryEngine }

// SearchHitView is one ranked search result.
type SearchHitView struct {
	RecordView
	Similarity float64 `json:"similarity"`
	Source     string  `json:"source"`
}

func (t *SemanticSearchTool) Name() string   { return protocol.ToolSemanticSearch }
func (t *SemanticSearchTool) ReadOnly() bool { return true }
func (t *SemanticSearchTool) Description() string {
	return "Find memories by meaning using vector similarity. hybridSearch also adds keyword matches: keyword hits score keywordWeight, and hits found both ways get the vector score scaled by (1 - keywordWeight) plus keywordWeight."
}
func (t *SemanticSearchTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"query":         prop("string", "Natural language query."),
		"limit":         prop("number", "Maximum results (default: 10)."),
		"threshold":     prop("number", "Minimum cosine similarity, 0-1 (default: 0.7)."),
		"hybridSearch":  prop("boolean", "Merge keyword matches into the ranking."),
		"keywordWeight": prop("number", "Weight of keyword matches in hybrid mode, 0-1 (default: 0.3)."),
	}, "query")
}

func (t *SemanticSearchTool) Execute(ctx context.Context, args map[string]any) *Result {
	var q memory.SemanticQuery
	var err error
	if q.Query, err = requiredString(args, "query"); err != nil {
		return FromError(err)
	}
	if q.Limit, _, err = intArg(args, "limit"); err != nil {
		return FromError(err)
	}
	if th, ok, err := numberArg(args, "threshold"); err != nil {
		return FromError(err)
	} else if ok {
		q.Threshold = &th
	}
	if q.Hybrid, err = boolArg(args, "hybridSearch"); err != nil {
		return FromError(err)
	}
	if w, ok, err := numberArg(args, "keywordWeight"); err != nil {
		return FromError(err)
	} else if ok {
		q.KeywordWeight = &w
	}

	hits, err := t.engine.SemanticSearch(ctx, q)
	if err != nil {
		return FromError(err)
	}
	views := make([]SearchHitView, len(hits))
	for i, h := range hits {
		views[i] = SearchHitView{RecordView: viewOf(h.Record), Similarity: h.Similarity, Source: h.Source}
	}
	return NewResult(views, fmt.Sprintf("Found %d similar memories", len(hits)))
}

// --- generate_embeddings_for_existing ---

type GenerateEmbeddingsTool struct{ engine MemoryEngine }

func (t *GenerateEmbeddingsTool) Name() string { return protocol.ToolGenerateEmbeddings }
func (t *GenerateEmbeddingsTool) Description() string {
	return "Embed stored memories that have no vector yet (all memories with force) and save the vector snapshot."
}
func (t *GenerateEmbeddingsTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"force": prop("boolean", "Re-embed memories that already have a vector."),
	})
}

func (t *GenerateEmbeddingsTool) Execute(ctx context.Context, args map[string]any) *Result {
	force, err := boolArg(args, "force")
	if err != nil {
		return FromError(err)
	}
	report, err := t.engine.GenerateEmbeddingsForExisting(ctx, memory.ReindexOptions{Force: force})
	if err != nil {
		return FromError(err)
	}
	return NewResult(report, fmt.Sprintf("Generated %d embeddings (%d skipped, %d failed)", report.Processed, report.Skipped, report.Failed))
}

// --- calculate_similarity ---

type CalculateSimilarityTool struct{ engine MemoryEngine }

func (t *CalculateSimilarityTool) Name() string   { return protocol.ToolCalculateSimilarity }
func (t *CalculateSimilarityTool) ReadOnly() bool { return true }
func (t *CalculateSimilarityTool) Description() string {
	return "Embed two texts and return their cosine similarity."
}
func (t *CalculateSimilarityTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"text1": prop("string", "First text."),
		"text2": prop("string", "Second text."),
	}, "text1", "text2")
}

func (t *CalculateSimilarityTool) Execute(ctx context.Context, args map[string]any) *Result {
	a, err := requiredString(args, "text1")
	if err != nil {
		return FromError(err)
	}
	b, err := requiredString(args, "text2")
	if err != nil {
		return FromError(err)
	}
	sim, err := t.engine.CalculateSimilarity(ctx, a, b)
	if err != nil {
		return FromError(err)
	}
	return NewResult(map[string]float64{"similarity": sim}, fmt.Sprintf("Similarity: %.4f", sim))
}

// --- get_vector_stats ---

type VectorStatsTool struct{ engine MemoryEngine }

func (t *VectorStatsTool) Name() string   { return protocol.ToolGetVectorStats }
func (t *VectorStatsTool) ReadOnly() bool { return true }
func (t *VectorStatsTool) Description() string {
	return "Report vector count, average dimensions, snapshot size and the embedding provider in use."
}
func (t *VectorStatsTool) Parameters() map[string]any { return objectSchema(map[string]any{}) }

func (t *VectorStatsTool) Execute(ctx context.Context, _ map[string]any) *Result {
	st, err := t.engine.VectorStats(ctx)
	if err != nil {
		return FromError(err)
	}
	return NewResult(st, "")
}

// --- get_memory_stats ---

type MemoryStatsTool struct{ engine MemoryEngine }

func (t *MemoryStatsTool) Name() string   { return protocol.ToolGetMemoryStats }
func (t *MemoryStatsTool) ReadOnly() bool { return true }
func (t *MemoryStatsTool) Description() string {
	return "Report memory counts by type with cache, index and vector statistics."
}
func (t *MemoryStatsTool) Parameters() map[string]any { return objectSchema(map[string]any{}) }

func (t *MemoryStatsTool) Execute(ctx context.Context, _ map[string]any) *Result {
	st, err := t.engine.Stats(ctx)
	if err != nil {
		return FromError(err)
	}
	return NewResult(st, "")
}
