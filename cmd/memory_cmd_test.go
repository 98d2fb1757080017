package cmd

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/config"
	"github.com/nextlevelbuilder/gomemory/internal/memory"
	"github.com/nextlevelbuilder/gomemory/internal/store"
	"github.com/nextlevelbuilder/gomemory/internal/store/memstore"
	"github.com/nextlevelbuilder/gomemory/pkg/protocol"
)

func TestParseMetaFlag(t *testing.T) {
	md, err := parseMetaFlag(map[string]string{"n": "3", "ok": "true", "name": "alice", "quoted": `"x"`})
	if err != nil {
		t.Fatalf("parseMetaFlag: %v", err)
	}
	if n, ok := md["n"].Num(); !ok || n != 3 {
		t.Errorf("n = %v, want number 3", md["n"])
	}
	if b, ok := md["ok"].Bool(); !ok || !b {
		t.Errorf("ok = %v, want bool true", md["ok"])
	}
	if s, ok := md["name"].Str(); !ok || s != "alice" {
		t.Errorf("name = %v, want string alice", md["name"])
	}
	if s, ok := md["quoted"].Str(); !ok || s != "x" {
		t.Errorf("quoted = %v, want string x", md["quoted"])
	}

	if md, err := parseMetaFlag(nil); err != nil || md != nil {
		t.Errorf("empty flag: got %v, %v", md, err)
	}
}

func TestParseDateFlag(t *testing.T) {
	tests := []struct {
		in       string
		endOfDay bool
		want     time.Time
		wantErr  bool
	}{
		{"", false, time.Time{}, false},
		{"2024-03-01", false, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"2024-03-01", true, time.Date(2024, 3, 1, 23, 59, 59, 999999999, time.UTC), false},
		{"2024-03-01T10:00:00+02:00", false, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), false},
		{"yesterday", false, time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseDateFlag(tt.in, tt.endOfDay)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDateFlag(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseDateFlag(%q, %v) = %v, want %v", tt.in, tt.endOfDay, got, tt.want)
		}
	}
}

func TestParseTypeFlag(t *testing.T) {
	if typ, err := parseTypeFlag("temporary"); err != nil || typ != store.TypeTemporary {
		t.Errorf("parseTypeFlag(temporary) = %q, %v", typ, err)
	}
	if _, err := parseTypeFlag("session"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		5 << 20: "5.0 MiB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestReloadHandler_AppliesCacheAndTTL(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	engine, err := memory.NewEngine(memory.Options{Store: memstore.New(), CacheSize: 10, Logger: logger})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ctx := context.Background()

	active := config.Default()
	next := config.Default()
	next.Cache.MaxSize = 3
	next.Retention.TemporaryTTLHours = 1

	reloadHandler(active, engine, nil, logger)(next)

	if active.Cache.MaxSize != 3 {
		t.Errorf("active config not replaced: cache.maxSize = %d", active.Cache.MaxSize)
	}
	st, err := engine.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Cache.MaxSize != 3 {
		t.Errorf("cache max size = %d, want 3", st.Cache.MaxSize)
	}

	rec, err := engine.Create(ctx, memory.CreateInput{Content: "short lived", Type: store.TypeTemporary})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ExpiresAt == nil {
		t.Fatal("TEMPORARY record has no expiry after TTL reload")
	}
	if d := rec.ExpiresAt.Sub(rec.CreatedAt); d != time.Hour {
		t.Errorf("expiry offset = %v, want 1h", d)
	}
}

func TestOpenApp_MemoryBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	cfg.Vectors.Snapshot = "none"
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.MaxTokens = 0

	ctx := context.Background()
	rt, err := openApp(ctx, cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer rt.Close(ctx)

	if err := rt.engine.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !rt.engine.SemanticEnabled() {
		t.Fatal("hash provider should enable semantic search")
	}
	if _, err := rt.engine.Create(ctx, memory.CreateInput{Content: "the quick brown fox"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	hits, err := rt.engine.SemanticSearch(ctx, memory.SemanticQuery{Query: "the quick brown fox"})
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
}

func TestBuildRegistry(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	cfg.Vectors.Snapshot = "none"
	cfg.Server.ToolCallsPerHour = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := openApp(ctx, cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer rt.Close(ctx)

	reg, err := buildRegistry(ctx, rt, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}
	if reg.Count() != 9 {
		t.Errorf("registered %d tools, want 9", reg.Count())
	}
	first := reg.Execute(ctx, protocol.ToolGetMemoryStats, nil)
	if !first.Success {
		t.Fatalf("first call failed: %s", first.Error)
	}
	second := reg.Execute(ctx, protocol.ToolGetMemoryStats, nil)
	if second.Success || second.Code != protocol.ErrResourceExhausted {
		t.Errorf("second call = %+v, want RESOURCE_EXHAUSTED", second)
	}
}
