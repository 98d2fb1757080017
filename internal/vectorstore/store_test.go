package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/store"
	"github.com/nextlevelbuilder/gomemory/internal/vecmath"
)

func TestStore_AddValidation(t *testing.T) {
	s := New(Options{})
	if err := s.Add("a", nil, "text", nil); !errors.Is(err, vecmath.ErrInvalidVector) {
		t.Errorf("nil embedding: err = %v, want ErrInvalidVector", err)
	}
	if err := s.Add("a", []float32{1}, "  ", nil); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("blank content: err = %v, want ErrEmptyContent", err)
	}
	if err := s.Update("missing", []float32{1}, "x", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing): err = %v, want ErrNotFound", err)
	}
}

func TestStore_AddQuantizes(t *testing.T) {
	s := New(Options{})
	s.Add("a", []float32{0.123456789, 0.5}, "text", nil)
	e, ok := s.Get("a")
	if !ok {
		t.Fatal("Get(a) missing")
	}
	if e.Embedding[0] != float32(0.123457) {
		t.Errorf("embedding[0] = %v, want 0.123457", e.Embedding[0])
	}
}

func TestStore_SearchSimilar(t *testing.T) {
	s := New(Options{})
	s.Add("x", []float32{1, 0, 0}, "x axis", nil)
	s.Add("xy", []float32{1, 1, 0}, "diagonal", nil)
	s.Add("y", []float32{0, 1, 0}, "y axis", nil)
	s.Add("x2", []float32{2, 0, 0}, "x axis again", nil)

	results, err := s.SearchSimilar([]float32{1, 0, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3: %+v", len(results), results)
	}
	// x and x2 tie at 1.0; insertion order decides.
	if results[0].ID != "x" || results[1].ID != "x2" || results[2].ID != "xy" {
		t.Errorf("order = %s,%s,%s, want x,x2,xy", results[0].ID, results[1].ID, results[2].ID)
	}
	for i, r := range results {
		if r.Similarity < 0.5 {
			t.Errorf("result %d below threshold: %f", i, r.Similarity)
		}
		if i > 0 && r.Similarity > results[i-1].Similarity {
			t.Errorf("results not sorted at %d", i)
		}
	}

	limited, _ := s.SearchSimilar([]float32{1, 0, 0}, 1, 0)
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d results", len(limited))
	}

	if _, err := s.SearchSimilar([]float32{}, 5, 0); !errors.Is(err, vecmath.ErrInvalidVector) {
		t.Errorf("invalid query: err = %v", err)
	}
}

func TestStore_SearchEmpty(t *testing.T) {
	s := New(Options{})
	results, err := s.SearchSimilar([]float32{1, 2}, 5, DefaultThreshold)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("empty store returned %d results", len(results))
	}
}

func TestStore_SearchRandomVectorsRespectsThreshold(t *testing.T) {
	s := New(Options{})
	for i := uint64(0); i < 50; i++ {
		s.Add(string(rune('A'+i)), vecmath.RandomVector(16, i+1), "v", nil)
	}
	query := vecmath.RandomVector(16, 999)
	const threshold = 0.1
	results, err := s.SearchSimilar(query, 0, threshold)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	for i, r := range results {
		if r.Similarity < threshold {
			t.Errorf("result %d similarity %f < %f", i, r.Similarity, threshold)
		}
		if i > 0 && r.Similarity > results[i-1].Similarity {
			t.Errorf("not sorted at %d", i)
		}
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.json")

	s := New(Options{Snapshot: NewFileSnapshot(path)})
	s.Add("a", []float32{0.1111111, 0.2222222}, "alpha", store.Metadata{"type": store.StringValue("GLOBAL")})
	s.Add("b", []float32{0.3, 0.4}, "beta", nil)
	if !s.Dirty() {
		t.Fatal("store should be dirty after Add")
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.Dirty() {
		t.Error("store should be clean after Save")
	}

	loaded := New(Options{Snapshot: NewFileSnapshot(path)})
	if err := loaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.IDs(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("IDs = %v, want [a b]", got)
	}
	orig, _ := s.Get("a")
	back, _ := loaded.Get("a")
	for i := range orig.Embedding {
		if orig.Embedding[i] != back.Embedding[i] {
			t.Errorf("embedding[%d] = %v, want %v", i, back.Embedding[i], orig.Embedding[i])
		}
	}
	if v, _ := back.Metadata["type"].Str(); v != "GLOBAL" {
		t.Errorf("metadata type = %q", v)
	}

	st := loaded.Stats(ctx)
	if st.TotalVectors != 2 || st.AverageDimensions != 2 || st.SnapshotSizeBytes == 0 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestStore_LoadMissingSnapshot(t *testing.T) {
	s := New(Options{Snapshot: NewFileSnapshot(filepath.Join(t.TempDir(), "none.json"))})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count = %d, want 0", s.Count())
	}
}

func TestStore_LoadSkipsMalformedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.json")
	raw := `{"version":"1.0","timestamp":"2026-01-01T00:00:00Z","vectors":[
		{"id":"ok","embedding":[0.1,0.2],"content":"fine","createdAt":"2026-01-01T00:00:00Z","updatedAt":"2026-01-01T00:00:00Z"},
		{"id":"","embedding":[0.1],"content":"no id"},
		{"id":"noemb","content":"missing embedding"},
		{"id":"nocontent","embedding":[0.3]},
		"garbage"
	]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(Options{Snapshot: NewFileSnapshot(path)})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.IDs(); len(got) != 1 || got[0] != "ok" {
		t.Errorf("IDs = %v, want [ok]", got)
	}
}

func TestStore_StatsEmpty(t *testing.T) {
	s := New(Options{})
	before := time.Now().UTC().Add(-time.Second)
	st := s.Stats(context.Background())
	if st.TotalVectors != 0 || st.AverageDimensions != 0 {
		t.Errorf("Stats = %+v", st)
	}
	if st.LastUpdated.Before(before) {
		t.Errorf("LastUpdated = %v, want about now", st.LastUpdated)
	}
}

func TestStore_AutosaveAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.json")
	s := New(Options{Snapshot: NewFileSnapshot(path), AutosaveInterval: 20 * time.Millisecond})
	s.Start()

	s.Add("a", []float32{1, 2}, "alpha", nil)
	deadline := time.Now().Add(2 * time.Second)
	for s.Dirty() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Dirty() {
		t.Fatal("autosave did not flush the store")
	}

	// A mutation right before Close is flushed by the final save.
	s.Add("b", []float32{3, 4}, "beta", nil)
	s.Close(context.Background())

	loaded := New(Options{Snapshot: NewFileSnapshot(path)})
	loaded.Load(context.Background())
	if loaded.Count() != 2 {
		t.Errorf("Count after Close = %d, want 2", loaded.Count())
	}
}

func TestStore_RemoveAndClear(t *testing.T) {
	s := New(Options{})
	s.Add("a", []float32{1}, "a", nil)
	s.Add("b", []float32{1}, "b", nil)
	if !s.Remove("a") || s.Remove("a") {
		t.Error("Remove should succeed once")
	}
	s.Clear()
	if s.Count() != 0 {
		t.Errorf("Count after Clear = %d", s.Count())
	}
}

func TestStore_EncryptedSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.json")
	const key = "0123456789abcdef0123456789abcdef"

	// A plaintext snapshot written before encryption was enabled still loads.
	plain := New(Options{Snapshot: NewFileSnapshot(path)})
	plain.Add("a", []float32{0.6, 0.8}, "remember the milk", nil)
	if err := plain.Save(ctx); err != nil {
		t.Fatalf("Save plaintext: %v", err)
	}

	snap, err := NewEncryptedSnapshot(NewFileSnapshot(path), key)
	if err != nil {
		t.Fatalf("NewEncryptedSnapshot: %v", err)
	}
	s := New(Options{Snapshot: snap})
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load plaintext through encrypted sink: %v", err)
	}
	if !s.Has("a") {
		t.Fatal("vector a missing after load")
	}
	s.Add("b", []float32{1, 0}, "buy eggs", nil)
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save encrypted: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "milk") {
		t.Error("encrypted snapshot contains plaintext content")
	}

	reloaded := New(Options{Snapshot: snap})
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load encrypted: %v", err)
	}
	if reloaded.Count() != 2 {
		t.Errorf("Count = %d, want 2", reloaded.Count())
	}

	wrong, _ := NewEncryptedSnapshot(NewFileSnapshot(path), strings.Repeat("ff", 32))
	if err := New(Options{Snapshot: wrong}).Load(ctx); err == nil {
		t.Error("Load with the wrong key should fail")
	}
}

// gatedSnapshot holds the first Write until release is closed.
type gatedSnapshot struct {
	mu      sync.Mutex
	data    []byte
	writes  int
	started chan struct{}
	release chan struct{}
}

func newGatedSnapshot() *gatedSnapshot {
	return &gatedSnapshot{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSnapshot) Location() string { return "gated" }

func (g *gatedSnapshot) Read(context.Context) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.data == nil {
		return nil, ErrSnapshotNotFound
	}
	return g.data, nil
}

func (g *gatedSnapshot) Write(_ context.Context, data []byte) error {
	g.mu.Lock()
	g.writes++
	first := g.writes == 1
	g.mu.Unlock()
	if first {
		close(g.started)
		<-g.release
	}
	g.mu.Lock()
	g.data = append([]byte(nil), data...)
	g.mu.Unlock()
	return nil
}

func (g *gatedSnapshot) Size(context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int64(len(g.data)), nil
}

func TestStore_SaveDuringInFlightSavePersistsLaterChanges(t *testing.T) {
	ctx := context.Background()
	snap := newGatedSnapshot()
	s := New(Options{Snapshot: snap})
	s.Add("a", []float32{1, 0}, "alpha", nil)

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Save(ctx) }()
	<-snap.started

	s.Add("b", []float32{0, 1}, "beta", nil)
	secondDone := make(chan error, 1)
	go func() { secondDone <- s.Save(ctx) }()

	// Let the second Save join the in-flight write before it completes.
	time.Sleep(20 * time.Millisecond)
	close(snap.release)

	if err := <-firstDone; err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := <-secondDone; err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if s.Dirty() {
		t.Error("store still dirty after explicit Save")
	}

	loaded := New(Options{Snapshot: snap})
	if err := loaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if loaded.Count() != 2 {
		t.Errorf("persisted %d vectors, want 2", loaded.Count())
	}
}

func TestStore_LoadCorruptSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := New(Options{Snapshot: NewFileSnapshot(path)})
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load corrupt snapshot: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count = %d, want 0", s.Count())
	}
	if !s.Dirty() {
		t.Error("store should be dirty so the corrupt snapshot gets replaced")
	}

	s.Add("a", []float32{1, 0}, "alpha", nil)
	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}
	reloaded := New(Options{Snapshot: NewFileSnapshot(path)})
	if err := reloaded.Load(ctx); err != nil || reloaded.Count() != 1 {
		t.Errorf("reload: count = %d, err = %v", reloaded.Count(), err)
	}
}

func TestStore_CloseWithoutAutosaveFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.json")
	s := New(Options{Snapshot: NewFileSnapshot(path)})
	s.Add("a", []float32{1, 2}, "alpha", nil)
	s.Close(context.Background())
	if s.Dirty() {
		t.Error("dirty after Close")
	}

	loaded := New(Options{Snapshot: NewFileSnapshot(path)})
	loaded.Load(context.Background())
	if loaded.Count() != 1 {
		t.Errorf("Count after Close = %d, want 1", loaded.Count())
	}
}
