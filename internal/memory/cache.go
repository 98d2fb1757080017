package memory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

// DefaultCacheSize is the record cache capacity when none is configured.
const DefaultCacheSize = 1000

type cacheEntry struct {
	record     *store.Record
	lastAccess time.Time
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"maxSize"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// RecordCache is a strict LRU of full records keyed by id. Records are copied
// on the way in and on the way out, so callers never share cached state.
type RecordCache struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[string, *cacheEntry]
	maxSize int
	hits    uint64
	misses  uint64
	logger  *slog.Logger
}

// NewRecordCache creates a cache holding at most maxSize records.
// maxSize <= 0 selects DefaultCacheSize.
func NewRecordCache(maxSize int, logger *slog.Logger) *RecordCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &RecordCache{maxSize: maxSize, logger: logger}
	lru, err := simplelru.NewLRU[string, *cacheEntry](maxSize, c.onEvict)
	if err != nil {
		// only returned for a non-positive size, which is excluded above
		panic(err)
	}
	c.lru = lru
	return c
}

func (c *RecordCache) onEvict(id string, _ *cacheEntry) {
	c.logger.Debug("record cache eviction", "id", id)
}

// Get returns a copy of the cached record and marks it most recently used.
func (c *RecordCache) Get(id string) (*store.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(id)
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	e.lastAccess = time.Now()
	return e.record.Clone(), true
}

// Set inserts or replaces a record, evicting the least recently used entry
// when the cache is full.
func (c *RecordCache) Set(id string, r *store.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(id, &cacheEntry{record: r.Clone(), lastAccess: time.Now()})
}

// Delete removes id and reports whether it was present.
func (c *RecordCache) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(id)
}

// Has reports presence without touching recency or counters.
func (c *RecordCache) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(id)
}

func (c *RecordCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Entries returns copies of all cached records, least recently used first.
func (c *RecordCache) Entries() []*store.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.lru.Values()
	out := make([]*store.Record, len(entries))
	for i, e := range entries {
		out[i] = e.record.Clone()
	}
	return out
}

// Search scans every entry with pred. Recency is not affected.
func (c *RecordCache) Search(pred func(*store.Record) bool) []*store.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*store.Record
	for _, e := range c.lru.Values() {
		if pred(e.record) {
			out = append(out, e.record.Clone())
		}
	}
	return out
}

// SetMaxSize changes capacity, evicting the oldest entries when shrinking.
func (c *RecordCache) SetMaxSize(n int) {
	if n <= 0 {
		n = DefaultCacheSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n == c.maxSize {
		return
	}
	evicted := c.lru.Resize(n)
	c.maxSize = n
	if evicted > 0 {
		c.logger.Info("record cache resized", "max_size", n, "evicted", evicted)
	}
}

// Clear drops all entries and resets the counters.
func (c *RecordCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.hits, c.misses = 0, 0
}

func (c *RecordCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := CacheStats{
		Size:    c.lru.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
