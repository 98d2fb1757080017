package embedding

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dgraph-io/ristretto"

	"github.com/nextlevelbuilder/gomemory/internal/vecmath"
)

// Cache keeps recently generated embeddings keyed by content hash. Each entry
// costs one unit, so maxEntries bounds the number of vectors held.
type Cache struct {
	c *ristretto.Cache
}

func NewCache(maxEntries int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(key string) ([]float32, bool) {
	v, ok := c.c.Get(key)
	if !ok {
		return nil, false
	}
	vec, ok := v.([]float32)
	return vec, ok
}

// Set stores a copy of vec. Admission is asynchronous; call Wait to make a
// write visible immediately.
func (c *Cache) Set(key string, vec []float32) {
	c.c.Set(key, vecmath.Clone(vec), 1)
}

func (c *Cache) Wait() { c.c.Wait() }

func (c *Cache) Close() { c.c.Close() }

// ContentHash returns a hex SHA256 hash of the content, truncated to 16 bytes.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:16])
}
