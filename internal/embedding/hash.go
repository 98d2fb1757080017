package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/nextlevelbuilder/gomemory/internal/vecmath"
)

// HashProvider is an offline, deterministic embedder. Words and character
// trigrams are hashed into buckets, so texts sharing vocabulary score higher.
// All components are non-negative, hence similarities are in [0, 1].
type HashProvider struct {
	dims int
}

// NewHashProvider returns a hash embedder with dims buckets (default 384).
func NewHashProvider(dims int) *HashProvider {
	if dims <= 0 {
		dims = 384
	}
	return &HashProvider{dims: dims}
}

func (p *HashProvider) Name() string    { return ProviderHash }
func (p *HashProvider) Model() string   { return "fnv-bag-of-words" }
func (p *HashProvider) Dimensions() int { return p.dims }

func (p *HashProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embed(t)
	}
	return out, nil
}

func (p *HashProvider) embed(text string) []float32 {
	v := make([]float32, p.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		v[p.bucket("w:"+w)] += 2
		runes := []rune("^" + w + "$")
		for j := 0; j+3 <= len(runes); j++ {
			v[p.bucket("g:"+string(runes[j:j+3]))]++
		}
	}
	if n, err := vecmath.Normalize(v); err == nil {
		return n
	}
	// No words at all: fall back to a single bucket from the raw text.
	v[p.bucket("t:"+text)] = 1
	return v
}

func (p *HashProvider) bucket(s string) int {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int(h.Sum64() % uint64(p.dims))
}
