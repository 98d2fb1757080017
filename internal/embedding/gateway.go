package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/gomemory/internal/retry"
	"github.com/nextlevelbuilder/gomemory/internal/vecmath"
)

// Options tunes a Gateway. Zero values select the defaults.
type Options struct {
	Retry RetryConfig
	// RequestsPerMinute limits provider calls; 0 disables limiting.
	RequestsPerMinute int
	// CacheSize is the number of embeddings kept in memory; 0 disables caching.
	CacheSize int64
	// MaxTokens truncates input before embedding; 0 disables truncation.
	MaxTokens int
	Logger    *slog.Logger
}

// Gateway wraps a Provider with retry, validation, rate limiting and caching.
// A Gateway with a nil provider reports IsConfigured() == false.
type Gateway struct {
	provider  Provider
	retry     RetryConfig
	limiter   *rate.Limiter
	cache     *Cache
	truncator *Truncator
	sleep     retry.SleepFunc
	logger    *slog.Logger
}

// NewGateway creates a gateway around p (which may be nil).
func NewGateway(p Provider, opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retryCfg := opts.Retry
	if retryCfg == (RetryConfig{}) {
		retryCfg = DefaultRetryConfig()
	}

	g := &Gateway{
		provider: p,
		retry:    retryCfg,
		sleep:    retry.Sleep,
		logger:   logger,
	}
	if opts.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1)
	}
	if opts.CacheSize > 0 {
		cache, err := NewCache(opts.CacheSize)
		if err != nil {
			logger.Warn("embedding cache disabled", "error", err)
		} else {
			g.cache = cache
		}
	}
	if opts.MaxTokens > 0 && p != nil {
		g.truncator = NewTruncator(p.Model(), opts.MaxTokens)
	}
	return g
}

// IsConfigured reports whether a provider is available.
func (g *Gateway) IsConfigured() bool { return g != nil && g.provider != nil }

// Provider returns the underlying provider (nil when unconfigured).
func (g *Gateway) Provider() Provider {
	if g == nil {
		return nil
	}
	return g.provider
}

// GenerateEmbedding embeds a single text.
func (g *Gateway) GenerateEmbedding(ctx context.Context, text string) (Result, error) {
	results, err := g.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// GenerateEmbeddings embeds texts in one provider call, serving repeated texts
// from the cache. Results are in input order.
func (g *Gateway) GenerateEmbeddings(ctx context.Context, texts []string) ([]Result, error) {
	if !g.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w (index %d)", ErrEmptyText, i)
		}
	}

	results := make([]Result, len(texts))
	var pending []int
	for i, t := range texts {
		if g.cache != nil {
			if vec, ok := g.cache.Get(g.cacheKey(t)); ok {
				results[i] = g.result(vec)
				continue
			}
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return results, nil
	}

	inputs := make([]string, len(pending))
	for j, i := range pending {
		inputs[j] = texts[i]
		if g.truncator != nil {
			inputs[j] = g.truncator.Truncate(inputs[j])
		}
	}

	vectors, attempts, err := retry.Do(ctx, g.retry, g.sleep, func(ctx context.Context) ([][]float32, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		vecs, err := g.provider.Embed(ctx, inputs)
		if err != nil {
			return nil, err
		}
		if err := g.validate(vecs, len(inputs)); err != nil {
			return nil, retry.Permanent(err)
		}
		return vecs, nil
	})
	if err != nil {
		g.logger.Warn("embedding request failed",
			"provider", g.provider.Name(), "model", g.provider.Model(),
			"attempts", attempts, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrProvider, g.provider.Name(), err)
	}
	if attempts > 1 {
		g.logger.Info("embedding request succeeded after retry", "provider", g.provider.Name(), "attempts", attempts)
	}

	for j, i := range pending {
		results[i] = g.result(vectors[j])
		if g.cache != nil {
			g.cache.Set(g.cacheKey(texts[i]), vectors[j])
		}
	}
	return results, nil
}

// TryEmbed is the write-path variant: any failure becomes WithoutVector.
func (g *Gateway) TryEmbed(ctx context.Context, text string) Outcome {
	if !g.IsConfigured() {
		return WithoutVector(ErrNotConfigured)
	}
	r, err := g.GenerateEmbedding(ctx, text)
	if err != nil {
		return WithoutVector(err)
	}
	return WithVector(r)
}

// Close releases the cache.
func (g *Gateway) Close() {
	if g.cache != nil {
		g.cache.Close()
	}
}

func (g *Gateway) validate(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("%w: got %d embeddings for %d inputs", ErrInvalidResponse, len(vecs), want)
	}
	dims := g.provider.Dimensions()
	for i, v := range vecs {
		if !vecmath.Validate(v) {
			return fmt.Errorf("%w: embedding %d is empty or not finite", ErrInvalidResponse, i)
		}
		if dims > 0 && len(v) != dims {
			return fmt.Errorf("%w: embedding %d has %d dimensions, want %d", ErrInvalidResponse, i, len(v), dims)
		}
	}
	return nil
}

func (g *Gateway) result(vec []float32) Result {
	return Result{
		Embedding:  vecmath.Clone(vec),
		Dimensions: len(vec),
		Model:      g.provider.Model(),
		Provider:   g.provider.Name(),
	}
}

func (g *Gateway) cacheKey(text string) string {
	return ContentHash(g.provider.Name() + "\x00" + g.provider.Model() + "\x00" + text)
}
