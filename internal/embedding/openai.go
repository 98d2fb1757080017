package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nextlevelbuilder/gomemory/internal/retry"
)

// OpenAIProvider calls the OpenAI embeddings API, or any server that speaks it.
type OpenAIProvider struct {
	client *openai.Client
	name   string
	model  string
	dims   int
}

// NewOpenAIProvider builds a client for apiKey. baseURL overrides the API
// endpoint for OpenAI-compatible servers.
func NewOpenAIProvider(name, apiKey, baseURL, model string, dims int, timeout time.Duration) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		name:   name,
		model:  model,
		dims:   dims,
	}
}

func (p *OpenAIProvider) Name() string    { return p.name }
func (p *OpenAIProvider) Model() string   { return p.model }
func (p *OpenAIProvider) Dimensions() int { return p.dims }

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	}
	// Only the v3 models accept a reduced dimension count.
	if p.dims > 0 && strings.HasPrefix(p.model, "text-embedding-3") {
		req.Dimensions = p.dims
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && isClientError(apiErr.HTTPStatusCode) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidResponse, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// isClientError reports 4xx statuses other than 408 and 429, which are not
// worth retrying.
func isClientError(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
}
