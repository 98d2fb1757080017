package embedding

import (
	"fmt"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
)

// Supported provider names.
const (
	ProviderOpenAI       = "openai"
	ProviderOpenAICompat = "openai-compatible"
	ProviderOllama       = "ollama"
	ProviderMistral      = "mistral"
	ProviderCohere       = "cohere"
	ProviderJina         = "jina"
	ProviderMixedbread   = "mixedbread"
	ProviderLocalAI      = "localai"
	ProviderHash         = "hash"
)

// Providers lists every accepted provider name.
var Providers = []string{
	ProviderOpenAI, ProviderOpenAICompat, ProviderOllama, ProviderMistral,
	ProviderCohere, ProviderJina, ProviderMixedbread, ProviderLocalAI, ProviderHash,
}

type providerDefaults struct {
	model string
	dims  int
}

var defaults = map[string]providerDefaults{
	ProviderOpenAI:     {"text-embedding-3-small", 1536},
	ProviderOllama:     {"nomic-embed-text", 768},
	ProviderMistral:    {"mistral-embed", 1024},
	ProviderCohere:     {string(chromem.EmbeddingModelCohereEnglishV3), 1024},
	ProviderJina:       {string(chromem.EmbeddingModelJina2BaseEN), 768},
	ProviderMixedbread: {string(chromem.EmbeddingModelMixedbreadLargeV1), 1024},
	ProviderLocalAI:    {"bert-cpp-minilm-v6", 384},
	ProviderHash:       {"fnv-bag-of-words", 384},
}

// Config describes the provider to build.
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string { return defaults[provider].model }

// NewProvider builds the configured provider. An empty name (or "none")
// returns a nil provider and no error: semantic search is simply disabled.
func NewProvider(cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" || name == "none" {
		return nil, nil
	}

	model := cfg.Model
	dims := cfg.Dimensions
	if d, ok := defaults[name]; ok {
		if model == "" {
			model = d.model
		}
		if dims == 0 && model == d.model {
			dims = d.dims
		}
	}

	needKey := func() error {
		if cfg.APIKey == "" {
			return fmt.Errorf("embedding provider %q requires an apiKey", name)
		}
		return nil
	}

	switch name {
	case ProviderOpenAI:
		if err := needKey(); err != nil {
			return nil, err
		}
		return NewOpenAIProvider(name, cfg.APIKey, cfg.BaseURL, model, dims, cfg.Timeout), nil
	case ProviderOpenAICompat:
		if cfg.BaseURL == "" || model == "" {
			return nil, fmt.Errorf("embedding provider %q requires baseURL and model", name)
		}
		return NewOpenAIProvider(name, cfg.APIKey, cfg.BaseURL, model, dims, cfg.Timeout), nil
	case ProviderOllama:
		return NewFuncProvider(name, model, dims, chromem.NewEmbeddingFuncOllama(model, cfg.BaseURL)), nil
	case ProviderMistral:
		if err := needKey(); err != nil {
			return nil, err
		}
		return NewFuncProvider(name, model, dims, chromem.NewEmbeddingFuncMistral(cfg.APIKey)), nil
	case ProviderCohere:
		if err := needKey(); err != nil {
			return nil, err
		}
		return NewFuncProvider(name, model, dims,
			chromem.NewEmbeddingFuncCohere(cfg.APIKey, chromem.EmbeddingModelCohere(model))), nil
	case ProviderJina:
		if err := needKey(); err != nil {
			return nil, err
		}
		return NewFuncProvider(name, model, dims,
			chromem.NewEmbeddingFuncJina(cfg.APIKey, chromem.EmbeddingModelJina(model))), nil
	case ProviderMixedbread:
		if err := needKey(); err != nil {
			return nil, err
		}
		return NewFuncProvider(name, model, dims,
			chromem.NewEmbeddingFuncMixedbread(cfg.APIKey, chromem.EmbeddingModelMixedbread(model))), nil
	case ProviderLocalAI:
		if cfg.BaseURL != "" {
			return NewOpenAIProvider(name, cfg.APIKey, cfg.BaseURL, model, dims, cfg.Timeout), nil
		}
		return NewFuncProvider(name, model, dims, chromem.NewEmbeddingFuncLocalAI(model)), nil
	case ProviderHash:
		return NewHashProvider(dims), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q (supported: %s)", cfg.Provider, strings.Join(Providers, ", "))
}
