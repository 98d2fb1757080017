package embedding

import (
	"context"

	"github.com/philippgille/chromem-go"
)

// FuncProvider adapts a single-text embedding function, such as the ones
// chromem-go ships for Ollama, Mistral, Cohere, Jina, Mixedbread and LocalAI.
type FuncProvider struct {
	name  string
	model string
	dims  int
	fn    chromem.EmbeddingFunc
}

func NewFuncProvider(name, model string, dims int, fn chromem.EmbeddingFunc) *FuncProvider {
	return &FuncProvider{name: name, model: model, dims: dims, fn: fn}
}

func (p *FuncProvider) Name() string    { return p.name }
func (p *FuncProvider) Model() string   { return p.model }
func (p *FuncProvider) Dimensions() int { return p.dims }

func (p *FuncProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.fn(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
