package embedding

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// approxRunesPerToken is used when no tokenizer can be loaded.
const approxRunesPerToken = 4

// Truncator cuts input down to a provider's token limit.
type Truncator struct {
	enc       *tiktoken.Tiktoken
	maxTokens int
}

// NewTruncator picks the tokenizer for model, falling back to cl100k_base and
// then to a rune-count estimate when the encoding cannot be loaded.
func NewTruncator(model string, maxTokens int) *Truncator {
	t := &Truncator{maxTokens: maxTokens}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		slog.Debug("tiktoken unavailable, using rune estimate", "model", model, "error", err)
		return t
	}
	t.enc = enc
	return t
}

// Truncate returns text limited to maxTokens tokens.
func (t *Truncator) Truncate(text string) string {
	if t == nil || t.maxTokens <= 0 {
		return text
	}
	if t.enc == nil {
		runes := []rune(text)
		limit := t.maxTokens * approxRunesPerToken
		if len(runes) <= limit {
			return text
		}
		return string(runes[:limit])
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= t.maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:t.maxTokens])
}
