// Package embedding turns text into vectors through pluggable providers and
// owns the retry, validation, caching and rate limiting around those calls.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProvider marks a provider failure that survived every retry.
	ErrProvider = errors.New("embedding: provider error")
	// ErrNotConfigured is returned when no provider is set up.
	ErrNotConfigured = errors.New("embedding: provider not configured")
	// ErrEmptyText is returned for blank input; it is never retried.
	ErrEmptyText = errors.New("embedding: text must not be empty")
	// ErrInvalidResponse marks a response that failed validation.
	ErrInvalidResponse = errors.New("embedding: invalid provider response")
)

// Provider generates vector embeddings for text.
type Provider interface {
	Name() string
	Model() string
	// Dimensions is the expected vector length, or 0 when unknown.
	Dimensions() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is one generated embedding.
type Result struct {
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
}

// Outcome is the result of an embedding attempt made on the write path: either
// a vector was produced or the write continues without one.
type Outcome struct {
	result *Result
	reason error
}

// WithVector wraps a successful result.
func WithVector(r Result) Outcome { return Outcome{result: &r} }

// WithoutVector records why no vector is available.
func WithoutVector(reason error) Outcome { return Outcome{reason: reason} }

// Vector returns the result when one was produced.
func (o Outcome) Vector() (Result, bool) {
	if o.result == nil {
		return Result{}, false
	}
	return *o.result, true
}

// Reason is nil when a vector was produced.
func (o Outcome) Reason() error { return o.reason }

func (o Outcome) String() string {
	if o.result != nil {
		return fmt.Sprintf("with vector (%d dims)", o.result.Dimensions)
	}
	return fmt.Sprintf("without vector: %v", o.reason)
}
