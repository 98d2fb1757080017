// Package protocol defines the wire contract of the gomemory MCP tools:
// tool names and the error codes carried in tool results.
package protocol

import (
	"context"
	"errors"
	"net/http"

	"github.com/nextlevelbuilder/gomemory/internal/embedding"
	"github.com/nextlevelbuilder/gomemory/internal/memory"
	"github.com/nextlevelbuilder/gomemory/internal/store"
	"github.com/nextlevelbuilder/gomemory/internal/vecmath"
	"github.com/nextlevelbuilder/gomemory/internal/vectorstore"
)

// Error codes returned in the "code" field of failed tool results.
const (
	ErrValidation        = "VALIDATION_ERROR"
	ErrNotFound          = "NOT_FOUND"
	ErrDimensionMismatch = "DIMENSION_MISMATCH"
	ErrInvalidVector     = "INVALID_VECTOR"
	ErrProvider          = "PROVIDER_ERROR"
	ErrStorage           = "STORAGE_ERROR"
	ErrUnavailable       = "UNAVAILABLE"
	ErrResourceExhausted = "RESOURCE_EXHAUSTED"
	ErrTimeout           = "TIMEOUT"
	ErrInternal          = "INTERNAL"
)

// ErrRateLimited marks a call rejected by a rate limiter.
var ErrRateLimited = errors.New("rate limit exceeded")

// CodeOf maps an error to its wire code. Unknown errors are INTERNAL.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrValidation),
		errors.Is(err, embedding.ErrEmptyText),
		errors.Is(err, vectorstore.ErrEmptyContent):
		return ErrValidation
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, vectorstore.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, vecmath.ErrDimensionMismatch):
		return ErrDimensionMismatch
	case errors.Is(err, vecmath.ErrInvalidVector),
		errors.Is(err, vecmath.ErrEmptyVector),
		errors.Is(err, vecmath.ErrZeroVector):
		return ErrInvalidVector
	case errors.Is(err, embedding.ErrProvider),
		errors.Is(err, embedding.ErrInvalidResponse):
		return ErrProvider
	case errors.Is(err, store.ErrStorage):
		return ErrStorage
	case errors.Is(err, memory.ErrSemanticDisabled),
		errors.Is(err, embedding.ErrNotConfigured):
		return ErrUnavailable
	case errors.Is(err, ErrRateLimited):
		return ErrResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	}
	return ErrInternal
}

// HTTPStatus maps an error code to the status the HTTP surface answers with.
func HTTPStatus(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case ErrValidation, ErrDimensionMismatch, ErrInvalidVector:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrResourceExhausted:
		return http.StatusTooManyRequests
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	case ErrProvider:
		return http.StatusBadGateway
	case ErrTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
