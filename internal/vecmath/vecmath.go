// Package vecmath holds the pure vector functions used by the vector store and
// the retrieval engine. Nothing here keeps state.
package vecmath

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// DefaultPrecision is the number of decimal digits kept by Quantize when
// vectors are persisted.
const DefaultPrecision = 6

var (
	ErrDimensionMismatch = errors.New("vecmath: dimension mismatch")
	ErrEmptyVector       = errors.New("vecmath: empty vector")
	ErrZeroVector        = errors.New("vecmath: zero vector")
	ErrInvalidVector     = errors.New("vecmath: invalid vector")
)

// CosineSimilarity returns dot(a,b) / (|a|·|b|).
// A zero magnitude on either side yields 0 rather than NaN.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Dot returns the dot product of two equal-length vectors.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// Magnitude returns the L2 norm of v.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v.
func Normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, ErrEmptyVector
	}
	mag := Magnitude(v)
	if mag == 0 {
		return nil, ErrZeroVector
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out, nil
}

// Quantize rounds every component to precision decimal digits.
// A negative precision falls back to DefaultPrecision.
func Quantize(v []float32, precision int) []float32 {
	if precision < 0 {
		precision = DefaultPrecision
	}
	scale := math.Pow(10, float64(precision))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(math.Round(float64(x)*scale) / scale)
	}
	return out
}

// Validate reports whether v is non-empty and every component is finite.
func Validate(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Clone returns a copy of v (nil stays nil).
func Clone(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// RandomVector returns a deterministic pseudo-random vector in [-1, 1).
// Intended for tests and benchmarks.
func RandomVector(dim int, seed uint64) []float32 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]float32, dim)
	for i := range out {
		out[i] = float32(r.Float64()*2 - 1)
	}
	return out
}
