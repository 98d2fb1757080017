package vecmath

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero magnitude", []float32{0, 0}, []float32{1, 1}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if err != nil {
				t.Fatalf("CosineSimilarity: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_SelfIsOne(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		v := RandomVector(64, seed)
		got, err := CosineSimilarity(v, v)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if math.Abs(got-1.0) > 1e-6 {
			t.Errorf("seed %d: self similarity = %f, want 1", seed, got)
		}
	}
}

func TestCosineSimilarity_Errors(t *testing.T) {
	if _, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("mismatched lengths: err = %v, want ErrDimensionMismatch", err)
	}
	if _, err := CosineSimilarity(nil, []float32{1}); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("empty input: err = %v, want ErrEmptyVector", err)
	}
}

func TestNormalize(t *testing.T) {
	v, err := Normalize([]float32{3, 4})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if math.Abs(Magnitude(v)-1) > 1e-6 {
		t.Errorf("magnitude = %f, want 1", Magnitude(v))
	}
	if _, err := Normalize([]float32{0, 0}); !errors.Is(err, ErrZeroVector) {
		t.Errorf("zero vector: err = %v, want ErrZeroVector", err)
	}
}

func TestQuantize(t *testing.T) {
	got := Quantize([]float32{0.12345678, -0.9999999, 1}, DefaultPrecision)
	want := []float32{0.123457, -1, 1}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-7 {
			t.Errorf("Quantize[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	tests := []struct {
		name string
		v    []float32
		want bool
	}{
		{"ok", []float32{0.1, 0.2}, true},
		{"empty", nil, false},
		{"nan", []float32{0.1, nan}, false},
		{"inf", []float32{inf}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.v); got != tt.want {
				t.Errorf("Validate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRandomVector_Deterministic(t *testing.T) {
	a := RandomVector(8, 42)
	b := RandomVector(8, 42)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("RandomVector not deterministic at %d: %v != %v", i, a[i], b[i])
		}
	}
}
