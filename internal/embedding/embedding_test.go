package embedding

import (
	"errors"
	"math"
	"testing"
)

func TestEmbedding_Dimensions(t *testing.T) {
	tests := []struct {
		name     string
		vector   []float32
		expected int
	}{
		{
			name:     "1024 dimensions",
			vector:   make([]float32, 1024),
			expected: 1024,
		},
		{
			name:     "empty vector",
			vector:   []float32{},
			expected: 0,
		},
		{
			name:     "small vector",
			vector:   []float32{1.0, 2.0, 3.0},
			expected: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := Embedding{Vector: tt.vector}
			if got := emb.Dimensions(); got != tt.expected {
				t.Errorf("Dimensions() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	in := []float32{3, 4}
	got, err := Normalize(in)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if math.Abs(float64(got[0])-0.6) > 1e-6 || math.Abs(float64(got[1])-0.8) > 1e-6 {
		t.Errorf("Normalize(%v) = %v, want [0.6 0.8]", in, got)
	}
	if in[0] != 3 {
		t.Error("Normalize modified its input")
	}

	t.Run("unit norm", func(t *testing.T) {
		v, _ := Normalize([]float32{1, -2, 3, -4, 5})
		if n := Dot(v, v); math.Abs(float64(n)-1) > 1e-5 {
			t.Errorf("squared norm = %v, want 1", n)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		once, _ := Normalize([]float32{0.2, 0.9, -0.1})
		twice, _ := Normalize(once)
		for i := range once {
			if math.Abs(float64(once[i]-twice[i])) > 1e-6 {
				t.Errorf("component %d changed: %v -> %v", i, once[i], twice[i])
			}
		}
	})

	t.Run("zero vector", func(t *testing.T) {
		if _, err := Normalize([]float32{0, 0}); !errors.Is(err, ErrZeroVector) {
			t.Errorf("expected ErrZeroVector, got %v", err)
		}
	})
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxTokens int
		want      string
	}{
		{"short text untouched", "hello", 2, "hello"},
		{"cut at boundary", "abcdefghijkl", 2, "abcdefgh"},
		{"disabled", "abcdefghijkl", 0, "abcdefghijkl"},
		{"multibyte runes", "ééééééééé", 2, "éééééééé"},
		{"exact fit", "abcd", 1, "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateText(tt.text, tt.maxTokens); got != tt.want {
				t.Errorf("TruncateText(%q, %d) = %q, want %q", tt.text, tt.maxTokens, got, tt.want)
			}
		})
	}
}
