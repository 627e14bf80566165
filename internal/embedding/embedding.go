// Package embedding provides vector embedding generation for text and owns
// the pooling and normalization contract every index relies on.
package embedding

import (
	"errors"
	"fmt"
	"math"
)

// ErrZeroVector is returned when a vector with zero norm is normalized.
var ErrZeroVector = errors.New("cannot normalize zero vector")

// Embedding represents a vector embedding of text.
type Embedding struct {
	Vector []float32 // The embedding vector (e.g., 1024 dimensions for Qwen3-Embedding-0.6B)
}

// Dimensions returns the dimensionality of the embedding.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}

// Pooling names the method used to reduce token states to one vector.
type Pooling string

const (
	// PoolingLastToken takes the hidden state of the final non-padding token.
	PoolingLastToken Pooling = "last_token"

	// PoolingProvider means the embedding service pooled the vector itself.
	PoolingProvider Pooling = "provider"
)

// Normalize returns v scaled to unit L2 norm. The input is not modified.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, ErrZeroVector
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

// CharsPerToken approximates how many characters one token covers. Providers
// that cannot truncate server-side use it to bound input length.
const CharsPerToken = 4

// DefaultMaxTokens is the default truncation boundary (the context length of
// Qwen3-Embedding).
const DefaultMaxTokens = 8192

// TruncateText cuts text to roughly maxTokens tokens (maxTokens*CharsPerToken
// runes). maxTokens <= 0 disables truncation.
func TruncateText(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	limit := maxTokens * CharsPerToken
	if len(text) <= limit {
		return text
	}

	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

// checkDimensions verifies every vector has the expected length. want <= 0
// accepts any length but still requires all vectors to agree.
func checkDimensions(vectors [][]float32, want int) error {
	for i, v := range vectors {
		if want <= 0 {
			want = len(v)
		}
		if len(v) != want {
			return fmt.Errorf("unexpected embedding dimensions for input %d: got %d, want %d", i, len(v), want)
		}
	}
	return nil
}
