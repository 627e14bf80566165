package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when asked to embed an empty text.
var ErrEmptyInput = errors.New("cannot embed empty text")

// Provider generates embeddings from text.
type Provider interface {
	// EmbedBatch generates one embedding per text, in input order. Texts
	// longer than the provider's token limit are truncated, not rejected.
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Dimensions returns the expected vector dimensions (0 if unknown).
	Dimensions() int

	// Pooling returns the pooling method applied to produce vectors.
	Pooling() Pooling

	// MaxTokens returns the truncation boundary in tokens.
	MaxTokens() int
}

// Embed generates a single embedding through a Provider.
func Embed(ctx context.Context, p Provider, text string) (Embedding, error) {
	if text == "" {
		return Embedding{}, ErrEmptyInput
	}
	embs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	if len(embs) != 1 {
		return Embedding{}, fmt.Errorf("expected 1 embedding, got %d", len(embs))
	}
	return embs[0], nil
}

// validateInputs rejects batches containing empty texts.
func validateInputs(texts []string) error {
	for i, t := range texts {
		if t == "" {
			return fmt.Errorf("input %d: %w", i, ErrEmptyInput)
		}
	}
	return nil
}
