package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptySequence is returned when a sequence has no valid tokens to pool.
var ErrEmptySequence = errors.New("sequence has no valid tokens")

// TokenBatch holds token-level model output for a padded batch.
type TokenBatch struct {
	// HiddenStates is indexed [sequence][position][dimension].
	HiddenStates [][][]float32 `json:"last_hidden_state"`

	// AttentionMask is indexed [sequence][position]; 1 marks a real token,
	// 0 marks padding.
	AttentionMask [][]int `json:"attention_mask"`
}

// TokenEncoder returns token-level hidden states for a batch of texts.
type TokenEncoder interface {
	EncodeTokens(ctx context.Context, texts []string) (TokenBatch, error)
	ModelName() string
	MaxTokens() int
}

// LastTokenPool reduces each sequence to the hidden state at its final
// non-padding position. If every sequence's last position is a real token the
// batch is left-padded and the last position is used; otherwise the position
// is sum(mask)-1.
func LastTokenPool(batch TokenBatch) ([][]float32, error) {
	n := len(batch.HiddenStates)
	if len(batch.AttentionMask) != n {
		return nil, fmt.Errorf("batch size mismatch: %d hidden state sequences, %d masks", n, len(batch.AttentionMask))
	}
	if n == 0 {
		return nil, nil
	}

	seqLen := len(batch.AttentionMask[0])
	for i := range batch.AttentionMask {
		if len(batch.AttentionMask[i]) != seqLen || len(batch.HiddenStates[i]) != seqLen {
			return nil, fmt.Errorf("sequence %d: inconsistent length (mask %d, states %d, want %d)",
				i, len(batch.AttentionMask[i]), len(batch.HiddenStates[i]), seqLen)
		}
	}
	if seqLen == 0 {
		return nil, ErrEmptySequence
	}

	leftPadded := true
	for _, mask := range batch.AttentionMask {
		if mask[seqLen-1] == 0 {
			leftPadded = false
			break
		}
	}

	pooled := make([][]float32, n)
	for i, mask := range batch.AttentionMask {
		pos := seqLen - 1
		if !leftPadded {
			valid := 0
			for _, m := range mask {
				valid += m
			}
			pos = valid - 1
		}
		if pos < 0 {
			return nil, fmt.Errorf("sequence %d: %w", i, ErrEmptySequence)
		}
		state := batch.HiddenStates[i][pos]
		pooled[i] = append([]float32(nil), state...)
	}
	return pooled, nil
}

// PooledProvider turns a TokenEncoder into a Provider by applying last-token
// pooling.
type PooledProvider struct {
	encoder    TokenEncoder
	dimensions int
}

// NewPooledProvider wraps encoder. dimensions <= 0 skips the dimension check.
func NewPooledProvider(encoder TokenEncoder, dimensions int) *PooledProvider {
	return &PooledProvider{encoder: encoder, dimensions: dimensions}
}

// EmbedBatch implements Provider.
func (p *PooledProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if err := validateInputs(texts); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	batch, err := p.encoder.EncodeTokens(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(batch.HiddenStates) != len(texts) {
		return nil, fmt.Errorf("encoder returned %d sequences for %d inputs", len(batch.HiddenStates), len(texts))
	}

	vectors, err := LastTokenPool(batch)
	if err != nil {
		return nil, fmt.Errorf("pooling: %w", err)
	}
	if err := checkDimensions(vectors, p.dimensions); err != nil {
		return nil, err
	}

	embs := make([]Embedding, len(vectors))
	for i, v := range vectors {
		embs[i] = Embedding{Vector: v}
	}
	return embs, nil
}

// ModelName implements Provider.
func (p *PooledProvider) ModelName() string { return p.encoder.ModelName() }

// Dimensions implements Provider.
func (p *PooledProvider) Dimensions() int { return p.dimensions }

// Pooling implements Provider.
func (p *PooledProvider) Pooling() Pooling { return PoolingLastToken }

// MaxTokens implements Provider.
func (p *PooledProvider) MaxTokens() int { return p.encoder.MaxTokens() }
