package embedding

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// states builds a hidden state sequence where position p holds [p, p*10].
func states(n int) [][]float32 {
	seq := make([][]float32, n)
	for p := range seq {
		seq[p] = []float32{float32(p), float32(p * 10)}
	}
	return seq
}

func TestLastTokenPool(t *testing.T) {
	tests := []struct {
		name string
		mask [][]int
		want [][]float32
	}{
		{
			name: "left padded batch uses last position",
			mask: [][]int{{0, 1, 1, 1}, {1, 1, 1, 1}},
			want: [][]float32{{3, 30}, {3, 30}},
		},
		{
			name: "right padded batch uses sum(mask)-1",
			mask: [][]int{{1, 1, 0, 0}, {1, 1, 1, 1}},
			want: [][]float32{{1, 10}, {3, 30}},
		},
		{
			name: "single unpadded sequence",
			mask: [][]int{{1, 1, 1}},
			want: [][]float32{{2, 20}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := TokenBatch{AttentionMask: tt.mask}
			for _, m := range tt.mask {
				batch.HiddenStates = append(batch.HiddenStates, states(len(m)))
			}

			got, err := LastTokenPool(batch)
			if err != nil {
				t.Fatalf("LastTokenPool failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("LastTokenPool = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLastTokenPool_Errors(t *testing.T) {
	t.Run("all padding", func(t *testing.T) {
		batch := TokenBatch{
			HiddenStates:  [][][]float32{states(2), states(2)},
			AttentionMask: [][]int{{0, 0}, {1, 0}},
		}
		if _, err := LastTokenPool(batch); !errors.Is(err, ErrEmptySequence) {
			t.Errorf("expected ErrEmptySequence, got %v", err)
		}
	})

	t.Run("ragged batch", func(t *testing.T) {
		batch := TokenBatch{
			HiddenStates:  [][][]float32{states(2), states(3)},
			AttentionMask: [][]int{{1, 1}, {1, 1, 1}},
		}
		if _, err := LastTokenPool(batch); err == nil {
			t.Error("expected error for ragged batch")
		}
	})

	t.Run("mask count mismatch", func(t *testing.T) {
		batch := TokenBatch{
			HiddenStates:  [][][]float32{states(2)},
			AttentionMask: [][]int{{1, 1}, {1, 1}},
		}
		if _, err := LastTokenPool(batch); err == nil {
			t.Error("expected error for mismatched batch size")
		}
	})
}

type fakeTokenEncoder struct {
	batch TokenBatch
	err   error
}

func (f fakeTokenEncoder) EncodeTokens(ctx context.Context, texts []string) (TokenBatch, error) {
	return f.batch, f.err
}
func (f fakeTokenEncoder) ModelName() string { return "fake-encoder" }
func (f fakeTokenEncoder) MaxTokens() int    { return 16 }

func TestPooledProvider(t *testing.T) {
	enc := fakeTokenEncoder{batch: TokenBatch{
		HiddenStates:  [][][]float32{states(3)},
		AttentionMask: [][]int{{0, 1, 1}},
	}}
	p := NewPooledProvider(enc, 2)

	embs, err := p.EmbedBatch(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if !reflect.DeepEqual(embs[0].Vector, []float32{2, 20}) {
		t.Errorf("vector = %v, want [2 20]", embs[0].Vector)
	}
	if p.Pooling() != PoolingLastToken {
		t.Errorf("Pooling() = %s, want %s", p.Pooling(), PoolingLastToken)
	}
	if p.ModelName() != "fake-encoder" || p.MaxTokens() != 16 {
		t.Errorf("unexpected identity %s/%d", p.ModelName(), p.MaxTokens())
	}

	t.Run("dimension mismatch", func(t *testing.T) {
		if _, err := NewPooledProvider(enc, 3).EmbedBatch(context.Background(), []string{"text"}); err == nil {
			t.Error("expected dimension error")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := Embed(context.Background(), p, ""); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("expected ErrEmptyInput, got %v", err)
		}
	})

	t.Run("sequence count mismatch", func(t *testing.T) {
		if _, err := p.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
			t.Error("expected error when encoder returns fewer sequences")
		}
	})
}
