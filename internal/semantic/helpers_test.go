package semantic

import (
	"context"
	"hash/fnv"

	"github.com/matsen/paperbench/internal/embedding"
	"github.com/matsen/paperbench/internal/paper"
	"github.com/matsen/paperbench/internal/textnorm"
)

// bowProvider is a deterministic bag-of-words embedder: each normalized word
// adds one to a hashed bucket.
type bowProvider struct {
	model   string
	pooling embedding.Pooling
	dims    int
	calls   int
}

func newBOWProvider() *bowProvider {
	return &bowProvider{model: "bow-test", pooling: embedding.PoolingLastToken, dims: 64}
}

func (p *bowProvider) EmbedBatch(_ context.Context, texts []string) ([]embedding.Embedding, error) {
	p.calls++
	embs := make([]embedding.Embedding, len(texts))
	for i, text := range texts {
		v := make([]float32, p.dims)
		for _, w := range textnorm.Words(text) {
			h := fnv.New32a()
			h.Write([]byte(w))
			v[h.Sum32()%uint32(p.dims)]++
		}
		embs[i] = embedding.Embedding{Vector: v}
	}
	return embs, nil
}

func (p *bowProvider) ModelName() string { return p.model }
func (p *bowProvider) Dimensions() int { return p.dims }
func (p *bowProvider) Pooling() embedding.Pooling { return p.pooling }
func (p *bowProvider) MaxTokens() int { return embedding.DefaultMaxTokens }

func testCorpus() []paper.Document {
	return []paper.Document{
		{
			PaperID:  "P1",
			Title:    "Deep Learning for NLP",
			Abstract: "We survey neural network methods for language tasks.",
			Paragraphs: []paper.Paragraph{
				{Text: "Transformers dominate machine translation benchmarks.", SectionTitle: "Intro"},
				{Text: "Recurrent networks were used before attention."},
			},
			Authors: []paper.Author{{AuthorID: "a1", Name: "Ada Lovelace"}},
			Venue:   "ACL",
			Year:    2020,
		},
		{
			PaperID:  "P2",
			Title:    "Protein Folding with Graph Networks",
			Abstract: "Graph neural networks predict protein structure.",
			Year:     2021,
		},
		{
			PaperID: "P3",
			Title:   "Bayesian Phylogenetics",
			Venue:   "Systematic Biology",
		},
	}
}
