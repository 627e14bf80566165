package retrieval

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/matsen/paperbench/internal/embedding"
	"github.com/matsen/paperbench/internal/paper"
	"github.com/matsen/paperbench/internal/synth"
	"github.com/matsen/paperbench/internal/textnorm"
)

// bowProvider embeds text as hashed word counts.
type bowProvider struct {
	model string
}

func (p *bowProvider) EmbedBatch(_ context.Context, texts []string) ([]embedding.Embedding, error) {
	embs := make([]embedding.Embedding, len(texts))
	for i, text := range texts {
		v := make([]float32, 64)
		for _, w := range textnorm.Words(text) {
			h := fnv.New32a()
			h.Write([]byte(w))
			v[h.Sum32()%64]++
		}
		embs[i] = embedding.Embedding{Vector: v}
	}
	return embs, nil
}

func (p *bowProvider) ModelName() string { return p.model }
func (p *bowProvider) Dimensions() int { return 64 }
func (p *bowProvider) Pooling() embedding.Pooling { return embedding.PoolingLastToken }
func (p *bowProvider) MaxTokens() int { return embedding.DefaultMaxTokens }

// sqlCompleter answers each researcher query with a fixed SQL statement.
// Queries without an entry fail on every attempt.
type sqlCompleter struct {
	answers map[string]string
}

func (c *sqlCompleter) Model() string { return "sql-fake" }

func (c *sqlCompleter) Complete(_ context.Context, messages []synth.Message) (synth.Completion, error) {
	content := messages[len(messages)-1].Content
	const marker = "Researcher's query: "
	q := content[strings.Index(content, marker)+len(marker):]
	q = q[:strings.Index(q, "\n")]

	sql, ok := c.answers[q]
	if !ok {
		return synth.Completion{}, context.DeadlineExceeded
	}
	return synth.Completion{Text: "```sql\n" + sql + ";\n```", InputTokens: 300, OutputTokens: 40}, nil
}

func testDocs() []paper.Document {
	return []paper.Document{
		{
			PaperID:  "P1",
			Title:    "Deep Learning for NLP",
			Abstract: "Neural networks applied to natural language.",
			Year:     2020,
			Venue:    "ACL",
			Authors:  []paper.Author{{AuthorID: "a1", Name: "Ada Lovelace"}},
		},
		{
			PaperID:  "P2",
			Title:    "Bayesian Phylogenetics",
			Abstract: "Markov chain Monte Carlo over trees.",
			Year:     2019,
			Venue:    "Systematic Biology",
			Authors:  []paper.Author{{AuthorID: "a2", Name: "Alan Turing"}},
		},
		{
			PaperID:  "P3",
			Title:    "Graph Neural Networks",
			Abstract: "Message passing on graphs.",
			Year:     2021,
			Venue:    "ICML",
			Authors:  []paper.Author{{AuthorID: "a1", Name: "Ada Lovelace"}},
		},
	}
}
