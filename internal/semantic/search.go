package semantic

import (
	"fmt"
	"sort"

	"github.com/matsen/paperbench/internal/embedding"
)

// FlatIndex is an exhaustive inner-product index. Vectors are expected to be
// unit-normalized, so the inner product is the cosine similarity.
type FlatIndex struct {
	Dim     int
	Vectors [][]float32
}

// Neighbor is a search result addressed by index position.
type Neighbor struct {
	Position int
	Score    float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{Dim: dim}
}

// Add appends a vector; its position is the previous Len().
func (f *FlatIndex) Add(v []float32) error {
	if len(v) != f.Dim {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(v), f.Dim)
	}
	f.Vectors = append(f.Vectors, v)
	return nil
}

// Len returns the number of stored vectors.
func (f *FlatIndex) Len() int {
	return len(f.Vectors)
}

// Search returns the k positions with the highest inner product, best first.
// Equal scores are ordered by position so results are deterministic.
func (f *FlatIndex) Search(query []float32, k int) []Neighbor {
	if len(query) != f.Dim || k <= 0 {
		return nil
	}

	results := make([]Neighbor, len(f.Vectors))
	for i, v := range f.Vectors {
		results[i] = Neighbor{Position: i, Score: embedding.Dot(query, v)}
	}

	// Sort by similarity descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	// Apply limit
	if len(results) > k {
		results = results[:k]
	}

	return results
}

// DedupPapers collapses unit hits into a document-level list: a paper ID is
// emitted the first time one of its units appears, later units of the same
// paper are skipped. The result has no repeats and is never longer than hits.
func DedupPapers(hits []Hit) []string {
	seen := make(map[string]struct{}, len(hits))
	papers := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.PaperID]; ok {
			continue
		}
		seen[h.PaperID] = struct{}{}
		papers = append(papers, h.PaperID)
	}
	return papers
}
