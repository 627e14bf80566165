// Package eval scores ranked retrieval results against their expected paper
// with Hits@1, Hits@5 and mean reciprocal rank.
package eval

import (
	"errors"
	"fmt"

	"github.com/matsen/paperbench/internal/paper"
)

// ErrEmptyBatch is returned when there is nothing to score.
var ErrEmptyBatch = errors.New("no results to score")

// Metrics are the averaged scores of a result batch.
type Metrics struct {
	Hits1 float64 `json:"hits@1"`
	Hits5 float64 `json:"hits@5"`
	MRR   float64 `json:"mrr"`
	Total int     `json:"total_queries"`
}

// Rank returns the 1-based position of the first occurrence of expected in
// retrieved, or 0 when it is absent.
func Rank(expected string, retrieved []string) int {
	for i, id := range retrieved {
		if id == expected {
			return i + 1
		}
	}
	return 0
}

// Score averages hits@1, hits@5 and reciprocal rank over results. An empty
// batch is ErrEmptyBatch.
func Score(results []paper.ResultRecord) (Metrics, error) {
	if len(results) == 0 {
		return Metrics{}, ErrEmptyBatch
	}

	var hits1, hits5, rr float64
	for _, r := range results {
		rank := Rank(r.Expected, r.Retrieved)
		if rank == 0 {
			continue
		}
		if rank == 1 {
			hits1++
		}
		if rank <= 5 {
			hits5++
		}
		rr += 1 / float64(rank)
	}

	n := float64(len(results))
	return Metrics{
		Hits1: hits1 / n,
		Hits5: hits5 / n,
		MRR:   rr / n,
		Total: len(results),
	}, nil
}

// String formats the metrics for people.
func (m Metrics) String() string {
	return fmt.Sprintf("Hits@1: %.2f%%\nHits@5: %.2f%%\nMRR: %.4f\nTotal queries: %d",
		m.Hits1*100, m.Hits5*100, m.MRR, m.Total)
}
