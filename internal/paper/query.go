package paper

import (
	"fmt"
	"math/rand"
)

// QueryRecord is one benchmark query with its single relevant paper.
type QueryRecord struct {
	Query     string `json:"query"`
	PaperID   string `json:"paperId"`
	Relevance int    `json:"relevance,omitempty"` // always 1: binary relevance
}

// ResultRecord is the outcome of retrieving one query. Retrieved is ordered
// best first. Records are written once and never mutated.
type ResultRecord struct {
	Query     string   `json:"query"`
	Expected  string   `json:"expected"`
	Retrieved []string `json:"retrieved"`

	// Dense backend: unit id -> unit text, for manual inspection.
	Units map[string]string `json:"units,omitempty"`

	// Relational backend: the synthesized query and its cost.
	SQL          *string `json:"sql,omitempty"`
	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	Count        int     `json:"count,omitempty"`

	Error string `json:"error,omitempty"`
}

// Split deterministically shuffles queries with the given seed and splits
// them into a head holding round(ratio*len) records and a tail with the rest.
// The input slice is not modified.
func Split(queries []QueryRecord, ratio float64, seed int64) (head, tail []QueryRecord, err error) {
	if ratio < 0 || ratio > 1 {
		return nil, nil, fmt.Errorf("split ratio must be in [0, 1], got %v", ratio)
	}

	shuffled := make([]QueryRecord, len(queries))
	copy(shuffled, queries)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cut := int(ratio*float64(len(shuffled)) + 0.5)
	if cut > len(shuffled) {
		cut = len(shuffled)
	}
	return shuffled[:cut], shuffled[cut:], nil
}
