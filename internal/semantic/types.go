// Package semantic builds and queries the dense unit index: every retrieval
// unit is embedded, L2-normalized and stored in a flat inner-product index
// whose positions align 1:1 with a persisted unit-id sequence.
package semantic

import (
	"time"

	"github.com/matsen/paperbench/internal/embedding"
	"github.com/matsen/paperbench/internal/unit"
)

// Metadata is the JSON summary persisted next to the index. It records the
// model and pooling every vector was produced with.
type Metadata struct {
	// Version is the format version for compatibility checking.
	// Check against CurrentIndexVersion when loading.
	Version int `json:"version"`

	ModelName      string            `json:"model_name"`
	Pooling        embedding.Pooling `json:"pooling"`
	MaxTokens      int               `json:"max_tokens"` // truncation boundary used at build time
	RetrievalUnits []unit.Type       `json:"retrieval_units"`

	NPapers        int               `json:"n_papers"`
	NUnits         int               `json:"n_units"`
	EmbeddingDim   int               `json:"embedding_dim"`
	UnitTypeCounts map[unit.Type]int `json:"unit_type_counts"`

	CreatedAt       time.Time `json:"created_at"`
	BuildDurationMs int64     `json:"build_duration_ms"`
}

// PaperObject is the persisted view of an indexed document together with the
// units it owns.
type PaperObject struct {
	PaperID       string   `json:"paper_id"`
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	Authors       []string `json:"authors"`
	Year          int      `json:"year"`
	Venue         string   `json:"venue"`
	CitationCount int      `json:"citation_count"`
	FieldsOfStudy []string `json:"fields_of_study"`

	Units map[string]StoredUnit `json:"unit_ids_to_retrieval_units"`
}

// StoredUnit is a unit's text and metadata as kept in a PaperObject.
type StoredUnit struct {
	Text     string          `json:"text"`
	Metadata unit.Attributes `json:"metadata"`
}

// Hit is one unit returned by a nearest-neighbor search.
type Hit struct {
	UnitID  string  `json:"unit_id"`
	PaperID string  `json:"paper_id"`
	Score   float32 `json:"score"`
}

// Retrieval is the answer to a dense query. UnitIDs, UnitTexts and Scores are
// parallel and in similarity order; PaperIDs is the document-level list.
type Retrieval struct {
	UnitIDs   []string  `json:"unit_ids"`
	PaperIDs  []string  `json:"paper_ids"`
	UnitTexts []string  `json:"unit_texts"`
	Scores    []float32 `json:"scores"`
}

// BuildStats contains statistics from index building.
type BuildStats struct {
	PapersIndexed  int               `json:"papers_indexed"`
	PapersSkipped  int               `json:"papers_skipped"`
	UnitsIndexed   int               `json:"units_indexed"`
	UnitTypeCounts map[unit.Type]int `json:"unit_type_counts"`
	Duration       time.Duration     `json:"duration"`
	IndexSizeBytes int64             `json:"index_size_bytes"`
}
