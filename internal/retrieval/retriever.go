// Package retrieval puts the dense and relational backends behind one
// interface and turns query files into per-query result records.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/paperbench/internal/embedding"
	"github.com/matsen/paperbench/internal/metrics"
	"github.com/matsen/paperbench/internal/paper"
	"github.com/matsen/paperbench/internal/semantic"
	"github.com/matsen/paperbench/internal/storage"
	"github.com/matsen/paperbench/internal/synth"
	"github.com/matsen/paperbench/internal/unit"
)

// Errors returned by retrievers.
var (
	ErrInvalidBackend = errors.New("invalid backend")
	ErrNotLoaded      = errors.New("retriever not loaded")
	ErrNotConfigured  = errors.New("retriever not configured")
)

// Backend selects a retriever implementation.
type Backend string

// Supported backends.
const (
	Dense      Backend = "dense"
	Relational Backend = "relational"
)

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case Dense, Relational:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("%w: %q (must be dense or relational)", ErrInvalidBackend, s)
	}
}

// Retriever is the capability shared by all backends: build a store from the
// corpus once, load it, then answer queries read-only.
type Retriever interface {
	// Build creates the backing store from docs, replacing any previous one.
	Build(ctx context.Context, docs []paper.Document) (*BuildSummary, error)

	// Load opens a previously built store. Missing or mismatched artifacts
	// are an error.
	Load(ctx context.Context) error

	// Retrieve answers every query. It returns exactly one record per query
	// in input order; per-query failures are recorded in the record's Error
	// field. The returned error is reserved for run-level failures.
	Retrieve(ctx context.Context, queries []paper.QueryRecord, k int) ([]paper.ResultRecord, error)

	// Close releases the retriever's resources.
	Close() error
}

// BuildSummary reports what a Build produced.
type BuildSummary struct {
	Backend        Backend           `json:"backend"`
	PapersIndexed  int               `json:"papers_indexed"`
	PapersSkipped  int               `json:"papers_skipped"`
	UnitsIndexed   int               `json:"units_indexed,omitempty"`
	UnitTypeCounts map[unit.Type]int `json:"unit_type_counts,omitempty"`
	AuthorsIndexed int               `json:"authors_indexed,omitempty"`
	AuthorsSkipped int               `json:"authors_skipped,omitempty"`
	IndexSizeBytes int64             `json:"index_size_bytes,omitempty"`
	Duration       time.Duration     `json:"duration"`
	Store          *storage.Stats    `json:"store,omitempty"`
}

// Config holds the collaborators for New. Dense needs IndexDir and Provider;
// Relational needs DB, and Synthesizer for Retrieve.
type Config struct {
	Backend Backend

	IndexDir  string
	Provider  embedding.Provider
	BatchSize int
	UnitTypes []unit.Type
	Progress  semantic.ProgressReporter

	DB          *storage.DB
	Synthesizer *synth.Synthesizer

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// New returns the retriever for cfg.Backend.
func New(cfg Config) (Retriever, error) {
	switch cfg.Backend {
	case Dense:
		if cfg.IndexDir == "" || cfg.Provider == nil {
			return nil, fmt.Errorf("%w: dense backend needs an index directory and an embedding provider", ErrNotConfigured)
		}
		return NewDense(cfg.IndexDir, cfg.Provider,
			WithUnitTypes(cfg.UnitTypes),
			WithBatchSize(cfg.BatchSize),
			WithProgress(cfg.Progress),
			WithLogger(cfg.Logger),
			WithMetrics(cfg.Metrics)), nil
	case Relational:
		if cfg.DB == nil {
			return nil, fmt.Errorf("%w: relational backend needs a database", ErrNotConfigured)
		}
		return NewRelational(cfg.DB, cfg.Synthesizer,
			WithLogger(cfg.Logger),
			WithMetrics(cfg.Metrics)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidBackend, cfg.Backend)
	}
}

// options shared by both backends.
type options struct {
	types     []unit.Type
	batchSize int
	progress  semantic.ProgressReporter
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures a retriever. Options a backend does not use are ignored.
type Option func(*options)

// WithUnitTypes sets the unit types a dense index is built from.
func WithUnitTypes(types []unit.Type) Option {
	return func(o *options) {
		if len(types) > 0 {
			o.types = types
		}
	}
}

// WithBatchSize sets the dense embedding batch size.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithProgress reports dense build progress.
func WithProgress(p semantic.ProgressReporter) Option {
	return func(o *options) {
		o.progress = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records retrieval metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func applyOptions(opts []Option) options {
	o := options{
		types:     unit.AllTypes,
		batchSize: semantic.DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Summary aggregates a result file.
type Summary struct {
	Queries      int     `json:"queries"`
	Failed       int     `json:"failed"`
	AvgRetrieved float64 `json:"avg_retrieved"`
	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
}

// Summarize counts failures, the mean number of retrieved papers per query
// and the total token usage.
func Summarize(results []paper.ResultRecord) Summary {
	s := Summary{Queries: len(results)}
	retrieved := 0
	for _, r := range results {
		if r.Error != "" {
			s.Failed++
		}
		retrieved += len(r.Retrieved)
		s.InputTokens += r.InputTokens
		s.OutputTokens += r.OutputTokens
	}
	if s.Queries > 0 {
		s.AvgRetrieved = float64(retrieved) / float64(s.Queries)
	}
	return s
}
