package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/paperbench/internal/paper"
	"github.com/matsen/paperbench/internal/storage"
	"github.com/matsen/paperbench/internal/synth"
)

// RelationalRetriever answers queries by synthesizing SQL and running it
// against the relational paper store. It owns the database handle.
type RelationalRetriever struct {
	db     *storage.DB
	synth  *synth.Synthesizer
	opts   options
	loaded bool
}

// NewRelational creates a relational retriever. s may be nil when the
// retriever is only used to build the store.
func NewRelational(db *storage.DB, s *synth.Synthesizer, opts ...Option) *RelationalRetriever {
	return &RelationalRetriever{db: db, synth: s, opts: applyOptions(opts)}
}

// Build implements Retriever with a full drop-and-recreate of the store.
func (r *RelationalRetriever) Build(ctx context.Context, docs []paper.Document) (*BuildSummary, error) {
	start := time.Now()
	rs, err := r.db.Rebuild(ctx, docs)
	if err != nil {
		return nil, err
	}
	st, err := r.db.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing store statistics: %w", err)
	}
	r.loaded = true

	summary := &BuildSummary{
		Backend:        Relational,
		PapersIndexed:  rs.PapersInserted,
		PapersSkipped:  rs.PapersSkipped,
		AuthorsIndexed: rs.AuthorsInserted,
		AuthorsSkipped: rs.AuthorsSkipped,
		Duration:       time.Since(start),
		Store:          st,
	}
	r.opts.logger.Info("built relational store",
		zap.String("dialect", r.db.Dialect().DisplayName()),
		zap.Int("papers", st.Papers),
		zap.Int("authors", st.Authors),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// Load implements Retriever by checking that the Papers table exists.
func (r *RelationalRetriever) Load(ctx context.Context) error {
	n, err := r.db.Count(ctx, "Papers")
	if err != nil {
		return fmt.Errorf("%w: relational store has no Papers table (run index relational first): %v", ErrNotLoaded, err)
	}
	r.loaded = true
	r.opts.logger.Info("opened relational store", zap.Int("papers", n))
	return nil
}

// Retrieve implements Retriever. Queries are synthesized concurrently, then
// each SQL statement is executed in turn. k is not used; the prompt caps the
// result count.
func (r *RelationalRetriever) Retrieve(ctx context.Context, queries []paper.QueryRecord, _ int) ([]paper.ResultRecord, error) {
	if !r.loaded {
		return nil, ErrNotLoaded
	}
	if r.synth == nil {
		return nil, fmt.Errorf("%w: relational retrieval needs a query synthesizer", ErrNotConfigured)
	}

	texts := make([]string, len(queries))
	for i, q := range queries {
		texts[i] = q.Query
	}
	synthesized := r.synth.SynthesizeBatch(ctx, texts)

	results := make([]paper.ResultRecord, len(queries))
	for i, q := range queries {
		res := synthesized[i]
		rec := paper.ResultRecord{
			Query:        q.Query,
			Expected:     q.PaperID,
			Retrieved:    []string{},
			InputTokens:  res.InputTokens,
			OutputTokens: res.OutputTokens,
		}
		if res.Err != nil {
			rec.Error = fmt.Sprintf("failed to generate SQL query: %v", res.Err)
			r.opts.metrics.ObserveRetrieval(string(Relational), 0, true)
			results[i] = rec
			continue
		}

		sql := res.Query
		rec.SQL = &sql

		start := time.Now()
		ids, err := r.db.QueryPaperIDs(ctx, sql)
		r.opts.metrics.ObserveRetrieval(string(Relational), time.Since(start), err != nil)
		if err != nil {
			rec.Error = err.Error()
			r.opts.logger.Warn("query execution failed", zap.Int("index", i), zap.Error(err))
		} else {
			rec.Retrieved = ids
			rec.Count = len(ids)
		}
		results[i] = rec
	}
	return results, nil
}

// Close implements Retriever.
func (r *RelationalRetriever) Close() error {
	r.loaded = false
	return r.db.Close()
}
