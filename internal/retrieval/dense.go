package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/paperbench/internal/embedding"
	"github.com/matsen/paperbench/internal/paper"
	"github.com/matsen/paperbench/internal/semantic"
)

// DenseRetriever answers queries from a semantic unit index on disk.
type DenseRetriever struct {
	dir      string
	provider embedding.Provider
	opts     options
	index    *semantic.Index
}

// NewDense creates a dense retriever over the index in dir.
func NewDense(dir string, provider embedding.Provider, opts ...Option) *DenseRetriever {
	return &DenseRetriever{dir: dir, provider: provider, opts: applyOptions(opts)}
}

// Index returns the loaded index, or nil.
func (r *DenseRetriever) Index() *semantic.Index { return r.index }

// Build implements Retriever. The index is written to the retriever's
// directory and stays loaded.
func (r *DenseRetriever) Build(ctx context.Context, docs []paper.Document) (*BuildSummary, error) {
	builder := semantic.NewBuilder(r.provider,
		semantic.WithBatchSize(r.opts.batchSize),
		semantic.WithLogger(r.opts.logger))
	if r.opts.progress != nil {
		builder.SetProgressReporter(r.opts.progress)
	}

	idx, stats, err := builder.Build(ctx, docs, r.opts.types)
	if err != nil {
		return nil, err
	}
	if err := idx.Save(r.dir); err != nil {
		return nil, fmt.Errorf("saving index: %w", err)
	}
	size, err := semantic.IndexSize(r.dir)
	if err != nil {
		return nil, err
	}
	r.index = idx
	r.opts.metrics.AddEmbeddedUnits(r.provider.ModelName(), stats.UnitsIndexed)

	return &BuildSummary{
		Backend:        Dense,
		PapersIndexed:  stats.PapersIndexed,
		PapersSkipped:  stats.PapersSkipped,
		UnitsIndexed:   stats.UnitsIndexed,
		UnitTypeCounts: stats.UnitTypeCounts,
		IndexSizeBytes: size,
		Duration:       stats.Duration,
	}, nil
}

// Load implements Retriever. The provider must match the model and pooling
// the index was built with.
func (r *DenseRetriever) Load(_ context.Context) error {
	idx, err := semantic.Load(r.dir)
	if err != nil {
		return err
	}
	if err := idx.CheckProvider(r.provider); err != nil {
		return err
	}
	r.index = idx
	r.opts.logger.Info("loaded dense index",
		zap.String("dir", r.dir),
		zap.String("model", idx.Meta.ModelName),
		zap.Int("units", idx.Meta.NUnits),
		zap.Int("papers", idx.Meta.NPapers))
	return nil
}

// Retrieve implements Retriever. Each record's Retrieved list is the
// deduplicated paper list for the top-k units, and Units maps each of those
// unit IDs to its text.
func (r *DenseRetriever) Retrieve(ctx context.Context, queries []paper.QueryRecord, k int) ([]paper.ResultRecord, error) {
	if r.index == nil {
		return nil, ErrNotLoaded
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	results := make([]paper.ResultRecord, len(queries))
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		ret, err := r.index.Retrieve(ctx, r.provider, q.Query, k)
		r.opts.metrics.ObserveRetrieval(string(Dense), time.Since(start), err != nil)

		rec := paper.ResultRecord{Query: q.Query, Expected: q.PaperID, Retrieved: []string{}}
		if err != nil {
			// A model mismatch affects every query.
			if errors.Is(err, semantic.ErrModelMismatch) || ctx.Err() != nil {
				return nil, err
			}
			rec.Error = err.Error()
			r.opts.logger.Warn("dense retrieval failed", zap.Int("index", i), zap.Error(err))
			results[i] = rec
			continue
		}

		rec.Retrieved = ret.PaperIDs
		rec.Units = make(map[string]string, len(ret.UnitIDs))
		for j, id := range ret.UnitIDs {
			rec.Units[id] = ret.UnitTexts[j]
		}
		results[i] = rec
	}
	return results, nil
}

// Close implements Retriever.
func (r *DenseRetriever) Close() error {
	r.index = nil
	return nil
}
