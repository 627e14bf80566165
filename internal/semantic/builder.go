package semantic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/paperbench/internal/embedding"
	"github.com/matsen/paperbench/internal/paper"
	"github.com/matsen/paperbench/internal/unit"
)

// DefaultBatchSize is the number of unit texts sent per embedding request.
const DefaultBatchSize = 32

// ProgressReporter receives progress updates during index building.
type ProgressReporter interface {
	// OnProgress is called with the current progress.
	OnProgress(current, total int)
}

// ProgressFunc is a function adapter for ProgressReporter.
type ProgressFunc func(current, total int)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(current, total int) {
	f(current, total)
}

// Builder constructs a dense index from documents.
type Builder struct {
	provider  embedding.Provider
	batchSize int
	logger    *zap.Logger
	progress  ProgressReporter
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBatchSize sets how many units are embedded per request. Batch size
// trades memory for throughput and does not change the result.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithLogger sets the builder's logger.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a new index builder.
func NewBuilder(provider embedding.Provider, opts ...BuilderOption) *Builder {
	b := &Builder{
		provider:  provider,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetProgressReporter sets the progress reporter for the builder.
func (b *Builder) SetProgressReporter(reporter ProgressReporter) {
	b.progress = reporter
}

// Build extracts the requested unit types from every document, embeds them in
// fixed-size sequential batches, L2-normalizes each vector and stores it at the
// position of its unit ID. Documents without an ID, and repeats of an ID
// already seen, are skipped.
func (b *Builder) Build(ctx context.Context, docs []paper.Document, types []unit.Type) (*Index, *BuildStats, error) {
	startTime := time.Now()
	stats := &BuildStats{}

	var units []unit.Unit
	var papers []PaperObject
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		id := doc.ID()
		if id == "" || seen[id] {
			stats.PapersSkipped++
			continue
		}
		seen[id] = true

		docUnits := unit.Extract(doc, types)
		obj := newPaperObject(doc)
		for _, u := range docUnits {
			obj.Units[u.ID] = StoredUnit{Text: u.Text, Metadata: u.Metadata}
		}
		papers = append(papers, obj)
		units = append(units, docUnits...)
	}
	if len(units) == 0 {
		return nil, nil, ErrNoUnits
	}

	b.logger.Info("embedding retrieval units",
		zap.Int("papers", len(papers)),
		zap.Int("units", len(units)),
		zap.Int("batch_size", b.batchSize),
		zap.String("model", b.provider.ModelName()))

	vectors := NewFlatIndex(b.provider.Dimensions())
	unitIDs := make([]string, 0, len(units))
	total := len(units)

	for start := 0; start < total; start += b.batchSize {
		// Check for cancellation
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		end := min(start+b.batchSize, total)
		batch := units[start:end]
		texts := make([]string, len(batch))
		for i, u := range batch {
			texts[i] = u.Text
		}

		embs, err := b.provider.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, nil, fmt.Errorf("embedding units %d-%d: %w", start, end-1, err)
		}
		if len(embs) != len(batch) {
			return nil, nil, fmt.Errorf("provider returned %d embeddings for %d units", len(embs), len(batch))
		}

		for i, emb := range embs {
			vec, err := embedding.Normalize(emb.Vector)
			if err != nil {
				return nil, nil, fmt.Errorf("normalizing %s: %w", batch[i].ID, err)
			}
			if vectors.Dim == 0 {
				vectors.Dim = len(vec)
			}
			if err := vectors.Add(vec); err != nil {
				return nil, nil, fmt.Errorf("adding embedding for %s: %w", batch[i].ID, err)
			}
			unitIDs = append(unitIDs, batch[i].ID)
		}

		// Report progress
		if b.progress != nil {
			b.progress.OnProgress(end, total)
		}
		b.logger.Debug("embedded batch", zap.Int("done", end), zap.Int("total", total))
	}

	counts := unit.CountByType(units)
	meta := Metadata{
		Version:         CurrentIndexVersion,
		ModelName:       b.provider.ModelName(),
		Pooling:         b.provider.Pooling(),
		MaxTokens:       b.provider.MaxTokens(),
		RetrievalUnits:  types,
		NPapers:         len(papers),
		NUnits:          len(unitIDs),
		EmbeddingDim:    vectors.Dim,
		UnitTypeCounts:  counts,
		CreatedAt:       startTime,
		BuildDurationMs: time.Since(startTime).Milliseconds(),
	}

	idx, err := newIndex(meta, vectors, unitIDs, papers)
	if err != nil {
		return nil, nil, err
	}

	stats.PapersIndexed = len(papers)
	stats.UnitsIndexed = len(unitIDs)
	stats.UnitTypeCounts = counts
	stats.Duration = time.Since(startTime)

	b.logger.Info("built dense index",
		zap.Int("units", stats.UnitsIndexed),
		zap.Int("dimensions", vectors.Dim),
		zap.Duration("duration", stats.Duration))

	return idx, stats, nil
}

func newPaperObject(doc paper.Document) PaperObject {
	return PaperObject{
		PaperID:       doc.ID(),
		Title:         doc.Title,
		Abstract:      doc.Abstract,
		Authors:       doc.AuthorNames(),
		Year:          doc.Year,
		Venue:         doc.Venue,
		CitationCount: doc.CitationCount,
		FieldsOfStudy: doc.FieldsOfStudy,
		Units:         make(map[string]StoredUnit),
	}
}
