package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/paperbench/internal/config"
	"github.com/matsen/paperbench/internal/retrieval"
	"github.com/matsen/paperbench/internal/semantic"
	"github.com/matsen/paperbench/internal/storage"
	"github.com/matsen/paperbench/internal/unit"
)

var (
	indexUnits     []string
	indexDir       string
	indexBatchSize int
)

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexDenseCmd)
	indexCmd.AddCommand(indexRelationalCmd)
	indexCmd.AddCommand(indexCheckCmd)

	indexDenseCmd.Flags().StringSliceVar(&indexUnits, "units", nil, "Unit types to index: paragraphs, abstracts, title, metadata (default from config)")
	indexDenseCmd.Flags().StringVar(&indexDir, "index-dir", "", "Index directory (default from config)")
	indexDenseCmd.Flags().IntVar(&indexBatchSize, "batch-size", 0, "Units per embedding request (default from config)")
	indexCheckCmd.Flags().StringVar(&indexDir, "index-dir", "", "Index directory (default from config)")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the retrieval stores",
	Long:  `Commands for building the dense unit index and the relational paper store from a corpus.`,
}

// IndexBuildResult is the response for the index build commands.
type IndexBuildResult struct {
	Status          string            `json:"status"`
	Backend         retrieval.Backend `json:"backend"`
	PapersIndexed   int               `json:"papers_indexed"`
	PapersSkipped   int               `json:"papers_skipped"`
	UnitsIndexed    int               `json:"units_indexed,omitempty"`
	UnitTypeCounts  map[unit.Type]int `json:"unit_type_counts,omitempty"`
	AuthorsIndexed  int               `json:"authors_indexed,omitempty"`
	DurationSeconds float64           `json:"duration_seconds"`
	Model           string            `json:"model,omitempty"`
	IndexSizeBytes  int64             `json:"index_size_bytes,omitempty"`
	Stats           *storage.Stats    `json:"stats,omitempty"`
}

var indexDenseCmd = &cobra.Command{
	Use:   "dense <documents.jsonl>",
	Short: "Build the dense unit index",
	Long: `Build the dense index from a corpus of documents (JSON Lines).

Every requested unit of every document is embedded, L2-normalized and stored
in index order next to its unit ID. Any existing index in the directory is
replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexDense,
}

func runIndexDense(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	docs := mustReadDocuments(args[0])

	names := cfg.Embedding.UnitTypes
	if len(indexUnits) > 0 {
		names = indexUnits
	}
	types, err := unit.ParseTypes(names)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	provider := mustEmbeddingProvider(ctx)
	rc := retrieverConfig(retrieval.Dense)
	rc.Provider = provider
	rc.UnitTypes = types
	if indexDir != "" {
		rc.IndexDir = config.ExpandPath(indexDir)
	}
	if indexBatchSize > 0 {
		rc.BatchSize = indexBatchSize
	}

	r := mustRetriever(rc)
	defer r.Close()

	if showProgress() {
		fmt.Fprintf(os.Stderr, "Building dense index (%s) from %d documents...\n", unitNames(types), len(docs))
	}
	summary, err := r.Build(ctx, docs)
	if showProgress() {
		clearProgress()
	}
	exitOnError(err, "building index")

	outputBuildResults(summary, provider.ModelName())
	return nil
}

var indexRelationalCmd = &cobra.Command{
	Use:   "relational <documents.jsonl>",
	Short: "Build the relational paper store",
	Long: `Drop and recreate the Papers, Authors and PaperAuthors tables and load a
corpus into them. Re-inserting a paper or author that already exists is a
no-op: the first write wins.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexRelational,
}

func runIndexRelational(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	docs := mustReadDocuments(args[0])

	rc := retrieverConfig(retrieval.Relational)
	rc.DB = mustOpenStore()
	r := mustRetriever(rc)
	defer r.Close()

	summary, err := r.Build(ctx, docs)
	exitOnError(err, "building relational store")

	outputBuildResults(summary, "")
	return nil
}

// outputBuildResults outputs the build statistics in the appropriate format.
func outputBuildResults(s *retrieval.BuildSummary, model string) {
	if !humanOutput {
		outputJSON(IndexBuildResult{
			Status:          "complete",
			Backend:         s.Backend,
			PapersIndexed:   s.PapersIndexed,
			PapersSkipped:   s.PapersSkipped,
			UnitsIndexed:    s.UnitsIndexed,
			UnitTypeCounts:  s.UnitTypeCounts,
			AuthorsIndexed:  s.AuthorsIndexed,
			DurationSeconds: s.Duration.Seconds(),
			Model:           model,
			IndexSizeBytes:  s.IndexSizeBytes,
			Stats:           s.Store,
		})
		return
	}

	fmt.Printf("\nBuild complete (%s):\n", s.Backend)
	fmt.Printf("  Papers indexed: %d\n", s.PapersIndexed)
	fmt.Printf("  Papers skipped: %d (missing or duplicate ID)\n", s.PapersSkipped)
	if s.Backend == retrieval.Dense {
		fmt.Printf("  Units indexed: %d\n", s.UnitsIndexed)
		for _, t := range sortedTypes(s.UnitTypeCounts) {
			fmt.Printf("    %-10s %d\n", t, s.UnitTypeCounts[t])
		}
		fmt.Printf("  Index size: %s\n", formatBytes(s.IndexSizeBytes))
		fmt.Printf("  Model: %s\n", model)
	}
	fmt.Printf("  Time elapsed: %s\n", formatDuration(s.Duration))

	if st := s.Store; st != nil {
		fmt.Printf("  Authors: %d (%d skipped)\n", st.Authors, s.AuthorsSkipped)
		fmt.Printf("\nPapers by year:\n")
		for _, b := range st.Years {
			fmt.Printf("  %s: %d\n", b.Label, b.Count)
		}
		fmt.Printf("\nTop venues:\n")
		for _, b := range st.TopVenues {
			fmt.Printf("  %s: %d\n", truncateString(b.Label, 50), b.Count)
		}
		fmt.Printf("\nMost prolific authors:\n")
		for _, b := range st.TopAuthors {
			fmt.Printf("  %s: %d papers\n", b.Label, b.Count)
		}
	}
}

func sortedTypes(counts map[unit.Type]int) []unit.Type {
	types := make([]unit.Type, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func unitNames(types []unit.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// IndexCheckResult is the response for the index check command.
type IndexCheckResult struct {
	Status         string            `json:"status"`
	Model          string            `json:"model"`
	Pooling        string            `json:"pooling"`
	MaxTokens      int               `json:"max_tokens"`
	RetrievalUnits []unit.Type       `json:"retrieval_units"`
	Papers         int               `json:"papers"`
	Units          int               `json:"units"`
	UnitTypeCounts map[unit.Type]int `json:"unit_type_counts"`
	Dimensions     int               `json:"dimensions"`
	IndexCreated   string            `json:"index_created"`
	IndexSizeBytes int64             `json:"index_size_bytes"`
}

var indexCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the dense index",
	Long: `Load every dense index artifact and report what the index holds. Fails
with exit code 2 when an artifact is missing or the artifacts disagree.`,
	Args: cobra.NoArgs,
	RunE: runIndexCheck,
}

func runIndexCheck(cmd *cobra.Command, args []string) error {
	dir := config.ExpandPath(cfg.IndexDir)
	if indexDir != "" {
		dir = config.ExpandPath(indexDir)
	}

	idx, err := semantic.Load(dir)
	if errors.Is(err, semantic.ErrIndexNotFound) {
		exitWithError(ExitConfigError, "Dense index not found in %s\n\nRun 'pbench index dense <documents.jsonl>' to create the index.", dir)
	}
	exitOnError(err, "loading index")

	// Size is informational only.
	size, err := semantic.IndexSize(dir)
	if err != nil && humanOutput {
		fmt.Fprintf(os.Stderr, "Warning: could not determine index size: %v\n", err)
	}

	m := idx.Meta
	result := IndexCheckResult{
		Status:         "healthy",
		Model:          m.ModelName,
		Pooling:        string(m.Pooling),
		MaxTokens:      m.MaxTokens,
		RetrievalUnits: m.RetrievalUnits,
		Papers:         m.NPapers,
		Units:          m.NUnits,
		UnitTypeCounts: m.UnitTypeCounts,
		Dimensions:     m.EmbeddingDim,
		IndexCreated:   m.CreatedAt.Format(time.RFC3339),
		IndexSizeBytes: size,
	}

	if !humanOutput {
		outputJSON(result)
		return nil
	}
	fmt.Printf("Dense Index Status: %s\n\n", result.Status)
	fmt.Printf("  Model: %s (%s pooling, %d max tokens)\n", result.Model, result.Pooling, result.MaxTokens)
	fmt.Printf("  Units: %s\n", unitNames(result.RetrievalUnits))
	fmt.Printf("  Papers: %d\n", result.Papers)
	fmt.Printf("  Vectors: %d x %d\n", result.Units, result.Dimensions)
	fmt.Printf("  Created: %s\n", result.IndexCreated)
	fmt.Printf("  Size: %s\n", formatBytes(result.IndexSizeBytes))
	return nil
}
