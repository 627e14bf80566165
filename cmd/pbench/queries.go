package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/paperbench/internal/paper"
	"github.com/matsen/paperbench/internal/storage"
	"github.com/matsen/paperbench/internal/textnorm"
)

var (
	queriesOutput    string
	splitRatio       float64
	splitSeed        int64
	splitTailOutput  string
	overlapDocs      string
	overlapThreshold float64
	overlapOrdered   bool
)

func init() {
	rootCmd.AddCommand(queriesCmd)
	queriesCmd.AddCommand(queriesCleanCmd)
	queriesCmd.AddCommand(queriesSplitCmd)
	queriesCmd.AddCommand(queriesOverlapCmd)

	for _, c := range []*cobra.Command{queriesCleanCmd, queriesSplitCmd, queriesOverlapCmd} {
		c.Flags().StringVarP(&queriesOutput, "output", "o", "", "Output file (JSON Lines)")
	}
	queriesCleanCmd.MarkFlagRequired("output")
	queriesSplitCmd.MarkFlagRequired("output")

	queriesSplitCmd.Flags().Float64Var(&splitRatio, "ratio", 0.5, "Fraction of queries written to --output")
	queriesSplitCmd.Flags().Int64Var(&splitSeed, "seed", 42, "Shuffle seed")
	queriesSplitCmd.Flags().StringVar(&splitTailOutput, "rest", "", "File for the remaining queries")
	queriesSplitCmd.MarkFlagRequired("rest")

	queriesOverlapCmd.Flags().StringVar(&overlapDocs, "documents", "", "Corpus the expected paper IDs refer to (JSON Lines)")
	queriesOverlapCmd.Flags().Float64Var(&overlapThreshold, "threshold", 0.5, "Minimum fraction of query words found in the title")
	queriesOverlapCmd.Flags().BoolVar(&overlapOrdered, "ordered", false, "Require query words to appear in title order")
	queriesOverlapCmd.MarkFlagRequired("documents")
}

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Prepare query files",
	Long:  `Commands for cleaning, splitting and grading benchmark query files.`,
}

var queriesCleanCmd = &cobra.Command{
	Use:   "clean <queries.jsonl>",
	Short: "Normalize query text",
	Long: `Normalize the query field of every record: lowercase, strip diacritics,
delete apostrophes, replace punctuation with spaces and collapse whitespace.
Records whose query is empty after normalization are dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: runQueriesClean,
}

// cleanQueries normalizes each query and drops the ones left empty.
func cleanQueries(queries []paper.QueryRecord) (cleaned []paper.QueryRecord, dropped int) {
	cleaned = make([]paper.QueryRecord, 0, len(queries))
	for _, q := range queries {
		q.Query = textnorm.Normalize(q.Query)
		if q.Query == "" {
			dropped++
			continue
		}
		cleaned = append(cleaned, q)
	}
	return cleaned, dropped
}

func runQueriesClean(cmd *cobra.Command, args []string) error {
	queries := mustReadQueries(args[0])
	cleaned, dropped := cleanQueries(queries)

	if err := storage.WriteQueries(queriesOutput, cleaned); err != nil {
		exitWithError(ExitError, "writing queries: %v", err)
	}

	if humanOutput {
		outputHuman("Cleaned %d queries (%d dropped) -> %s\n", len(cleaned), dropped, queriesOutput)
	} else {
		outputJSON(StatusResponse{Status: "cleaned", Path: queriesOutput, Count: len(cleaned)})
	}
	return nil
}

var queriesSplitCmd = &cobra.Command{
	Use:   "split <queries.jsonl>",
	Short: "Split queries into two files",
	Long: `Shuffle the queries with --seed and write round(ratio * n) of them to
--output and the rest to --rest. The same seed always gives the same split.`,
	Args: cobra.ExactArgs(1),
	RunE: runQueriesSplit,
}

// SplitResult is the response for the queries split command.
type SplitResult struct {
	Status    string `json:"status"`
	Seed      int64  `json:"seed"`
	Output    string `json:"output"`
	OutputN   int    `json:"output_count"`
	Rest      string `json:"rest"`
	RestCount int    `json:"rest_count"`
}

func runQueriesSplit(cmd *cobra.Command, args []string) error {
	queries := mustReadQueries(args[0])

	head, tail, err := paper.Split(queries, splitRatio, splitSeed)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if err := storage.WriteQueries(queriesOutput, head); err != nil {
		exitWithError(ExitError, "writing %s: %v", queriesOutput, err)
	}
	if err := storage.WriteQueries(splitTailOutput, tail); err != nil {
		exitWithError(ExitError, "writing %s: %v", splitTailOutput, err)
	}

	if humanOutput {
		outputHuman("Split %d queries (seed %d): %d -> %s, %d -> %s\n",
			len(queries), splitSeed, len(head), queriesOutput, len(tail), splitTailOutput)
	} else {
		outputJSON(SplitResult{
			Status:    "split",
			Seed:      splitSeed,
			Output:    queriesOutput,
			OutputN:   len(head),
			Rest:      splitTailOutput,
			RestCount: len(tail),
		})
	}
	return nil
}

var queriesOverlapCmd = &cobra.Command{
	Use:   "overlap <queries.jsonl>",
	Short: "Grade queries by word overlap with the expected title",
	Long: `Compare each query with the title of its expected paper. Queries sharing
at least --threshold of their words with the title are lexically easy; the
rest need more than keyword matching. With --output, one record per query is
written with both overlap ratios.`,
	Args: cobra.ExactArgs(1),
	RunE: runQueriesOverlap,
}

// OverlapRecord grades one query against its expected paper's title.
type OverlapRecord struct {
	Query      string  `json:"query"`
	PaperID    string  `json:"paperId"`
	Title      string  `json:"title"`
	BagOfWords float64 `json:"bag_of_words_overlap"`
	Ordered    float64 `json:"ordered_overlap"`
	Overlaps   bool    `json:"overlaps"`
	Missing    bool    `json:"missing_paper,omitempty"`
}

// OverlapSummary is the response for the queries overlap command.
type OverlapSummary struct {
	Queries       int     `json:"queries"`
	Overlapping   int     `json:"overlapping"`
	Fraction      float64 `json:"fraction"`
	MissingPapers int     `json:"missing_papers"`
	Threshold     float64 `json:"threshold"`
	Ordered       bool    `json:"ordered"`
}

// gradeOverlap scores every query against the title of its expected paper.
func gradeOverlap(queries []paper.QueryRecord, titles map[string]string, threshold float64, ordered bool) ([]OverlapRecord, OverlapSummary) {
	records := make([]OverlapRecord, len(queries))
	summary := OverlapSummary{Queries: len(queries), Threshold: threshold, Ordered: ordered}

	for i, q := range queries {
		title, ok := titles[q.PaperID]
		rec := OverlapRecord{Query: q.Query, PaperID: q.PaperID, Title: title, Missing: !ok}
		if !ok {
			summary.MissingPapers++
			records[i] = rec
			continue
		}
		rec.BagOfWords = textnorm.BagOfWordsOverlap(q.Query, title)
		rec.Ordered = textnorm.OrderedOverlap(q.Query, title)
		rec.Overlaps = textnorm.HasOverlap(q.Query, title, threshold, ordered)
		if rec.Overlaps {
			summary.Overlapping++
		}
		records[i] = rec
	}

	if summary.Queries > 0 {
		summary.Fraction = float64(summary.Overlapping) / float64(summary.Queries)
	}
	return records, summary
}

func runQueriesOverlap(cmd *cobra.Command, args []string) error {
	if overlapThreshold < 0 || overlapThreshold > 1 {
		exitWithError(ExitError, "--threshold must be in [0, 1], got %v", overlapThreshold)
	}
	queries := mustReadQueries(args[0])
	docs := mustReadDocuments(overlapDocs)

	titles := make(map[string]string, len(docs))
	for _, d := range docs {
		if id := d.ID(); id != "" {
			titles[id] = d.Title
		}
	}

	records, summary := gradeOverlap(queries, titles, overlapThreshold, overlapOrdered)
	if queriesOutput != "" {
		if err := storage.WriteJSONL(queriesOutput, records); err != nil {
			exitWithError(ExitError, "writing %s: %v", queriesOutput, err)
		}
	}

	if !humanOutput {
		outputJSON(summary)
		return nil
	}
	mode := "bag of words"
	if summary.Ordered {
		mode = "ordered"
	}
	fmt.Printf("Queries overlapping their title (%s, threshold %.2f): %d/%d (%.1f%%)\n",
		mode, summary.Threshold, summary.Overlapping, summary.Queries, summary.Fraction*100)
	if summary.MissingPapers > 0 {
		fmt.Printf("Expected papers not in corpus: %d\n", summary.MissingPapers)
	}
	return nil
}
