package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/paperbench/internal/config"
	"github.com/matsen/paperbench/internal/paper"
	"github.com/matsen/paperbench/internal/retrieval"
	"github.com/matsen/paperbench/internal/storage"
)

// DefaultTopK is the number of units searched per dense query.
const DefaultTopK = 5

var (
	retrieveOutput      string
	retrieveK           int
	retrievePromptStyle string
	retrieveLimit       int
)

func init() {
	rootCmd.AddCommand(retrieveCmd)
	retrieveCmd.AddCommand(retrieveDenseCmd)
	retrieveCmd.AddCommand(retrieveRelationalCmd)

	for _, c := range []*cobra.Command{retrieveDenseCmd, retrieveRelationalCmd} {
		c.Flags().StringVarP(&retrieveOutput, "output", "o", "", "Result file (JSON Lines)")
		c.Flags().IntVar(&retrieveLimit, "limit", 0, "Only run the first N queries (0 = all)")
		c.MarkFlagRequired("output")
	}
	retrieveDenseCmd.Flags().IntVarP(&retrieveK, "top-k", "k", DefaultTopK, "Number of units to retrieve per query")
	retrieveDenseCmd.Flags().StringVar(&indexDir, "index-dir", "", "Index directory (default from config)")
	retrieveRelationalCmd.Flags().StringVar(&retrievePromptStyle, "prompt-style", "", "Prompt style: minimal or detailed (default from config)")
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Run queries against a retrieval backend",
	Long: `Run every query in a query file (JSON Lines with query and paperId) against
one backend and write one result record per query, in input order.

A query that fails is written with an error field and an empty retrieved
list; the run continues.`,
}

// RetrieveResult is the response for the retrieve commands.
type RetrieveResult struct {
	Status  string            `json:"status"`
	Backend retrieval.Backend `json:"backend"`
	Output  string            `json:"output"`
	retrieval.Summary
}

var retrieveDenseCmd = &cobra.Command{
	Use:   "dense <queries.jsonl>",
	Short: "Retrieve papers with the dense index",
	Long: `Embed each query, search the top-k units and collapse them to a paper list
in first-occurrence order. The list holds at most k papers. Each record also
maps the retrieved unit IDs to their text.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieveDense,
}

func runRetrieveDense(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	queries := limitQueries(mustReadQueries(args[0]))

	rc := retrieverConfig(retrieval.Dense)
	rc.Provider = mustEmbeddingProvider(ctx)
	if indexDir != "" {
		rc.IndexDir = config.ExpandPath(indexDir)
	}
	r := mustRetriever(rc)
	defer r.Close()

	exitOnError(r.Load(ctx), "loading index")
	runRetrieval(ctx, r, retrieval.Dense, queries, retrieveK)
	return nil
}

var retrieveRelationalCmd = &cobra.Command{
	Use:   "relational <queries.jsonl>",
	Short: "Retrieve papers with LLM-written SQL",
	Long: `Ask the configured language model to write a SQL query for each query,
then run it against the relational store. Only the paper_id column of the
result is kept. Model calls run concurrently (llm.concurrency) and are
retried with exponential backoff (llm.max_attempts).`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieveRelational,
}

func runRetrieveRelational(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	queries := limitQueries(mustReadQueries(args[0]))

	style := cfg.LLM.PromptStyle
	if retrievePromptStyle != "" {
		style = retrievePromptStyle
	}

	db := mustOpenStore()
	rc := retrieverConfig(retrieval.Relational)
	rc.DB = db
	rc.Synthesizer = mustSynthesizer(db, style)
	r := mustRetriever(rc)
	defer r.Close()

	exitOnError(r.Load(ctx), "opening relational store")
	runRetrieval(ctx, r, retrieval.Relational, queries, 0)
	return nil
}

func limitQueries(queries []paper.QueryRecord) []paper.QueryRecord {
	if retrieveLimit > 0 && retrieveLimit < len(queries) {
		return queries[:retrieveLimit]
	}
	return queries
}

// runRetrieval runs queries, writes the result file and reports a summary.
func runRetrieval(ctx context.Context, r retrieval.Retriever, backend retrieval.Backend, queries []paper.QueryRecord, k int) {
	if humanOutput {
		fmt.Fprintf(os.Stderr, "Running %d queries with the %s backend...\n", len(queries), backend)
	}

	results, err := r.Retrieve(ctx, queries, k)
	exitOnError(err, "retrieving")

	if err := storage.WriteResults(retrieveOutput, results); err != nil {
		exitWithError(ExitError, "writing results: %v", err)
	}

	summary := retrieval.Summarize(results)
	if !humanOutput {
		outputJSON(RetrieveResult{Status: "complete", Backend: backend, Output: retrieveOutput, Summary: summary})
		return
	}

	fmt.Printf("Wrote %d results to %s\n", summary.Queries, retrieveOutput)
	fmt.Printf("  Average papers retrieved: %.2f\n", summary.AvgRetrieved)
	if summary.Failed > 0 {
		fmt.Printf("  Failed queries: %d\n", summary.Failed)
	}
	if backend == retrieval.Relational {
		fmt.Printf("  Tokens: %d input, %d output\n", summary.InputTokens, summary.OutputTokens)
	}
}
