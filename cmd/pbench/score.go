package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/paperbench/internal/eval"
	"github.com/matsen/paperbench/internal/storage"
)

var scoreOutput string

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().StringVarP(&scoreOutput, "output", "o", "", "Also write the metrics JSON to this file")
}

var scoreCmd = &cobra.Command{
	Use:   "score <results.jsonl>",
	Short: "Score a result file",
	Long: `Compute Hits@1, Hits@5 and mean reciprocal rank over a result file.

A query whose expected paper is absent, or whose retrieval failed, counts as
a miss. An empty result file is an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	results, err := storage.ReadResults(args[0])
	exitOnError(err, "reading results")

	m, err := eval.Score(results)
	exitOnError(err, "scoring "+args[0])

	if scoreOutput != "" {
		if err := writeJSONFile(scoreOutput, m); err != nil {
			exitWithError(ExitError, "writing metrics: %v", err)
		}
	}

	if humanOutput {
		fmt.Println(m.String())
	} else {
		outputJSON(m)
	}
	return nil
}
