// Package main provides the pbench CLI entry point.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/paperbench/internal/config"
	"github.com/matsen/paperbench/internal/logger"
	"github.com/matsen/paperbench/internal/metrics"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool

	configPath string
	logLevel   string
	noProgress bool

	// Set up by the root command before any subcommand runs.
	cfg        *config.Config
	log        *zap.Logger
	runMetrics *metrics.Metrics
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		// This ensures Cobra errors (like missing required flags) are visible
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pbench",
	Short: "Paper retrieval benchmark",
	Long: `pbench measures how well retrieval strategies find the right academic
paper for a natural-language query.

Backends:
  - dense: sub-document units (titles, abstracts, paragraphs, metadata)
    embedded into a flat inner-product index, collapsed to papers
  - relational: an LLM writes SQL against a Papers/Authors/PaperAuthors store

Results are scored with Hits@1, Hits@5 and MRR.
All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		writeMetrics()
		log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "Run configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides logging.level")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Suppress progress output")
	rootCmd.Version = Version
}

// setup loads .env, the run config, the logger and the metrics registry.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err = logger.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		exitWithError(ExitConfigError, "creating logger: %v", err)
	}
	runMetrics = metrics.New()
	return nil
}

// writeMetrics dumps the run metrics when metrics_file is configured.
func writeMetrics() {
	if cfg == nil || cfg.MetricsFile == "" {
		return
	}
	if err := runMetrics.WriteTextfile(config.ExpandPath(cfg.MetricsFile)); err != nil {
		log.Warn("writing metrics file", zap.String("path", cfg.MetricsFile), zap.Error(err))
	}
}
