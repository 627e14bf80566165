package main

import (
	"context"
	"net/http"

	"github.com/matsen/paperbench/internal/config"
	"github.com/matsen/paperbench/internal/embedding"
	"github.com/matsen/paperbench/internal/paper"
	"github.com/matsen/paperbench/internal/retrieval"
	"github.com/matsen/paperbench/internal/semantic"
	"github.com/matsen/paperbench/internal/storage"
	"github.com/matsen/paperbench/internal/synth"
)

// mustEmbeddingProvider builds the configured embedding provider, exits on error.
func mustEmbeddingProvider(ctx context.Context) embedding.Provider {
	e := cfg.Embedding
	switch e.Provider {
	case config.EmbeddingOpenAI:
		key, err := config.APIKey(apiKeyEnv(e.APIKeyEnv))
		if err != nil {
			exitWithError(ExitConfigError, "%v\n\n%s", err, config.HelpfulConfigMessage(apiKeyEnv(e.APIKeyEnv)))
		}
		return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:     key,
			BaseURL:    e.BaseURL,
			Model:      e.Model,
			Dimensions: e.Dimensions,
			MaxTokens:  e.MaxTokens,
		})

	case config.EmbeddingHiddenState:
		client := embedding.NewHiddenStateClient(e.BaseURL, e.Model, e.MaxTokens, &http.Client{Timeout: e.Timeout})
		return embedding.NewPooledProvider(client, e.Dimensions)

	default:
		opts := []embedding.OllamaOption{
			embedding.WithModel(e.Model),
			embedding.WithDimensions(e.Dimensions),
			embedding.WithMaxTokens(e.MaxTokens),
			embedding.WithTimeout(e.Timeout),
		}
		if e.BaseURL != "" {
			opts = append(opts, embedding.WithBaseURL(e.BaseURL))
		}
		provider := embedding.NewOllamaProvider(opts...)
		mustValidateOllama(ctx, provider)
		return provider
	}
}

func apiKeyEnv(name string) string {
	if name == "" {
		return "OPENAI_API_KEY"
	}
	return name
}

// mustValidateOllama checks that Ollama is running and has the embedding model.
func mustValidateOllama(ctx context.Context, provider *embedding.OllamaProvider) {
	if err := provider.IsAvailable(ctx); err != nil {
		exitWithError(ExitDataError, "Ollama is not running\n\nStart Ollama with 'ollama serve' or install from https://ollama.ai")
	}

	hasModel, err := provider.HasModel(ctx)
	if err != nil {
		exitWithError(ExitError, "checking model availability: %v", err)
	}
	if !hasModel {
		exitWithError(ExitModelNotFound, "embedding model %q not found\n\nRun 'ollama pull %s' to download it.", provider.ModelName(), provider.ModelName())
	}
}

// mustOpenStore opens the relational store, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenStore() *storage.DB {
	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	dsn, err := cfg.DatabaseDSN()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	db, err := storage.Open(dialect, dsn)
	if err != nil {
		exitWithError(ExitConfigError, "opening database: %v", err)
	}
	return db
}

// mustCompleter builds the configured language model client, exits on error.
func mustCompleter() synth.Completer {
	l := cfg.LLM
	if l.Provider == config.LLMClaude {
		return synth.NewClaudeCLI(l.Model)
	}

	key, err := config.APIKey(apiKeyEnv(l.APIKeyEnv))
	if err != nil {
		exitWithError(ExitConfigError, "%v\n\n%s", err, config.HelpfulConfigMessage(apiKeyEnv(l.APIKeyEnv)))
	}
	return synth.NewOpenAICompleter(synth.OpenAIConfig{
		APIKey:          key,
		BaseURL:         l.BaseURL,
		Model:           l.Model,
		MaxOutputTokens: l.MaxOutputTokens,
	})
}

// mustSynthesizer builds the query synthesizer for db's dialect.
func mustSynthesizer(db *storage.DB, promptStyle string) *synth.Synthesizer {
	style, err := synth.ParsePromptStyle(promptStyle)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	dialect := db.Dialect()
	s, err := synth.New(mustCompleter(),
		synth.WithSchema(storage.SchemaDescription, synth.Dialect{Name: dialect.DisplayName(), Like: "LIKE"}),
		synth.WithPromptStyle(style),
		synth.WithConcurrency(cfg.LLM.Concurrency),
		synth.WithRetryPolicy(cfg.RetryPolicy()),
		synth.WithRequestTimeout(cfg.LLM.RequestTimeout),
		synth.WithRateLimit(cfg.LLM.RateLimit),
		synth.WithLogger(log),
		synth.WithMetrics(runMetrics))
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return s
}

// retrieverConfig is the shared part of every retrieval.Config.
func retrieverConfig(backend retrieval.Backend) retrieval.Config {
	rc := retrieval.Config{
		Backend:   backend,
		IndexDir:  config.ExpandPath(cfg.IndexDir),
		BatchSize: cfg.Embedding.BatchSize,
		Logger:    log,
		Metrics:   runMetrics,
	}
	if showProgress() {
		rc.Progress = semantic.ProgressFunc(printProgress)
	}
	return rc
}

// mustRetriever builds a retriever from rc, exits on error.
func mustRetriever(rc retrieval.Config) retrieval.Retriever {
	r, err := retrieval.New(rc)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return r
}

// mustReadDocuments reads the corpus, exits on error.
func mustReadDocuments(path string) []paper.Document {
	docs, err := storage.ReadDocuments(path)
	exitOnError(err, "reading documents")
	return docs
}

// mustReadQueries reads a query file, exits on error.
func mustReadQueries(path string) []paper.QueryRecord {
	queries, err := storage.ReadQueries(path)
	exitOnError(err, "reading queries")
	return queries
}
