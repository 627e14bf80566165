// Package config handles run configuration and the global user config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matsen/paperbench/internal/storage"
	"github.com/matsen/paperbench/internal/synth"
	"github.com/matsen/paperbench/internal/unit"
)

// DefaultConfigFile is the run config read when --config is not given.
const DefaultConfigFile = "pbench.yml"

// ErrInvalidConfig is returned when a config value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Embedding providers.
const (
	EmbeddingOllama      = "ollama"
	EmbeddingOpenAI      = "openai"
	EmbeddingHiddenState = "hidden_state"
)

// LLM providers.
const (
	LLMOpenAI = "openai"
	LLMClaude = "claude"
)

// Config is the run configuration, stored as YAML.
type Config struct {
	IndexDir    string          `yaml:"index_dir"`
	Embedding   EmbeddingConfig `yaml:"embedding"`
	LLM         LLMConfig       `yaml:"llm"`
	Database    DatabaseConfig  `yaml:"database"`
	Logging     LoggingConfig   `yaml:"logging"`
	MetricsFile string          `yaml:"metrics_file,omitempty"` // Prometheus textfile written after each run
}

// EmbeddingConfig configures the dense backend's embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // ollama, openai or hidden_state
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	APIKeyEnv  string        `yaml:"api_key_env,omitempty"` // openai only
	Dimensions int           `yaml:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens"` // truncation boundary
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
	UnitTypes  []string      `yaml:"unit_types"`
}

// LLMConfig configures query synthesis.
type LLMConfig struct {
	Provider        string        `yaml:"provider"` // openai or claude
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url,omitempty"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	PromptStyle     string        `yaml:"prompt_style"`
	Concurrency     int           `yaml:"concurrency"`
	MaxAttempts     int           `yaml:"max_attempts"`
	BaseBackoff     time.Duration `yaml:"base_backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	RateLimit       float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
}

// DatabaseConfig locates the relational store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or mysql
	DSN    string `yaml:"dsn"`    // file path for sqlite
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Env   string `yaml:"env"` // local, dev or prod
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		IndexDir: "index",
		Embedding: EmbeddingConfig{
			Provider:   EmbeddingOllama,
			Model:      "qwen3-embedding:0.6b",
			Dimensions: 1024,
			MaxTokens:  8192,
			BatchSize:  32,
			Timeout:    2 * time.Minute,
			UnitTypes:  []string{"title", "abstract"},
		},
		LLM: LLMConfig{
			Provider:        LLMOpenAI,
			Model:           "gpt-4o-mini",
			APIKeyEnv:       "OPENAI_API_KEY",
			PromptStyle:     string(synth.Detailed),
			Concurrency:     synth.DefaultConcurrency,
			MaxAttempts:     synth.DefaultMaxAttempts,
			BaseBackoff:     synth.DefaultBaseBackoff,
			MaxBackoff:      synth.DefaultMaxBackoff,
			RequestTimeout:  synth.DefaultRequestTimeout,
			MaxOutputTokens: synth.DefaultMaxOutputTokens,
		},
		Database: DatabaseConfig{
			Driver: string(storage.SQLite),
			DSN:    "papers.db",
		},
		Logging: LoggingConfig{
			Env:   "local",
			Level: "info",
		},
	}
}

// Load reads the run configuration at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	path = ExpandPath(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks enumerated values and positive limits.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case EmbeddingOllama, EmbeddingOpenAI, EmbeddingHiddenState:
	default:
		return fmt.Errorf("%w: embedding.provider %q (valid: ollama, openai, hidden_state)", ErrInvalidConfig, c.Embedding.Provider)
	}
	if _, err := c.UnitTypes(); err != nil {
		return fmt.Errorf("%w: embedding.unit_types: %v", ErrInvalidConfig, err)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding.batch_size must be positive", ErrInvalidConfig)
	}
	if c.Embedding.MaxTokens <= 0 {
		return fmt.Errorf("%w: embedding.max_tokens must be positive", ErrInvalidConfig)
	}

	switch c.LLM.Provider {
	case LLMOpenAI, LLMClaude:
	default:
		return fmt.Errorf("%w: llm.provider %q (valid: openai, claude)", ErrInvalidConfig, c.LLM.Provider)
	}
	if _, err := synth.ParsePromptStyle(c.LLM.PromptStyle); err != nil {
		return fmt.Errorf("%w: llm.prompt_style: %v", ErrInvalidConfig, err)
	}
	if c.LLM.Concurrency <= 0 || c.LLM.MaxAttempts <= 0 {
		return fmt.Errorf("%w: llm.concurrency and llm.max_attempts must be positive", ErrInvalidConfig)
	}

	if _, err := storage.ParseDialect(c.Database.Driver); err != nil {
		return fmt.Errorf("%w: database.driver: %v", ErrInvalidConfig, err)
	}
	return nil
}

// UnitTypes parses the configured retrieval unit types.
func (c *Config) UnitTypes() ([]unit.Type, error) {
	return unit.ParseTypes(c.Embedding.UnitTypes)
}

// RetryPolicy returns the synthesizer retry policy.
func (c *Config) RetryPolicy() synth.RetryPolicy {
	return synth.RetryPolicy{
		MaxAttempts: c.LLM.MaxAttempts,
		BaseBackoff: c.LLM.BaseBackoff,
		MaxBackoff:  c.LLM.MaxBackoff,
	}
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
