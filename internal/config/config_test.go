package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/matsen/paperbench/internal/unit"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pbench.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
index_dir: /data/index
embedding:
  provider: hidden_state
  unit_types: [paragraphs, title]
  batch_size: 8
llm:
  model: o3-mini
  prompt_style: minimal
  base_backoff: 250ms
  request_timeout: 45s
database:
  driver: mysql
  dsn: "bench:secret@tcp(localhost:3306)/papers"
metrics_file: /tmp/pbench.prom
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.IndexDir != "/data/index" || cfg.MetricsFile != "/tmp/pbench.prom" {
		t.Errorf("IndexDir = %q, MetricsFile = %q", cfg.IndexDir, cfg.MetricsFile)
	}
	if cfg.Embedding.Provider != EmbeddingHiddenState || cfg.Embedding.BatchSize != 8 {
		t.Errorf("Embedding = %+v", cfg.Embedding)
	}
	// Unset fields keep their defaults.
	if cfg.Embedding.MaxTokens != 8192 || cfg.LLM.MaxAttempts != 5 || cfg.LLM.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("defaults lost: %+v %+v", cfg.Embedding, cfg.LLM)
	}
	if cfg.LLM.BaseBackoff != 250*time.Millisecond || cfg.LLM.RequestTimeout != 45*time.Second {
		t.Errorf("durations = %v, %v", cfg.LLM.BaseBackoff, cfg.LLM.RequestTimeout)
	}

	types, err := cfg.UnitTypes()
	if err != nil {
		t.Fatalf("UnitTypes() error = %v", err)
	}
	if !reflect.DeepEqual(types, []unit.Type{unit.Paragraph, unit.Title}) {
		t.Errorf("UnitTypes() = %v", types)
	}

	policy := cfg.RetryPolicy()
	if policy.MaxAttempts != 5 || policy.BaseBackoff != 250*time.Millisecond || policy.MaxBackoff != 30*time.Second {
		t.Errorf("RetryPolicy() = %+v", policy)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"embedding provider", "embedding:\n  provider: word2vec\n"},
		{"unit type", "embedding:\n  unit_types: [sentences]\n"},
		{"batch size", "embedding:\n  batch_size: 0\n"},
		{"llm provider", "llm:\n  provider: gemini\n"},
		{"prompt style", "llm:\n  prompt_style: verbose\n"},
		{"attempts", "llm:\n  max_attempts: 0\n"},
		{"driver", "database:\n  driver: postgres\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "llm: [unclosed\n"))
	if err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
}

func TestSaveLoad(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = LLMClaude
	cfg.LLM.Model = "haiku"
	cfg.LLM.RateLimit = 2.5

	path := filepath.Join(t.TempDir(), "sub", "pbench.yml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("round trip = %+v, want %+v", got, cfg)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/papers.db", filepath.Join(home, "papers.db")},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.input); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
