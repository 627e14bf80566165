package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// withGlobalConfig points XDG_CONFIG_HOME at a temp dir holding content (if
// non-empty) and resets the cache around the test.
func withGlobalConfig(t *testing.T, content string) {
	t.Helper()
	ResetGlobalConfigCache()
	t.Cleanup(ResetGlobalConfigCache)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	if content == "" {
		return
	}
	configDir := filepath.Join(tmpDir, GlobalConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, GlobalConfigFile), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := GlobalConfigPath(), "/custom/config/pbench/config.yml"; got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := GlobalConfigPath(), filepath.Join(home, ".config", "pbench", "config.yml"); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}
}

func TestLoadGlobalConfig(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		withGlobalConfig(t, "")
		cfg, err := LoadGlobalConfig()
		if err != nil {
			t.Fatalf("LoadGlobalConfig() error = %v", err)
		}
		if cfg.OpenAIAPIKey != "" {
			t.Errorf("OpenAIAPIKey = %q, want empty", cfg.OpenAIAPIKey)
		}
	})

	t.Run("valid", func(t *testing.T) {
		withGlobalConfig(t, "openai_api_key: sk-global\nmysql_dsn: u:p@tcp(db:3306)/papers\n")
		cfg, err := LoadGlobalConfig()
		if err != nil {
			t.Fatalf("LoadGlobalConfig() error = %v", err)
		}
		if cfg.OpenAIAPIKey != "sk-global" || cfg.MySQLDSN != "u:p@tcp(db:3306)/papers" {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		withGlobalConfig(t, "openai_api_key: [oops\n")
		if _, err := LoadGlobalConfig(); err == nil {
			t.Error("LoadGlobalConfig() should fail on invalid YAML")
		}
	})
}

func TestAPIKey(t *testing.T) {
	t.Run("env wins", func(t *testing.T) {
		withGlobalConfig(t, "openai_api_key: sk-global\n")
		t.Setenv("PBENCH_TEST_KEY", "sk-env")
		if got, err := APIKey("PBENCH_TEST_KEY"); err != nil || got != "sk-env" {
			t.Errorf("APIKey() = %q, %v, want sk-env", got, err)
		}
	})

	t.Run("global fallback", func(t *testing.T) {
		withGlobalConfig(t, "openai_api_key: sk-global\n")
		t.Setenv("PBENCH_TEST_KEY", "")
		if got, err := APIKey("PBENCH_TEST_KEY"); err != nil || got != "sk-global" {
			t.Errorf("APIKey() = %q, %v, want sk-global", got, err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		withGlobalConfig(t, "")
		t.Setenv("PBENCH_TEST_KEY", "")
		_, err := APIKey("PBENCH_TEST_KEY")
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("APIKey() error = %v, want ErrMissingCredentials", err)
		}
	})
}

func TestDatabaseDSN(t *testing.T) {
	withGlobalConfig(t, "mysql_dsn: u:p@tcp(db:3306)/papers\n")

	cfg := Default()
	if got, err := cfg.DatabaseDSN(); err != nil || got != "papers.db" {
		t.Errorf("sqlite DSN = %q, %v", got, err)
	}

	cfg.Database = DatabaseConfig{Driver: "mysql"}
	if got, err := cfg.DatabaseDSN(); err != nil || got != "u:p@tcp(db:3306)/papers" {
		t.Errorf("mysql DSN = %q, %v", got, err)
	}

	cfg.Database = DatabaseConfig{Driver: "sqlite"}
	if _, err := cfg.DatabaseDSN(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("empty sqlite DSN error = %v", err)
	}
}

func TestHelpfulConfigMessage(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	msg := HelpfulConfigMessage("OPENAI_API_KEY")
	for _, want := range []string{"OPENAI_API_KEY", "/cfg/pbench/config.yml", "openai_api_key:"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
