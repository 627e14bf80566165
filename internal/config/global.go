package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfig holds per-user credentials, stored in ~/.config/pbench/config.yml.
type GlobalConfig struct {
	OpenAIAPIKey string `yaml:"openai_api_key,omitempty"`
	MySQLDSN     string `yaml:"mysql_dsn,omitempty"` // used when database.dsn is empty
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "pbench"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// ErrMissingCredentials is returned when no API key can be found.
var ErrMissingCredentials = errors.New("missing credentials")

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/pbench/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// APIKey resolves an API key: the environment variable envName wins, then
// openai_api_key from the global config.
func APIKey(envName string) (string, error) {
	if envName != "" {
		if v := os.Getenv(envName); v != "" {
			return v, nil
		}
	}

	cfg, err := LoadGlobalConfig()
	if err != nil {
		return "", err
	}
	if cfg.OpenAIAPIKey != "" {
		return cfg.OpenAIAPIKey, nil
	}
	return "", fmt.Errorf("%w: set %s or openai_api_key in %s", ErrMissingCredentials, envName, GlobalConfigPath())
}

// DatabaseDSN returns the configured DSN, falling back to mysql_dsn from the
// global config for the mysql driver.
func (c *Config) DatabaseDSN() (string, error) {
	if c.Database.DSN != "" {
		return ExpandPath(c.Database.DSN), nil
	}
	if c.Database.Driver == "mysql" {
		cfg, err := LoadGlobalConfig()
		if err != nil {
			return "", err
		}
		if cfg.MySQLDSN != "" {
			return cfg.MySQLDSN, nil
		}
		return "", fmt.Errorf("%w: set database.dsn or mysql_dsn in %s", ErrMissingCredentials, GlobalConfigPath())
	}
	return "", fmt.Errorf("%w: database.dsn is empty", ErrInvalidConfig)
}

// HelpfulConfigMessage explains where credentials are read from.
func HelpfulConfigMessage(envName string) string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`No API key found.

Either export %s (a .env file in the working directory is read too), or create %s:
  mkdir -p %s
  echo 'openai_api_key: sk-...' > %s`,
		envName,
		configPath,
		filepath.Dir(configPath),
		configPath)
}
