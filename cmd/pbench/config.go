package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matsen/paperbench/internal/config"
)

var configInitForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the run configuration after defaults and the --config file are merged.

Usage:
  pbench config                 # Show effective config
  pbench config init            # Write the defaults to pbench.yml
  pbench config --config x.yml  # Show config loaded from x.yml

Credentials are never stored here. API keys come from the environment
variable named by api_key_env, or from the global config file.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

// ConfigResponse is the JSON response for the config command.
type ConfigResponse struct {
	Path         string         `json:"path"`
	Exists       bool           `json:"exists"`
	GlobalConfig string         `json:"global_config"`
	Config       map[string]any `json:"config"`
}

// configAsMap round-trips c through YAML so JSON output uses the same keys
// and duration strings as the config file.
func configAsMap(c *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	path := config.ExpandPath(configPath)
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if humanOutput {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			exitWithError(ExitError, "encoding config: %v", err)
		}
		source := path
		if !exists {
			source = "defaults (" + path + " not found)"
		}
		fmt.Printf("# source: %s\n# global: %s\n%s", source, config.GlobalConfigPath(), data)
		return nil
	}

	m, err := configAsMap(cfg)
	if err != nil {
		exitWithError(ExitError, "encoding config: %v", err)
	}
	outputJSON(ConfigResponse{
		Path:         path,
		Exists:       exists,
		GlobalConfig: config.GlobalConfigPath(),
		Config:       m,
	})
	return nil
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Long:  `Write the default run configuration to the --config path (pbench.yml by default).`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ExpandPath(configPath)
	if _, err := os.Stat(path); err == nil && !configInitForce {
		exitWithError(ExitError, "%s already exists (use --force to overwrite)", path)
	}

	if err := config.Default().Save(path); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Wrote default configuration to %s\n", path)
	} else {
		outputJSON(StatusResponse{Status: "created", Path: path})
	}
	return nil
}
