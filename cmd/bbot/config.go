package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AnshumanSrivastavaGit/bbot/internal/config"
)

// NewConfigCmd creates the config command.
// It prints the effective configuration after merging defaults with the
// resolved configuration file, useful for bootstrapping a config file.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Config resolves the configuration the same way 'scan' does
(defaults, then the configuration file) and prints the result as YAML.

Redirect the output to .bbot.yml to bootstrap a configuration file:

  bbot config > .bbot.yml`,
		Args: cobra.NoArgs,
		RunE: runConfigCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .bbot.yml in current directory or XDG config)")

	return cmd
}

// runConfigCmd executes the config command.
func runConfigCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.New()

	configPathFlag, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	configPath := config.FindConfigFile(configPathFlag)
	if configPath != "" {
		file, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
		fmt.Fprintf(cmd.ErrOrStderr(), "# merged from %s\n", configPath)
	} else if configPathFlag != "" {
		return fmt.Errorf("configuration file not found: %s", configPathFlag)
	}

	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	out, err := yaml.Marshal(config.FromConfig(cfg))
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
