package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/vigil/config"
)

// ConfigCmd manages vigild configuration.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vigild configuration",
	Long: `Manage vigild configuration.

Configuration sources (in order of precedence):
1. Environment variables (VIGIL_* prefix)
2. Project config (./vigil.toml)
3. User config (~/.vigil/vigil.toml)
4. System config (/etc/vigil/vigil.toml)
5. Default values

Examples:
  vigild config show                  # Show current configuration
  vigild config show --format json    # Show configuration as JSON
  vigild config init                  # Write a default vigil.toml
  vigild config validate              # Validate current configuration`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default vigil.toml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(config.ConfigFileName); err != nil {
			return err
		}
		fmt.Println("wrote", config.ConfigFileName)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Engine.ThrottleHigh <= cfg.Engine.ThrottleWarn {
			return fmt.Errorf("engine.throttle_high (%d) must exceed engine.throttle_warn (%d)",
				cfg.Engine.ThrottleHigh, cfg.Engine.ThrottleWarn)
		}
		if cfg.Engine.Workers <= 0 {
			return fmt.Errorf("engine.workers must be positive")
		}
		fmt.Println("configuration valid")
		return nil
	},
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var out []byte
	switch configFormat {
	case "toml":
		out, err = toml.Marshal(cfg)
	case "json":
		out, err = json.MarshalIndent(cfg, "", "  ")
	case "yaml":
		out, err = yaml.Marshal(cfg)
	default:
		return fmt.Errorf("unknown format %q (want toml, json or yaml)", configFormat)
	}
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
