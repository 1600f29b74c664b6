package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/vigil/cmd/vigild/commands"
	"github.com/teranos/vigil/logger"
)

var (
	jsonLogs bool
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "vigild",
	Short: "vigild - online diagnostics engine daemon",
	Long: `vigild - reference host for the vigil diagnostics engine.

vigild runs a diagnostics engine, loads module configuration from JSON
files, and serves engine status over HTTP.

Available commands:
  serve  - Run the diagnostics engine
  config - Manage vigild configuration

Examples:
  vigild serve                          # Run with ./vigil.toml (or defaults)
  vigild serve --module-config diag.json
  vigild config init                    # Write a default vigil.toml
  vigild config show --format yaml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if verbose {
			logger.SetVerbose()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit JSON structured logs")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
