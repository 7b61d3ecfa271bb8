// Package cmd contains the CLI commands for mend.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mend",
	Short: "mend - failure telemetry and self-healing service",
	Long: `mend ingests failure telemetry from CI webhooks, error trackers, and
local monitoring, deduplicates it into alerts, escalates persistent problems
into incidents, and drives an asynchronous remediation pipeline.

Examples:
  # Run the service
  mend serve --config config/config.yaml

  # Run a command under the analyzer and report detected errors
  mend watch -- pytest -x

  # Follow a log file and report detected errors
  mend tail /var/log/app.log

  # Send a one-shot error report
  mend report --message "ValueError: bad input" --type ValueError`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to configuration file")
}

// cliLogger creates the logger for interactive commands. Text output, info
// level.
func cliLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}
