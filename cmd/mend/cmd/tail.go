package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mend-go/internal/monitor"
)

var tailInterval time.Duration

var tailCmd = &cobra.Command{
	Use:   "tail <file>",
	Short: "Follow a log file and report detected errors",
	Long: `Follow a log file, scanning new lines for error patterns and
stacktraces. Rotated or truncated files are picked up from the start.

Detected errors are reported to the telemetry server when one is
configured, otherwise logged locally.

Examples:
  mend tail /var/log/app.log
  mend tail /var/log/app.log --interval 500ms --server http://localhost:8080`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().DurationVar(&tailInterval, "interval", 0, "poll interval (overrides config)")
	tailCmd.Flags().StringVar(&serverURL, "server", "", "telemetry server URL (overrides config)")
}

func runTail(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	cfg := loadConfig(logger)
	sink := buildSink(logger, cfg)

	interval := tailInterval
	if interval == 0 {
		interval = cfg.Monitor.PollInterval
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tailer := monitor.NewLogTailer(logger, args[0], interval, sink)
	if err := tailer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
