package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"mend-go/internal/domain"
	"mend-go/internal/monitor"
)

var (
	reportMessage    string
	reportType       string
	reportFile       string
	reportLine       int
	reportSeverity   string
	reportStacktrace string
	reportRepository string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Send a one-shot error report",
	Long: `Send a single error report to the telemetry server. The current git
branch and commit are attached when run inside a checkout.

Examples:
  mend report --message "ValueError: bad input" --type ValueError
  mend report --message "db timeout" --severity critical --file app/db.py --line 42`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportMessage, "message", "m", "", "error message (required)")
	reportCmd.Flags().StringVarP(&reportType, "type", "t", "", "error type")
	reportCmd.Flags().StringVar(&reportFile, "file", "", "file path where the error occurred")
	reportCmd.Flags().IntVar(&reportLine, "line", 0, "line number where the error occurred")
	reportCmd.Flags().StringVar(&reportSeverity, "severity", "error", "severity (critical, error, warning, info)")
	reportCmd.Flags().StringVar(&reportStacktrace, "stacktrace", "", "stacktrace text")
	reportCmd.Flags().StringVar(&reportRepository, "repository", "", "repository the error belongs to (overrides config)")
	reportCmd.Flags().StringVar(&serverURL, "server", "", "telemetry server URL (overrides config)")
	reportCmd.MarkFlagRequired("message")
}

func runReport(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	cfg := loadConfig(logger)

	url := serverURL
	if url == "" {
		url = cfg.Monitor.ServerURL
	}
	if url == "" {
		return errors.New("no telemetry server configured; use --server or set monitor.server_url")
	}

	repository := reportRepository
	if repository == "" {
		repository = cfg.Monitor.Repository
	}

	severity := domain.Severity(reportSeverity)
	if !severity.IsValid() {
		return errors.New("severity must be one of critical, error, warning, info")
	}

	branch, sha := gitContext()
	sink := monitor.NewServerSink(logger, monitor.ServerSinkConfig{
		BaseURL:    url,
		Repository: repository,
		Branch:     branch,
		CommitSHA:  sha,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := sink.Report(ctx, &domain.DetectedError{
		ErrorType:  reportType,
		Message:    reportMessage,
		Stacktrace: reportStacktrace,
		FilePath:   reportFile,
		LineNumber: reportLine,
		Severity:   severity,
	}); err != nil {
		return err
	}

	logger.Info("report sent", "server", url, "repository", repository)
	return nil
}
