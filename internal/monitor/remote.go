package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mend-go/internal/domain"
	"mend-go/internal/normalizer"
)

// LogSink reports detected errors to the local log only. It is the fallback
// when no telemetry server is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(_ context.Context, detected *domain.DetectedError) error {
	s.logger.Error("error detected",
		"error_type", detected.ErrorType,
		"message", detected.Message,
		"file_path", detected.FilePath,
		"line_number", detected.LineNumber,
		"severity", detected.Severity,
		"language", detected.Language)
	return nil
}

// ServerSinkConfig identifies where reports go and what context they carry.
type ServerSinkConfig struct {
	// BaseURL is the telemetry server, e.g. http://localhost:8080.
	BaseURL string

	// Repository is attributed to every report.
	Repository string

	// Branch and CommitSHA are attached when the source knows them.
	Branch    string
	CommitSHA string
}

// ServerSink reports detected errors to a running telemetry server over its
// report endpoint.
type ServerSink struct {
	logger *slog.Logger
	client *http.Client
	url    string
	cfg    ServerSinkConfig
}

// NewServerSink creates a sink posting to the configured server.
func NewServerSink(logger *slog.Logger, cfg ServerSinkConfig) *ServerSink {
	return &ServerSink{
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/api/v1/reports",
		cfg:    cfg,
	}
}

func (s *ServerSink) Report(ctx context.Context, detected *domain.DetectedError) error {
	report := struct {
		normalizer.CLIReport
		Repository string `json:"repository,omitempty"`
	}{
		CLIReport: normalizer.CLIReport{
			Message:    detected.Message,
			ErrorType:  detected.ErrorType,
			Stacktrace: detected.Stacktrace,
			FilePath:   detected.FilePath,
			LineNumber: detected.LineNumber,
			Branch:     s.cfg.Branch,
			CommitSHA:  s.cfg.CommitSHA,
			Severity:   detected.Severity,
		},
		Repository: s.cfg.Repository,
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("server rejected report: %s", resp.Status)
	}

	s.logger.Debug("report delivered", "url", s.url, "status", resp.StatusCode)
	return nil
}
