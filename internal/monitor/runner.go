package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"mend-go/internal/analyzer"
	"mend-go/internal/domain"
)

// ProcessRunner executes a check command and extracts errors from its
// combined output. A non-zero exit is not itself an error from Run; it means
// the check failed and the output is where the detail lives.
type ProcessRunner struct {
	logger *slog.Logger
	sink   Sink
}

// NewProcessRunner creates a runner reporting into the given sink.
func NewProcessRunner(logger *slog.Logger, sink Sink) *ProcessRunner {
	return &ProcessRunner{logger: logger, sink: sink}
}

// Run executes command through the shell and reports every detected error.
// It returns what was detected so callers can summarize.
func (r *ProcessRunner) Run(ctx context.Context, command string) ([]*domain.DetectedError, error) {
	r.logger.Info("running check", "command", command)

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	out, runErr := cmd.CombinedOutput()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	detected := analyzer.New().AnalyzeOutput(string(out))

	// a check that exits non-zero without a recognizable stacktrace still
	// failed; report the tail of its output as an opaque error
	if runErr != nil && len(detected) == 0 {
		detected = append(detected, &domain.DetectedError{
			ErrorType: "CheckFailed",
			Message:   fmt.Sprintf("%s: %s", command, lastLine(string(out))),
			Severity:  domain.SeverityError,
		})
	}

	for _, d := range detected {
		if err := r.sink.Report(ctx, d); err != nil {
			r.logger.Error("failed to report detected error",
				"command", command,
				"error_type", d.ErrorType,
				"error", err)
		}
	}

	if runErr != nil {
		r.logger.Warn("check failed", "command", command, "detections", len(detected), "error", runErr)
	} else {
		r.logger.Info("check passed", "command", command)
	}
	return detected, nil
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 {
		return "command exited with a non-zero status"
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return "command exited with a non-zero status"
	}
	return last
}
