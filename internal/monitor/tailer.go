package monitor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"mend-go/internal/analyzer"
	"mend-go/internal/domain"
)

// LogTailer follows a log file by polling, feeding each new line through a
// stream analyzer. Starting position is the current end of the file so old
// errors are not re-reported; a file that shrinks is treated as truncated
// and re-read from the start with fresh analyzer state.
type LogTailer struct {
	logger   *slog.Logger
	path     string
	interval time.Duration
	analyzer *analyzer.Analyzer
	sink     Sink

	position int64
}

// NewLogTailer creates a tailer for one log file.
func NewLogTailer(logger *slog.Logger, path string, interval time.Duration, sink Sink) *LogTailer {
	return &LogTailer{
		logger:   logger,
		path:     path,
		interval: interval,
		analyzer: analyzer.New(),
		sink:     sink,
	}
}

// Run polls the file until the context is cancelled. A pending error block
// is flushed before returning.
func (t *LogTailer) Run(ctx context.Context) error {
	if info, err := os.Stat(t.path); err == nil {
		t.position = info.Size()
	}

	t.logger.Info("tailing log file", "path", t.path, "interval", t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if detected := t.analyzer.Flush(); detected != nil {
				t.report(context.WithoutCancel(ctx), detected)
			}
			return ctx.Err()
		case <-ticker.C:
			if err := t.poll(ctx); err != nil {
				t.logger.Warn("log poll failed", "path", t.path, "error", err)
			}
		}
	}
}

// poll reads whatever complete lines accumulated since the last position.
func (t *LogTailer) poll(ctx context.Context) error {
	info, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			// rotated away; wait for it to reappear
			t.position = 0
			return nil
		}
		return err
	}

	if info.Size() < t.position {
		t.logger.Info("log file truncated, restarting from the beginning", "path", t.path)
		t.position = 0
		t.analyzer.Reset()
	}

	if info.Size() == t.position {
		return nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(t.position, io.SeekStart); err != nil {
		return err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}

	// only consume up to the last complete line; a partial line stays in
	// the file for the next poll
	cut := bytes.LastIndexByte(data, '\n')
	if cut < 0 {
		return nil
	}
	chunk := data[:cut+1]
	t.position += int64(len(chunk))

	for _, line := range bytes.Split(chunk[:len(chunk)-1], []byte("\n")) {
		if detected := t.analyzer.Feed(string(line)); detected != nil {
			t.report(ctx, detected)
		}
	}
	return nil
}

func (t *LogTailer) report(ctx context.Context, detected *domain.DetectedError) {
	if err := t.sink.Report(ctx, detected); err != nil {
		t.logger.Error("failed to report detected error",
			"path", t.path,
			"error_type", detected.ErrorType,
			"error", err)
	}
}
