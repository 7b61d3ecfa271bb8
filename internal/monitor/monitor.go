// Package monitor provides the local telemetry sources: a polling log
// tailer, an fsnotify-based file watcher that runs check commands, and a
// process runner that wraps a command and analyzes its output. Each source
// feeds detected errors into a sink, typically the ingestion path.
package monitor

import (
	"context"

	"mend-go/internal/domain"
)

// Sink receives errors detected by a monitoring source.
type Sink interface {
	Report(ctx context.Context, detected *domain.DetectedError) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, detected *domain.DetectedError) error

// Report calls the function.
func (f SinkFunc) Report(ctx context.Context, detected *domain.DetectedError) error {
	return f(ctx, detected)
}
