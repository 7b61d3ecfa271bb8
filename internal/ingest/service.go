// Package ingest receives normalized telemetry events and publishes them to
// the message queue for asynchronous processing. Keeping ingestion thin lets
// webhook handlers acknowledge quickly regardless of downstream load.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mend-go/internal/domain"
	"mend-go/internal/metrics"
	"mend-go/internal/queue"
)

// Errors returned by the ingest service.
var (
	ErrInvalidEvent  = errors.New("invalid telemetry event")
	ErrPublishFailed = errors.New("failed to publish event to queue")
)

// Envelope is the queue wire format for one telemetry event.
type Envelope struct {
	Repository string                  `json:"repository"`
	Event      *domain.NormalizedEvent `json:"event"`
	ReceivedAt time.Time               `json:"received_at"`
}

// Service handles telemetry event ingestion.
type Service struct {
	producer queue.Producer
	logger   *slog.Logger
}

// NewService creates a new ingest service.
func NewService(producer queue.Producer, logger *slog.Logger) *Service {
	return &Service{
		producer: producer,
		logger:   logger,
	}
}

// Ingest validates a normalized event and publishes it to the queue.
// Events are keyed by repository and fingerprint so all occurrences of one
// problem are processed in order by a single consumer.
func (s *Service) Ingest(ctx context.Context, repository string, event *domain.NormalizedEvent) error {
	metrics.EventsReceivedTotal.WithLabelValues(string(event.Source)).Inc()

	if repository == "" || event.Message == "" && event.Title == "" {
		return ErrInvalidEvent
	}
	if event.Fingerprint == "" {
		event.ComputeFingerprint()
	}

	envelope := &Envelope{
		Repository: repository,
		Event:      event,
		ReceivedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Error("failed to serialize event", "error", err)
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	msg := &queue.Message{
		Key:   []byte(repository + ":" + event.Fingerprint),
		Value: payload,
		Headers: map[string]string{
			"repository": repository,
			"source":     string(event.Source),
		},
	}

	publishStart := time.Now()
	if err := s.producer.Publish(ctx, msg); err != nil {
		s.logger.Error("failed to publish event",
			"error", err,
			"repository", repository,
			"fingerprint", event.Fingerprint)
		return ErrPublishFailed
	}
	metrics.QueuePublishLatency.Observe(time.Since(publishStart).Seconds())
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Source)).Inc()

	s.logger.Debug("event published to queue",
		"repository", repository,
		"source", event.Source,
		"fingerprint", event.Fingerprint)

	return nil
}
