// Package processor consumes telemetry events from the message queue and
// feeds them through the alert engine. It is the single writer of alert and
// incident state in the storage-backed deployment.
package processor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"mend-go/internal/alerting"
	"mend-go/internal/domain"
	"mend-go/internal/ingest"
	"mend-go/internal/metrics"
	"mend-go/internal/queue"
)

// Service processes queued telemetry events.
type Service struct {
	consumer queue.Consumer
	engine   *alerting.Engine
	logger   *slog.Logger
}

// NewService creates a new processor service.
func NewService(consumer queue.Consumer, engine *alerting.Engine, logger *slog.Logger) *Service {
	return &Service{
		consumer: consumer,
		engine:   engine,
		logger:   logger,
	}
}

// Start begins consuming events from the queue and processing them.
// This is a blocking call that runs until the context is canceled.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("starting processor service")
	return s.consumer.Start(ctx, s.handleMessage)
}

// handleMessage is the callback for processing each message from the queue.
func (s *Service) handleMessage(ctx context.Context, msg *queue.Message) error {
	var envelope ingest.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		s.logger.Error("failed to deserialize event", "error", err)
		// malformed messages are dropped, not retried
		return nil
	}
	if envelope.Event == nil || envelope.Repository == "" {
		s.logger.Warn("dropping envelope without event or repository")
		return nil
	}

	start := time.Now()
	source := string(envelope.Event.Source)

	monitorEvent := domain.NewMonitorEvent(envelope.Repository, envelope.Event)
	alert, err := s.engine.ProcessEvent(ctx, envelope.Repository, envelope.Event, monitorEvent)
	if err != nil {
		metrics.EventsProcessedTotal.WithLabelValues(source, "failure").Inc()
		s.logger.Error("failed to process event",
			"error", err,
			"repository", envelope.Repository,
			"fingerprint", envelope.Event.Fingerprint)
		return err
	}

	metrics.EventsProcessedTotal.WithLabelValues(source, "success").Inc()
	metrics.EventProcessingLatency.Observe(time.Since(start).Seconds())
	if alert.IsEscalated() {
		metrics.EscalationLatency.Observe(time.Since(envelope.ReceivedAt).Seconds())
	}

	return nil
}
