package processor

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"mend-go/internal/alerting"
	"mend-go/internal/bus"
	"mend-go/internal/domain"
	"mend-go/internal/ingest"
	"mend-go/internal/queue"
	qmemory "mend-go/internal/queue/memory"
	smemory "mend-go/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func TestService_ConsumesAndProcessesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := qmemory.NewQueue(8)
	alerts := smemory.NewAlertRepository()
	engine := alerting.NewEngine(testLogger(), alerts,
		smemory.NewIncidentRepository(), smemory.NewEventRepository(),
		smemory.NewTimelineRepository(), nil, bus.New(testLogger()))

	ingestSvc := ingest.NewService(q, testLogger())
	processor := NewService(q, engine, testLogger())

	go func() { _ = processor.Start(ctx) }()

	event := &domain.NormalizedEvent{
		Source:    domain.SourceTracker,
		Severity:  domain.SeverityCritical,
		Title:     "OOMKilled",
		Message:   "out of memory",
		ErrorType: "OOMKilled",
	}
	if err := ingestSvc.Ingest(ctx, "acme/widgets", event); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if alert, err := alerts.FindOpenByFingerprint(ctx, "acme/widgets", event.Fingerprint); err == nil {
			if alert.OccurrenceCount != 1 {
				t.Errorf("expected occurrence count 1, got %d", alert.OccurrenceCount)
			}
			if !alert.IsEscalated() {
				t.Error("expected a critical event to escalate immediately")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("event was never processed")
}

func TestService_DropsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := qmemory.NewQueue(8)
	alerts := smemory.NewAlertRepository()
	engine := alerting.NewEngine(testLogger(), alerts,
		smemory.NewIncidentRepository(), smemory.NewEventRepository(),
		smemory.NewTimelineRepository(), nil, bus.New(testLogger()))
	processor := NewService(q, engine, testLogger())

	go func() { _ = processor.Start(ctx) }()

	if err := q.Publish(ctx, &queue.Message{Value: []byte("not json")}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	remaining, err := alerts.List(ctx, domain.AlertFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no alerts from malformed input, got %d", len(remaining))
	}
}
