package bus

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// collect waits for n invocations or fails the test after a timeout.
func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handlers")
	}
}

func TestBus_DeliversToSubscriber(t *testing.T) {
	b := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Event, 1)
	b.Subscribe(EventIncidentCreated, func(ctx context.Context, event Event) error {
		received <- event
		return nil
	})

	go b.Run(ctx)

	published := NewEvent(EventIncidentCreated, map[string]any{"incident_id": "inc-1"})
	b.Publish(published)

	select {
	case got := <-received:
		if got.Data["incident_id"] != "inc-1" {
			t.Errorf("unexpected event data: %+v", got.Data)
		}
		if got.CorrelationID != published.CorrelationID {
			t.Error("correlation id not preserved through dispatch")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestBus_HandlersRunInSubscriptionOrder(t *testing.T) {
	b := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	b.Subscribe(EventIncidentCreated, func(ctx context.Context, event Event) error {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
		return nil
	})
	b.Subscribe(EventIncidentCreated, func(ctx context.Context, event Event) error {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		close(done)
		return nil
	})

	go b.Run(ctx)
	b.Publish(NewEvent(EventIncidentCreated, nil))
	waitFor(t, done)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("expected subscription order, got %v", order)
	}
}

func TestBus_HandlerErrorDoesNotStopLaterHandlers(t *testing.T) {
	b := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	b.Subscribe(EventAlertCreated, func(ctx context.Context, event Event) error {
		return errors.New("handler failure")
	})
	b.Subscribe(EventAlertCreated, func(ctx context.Context, event Event) error {
		close(done)
		return nil
	})

	go b.Run(ctx)
	b.Publish(NewEvent(EventAlertCreated, nil))
	waitFor(t, done)
}

func TestBus_HandlerPanicIsRecovered(t *testing.T) {
	b := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	b.Subscribe(EventFixGenerated, func(ctx context.Context, event Event) error {
		panic("handler exploded")
	})
	b.Subscribe(EventFixGenerated, func(ctx context.Context, event Event) error {
		close(done)
		return nil
	})

	go b.Run(ctx)
	b.Publish(NewEvent(EventFixGenerated, nil))
	waitFor(t, done)
}

func TestBus_NoHandlersIsFine(t *testing.T) {
	b := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go b.Run(ctx)
	b.Publish(NewEvent(EventVerificationCompleted, nil))

	// drain proof: a later subscribed type still works
	done := make(chan struct{})
	b.Subscribe(EventIncidentUpdated, func(ctx context.Context, event Event) error {
		close(done)
		return nil
	})
	b.Publish(NewEvent(EventIncidentUpdated, nil))
	waitFor(t, done)
}

func TestBus_PublishAfterShutdownDrops(t *testing.T) {
	b := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(runDone)
	}()

	cancel()
	<-runDone

	// must not block or panic
	b.Publish(NewEvent(EventIncidentCreated, nil))
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventIncidentCreated, map[string]any{"k": "v"})
	if event.Type != EventIncidentCreated {
		t.Errorf("unexpected type %s", event.Type)
	}
	if event.CorrelationID == "" {
		t.Error("expected a correlation id")
	}
	if event.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}
