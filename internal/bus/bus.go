// Package bus provides the in-process event bus that connects the alert
// engine, incident lifecycle and remediation pipeline. A single dispatch
// goroutine drains a buffered queue and invokes the handlers subscribed to
// each event type sequentially, in subscription order.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of an event on the bus.
type EventType string

const (
	EventIncidentCreated        EventType = "incident.created"
	EventIncidentUpdated        EventType = "incident.updated"
	EventAlertCreated           EventType = "alert.created"
	EventAlertUpdated           EventType = "alert.updated"
	EventInvestigationCompleted EventType = "investigation.completed"
	EventRootCauseCompleted     EventType = "root_cause.completed"
	EventFixGenerated           EventType = "fix.generated"
	EventVerificationCompleted  EventType = "verification.completed"
)

// Event is a message on the bus. Data carries the event payload; the
// correlation id groups all events of one remediation chain.
type Event struct {
	Type          EventType      `json:"type"`
	Data          map[string]any `json:"data"`
	CorrelationID string         `json:"correlation_id"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewEvent builds an event with a fresh correlation id.
func NewEvent(eventType EventType, data map[string]any) Event {
	return Event{
		Type:          eventType,
		Data:          data,
		CorrelationID: uuid.New().String(),
		Timestamp:     time.Now().UTC(),
	}
}

// Handler processes one event. Handlers run on the dispatch goroutine and
// must not block indefinitely.
type Handler func(ctx context.Context, event Event) error

// defaultQueueSize is the dispatch queue capacity.
const defaultQueueSize = 256

// Bus is the in-process event bus. Subscribe before calling Run; publishing
// is safe from any goroutine.
type Bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[EventType][]Handler

	queue  chan Event
	closed chan struct{}
	once   sync.Once
}

// New creates a bus with the default queue capacity.
func New(logger *slog.Logger) *Bus {
	return NewWithCapacity(logger, defaultQueueSize)
}

// NewWithCapacity creates a bus with an explicit queue capacity.
func NewWithCapacity(logger *slog.Logger, capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultQueueSize
	}
	return &Bus{
		logger:   logger,
		handlers: make(map[EventType][]Handler),
		queue:    make(chan Event, capacity),
		closed:   make(chan struct{}),
	}
}

// Subscribe registers a handler for an event type. Handlers for one type are
// invoked in the order they subscribed.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish enqueues an event for dispatch. It never blocks the caller; an
// event published after shutdown is dropped with a warning.
func (b *Bus) Publish(event Event) {
	select {
	case <-b.closed:
		b.logger.Warn("event dropped, bus is shut down", "event_type", event.Type)
		return
	default:
	}

	select {
	case b.queue <- event:
	case <-b.closed:
		b.logger.Warn("event dropped, bus is shut down", "event_type", event.Type)
	}
}

// Run drains the queue until the context is cancelled, dispatching each
// event to its subscribed handlers. It returns when shutdown completes.
func (b *Bus) Run(ctx context.Context) {
	defer b.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.queue:
			b.dispatch(ctx, event)
		}
	}
}

func (b *Bus) shutdown() {
	b.once.Do(func() { close(b.closed) })
}

// dispatch invokes every handler for the event's type. A failing or
// panicking handler is logged and does not stop later handlers.
func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := b.invoke(ctx, handler, event); err != nil {
			b.logger.Error("event handler failed",
				"event_type", event.Type,
				"correlation_id", event.CorrelationID,
				"error", err)
		}
	}
}

func (b *Bus) invoke(ctx context.Context, handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}
