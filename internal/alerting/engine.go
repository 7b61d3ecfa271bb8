// Package alerting implements failure deduplication and escalation. Every
// normalized telemetry event is absorbed into an alert keyed by
// (repository, fingerprint); alerts that cross their severity threshold are
// promoted into incidents exactly once.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mend-go/internal/bus"
	"mend-go/internal/domain"
	"mend-go/internal/metrics"
	"mend-go/internal/store"
)

// stateTTL bounds how long cached dedup state lives without new events.
const stateTTL = 24 * time.Hour

// Engine owns alert state. All mutations of an alert go through it.
type Engine struct {
	logger    *slog.Logger
	alerts    store.AlertRepository
	incidents store.IncidentRepository
	events    store.EventRepository
	timeline  store.TimelineRepository
	states    store.StateStore
	bus       *bus.Bus

	// locks serializes processing per (repository, fingerprint) so
	// concurrent occurrences of one problem cannot race past the
	// escalation check and create duplicate incidents.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an alert engine. states may be nil when no dedup cache
// is configured.
func NewEngine(
	logger *slog.Logger,
	alerts store.AlertRepository,
	incidents store.IncidentRepository,
	events store.EventRepository,
	timeline store.TimelineRepository,
	states store.StateStore,
	eventBus *bus.Bus,
) *Engine {
	return &Engine{
		logger:    logger,
		alerts:    alerts,
		incidents: incidents,
		events:    events,
		timeline:  timeline,
		states:    states,
		bus:       eventBus,
		locks:     make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing one (repository, fingerprint) pair.
func (e *Engine) keyLock(repository, fingerprint string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := repository + "\x00" + fingerprint
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}

// ProcessEvent absorbs one normalized event. It finds or creates the open
// alert for the event's fingerprint, persists the monitor event under that
// alert, and escalates when the occurrence count crosses the alert's
// threshold. The returned alert reflects the state after processing.
func (e *Engine) ProcessEvent(ctx context.Context, repository string, normalized *domain.NormalizedEvent, monitorEvent *domain.MonitorEvent) (*domain.Alert, error) {
	if normalized.Fingerprint == "" {
		normalized.ComputeFingerprint()
	}

	lock := e.keyLock(repository, normalized.Fingerprint)
	lock.Lock()
	defer lock.Unlock()

	alert, err := e.alerts.FindOpenByFingerprint(ctx, repository, normalized.Fingerprint)
	switch {
	case errors.Is(err, domain.ErrAlertNotFound):
		alert = domain.NewAlert(repository, normalized)
		if err := e.alerts.Create(ctx, alert); err != nil {
			return nil, fmt.Errorf("failed to create alert: %w", err)
		}
		metrics.AlertsCreatedTotal.WithLabelValues(string(alert.Severity)).Inc()
		e.logger.Info("alert created",
			"alert_id", alert.ID,
			"repository", repository,
			"fingerprint", alert.Fingerprint,
			"severity", alert.Severity)
	case err != nil:
		return nil, fmt.Errorf("failed to look up alert: %w", err)
	default:
		alert.RecordOccurrence()
		if err := e.alerts.Update(ctx, alert); err != nil {
			return nil, fmt.Errorf("failed to update alert: %w", err)
		}
		metrics.AlertOccurrencesTotal.WithLabelValues(string(alert.Severity)).Inc()
		e.logger.Info("alert occurrence recorded",
			"alert_id", alert.ID,
			"repository", repository,
			"occurrence_count", alert.OccurrenceCount)
	}

	if monitorEvent != nil {
		monitorEvent.AlertID = alert.ID
		monitorEvent.IncidentID = alert.IncidentID
		if err := e.events.Create(ctx, monitorEvent); err != nil {
			return nil, fmt.Errorf("failed to persist monitor event: %w", err)
		}
	}

	if !alert.IsEscalated() && alert.ShouldEscalate(time.Now().UTC()) {
		if err := e.escalate(ctx, alert); err != nil {
			return nil, err
		}
	}

	e.cacheState(ctx, alert)
	return alert, nil
}

// escalate promotes an alert into a new incident. Callers hold the key lock.
func (e *Engine) escalate(ctx context.Context, alert *domain.Alert) error {
	number, err := e.incidents.NextNumber(ctx, alert.Repository)
	if err != nil {
		return fmt.Errorf("failed to get next incident number: %w", err)
	}

	incident := domain.NewIncident(alert, number)
	if err := e.incidents.Create(ctx, incident); err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}

	alert.MarkEscalated(incident.ID)
	if err := e.alerts.Update(ctx, alert); err != nil {
		return fmt.Errorf("failed to mark alert escalated: %w", err)
	}

	// events absorbed before escalation get attributed to the incident
	if err := e.events.AssignIncident(ctx, alert.ID, incident.ID); err != nil {
		return fmt.Errorf("failed to re-parent events: %w", err)
	}

	entry := domain.NewTimelineEntry(incident.ID, domain.TimelineIncidentCreated,
		"Incident created",
		fmt.Sprintf("Escalated from alert after %d occurrences", alert.OccurrenceCount))
	entry.Metadata = map[string]any{
		"alert_id":    alert.ID,
		"fingerprint": alert.Fingerprint,
		"severity":    string(alert.Severity),
	}
	if err := e.timeline.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append timeline entry: %w", err)
	}

	metrics.IncidentsCreatedTotal.WithLabelValues(string(incident.Priority)).Inc()
	e.logger.Info("alert escalated to incident",
		"alert_id", alert.ID,
		"incident_id", incident.ID,
		"incident_number", incident.Number,
		"repository", incident.Repository,
		"priority", incident.Priority)

	e.bus.Publish(bus.NewEvent(bus.EventIncidentCreated, map[string]any{
		"incident_id": incident.ID,
		"alert_id":    alert.ID,
		"repository":  incident.Repository,
		"priority":    string(incident.Priority),
	}))

	return nil
}

// cacheState mirrors the alert's dedup state into the state store. Cache
// failures are logged, not fatal; the repository stays authoritative.
func (e *Engine) cacheState(ctx context.Context, alert *domain.Alert) {
	if e.states == nil {
		return
	}

	state := &store.FingerprintState{
		AlertID:         alert.ID,
		Status:          string(alert.Status),
		OccurrenceCount: alert.OccurrenceCount,
		LastSeenAt:      alert.LastSeenAt,
	}
	if err := e.states.SetFingerprint(ctx, alert.Repository, alert.Fingerprint, state, stateTTL); err != nil {
		e.logger.Warn("failed to cache alert state", "alert_id", alert.ID, "error", err)
	}
}

// Acknowledge marks an alert as seen by an operator.
func (e *Engine) Acknowledge(ctx context.Context, id string) (*domain.Alert, error) {
	return e.mutate(ctx, id, func(alert *domain.Alert) {
		alert.Acknowledge()
	})
}

// Suppress blocks escalation for an alert, optionally until a deadline.
func (e *Engine) Suppress(ctx context.Context, id string, until *time.Time) (*domain.Alert, error) {
	return e.mutate(ctx, id, func(alert *domain.Alert) {
		alert.Suppress(until)
	})
}

// Resolve terminates an alert. A recurrence of the same fingerprint will
// start a fresh alert with fresh counters.
func (e *Engine) Resolve(ctx context.Context, id string) (*domain.Alert, error) {
	alert, err := e.mutate(ctx, id, func(alert *domain.Alert) {
		alert.Resolve()
	})
	if err != nil {
		return nil, err
	}

	if e.states != nil {
		if err := e.states.DeleteFingerprint(ctx, alert.Repository, alert.Fingerprint); err != nil {
			e.logger.Warn("failed to drop cached alert state", "alert_id", alert.ID, "error", err)
		}
	}
	return alert, nil
}

// mutate applies fn to an alert under its key lock and persists the result.
func (e *Engine) mutate(ctx context.Context, id string, fn func(*domain.Alert)) (*domain.Alert, error) {
	alert, err := e.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := e.keyLock(alert.Repository, alert.Fingerprint)
	lock.Lock()
	defer lock.Unlock()

	// re-read under the lock
	alert, err = e.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fn(alert)
	if err := e.alerts.Update(ctx, alert); err != nil {
		return nil, err
	}

	e.bus.Publish(bus.NewEvent(bus.EventAlertUpdated, map[string]any{
		"alert_id": alert.ID,
		"status":   string(alert.Status),
	}))
	return alert, nil
}

// Get retrieves an alert by ID.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Alert, error) {
	return e.alerts.GetByID(ctx, id)
}

// List retrieves alerts matching the filter.
func (e *Engine) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	return e.alerts.List(ctx, filter)
}
