package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mend-go/internal/bus"
	"mend-go/internal/domain"
	"mend-go/internal/incident"
	"mend-go/internal/metrics"
	"mend-go/internal/tasks"
)

// Orchestrator wires remediation stages to bus events. Each stage runs as a
// task under the shared concurrency bound; the next stage's event is
// published only when the current one succeeds, so a failing stage halts the
// chain for that incident.
type Orchestrator struct {
	logger    *slog.Logger
	runner    *tasks.Runner
	incidents *incident.Service
	bus       *bus.Bus

	investigate Stage
	rootCause   Stage
	fix         Stage
	verify      Stage
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(
	logger *slog.Logger,
	runner *tasks.Runner,
	incidents *incident.Service,
	eventBus *bus.Bus,
	investigate, rootCause, fix, verify Stage,
) *Orchestrator {
	return &Orchestrator{
		logger:      logger,
		runner:      runner,
		incidents:   incidents,
		bus:         eventBus,
		investigate: investigate,
		rootCause:   rootCause,
		fix:         fix,
		verify:      verify,
	}
}

// Register subscribes the pipeline to its trigger events.
func (o *Orchestrator) Register() {
	o.bus.Subscribe(bus.EventIncidentCreated, o.onIncidentCreated)
	o.bus.Subscribe(bus.EventInvestigationCompleted, o.onInvestigationCompleted)
	o.bus.Subscribe(bus.EventRootCauseCompleted, o.onRootCauseCompleted)
	o.bus.Subscribe(bus.EventFixGenerated, o.onFixGenerated)
}

func incidentID(event bus.Event) (string, error) {
	id, ok := event.Data["incident_id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("event %s carries no incident_id", event.Type)
	}
	return id, nil
}

func (o *Orchestrator) onIncidentCreated(ctx context.Context, event bus.Event) error {
	id, err := incidentID(event)
	if err != nil {
		return err
	}
	return o.submit(id, o.investigate, domain.IncidentStatusInvestigating, bus.EventInvestigationCompleted)
}

func (o *Orchestrator) onInvestigationCompleted(ctx context.Context, event bus.Event) error {
	id, err := incidentID(event)
	if err != nil {
		return err
	}
	return o.submit(id, o.rootCause, domain.IncidentStatusRootCauseIdentified, bus.EventRootCauseCompleted)
}

func (o *Orchestrator) onRootCauseCompleted(ctx context.Context, event bus.Event) error {
	id, err := incidentID(event)
	if err != nil {
		return err
	}
	return o.submit(id, o.fix, domain.IncidentStatusFixInProgress, bus.EventFixGenerated)
}

func (o *Orchestrator) onFixGenerated(ctx context.Context, event bus.Event) error {
	// verification waits for the fix to merge; an operator (or CI) drives
	// the fix_in_progress -> fix_merged transitions through the API, and
	// the verify stage only reports what it observed.
	id, err := incidentID(event)
	if err != nil {
		return err
	}
	return o.submit(id, o.verify, "", bus.EventVerificationCompleted)
}

// submit queues one stage run for an incident. The target status is entered
// before the stage runs; a stage failure leaves the incident where it is and
// publishes nothing.
func (o *Orchestrator) submit(id string, stage Stage, target domain.IncidentStatus, next bus.EventType) error {
	key := fmt.Sprintf("%s:%s", stage.Name(), id)

	err := o.runner.Submit(key, func(ctx context.Context) error {
		if target != "" {
			if _, err := o.incidents.Transition(ctx, id, target); err != nil {
				o.logger.Error("stage transition failed",
					"stage", stage.Name(), "incident_id", id, "error", err)
				return err
			}
		}

		metrics.RunningTasks.Inc()
		defer metrics.RunningTasks.Dec()

		start := time.Now()
		summary, err := stage.Run(ctx, id)
		metrics.StageLatency.WithLabelValues(stage.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.StageRunsTotal.WithLabelValues(stage.Name(), "failure").Inc()
			o.logger.Error("remediation stage failed",
				"stage", stage.Name(), "incident_id", id, "error", err)
			return err
		}
		metrics.StageRunsTotal.WithLabelValues(stage.Name(), "success").Inc()

		if err := o.incidents.RecordStageResult(ctx, id, stage.Name(), summary); err != nil {
			o.logger.Warn("failed to record stage result",
				"stage", stage.Name(), "incident_id", id, "error", err)
		}

		o.logger.Info("remediation stage completed",
			"stage", stage.Name(), "incident_id", id)

		o.bus.Publish(bus.NewEvent(next, map[string]any{
			"incident_id": id,
			"stage":       stage.Name(),
			"summary":     summary,
		}))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to submit %s stage: %w", stage.Name(), err)
	}
	return nil
}
