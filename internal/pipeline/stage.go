// Package pipeline chains the remediation stages of an incident:
// investigate, identify the root cause, generate a fix, verify it. Stages
// are triggered by bus events and executed through the task runner under the
// process-wide concurrency bound.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"mend-go/internal/domain"
	"mend-go/internal/store"
)

// Stage is one unit of remediation work for an incident. Run returns a
// human-readable summary for the incident timeline.
type Stage interface {
	// Name identifies the stage in logs, metrics and timeline entries.
	Name() string

	// Run executes the stage for an incident. It must honor context
	// cancellation.
	Run(ctx context.Context, incidentID string) (string, error)
}

// InvestigateStage inspects the events attributed to an incident and
// summarizes what is known about the failure.
type InvestigateStage struct {
	incidents store.IncidentRepository
	events    store.EventRepository
}

// NewInvestigateStage creates the investigation stage.
func NewInvestigateStage(incidents store.IncidentRepository, events store.EventRepository) *InvestigateStage {
	return &InvestigateStage{incidents: incidents, events: events}
}

func (s *InvestigateStage) Name() string { return "investigate" }

func (s *InvestigateStage) Run(ctx context.Context, incidentID string) (string, error) {
	incident, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return "", err
	}

	events, err := s.events.ListByIncident(ctx, incidentID)
	if err != nil {
		return "", err
	}

	environments := make(map[string]struct{})
	withTrace := 0
	for _, event := range events {
		if event.Environment != "" {
			environments[event.Environment] = struct{}{}
		}
		if event.Stacktrace != "" {
			withTrace++
		}
	}

	return fmt.Sprintf("Inspected %d events for %q (category %s); %d carry stacktraces across %d environments",
		len(events), incident.Title, incident.ErrorCategory, withTrace, len(environments)), nil
}

// RootCauseStage locates the most likely origin of the failure from the
// incident's event evidence.
type RootCauseStage struct {
	events store.EventRepository
}

// NewRootCauseStage creates the root cause analysis stage.
func NewRootCauseStage(events store.EventRepository) *RootCauseStage {
	return &RootCauseStage{events: events}
}

func (s *RootCauseStage) Name() string { return "root_cause" }

func (s *RootCauseStage) Run(ctx context.Context, incidentID string) (string, error) {
	events, err := s.events.ListByIncident(ctx, incidentID)
	if err != nil {
		return "", err
	}

	// the most recent event with a location is the best evidence
	var located *domain.MonitorEvent
	for _, event := range events {
		if event.FilePath != "" {
			located = event
		}
	}

	if located == nil {
		return "No file location in the event evidence; manual analysis required", nil
	}
	return fmt.Sprintf("Probable origin %s:%d (%s)", located.FilePath, located.LineNumber, located.ErrorType), nil
}

// FixStage drafts a remediation plan for an incident. Generating an actual
// patch is delegated to an external collaborator; the stage records the plan
// that would be handed over.
type FixStage struct {
	incidents store.IncidentRepository
}

// NewFixStage creates the fix generation stage.
func NewFixStage(incidents store.IncidentRepository) *FixStage {
	return &FixStage{incidents: incidents}
}

func (s *FixStage) Name() string { return "fix" }

func (s *FixStage) Run(ctx context.Context, incidentID string) (string, error) {
	incident, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return "", err
	}

	var plan strings.Builder
	fmt.Fprintf(&plan, "Fix plan for incident #%d (%s)", incident.Number, incident.Priority)
	if incident.ErrorCategory != "" {
		fmt.Fprintf(&plan, ": address %s", incident.ErrorCategory)
	}
	return plan.String(), nil
}

// VerifyStage checks whether the failure recurred after the fix landed.
type VerifyStage struct {
	incidents store.IncidentRepository
	events    store.EventRepository
}

// NewVerifyStage creates the verification stage.
func NewVerifyStage(incidents store.IncidentRepository, events store.EventRepository) *VerifyStage {
	return &VerifyStage{incidents: incidents, events: events}
}

func (s *VerifyStage) Name() string { return "verify" }

func (s *VerifyStage) Run(ctx context.Context, incidentID string) (string, error) {
	incident, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return "", err
	}

	events, err := s.events.ListByIncident(ctx, incidentID)
	if err != nil {
		return "", err
	}

	recurrences := 0
	for _, event := range events {
		if event.CreatedAt.After(incident.UpdatedAt) {
			recurrences++
		}
	}

	if recurrences > 0 {
		return fmt.Sprintf("%d recurrences observed since the fix; verification failed", recurrences),
			fmt.Errorf("failure recurred %d times after fix", recurrences)
	}
	return "No recurrences observed since the fix", nil
}
