package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mend-go/internal/domain"
)

// eventColumns is the column list shared by all monitor event queries.
const eventColumns = `id, repository, alert_id, incident_id, source, severity,
	title, error_type, message, stacktrace, file_path, line_number,
	commit_sha, branch, environment, raw_payload, fingerprint, created_at`

// EventRepository implements store.EventRepository using PostgreSQL.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new PostgreSQL-backed event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create stores a new monitor event.
func (r *EventRepository) Create(ctx context.Context, event *domain.MonitorEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO monitor_events (
			id, repository, alert_id, incident_id, source, severity,
			title, error_type, message, stacktrace, file_path, line_number,
			commit_sha, branch, environment, raw_payload, fingerprint, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.pool.Exec(ctx, query,
		event.ID,
		event.Repository,
		nullableString(event.AlertID),
		nullableString(event.IncidentID),
		event.Source,
		event.Severity,
		event.Title,
		nullableString(event.ErrorType),
		event.Message,
		nullableString(event.Stacktrace),
		nullableString(event.FilePath),
		event.LineNumber,
		nullableString(event.CommitSHA),
		nullableString(event.Branch),
		nullableString(event.Environment),
		event.RawPayload,
		event.Fingerprint,
		event.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create monitor event: %w", err)
	}

	return nil
}

// GetByID retrieves a monitor event by its database ID.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*domain.MonitorEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM monitor_events WHERE id = $1", eventColumns)

	event, err := scanEvent(r.db.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get monitor event: %w", err)
	}

	return event, nil
}

// ListByAlert retrieves all events absorbed into an alert, oldest first.
func (r *EventRepository) ListByAlert(ctx context.Context, alertID string) ([]*domain.MonitorEvent, error) {
	return r.list(ctx, "alert_id = $1", alertID)
}

// ListByIncident retrieves all events attributed to an incident, oldest first.
func (r *EventRepository) ListByIncident(ctx context.Context, incidentID string) ([]*domain.MonitorEvent, error) {
	return r.list(ctx, "incident_id = $1", incidentID)
}

func (r *EventRepository) list(ctx context.Context, condition string, args ...interface{}) ([]*domain.MonitorEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM monitor_events WHERE %s ORDER BY created_at ASC", eventColumns, condition)

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitor events: %w", err)
	}
	defer rows.Close()

	var events []*domain.MonitorEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan monitor event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monitor events: %w", err)
	}

	return events, nil
}

// AssignIncident re-parents every event of an alert onto an incident.
func (r *EventRepository) AssignIncident(ctx context.Context, alertID, incidentID string) error {
	query := `UPDATE monitor_events SET incident_id = $2 WHERE alert_id = $1`

	if _, err := r.db.pool.Exec(ctx, query, alertID, incidentID); err != nil {
		return fmt.Errorf("failed to assign incident to monitor events: %w", err)
	}

	return nil
}

// scanEvent scans a single row into a MonitorEvent.
func scanEvent(row pgx.Row) (*domain.MonitorEvent, error) {
	var event domain.MonitorEvent
	var alertID, incidentID, errorType, stacktrace, filePath, commitSHA, branch, environment *string

	err := row.Scan(
		&event.ID,
		&event.Repository,
		&alertID,
		&incidentID,
		&event.Source,
		&event.Severity,
		&event.Title,
		&errorType,
		&event.Message,
		&stacktrace,
		&filePath,
		&event.LineNumber,
		&commitSHA,
		&branch,
		&environment,
		&event.RawPayload,
		&event.Fingerprint,
		&event.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	if alertID != nil {
		event.AlertID = *alertID
	}
	if incidentID != nil {
		event.IncidentID = *incidentID
	}
	if errorType != nil {
		event.ErrorType = *errorType
	}
	if stacktrace != nil {
		event.Stacktrace = *stacktrace
	}
	if filePath != nil {
		event.FilePath = *filePath
	}
	if commitSHA != nil {
		event.CommitSHA = *commitSHA
	}
	if branch != nil {
		event.Branch = *branch
	}
	if environment != nil {
		event.Environment = *environment
	}

	return &event, nil
}
