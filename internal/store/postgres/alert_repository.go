package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mend-go/internal/domain"
)

// alertColumns is the column list shared by all alert queries.
const alertColumns = `id, repository, fingerprint, incident_id, title, description,
	status, severity, error_type, source, environment, file_path,
	occurrence_count, escalation_threshold, auto_escalate, suppressed_until,
	first_seen_at, last_seen_at, created_at, updated_at`

// AlertRepository implements store.AlertRepository using PostgreSQL.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new PostgreSQL-backed alert repository.
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create stores a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	query := `
		INSERT INTO alerts (
			id, repository, fingerprint, incident_id, title, description,
			status, severity, error_type, source, environment, file_path,
			occurrence_count, escalation_threshold, auto_escalate, suppressed_until,
			first_seen_at, last_seen_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.db.pool.Exec(ctx, query,
		alert.ID,
		alert.Repository,
		alert.Fingerprint,
		nullableString(alert.IncidentID),
		alert.Title,
		alert.Description,
		alert.Status,
		alert.Severity,
		nullableString(alert.ErrorType),
		alert.Source,
		nullableString(alert.Environment),
		nullableString(alert.FilePath),
		alert.OccurrenceCount,
		alert.EscalationThreshold,
		alert.AutoEscalate,
		alert.SuppressedUntil,
		alert.FirstSeenAt,
		alert.LastSeenAt,
		alert.CreatedAt,
		alert.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// Update modifies an existing alert.
func (r *AlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	query := `
		UPDATE alerts SET
			incident_id = $2,
			status = $3,
			severity = $4,
			occurrence_count = $5,
			auto_escalate = $6,
			suppressed_until = $7,
			last_seen_at = $8,
			updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.pool.Exec(ctx, query,
		alert.ID,
		nullableString(alert.IncidentID),
		alert.Status,
		alert.Severity,
		alert.OccurrenceCount,
		alert.AutoEscalate,
		alert.SuppressedUntil,
		alert.LastSeenAt,
		alert.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAlertNotFound
	}

	return nil
}

// GetByID retrieves an alert by its database ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	return r.getOne(ctx, "id = $1", id)
}

// FindOpenByFingerprint retrieves the non-resolved alert for a
// (repository, fingerprint) pair.
func (r *AlertRepository) FindOpenByFingerprint(ctx context.Context, repository, fingerprint string) (*domain.Alert, error) {
	return r.getOne(ctx, "repository = $1 AND fingerprint = $2 AND status != 'resolved'", repository, fingerprint)
}

// getOne retrieves a single alert matching the given condition.
func (r *AlertRepository) getOne(ctx context.Context, condition string, args ...interface{}) (*domain.Alert, error) {
	query := fmt.Sprintf("SELECT %s FROM alerts WHERE %s", alertColumns, condition)

	row := r.db.pool.QueryRow(ctx, query, args...)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

// List retrieves alerts matching the filter criteria.
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	query := fmt.Sprintf("SELECT %s FROM alerts WHERE 1=1", alertColumns)
	args := []interface{}{}
	argNum := 1

	if filter.Repository != "" {
		query += fmt.Sprintf(" AND repository = $%d", argNum)
		args = append(args, filter.Repository)
		argNum++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filter.Status)
		argNum++
	}

	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, filter.Severity)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

// scanAlert scans a single row into an Alert.
func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var alert domain.Alert
	var incidentID, errorType, environment, filePath *string

	err := row.Scan(
		&alert.ID,
		&alert.Repository,
		&alert.Fingerprint,
		&incidentID,
		&alert.Title,
		&alert.Description,
		&alert.Status,
		&alert.Severity,
		&errorType,
		&alert.Source,
		&environment,
		&filePath,
		&alert.OccurrenceCount,
		&alert.EscalationThreshold,
		&alert.AutoEscalate,
		&alert.SuppressedUntil,
		&alert.FirstSeenAt,
		&alert.LastSeenAt,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	if incidentID != nil {
		alert.IncidentID = *incidentID
	}
	if errorType != nil {
		alert.ErrorType = *errorType
	}
	if environment != nil {
		alert.Environment = *environment
	}
	if filePath != nil {
		alert.FilePath = *filePath
	}

	return &alert, nil
}

// nullableString returns nil if the string is empty, otherwise returns a pointer to it.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
