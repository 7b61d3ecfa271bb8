package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mend-go/internal/domain"
)

// incidentColumns is the column list shared by all incident queries.
const incidentColumns = `id, repository, number, title, description, status,
	priority, error_category, event_count, first_seen_at, last_seen_at,
	created_at, updated_at, resolved_at`

// IncidentRepository implements store.IncidentRepository using PostgreSQL.
type IncidentRepository struct {
	db *DB
}

// NewIncidentRepository creates a new PostgreSQL-backed incident repository.
func NewIncidentRepository(db *DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// Create stores a new incident.
func (r *IncidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	if incident.ID == "" {
		incident.ID = uuid.New().String()
	}

	query := `
		INSERT INTO incidents (
			id, repository, number, title, description, status,
			priority, error_category, event_count, first_seen_at, last_seen_at,
			created_at, updated_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.pool.Exec(ctx, query,
		incident.ID,
		incident.Repository,
		incident.Number,
		incident.Title,
		incident.Description,
		incident.Status,
		incident.Priority,
		nullableString(incident.ErrorCategory),
		incident.EventCount,
		incident.FirstSeenAt,
		incident.LastSeenAt,
		incident.CreatedAt,
		incident.UpdatedAt,
		incident.ResolvedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}

	return nil
}

// Update modifies an existing incident.
func (r *IncidentRepository) Update(ctx context.Context, incident *domain.Incident) error {
	query := `
		UPDATE incidents SET
			status = $2,
			priority = $3,
			event_count = $4,
			last_seen_at = $5,
			updated_at = $6,
			resolved_at = $7
		WHERE id = $1
	`

	result, err := r.db.pool.Exec(ctx, query,
		incident.ID,
		incident.Status,
		incident.Priority,
		incident.EventCount,
		incident.LastSeenAt,
		incident.UpdatedAt,
		incident.ResolvedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrIncidentNotFound
	}

	return nil
}

// GetByID retrieves an incident by its database ID.
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := fmt.Sprintf("SELECT %s FROM incidents WHERE id = $1", incidentColumns)

	incident, err := scanIncident(r.db.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}

	return incident, nil
}

// NextNumber returns the next per-repository incident sequence number.
func (r *IncidentRepository) NextNumber(ctx context.Context, repository string) (int, error) {
	query := `SELECT COALESCE(MAX(number), 0) + 1 FROM incidents WHERE repository = $1`

	var number int
	if err := r.db.pool.QueryRow(ctx, query, repository).Scan(&number); err != nil {
		return 0, fmt.Errorf("failed to get next incident number: %w", err)
	}

	return number, nil
}

// List retrieves incidents matching the filter criteria.
func (r *IncidentRepository) List(ctx context.Context, filter domain.IncidentFilter) ([]*domain.Incident, error) {
	query := fmt.Sprintf("SELECT %s FROM incidents WHERE 1=1", incidentColumns)
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

	if filter.Priority != "" {
		query += fmt.Sprintf(" AND priority = $%d", argNum)
		args = append(args, filter.Priority)
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
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*domain.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, incident)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incidents: %w", err)
	}

	return incidents, nil
}

// scanIncident scans a single row into an Incident.
func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var incident domain.Incident
	var errorCategory *string

	err := row.Scan(
		&incident.ID,
		&incident.Repository,
		&incident.Number,
		&incident.Title,
		&incident.Description,
		&incident.Status,
		&incident.Priority,
		&errorCategory,
		&incident.EventCount,
		&incident.FirstSeenAt,
		&incident.LastSeenAt,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.ResolvedAt,
	)

	if err != nil {
		return nil, err
	}

	if errorCategory != nil {
		incident.ErrorCategory = *errorCategory
	}

	return &incident, nil
}
