package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mend-go/internal/domain"
)

// TimelineRepository implements store.TimelineRepository using PostgreSQL.
type TimelineRepository struct {
	db *DB
}

// NewTimelineRepository creates a new PostgreSQL-backed timeline repository.
func NewTimelineRepository(db *DB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// Append stores a new timeline entry.
func (r *TimelineRepository) Append(ctx context.Context, entry *domain.TimelineEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO incident_timeline (
			id, incident_id, kind, title, description, actor, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.pool.Exec(ctx, query,
		entry.ID,
		entry.IncidentID,
		entry.Kind,
		entry.Title,
		nullableString(entry.Description),
		entry.Actor,
		entry.Metadata,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append timeline entry: %w", err)
	}

	return nil
}

// ListByIncident retrieves an incident's timeline, oldest first.
func (r *TimelineRepository) ListByIncident(ctx context.Context, incidentID string) ([]*domain.TimelineEntry, error) {
	query := `
		SELECT id, incident_id, kind, title, description, actor, metadata, created_at
		FROM incident_timeline
		WHERE incident_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timeline entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.TimelineEntry
	for rows.Next() {
		var entry domain.TimelineEntry
		var description *string

		err := rows.Scan(
			&entry.ID,
			&entry.IncidentID,
			&entry.Kind,
			&entry.Title,
			&description,
			&entry.Actor,
			&entry.Metadata,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timeline entry: %w", err)
		}

		if description != nil {
			entry.Description = *description
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timeline entries: %w", err)
	}

	return entries, nil
}
