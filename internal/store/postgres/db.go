// Package postgres provides PostgreSQL-based implementations of the store interfaces.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mend-go/internal/config"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, cfg *config.PostgresConfig) (*DB, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
		cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxOpenConns
	poolConfig.MinConns = cfg.MaxIdleConns
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// RunMigrations creates the required database tables.
func (db *DB) RunMigrations(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS alerts (
			id VARCHAR(36) PRIMARY KEY,
			repository VARCHAR(255) NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			incident_id VARCHAR(36),
			title TEXT NOT NULL,
			description TEXT,
			status VARCHAR(20) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			error_type VARCHAR(255),
			source VARCHAR(50) NOT NULL,
			environment VARCHAR(50),
			file_path TEXT,
			occurrence_count INTEGER NOT NULL DEFAULT 1,
			escalation_threshold INTEGER NOT NULL,
			auto_escalate BOOLEAN NOT NULL DEFAULT TRUE,
			suppressed_until TIMESTAMP WITH TIME ZONE,
			first_seen_at TIMESTAMP WITH TIME ZONE NOT NULL,
			last_seen_at TIMESTAMP WITH TIME ZONE NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open_fingerprint
			ON alerts(repository, fingerprint) WHERE status != 'resolved';
		CREATE INDEX IF NOT EXISTS idx_alerts_repository ON alerts(repository);
		CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);

		CREATE TABLE IF NOT EXISTS incidents (
			id VARCHAR(36) PRIMARY KEY,
			repository VARCHAR(255) NOT NULL,
			number INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			status VARCHAR(30) NOT NULL,
			priority VARCHAR(5) NOT NULL,
			error_category VARCHAR(255),
			event_count INTEGER NOT NULL DEFAULT 0,
			first_seen_at TIMESTAMP WITH TIME ZONE NOT NULL,
			last_seen_at TIMESTAMP WITH TIME ZONE NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
			resolved_at TIMESTAMP WITH TIME ZONE,
			UNIQUE (repository, number)
		);

		CREATE INDEX IF NOT EXISTS idx_incidents_repository ON incidents(repository);
		CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);

		CREATE TABLE IF NOT EXISTS monitor_events (
			id VARCHAR(36) PRIMARY KEY,
			repository VARCHAR(255) NOT NULL,
			alert_id VARCHAR(36),
			incident_id VARCHAR(36),
			source VARCHAR(50) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			title TEXT NOT NULL,
			error_type VARCHAR(255),
			message TEXT NOT NULL,
			stacktrace TEXT,
			file_path TEXT,
			line_number INTEGER,
			commit_sha VARCHAR(64),
			branch VARCHAR(255),
			environment VARCHAR(50),
			raw_payload JSONB,
			fingerprint VARCHAR(64) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_monitor_events_alert ON monitor_events(alert_id);
		CREATE INDEX IF NOT EXISTS idx_monitor_events_incident ON monitor_events(incident_id);
		CREATE INDEX IF NOT EXISTS idx_monitor_events_fingerprint ON monitor_events(repository, fingerprint);

		CREATE TABLE IF NOT EXISTS incident_timeline (
			id VARCHAR(36) PRIMARY KEY,
			incident_id VARCHAR(36) NOT NULL,
			kind VARCHAR(50) NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			actor VARCHAR(100) NOT NULL,
			metadata JSONB,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_timeline_incident ON incident_timeline(incident_id);
	`

	_, err := db.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
