// Package history records session lifecycle events in Postgres, giving the
// host a queryable log of sessions, switches, and surfaced errors.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playscope/playkit/internal/config"
	"github.com/playscope/playkit/internal/telemetry"
)

// Repository wraps the history connection pool
type Repository struct {
	pool *pgxpool.Pool
}

// New creates the history repository and verifies connectivity
func New(cfg config.DatabaseConfig) (*Repository, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d pool_min_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
		cfg.MaxConns, cfg.MinConns,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{pool: pool}, nil
}

// Publish stores one session event, implementing telemetry.Publisher
func (r *Repository) Publish(ctx context.Context, event telemetry.Event) error {
	errKind := ""
	errMsg := ""
	if event.Error != nil {
		errKind = string(event.Error.Kind)
		errMsg = event.Error.Message
	}

	query := `
		INSERT INTO session_events (session_id, event_type, source_url, source_kind, quality_model, detail, error_kind, error_message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		event.SessionID,
		event.Type,
		event.SourceURL,
		string(event.Kind),
		string(event.Model),
		event.Detail,
		errKind,
		errMsg,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}

	return nil
}

// SessionEvents returns the recorded events for a session, oldest first
func (r *Repository) SessionEvents(ctx context.Context, sessionID string) ([]telemetry.Event, error) {
	query := `
		SELECT session_id, event_type, source_url, detail, occurred_at
		FROM session_events
		WHERE session_id = $1
		ORDER BY occurred_at ASC`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	var events []telemetry.Event
	for rows.Next() {
		var e telemetry.Event
		if err := rows.Scan(&e.SessionID, &e.Type, &e.SourceURL, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Health checks if the database is reachable
func (r *Repository) Health(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool, implementing telemetry.Publisher
func (r *Repository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}
