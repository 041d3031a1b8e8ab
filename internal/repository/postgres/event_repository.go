package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// Maximum events returned by a single ListRecent call.
const maxEventListLimit = 1000

// EventRepository implements repository.SecurityEventRepository for PostgreSQL.
type EventRepository struct {
	pool *Pool
}

// NewEventRepository creates a new PostgreSQL security event repository.
func NewEventRepository(pool *Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Insert stores one security event. Re-inserting an event id that is already
// persisted is a no-op, so a retried delivery never duplicates audit rows.
func (r *EventRepository) Insert(ctx context.Context, event *repository.SecurityEvent) error {
	if event == nil {
		return fmt.Errorf("%w: event cannot be nil", repository.ErrInvalidInput)
	}
	if event.EventID == "" {
		return fmt.Errorf("%w: event id cannot be empty", repository.ErrInvalidInput)
	}
	if event.EventType == "" {
		return fmt.Errorf("%w: event type cannot be empty", repository.ErrInvalidInput)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO security_events (
			event_id, event_type, severity, ip_address, endpoint,
			user_agent, details, is_blocked, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`

	err := withRetryNoReturn(ctx, 3, func() error {
		_, err := r.pool.Exec(ctx, query,
			event.EventID,
			event.EventType,
			event.Severity,
			event.IPAddress,
			event.Endpoint,
			event.UserAgent,
			event.Details,
			event.IsBlocked,
			createdAt.UTC(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

// ListRecent returns up to limit events, newest first. A non-positive limit
// gets the default page size.
func (r *EventRepository) ListRecent(ctx context.Context, limit int) ([]repository.SecurityEvent, error) {
	if limit <= 0 {
		limit = repository.DefaultPagination().Limit
	}
	if limit > maxEventListLimit {
		limit = maxEventListLimit
	}

	query := `
		SELECT id, event_id, event_type, severity, ip_address, endpoint,
		       user_agent, details, is_blocked, created_at
		FROM security_events
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	var events []repository.SecurityEvent
	for rows.Next() {
		var event repository.SecurityEvent
		err := rows.Scan(
			&event.ID,
			&event.EventID,
			&event.EventType,
			&event.Severity,
			&event.IPAddress,
			&event.Endpoint,
			&event.UserAgent,
			&event.Details,
			&event.IsBlocked,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security events: %w", err)
	}

	return events, nil
}

// CleanupOlderThan deletes events created at or before cutoff.
// Returns the number of events removed.
func (r *EventRepository) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM security_events WHERE created_at <= $1`

	rowsAffected, err := withRetry(ctx, 3, func() (int64, error) {
		tag, err := r.pool.Exec(ctx, query, cutoff.UTC())
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup security events: %w", err)
	}

	if rowsAffected > 0 {
		slog.Debug("cleaned up old security events", "count", rowsAffected)
	}

	return rowsAffected, nil
}

// Ensure EventRepository implements repository.SecurityEventRepository.
var _ repository.SecurityEventRepository = (*EventRepository)(nil)
