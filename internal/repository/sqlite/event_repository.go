package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// Maximum events returned by a single ListRecent call.
const maxEventListLimit = 1000

// EventRepository implements repository.SecurityEventRepository for SQLite.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new SQLite security event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.EventType,
		event.Severity,
		event.IPAddress,
		event.Endpoint,
		event.UserAgent,
		event.Details,
		boolToInt(event.IsBlocked),
		formatTimestamp(createdAt),
	)
	if err != nil {
		return wrapError("failed to insert security event", err)
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
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, wrapError("failed to query security events", err)
	}
	defer rows.Close()

	var events []repository.SecurityEvent
	for rows.Next() {
		var event repository.SecurityEvent
		var isBlocked int
		var createdAt string

		err := rows.Scan(
			&event.ID,
			&event.EventID,
			&event.EventType,
			&event.Severity,
			&event.IPAddress,
			&event.Endpoint,
			&event.UserAgent,
			&event.Details,
			&isBlocked,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}

		event.IsBlocked = isBlocked != 0
		event.CreatedAt, err = parseTimestamp(createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
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
	query := `DELETE FROM security_events WHERE datetime(created_at) <= datetime(?)`

	result, err := r.db.ExecContext(ctx, query, formatTimestamp(cutoff))
	if err != nil {
		return 0, wrapError("failed to cleanup security events", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		slog.Debug("cleaned up old security events", "count", rowsAffected)
	}

	return rowsAffected, nil
}

// Ensure EventRepository implements repository.SecurityEventRepository.
var _ repository.SecurityEventRepository = (*EventRepository)(nil)
