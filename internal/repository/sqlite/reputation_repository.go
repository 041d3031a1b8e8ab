package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// ReputationRepository implements repository.ReputationRepository for SQLite.
type ReputationRepository struct {
	db *sql.DB
}

// NewReputationRepository creates a new SQLite reputation repository.
func NewReputationRepository(db *sql.DB) *ReputationRepository {
	return &ReputationRepository{db: db}
}

// Upsert inserts or refreshes the block entry for block.IPAddress.
// Uses atomic UPSERT pattern so re-blocking an IP replaces its expiry and
// reason in one statement.
func (r *ReputationRepository) Upsert(ctx context.Context, block *repository.BlockedIP) error {
	if block == nil {
		return fmt.Errorf("%w: block cannot be nil", repository.ErrInvalidInput)
	}
	if err := validateIPAddress(block.IPAddress); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}
	if !block.Permanent && block.ExpiresAt == nil {
		return fmt.Errorf("%w: temporary block requires an expiry", repository.ErrInvalidInput)
	}

	expiresAt := sql.NullString{}
	if block.ExpiresAt != nil {
		expiresAt = sql.NullString{String: formatTimestamp(*block.ExpiresAt), Valid: true}
	}

	query := `
		INSERT INTO blocked_ips (ip_address, reason, source, permanent, blocked_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip_address) DO UPDATE SET
			reason = excluded.reason,
			source = excluded.source,
			permanent = excluded.permanent,
			blocked_at = excluded.blocked_at,
			expires_at = excluded.expires_at
	`
	_, err := r.db.ExecContext(ctx, query,
		block.IPAddress,
		block.Reason,
		block.Source,
		boolToInt(block.Permanent),
		formatTimestamp(block.BlockedAt),
		expiresAt,
	)
	if err != nil {
		return wrapError("failed to upsert blocked ip", err)
	}
	return nil
}

// Remove deletes the block entry for ip. Returns repository.ErrNotFound when
// no entry exists.
func (r *ReputationRepository) Remove(ctx context.Context, ip string) error {
	if err := validateIPAddress(ip); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM blocked_ips WHERE ip_address = ?`, ip)
	if err != nil {
		return wrapError("failed to remove blocked ip", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListActive returns entries that are permanent or expire after now,
// newest first.
func (r *ReputationRepository) ListActive(ctx context.Context, now time.Time) ([]repository.BlockedIP, error) {
	query := `
		SELECT id, ip_address, reason, source, permanent, blocked_at, expires_at
		FROM blocked_ips
		WHERE permanent = 1 OR (expires_at IS NOT NULL AND datetime(expires_at) > datetime(?))
		ORDER BY blocked_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, formatTimestamp(now))
	if err != nil {
		return nil, wrapError("failed to query blocked ips", err)
	}
	defer rows.Close()

	var blocks []repository.BlockedIP
	for rows.Next() {
		var block repository.BlockedIP
		var permanent int
		var blockedAt string
		var expiresAt sql.NullString

		err := rows.Scan(
			&block.ID,
			&block.IPAddress,
			&block.Reason,
			&block.Source,
			&permanent,
			&blockedAt,
			&expiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blocked ip: %w", err)
		}

		block.Permanent = permanent != 0
		block.BlockedAt, err = parseTimestamp(blockedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse blocked_at: %w", err)
		}
		if expiresAt.Valid {
			t, err := parseTimestamp(expiresAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse expires_at: %w", err)
			}
			block.ExpiresAt = &t
		}

		blocks = append(blocks, block)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blocked ips: %w", err)
	}

	return blocks, nil
}

// CleanupExpired removes temporary entries whose expiry is at or before now.
// Returns the number of entries removed.
func (r *ReputationRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM blocked_ips
		WHERE permanent = 0 AND expires_at IS NOT NULL AND datetime(expires_at) <= datetime(?)
	`

	result, err := r.db.ExecContext(ctx, query, formatTimestamp(now))
	if err != nil {
		return 0, wrapError("failed to cleanup expired ip blocks", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		slog.Debug("cleaned up expired ip blocks", "count", rowsAffected)
	}

	return rowsAffected, nil
}

// Ensure ReputationRepository implements repository.ReputationRepository.
var _ repository.ReputationRepository = (*ReputationRepository)(nil)
