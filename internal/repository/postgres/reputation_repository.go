package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// ReputationRepository implements repository.ReputationRepository for PostgreSQL.
type ReputationRepository struct {
	pool *Pool
}

// NewReputationRepository creates a new PostgreSQL reputation repository.
func NewReputationRepository(pool *Pool) *ReputationRepository {
	return &ReputationRepository{pool: pool}
}

// Upsert inserts or refreshes the block entry for block.IPAddress.
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

	var expiresAt *time.Time
	if block.ExpiresAt != nil {
		t := block.ExpiresAt.UTC()
		expiresAt = &t
	}

	query := `
		INSERT INTO blocked_ips (ip_address, reason, source, permanent, blocked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ip_address) DO UPDATE SET
			reason = EXCLUDED.reason,
			source = EXCLUDED.source,
			permanent = EXCLUDED.permanent,
			blocked_at = EXCLUDED.blocked_at,
			expires_at = EXCLUDED.expires_at
	`

	err := withRetryNoReturn(ctx, 3, func() error {
		_, err := r.pool.Exec(ctx, query,
			block.IPAddress,
			block.Reason,
			block.Source,
			block.Permanent,
			block.BlockedAt.UTC(),
			expiresAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert blocked ip: %w", err)
	}
	return nil
}

// Remove deletes the block entry for ip. Returns repository.ErrNotFound when
// no entry exists.
func (r *ReputationRepository) Remove(ctx context.Context, ip string) error {
	if err := validateIPAddress(ip); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}

	result, err := withRetry(ctx, 3, func() (int64, error) {
		tag, err := r.pool.Exec(ctx, `DELETE FROM blocked_ips WHERE ip_address = $1`, ip)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove blocked ip: %w", err)
	}
	if result == 0 {
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
		WHERE permanent = TRUE OR (expires_at IS NOT NULL AND expires_at > $1)
		ORDER BY blocked_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query blocked ips: %w", err)
	}
	defer rows.Close()

	var blocks []repository.BlockedIP
	for rows.Next() {
		var block repository.BlockedIP
		var expiresAt sql.NullTime

		err := rows.Scan(
			&block.ID,
			&block.IPAddress,
			&block.Reason,
			&block.Source,
			&block.Permanent,
			&block.BlockedAt,
			&expiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blocked ip: %w", err)
		}

		block.ExpiresAt = scanNullableTime(expiresAt)
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
		WHERE permanent = FALSE AND expires_at IS NOT NULL AND expires_at <= $1
	`

	rowsAffected, err := withRetry(ctx, 3, func() (int64, error) {
		tag, err := r.pool.Exec(ctx, query, now.UTC())
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired ip blocks: %w", err)
	}

	if rowsAffected > 0 {
		slog.Debug("cleaned up expired ip blocks", "count", rowsAffected)
	}

	return rowsAffected, nil
}

// Ensure ReputationRepository implements repository.ReputationRepository.
var _ repository.ReputationRepository = (*ReputationRepository)(nil)
