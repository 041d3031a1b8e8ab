package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// Maximum stored length for each IP list column to prevent unbounded rows.
const maxIPListLen = 8192

// SettingsRepository implements repository.SettingsRepository for PostgreSQL.
type SettingsRepository struct {
	pool *Pool
}

// NewSettingsRepository creates a new PostgreSQL settings repository.
func NewSettingsRepository(pool *Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get retrieves the security settings row.
// Returns nil, nil if no settings exist (indicating to use environment variable defaults).
func (r *SettingsRepository) Get(ctx context.Context) (*repository.SecuritySettings, error) {
	query := `
		SELECT rate_limiting_enabled, ip_blocking_enabled,
		       max_requests_per_minute, max_requests_per_second,
		       max_requests_per_minute_auth, max_requests_per_second_auth,
		       exempt_admins_from_rate_limiting,
		       error_spike_threshold_per_minute, error_spike_consecutive_minutes,
		       auto_permanent_blacklist_enabled, ip_block_duration_minutes,
		       whitelisted_ips, blacklisted_ips, updated_at
		FROM security_settings WHERE id = 1
	`

	var s repository.SecuritySettings
	var whitelisted, blacklisted string

	err := r.pool.QueryRow(ctx, query).Scan(
		&s.RateLimitingEnabled,
		&s.IPBlockingEnabled,
		&s.MaxRequestsPerMinute,
		&s.MaxRequestsPerSecond,
		&s.MaxRequestsPerMinuteAuth,
		&s.MaxRequestsPerSecondAuth,
		&s.ExemptAdminsFromRateLimiting,
		&s.ErrorSpikeThresholdPerMinute,
		&s.ErrorSpikeConsecutiveMinutes,
		&s.AutoPermanentBlacklistEnabled,
		&s.IPBlockDurationMinutes,
		&whitelisted,
		&blacklisted,
		&s.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		// No settings exist yet - return nil to indicate use env var defaults
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security settings: %w", err)
	}

	s.WhitelistedIPs = parseIPList(whitelisted)
	s.BlacklistedIPs = parseIPList(blacklisted)

	return &s, nil
}

// Save creates or replaces the settings row.
func (r *SettingsRepository) Save(ctx context.Context, settings *repository.SecuritySettings) error {
	if settings == nil {
		return fmt.Errorf("%w: settings cannot be nil", repository.ErrInvalidInput)
	}

	whitelisted, err := joinIPList(settings.WhitelistedIPs)
	if err != nil {
		return fmt.Errorf("%w: whitelist: %v", repository.ErrInvalidInput, err)
	}
	blacklisted, err := joinIPList(settings.BlacklistedIPs)
	if err != nil {
		return fmt.Errorf("%w: blacklist: %v", repository.ErrInvalidInput, err)
	}
	if len(whitelisted) > maxIPListLen || len(blacklisted) > maxIPListLen {
		return fmt.Errorf("%w: IP list too long (max %d chars)", repository.ErrInvalidInput, maxIPListLen)
	}

	query := `
		INSERT INTO security_settings (
			id, rate_limiting_enabled, ip_blocking_enabled,
			max_requests_per_minute, max_requests_per_second,
			max_requests_per_minute_auth, max_requests_per_second_auth,
			exempt_admins_from_rate_limiting,
			error_spike_threshold_per_minute, error_spike_consecutive_minutes,
			auto_permanent_blacklist_enabled, ip_block_duration_minutes,
			whitelisted_ips, blacklisted_ips, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (id) DO UPDATE SET
			rate_limiting_enabled = EXCLUDED.rate_limiting_enabled,
			ip_blocking_enabled = EXCLUDED.ip_blocking_enabled,
			max_requests_per_minute = EXCLUDED.max_requests_per_minute,
			max_requests_per_second = EXCLUDED.max_requests_per_second,
			max_requests_per_minute_auth = EXCLUDED.max_requests_per_minute_auth,
			max_requests_per_second_auth = EXCLUDED.max_requests_per_second_auth,
			exempt_admins_from_rate_limiting = EXCLUDED.exempt_admins_from_rate_limiting,
			error_spike_threshold_per_minute = EXCLUDED.error_spike_threshold_per_minute,
			error_spike_consecutive_minutes = EXCLUDED.error_spike_consecutive_minutes,
			auto_permanent_blacklist_enabled = EXCLUDED.auto_permanent_blacklist_enabled,
			ip_block_duration_minutes = EXCLUDED.ip_block_duration_minutes,
			whitelisted_ips = EXCLUDED.whitelisted_ips,
			blacklisted_ips = EXCLUDED.blacklisted_ips,
			updated_at = NOW()
	`

	err = withRetryNoReturn(ctx, 3, func() error {
		_, err := r.pool.Exec(ctx, query,
			settings.RateLimitingEnabled,
			settings.IPBlockingEnabled,
			settings.MaxRequestsPerMinute,
			settings.MaxRequestsPerSecond,
			settings.MaxRequestsPerMinuteAuth,
			settings.MaxRequestsPerSecondAuth,
			settings.ExemptAdminsFromRateLimiting,
			settings.ErrorSpikeThresholdPerMinute,
			settings.ErrorSpikeConsecutiveMinutes,
			settings.AutoPermanentBlacklistEnabled,
			settings.IPBlockDurationMinutes,
			whitelisted,
			blacklisted,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save security settings: %w", err)
	}
	return nil
}

// UpdateLists saves only the whitelist and blacklist columns. A missing row
// is created with the schema defaults for every other column.
func (r *SettingsRepository) UpdateLists(ctx context.Context, whitelisted, blacklisted []string) error {
	whitelistedStr, err := joinIPList(whitelisted)
	if err != nil {
		return fmt.Errorf("%w: whitelist: %v", repository.ErrInvalidInput, err)
	}
	blacklistedStr, err := joinIPList(blacklisted)
	if err != nil {
		return fmt.Errorf("%w: blacklist: %v", repository.ErrInvalidInput, err)
	}
	if len(whitelistedStr) > maxIPListLen || len(blacklistedStr) > maxIPListLen {
		return fmt.Errorf("%w: IP list too long (max %d chars)", repository.ErrInvalidInput, maxIPListLen)
	}

	query := `
		INSERT INTO security_settings (id, whitelisted_ips, blacklisted_ips, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			whitelisted_ips = EXCLUDED.whitelisted_ips,
			blacklisted_ips = EXCLUDED.blacklisted_ips,
			updated_at = NOW()
	`

	err = withRetryNoReturn(ctx, 3, func() error {
		_, err := r.pool.Exec(ctx, query, whitelistedStr, blacklistedStr)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update IP lists: %w", err)
	}
	return nil
}

// Ensure SettingsRepository implements repository.SettingsRepository.
var _ repository.SettingsRepository = (*SettingsRepository)(nil)
