package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// Maximum stored length for each IP list column to prevent unbounded rows.
const maxIPListLen = 8192

// SettingsRepository implements repository.SettingsRepository for SQLite.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new SQLite settings repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
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
	var rateLimiting, ipBlocking, exemptAdmins, autoPermanent int
	var whitelisted, blacklisted, updatedAt string

	err := r.db.QueryRowContext(ctx, query).Scan(
		&rateLimiting, &ipBlocking,
		&s.MaxRequestsPerMinute, &s.MaxRequestsPerSecond,
		&s.MaxRequestsPerMinuteAuth, &s.MaxRequestsPerSecondAuth,
		&exemptAdmins,
		&s.ErrorSpikeThresholdPerMinute, &s.ErrorSpikeConsecutiveMinutes,
		&autoPermanent, &s.IPBlockDurationMinutes,
		&whitelisted, &blacklisted, &updatedAt,
	)

	if err == sql.ErrNoRows {
		// No settings exist yet - return nil to indicate use env var defaults
		return nil, nil
	}
	if err != nil {
		return nil, wrapError("failed to get security settings", err)
	}

	s.RateLimitingEnabled = rateLimiting != 0
	s.IPBlockingEnabled = ipBlocking != 0
	s.ExemptAdminsFromRateLimiting = exemptAdmins != 0
	s.AutoPermanentBlacklistEnabled = autoPermanent != 0

	s.WhitelistedIPs = parseIPList(whitelisted)
	s.BlacklistedIPs = parseIPList(blacklisted)

	s.UpdatedAt, err = parseTimestamp(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &s, nil
}

// Save creates or replaces the settings row.
// Uses atomic UPSERT pattern to prevent race conditions.
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
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			rate_limiting_enabled = excluded.rate_limiting_enabled,
			ip_blocking_enabled = excluded.ip_blocking_enabled,
			max_requests_per_minute = excluded.max_requests_per_minute,
			max_requests_per_second = excluded.max_requests_per_second,
			max_requests_per_minute_auth = excluded.max_requests_per_minute_auth,
			max_requests_per_second_auth = excluded.max_requests_per_second_auth,
			exempt_admins_from_rate_limiting = excluded.exempt_admins_from_rate_limiting,
			error_spike_threshold_per_minute = excluded.error_spike_threshold_per_minute,
			error_spike_consecutive_minutes = excluded.error_spike_consecutive_minutes,
			auto_permanent_blacklist_enabled = excluded.auto_permanent_blacklist_enabled,
			ip_block_duration_minutes = excluded.ip_block_duration_minutes,
			whitelisted_ips = excluded.whitelisted_ips,
			blacklisted_ips = excluded.blacklisted_ips,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = r.db.ExecContext(ctx, query,
		boolToInt(settings.RateLimitingEnabled),
		boolToInt(settings.IPBlockingEnabled),
		settings.MaxRequestsPerMinute,
		settings.MaxRequestsPerSecond,
		settings.MaxRequestsPerMinuteAuth,
		settings.MaxRequestsPerSecondAuth,
		boolToInt(settings.ExemptAdminsFromRateLimiting),
		settings.ErrorSpikeThresholdPerMinute,
		settings.ErrorSpikeConsecutiveMinutes,
		boolToInt(settings.AutoPermanentBlacklistEnabled),
		settings.IPBlockDurationMinutes,
		whitelisted,
		blacklisted,
	)
	if err != nil {
		return wrapError("failed to save security settings", err)
	}
	return nil
}

// UpdateLists saves only the whitelist and blacklist columns.
// Uses atomic UPSERT pattern; a missing row is created with the schema
// defaults for every other column.
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
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			whitelisted_ips = excluded.whitelisted_ips,
			blacklisted_ips = excluded.blacklisted_ips,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err = r.db.ExecContext(ctx, query, whitelistedStr, blacklistedStr)
	if err != nil {
		return wrapError("failed to update IP lists", err)
	}
	return nil
}

// Ensure SettingsRepository implements repository.SettingsRepository.
var _ repository.SettingsRepository = (*SettingsRepository)(nil)
