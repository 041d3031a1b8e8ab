// Package repository defines interfaces for data access operations.
// This package provides abstractions for database operations, allowing
// different backend implementations (SQLite, PostgreSQL) to be swapped
// without changing application code.
//
// The admission hot path never calls a repository directly: repositories
// back the policy provider, the security audit trail, and restart survival
// of block records. The in-memory stores stay authoritative at runtime.
package repository

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by repository operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilDatabase is returned when a nil database connection is provided.
	ErrNilDatabase = errors.New("nil database connection")

	// ErrServiceUnavailable is returned when the backing store is temporarily
	// unreachable. Callers on the admission path treat this as fail-open.
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

// Supported database backends.
const (
	DatabaseTypeSQLite   = "sqlite"
	DatabaseTypePostgres = "postgres"
)

// Repositories holds all repository instances for one backend.
type Repositories struct {
	Settings   SettingsRepository
	Reputation ReputationRepository
	Events     SecurityEventRepository
	Health     HealthRepository

	// DatabaseType records which backend produced this set.
	DatabaseType string

	// Cleanup releases backend resources (connection pool, file handles).
	// Called once during shutdown.
	Cleanup func() error
}

// BlockedIP represents a persisted deny entry for an IP address.
// ExpiresAt is nil for permanent blacklist entries.
type BlockedIP struct {
	ID        int64
	IPAddress string
	Reason    string
	Source    string // "admin" or "error_spike"
	Permanent bool
	BlockedAt time.Time
	ExpiresAt *time.Time
}

// ReputationRepository persists block records so admin blocks and automatic
// escalations survive a restart. The mirror is hydrated once at startup and
// written through on mutation; reads never sit on the request path.
type ReputationRepository interface {
	// Upsert inserts or refreshes the entry for block.IPAddress.
	Upsert(ctx context.Context, block *BlockedIP) error

	// Remove deletes the entry for ip. Returns ErrNotFound when no entry
	// exists.
	Remove(ctx context.Context, ip string) error

	// ListActive returns entries that are permanent or expire after now.
	ListActive(ctx context.Context, now time.Time) ([]BlockedIP, error)

	// CleanupExpired deletes temporary entries expired at or before now and
	// reports how many were removed.
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

// SecuritySettings is the single-row, admin-editable security configuration.
// Zero or negative thresholds are stored as-is; substitution of documented
// defaults happens when the row is turned into a policy snapshot.
type SecuritySettings struct {
	RateLimitingEnabled bool
	IPBlockingEnabled   bool

	MaxRequestsPerMinute     int
	MaxRequestsPerSecond     int
	MaxRequestsPerMinuteAuth int
	MaxRequestsPerSecondAuth int

	ExemptAdminsFromRateLimiting bool

	ErrorSpikeThresholdPerMinute  int
	ErrorSpikeConsecutiveMinutes  int
	AutoPermanentBlacklistEnabled bool
	IPBlockDurationMinutes        int

	WhitelistedIPs []string
	BlacklistedIPs []string

	UpdatedAt time.Time
}

// SettingsRepository defines security settings operations. The settings
// table holds at most one row.
type SettingsRepository interface {
	// Get retrieves the current settings. Returns (nil, nil) when no row has
	// been written yet, in which case environment defaults apply.
	Get(ctx context.Context) (*SecuritySettings, error)

	// Save creates or replaces the settings row.
	Save(ctx context.Context, settings *SecuritySettings) error

	// UpdateLists replaces only the whitelist and blacklist columns,
	// creating the row with default values when absent.
	UpdateLists(ctx context.Context, whitelisted, blacklisted []string) error
}

// SecurityEvent represents one audit record of a deny or an escalation.
type SecurityEvent struct {
	ID        int64
	EventID   string // opaque unique id assigned at emission
	EventType string
	Severity  string
	IPAddress string
	Endpoint  string
	UserAgent string
	Details   string
	IsBlocked bool
	CreatedAt time.Time
}

// SecurityEventRepository persists the audit trail of security events.
type SecurityEventRepository interface {
	// Insert stores one event.
	Insert(ctx context.Context, event *SecurityEvent) error

	// ListRecent returns up to limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]SecurityEvent, error)

	// CleanupOlderThan deletes events created at or before cutoff and
	// reports how many were removed.
	CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PaginationOptions provides common pagination parameters.
type PaginationOptions struct {
	Limit  int
	Offset int
}

// DefaultPagination returns default pagination options (limit 50, offset 0).
func DefaultPagination() PaginationOptions {
	return PaginationOptions{
		Limit:  50,
		Offset: 0,
	}
}
