package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Column defaults on security_settings mirror the documented policy
// defaults, so a row created by a partial update behaves the same as
// no row at all.
const schema = `
CREATE TABLE IF NOT EXISTS security_settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    rate_limiting_enabled INTEGER NOT NULL DEFAULT 1,
    ip_blocking_enabled INTEGER NOT NULL DEFAULT 1,
    max_requests_per_minute INTEGER NOT NULL DEFAULT 300,
    max_requests_per_second INTEGER NOT NULL DEFAULT 10,
    max_requests_per_minute_auth INTEGER NOT NULL DEFAULT 30,
    max_requests_per_second_auth INTEGER NOT NULL DEFAULT 3,
    exempt_admins_from_rate_limiting INTEGER NOT NULL DEFAULT 1,
    error_spike_threshold_per_minute INTEGER NOT NULL DEFAULT 20,
    error_spike_consecutive_minutes INTEGER NOT NULL DEFAULT 1,
    auto_permanent_blacklist_enabled INTEGER NOT NULL DEFAULT 0,
    ip_block_duration_minutes INTEGER NOT NULL DEFAULT 30,
    whitelisted_ips TEXT NOT NULL DEFAULT '',
    blacklisted_ips TEXT NOT NULL DEFAULT '',
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS blocked_ips (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ip_address TEXT NOT NULL UNIQUE,
    reason TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    permanent INTEGER NOT NULL DEFAULT 0,
    blocked_at DATETIME NOT NULL,
    expires_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_blocked_ips_expires_at ON blocked_ips(expires_at);

CREATE TABLE IF NOT EXISTS security_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id TEXT NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    severity TEXT NOT NULL,
    ip_address TEXT NOT NULL DEFAULT '',
    endpoint TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    details TEXT NOT NULL DEFAULT '',
    is_blocked INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_security_events_created_at ON security_events(created_at);
CREATE INDEX IF NOT EXISTS idx_security_events_ip_address ON security_events(ip_address);
`

// Initialize opens the SQLite database and creates the schema
func Initialize(dbPath string) (*sql.DB, error) {
	// Open database connection
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA busy_timeout = 5000", // 5 second busy timeout
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	// Create schema
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// RunMigrations creates the schema. Every statement is idempotent, so
// running against an existing database is safe.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
