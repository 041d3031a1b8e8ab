package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Port string

	// Database backend selection: "sqlite" (default) or "postgres".
	DatabaseType string
	DBPath       string            // SQLite database file path
	PostgreSQL   *PostgreSQLConfig // Populated when DatabaseType is "postgres"

	// Client IP resolution behind reverse proxies.
	// TrustProxyHeaders: "auto", "true", "false"
	TrustProxyHeaders string
	TrustedProxyIPs   string // comma-separated IPs and CIDR ranges

	// Session cookies carry the Secure attribute when true.
	SecureCookies bool

	// Seeded demo accounts. Admin endpoints stay unreachable when the admin
	// credentials are left empty.
	AdminUsername string
	AdminPassword string
	DemoUsername  string
	DemoPassword  string

	// Environment defaults for the security policy. A settings row in the
	// database overrides these at runtime; they only apply while no row
	// exists.
	RateLimitingEnabled           bool
	IPBlockingEnabled             bool
	MaxRequestsPerMinute          int
	MaxRequestsPerSecond          int
	MaxRequestsPerMinuteAuth      int
	MaxRequestsPerSecondAuth      int
	ExemptAdminsFromRateLimiting  bool
	ErrorSpikeThresholdPerMinute  int
	ErrorSpikeConsecutiveMinutes  int
	AutoPermanentBlacklistEnabled bool
	IPBlockDurationMinutes        int

	// PolicyCacheTTLSeconds bounds how stale a cached policy snapshot may
	// be before the settings store is consulted again.
	PolicyCacheTTLSeconds int

	// Audit event dispatcher sizing.
	AuditWorkers    int
	AuditBufferSize int

	// Hygiene workers.
	CleanupIntervalMinutes int
	EventRetentionDays     int
}

// PostgreSQLConfig holds PostgreSQL connection options.
type PostgreSQLConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string // disable, prefer, require, verify-ca, verify-full
	Options        string // extra connection string options, "k=v&k=v"
	MaxConnections int
	AutoMigrate    bool
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DatabaseType: getEnv("DATABASE_TYPE", "sqlite"),
		DBPath:       getEnv("DB_PATH", "./storefront.db"),

		TrustProxyHeaders: getEnv("TRUST_PROXY_HEADERS", "auto"),
		TrustedProxyIPs:   getEnv("TRUSTED_PROXY_IPS", "127.0.0.1,::1"),

		SecureCookies: getEnvBool("SECURE_COOKIES", false),

		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		DemoUsername:  getEnv("DEMO_USERNAME", ""),
		DemoPassword:  getEnv("DEMO_PASSWORD", ""),

		RateLimitingEnabled:           getEnvBool("RATE_LIMITING_ENABLED", true),
		IPBlockingEnabled:             getEnvBool("IP_BLOCKING_ENABLED", true),
		MaxRequestsPerMinute:          getEnvInt("MAX_REQUESTS_PER_MINUTE", 300),
		MaxRequestsPerSecond:          getEnvInt("MAX_REQUESTS_PER_SECOND", 10),
		MaxRequestsPerMinuteAuth:      getEnvInt("MAX_REQUESTS_PER_MINUTE_AUTH", 30),
		MaxRequestsPerSecondAuth:      getEnvInt("MAX_REQUESTS_PER_SECOND_AUTH", 3),
		ExemptAdminsFromRateLimiting:  getEnvBool("EXEMPT_ADMINS_FROM_RATE_LIMITING", true),
		ErrorSpikeThresholdPerMinute:  getEnvInt("ERROR_SPIKE_THRESHOLD_PER_MINUTE", 20),
		ErrorSpikeConsecutiveMinutes:  getEnvInt("ERROR_SPIKE_CONSECUTIVE_MINUTES", 1),
		AutoPermanentBlacklistEnabled: getEnvBool("AUTO_PERMANENT_BLACKLIST_ENABLED", false),
		IPBlockDurationMinutes:        getEnvInt("IP_BLOCK_DURATION_MINUTES", 30),

		PolicyCacheTTLSeconds: getEnvInt("POLICY_CACHE_TTL_SECONDS", 5),

		AuditWorkers:    getEnvInt("AUDIT_WORKERS", 2),
		AuditBufferSize: getEnvInt("AUDIT_BUFFER_SIZE", 256),

		CleanupIntervalMinutes: getEnvInt("CLEANUP_INTERVAL_MINUTES", 60),
		EventRetentionDays:     getEnvInt("EVENT_RETENTION_DAYS", 30),
	}

	if cfg.DatabaseType == "postgres" {
		cfg.PostgreSQL = &PostgreSQLConfig{
			Host:           getEnv("POSTGRES_HOST", "localhost"),
			Port:           getEnvInt("POSTGRES_PORT", 5432),
			User:           getEnv("POSTGRES_USER", "storefront"),
			Password:       getEnv("POSTGRES_PASSWORD", ""),
			Database:       getEnv("POSTGRES_DB", "storefront"),
			SSLMode:        getEnv("POSTGRES_SSLMODE", "prefer"),
			Options:        getEnv("POSTGRES_OPTIONS", ""),
			MaxConnections: getEnvInt("POSTGRES_MAX_CONNECTIONS", 10),
			AutoMigrate:    getEnvBool("POSTGRES_AUTO_MIGRATE", true),
		}
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate ensures configuration values are sensible
func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	switch c.DatabaseType {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case "postgres":
		if c.PostgreSQL == nil {
			return fmt.Errorf("PostgreSQL configuration missing")
		}
		if c.PostgreSQL.Host == "" {
			return fmt.Errorf("POSTGRES_HOST cannot be empty")
		}
		if c.PostgreSQL.Port <= 0 || c.PostgreSQL.Port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be in 1-65535, got %d", c.PostgreSQL.Port)
		}
		if c.PostgreSQL.Database == "" {
			return fmt.Errorf("POSTGRES_DB cannot be empty")
		}
		if c.PostgreSQL.MaxConnections <= 0 {
			return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive, got %d", c.PostgreSQL.MaxConnections)
		}
	default:
		return fmt.Errorf("DATABASE_TYPE must be \"sqlite\" or \"postgres\", got %q", c.DatabaseType)
	}

	switch c.TrustProxyHeaders {
	case "auto", "true", "false":
	default:
		return fmt.Errorf("TRUST_PROXY_HEADERS must be \"auto\", \"true\", or \"false\", got %q", c.TrustProxyHeaders)
	}

	if c.AdminUsername != "" && c.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD cannot be empty when ADMIN_USERNAME is set")
	}

	// Non-positive policy thresholds are tolerated here: the policy layer
	// substitutes documented defaults rather than honoring them as "no
	// limit". Operational knobs must still be sane.
	if c.PolicyCacheTTLSeconds <= 0 {
		return fmt.Errorf("POLICY_CACHE_TTL_SECONDS must be positive, got %d", c.PolicyCacheTTLSeconds)
	}

	if c.AuditWorkers <= 0 {
		return fmt.Errorf("AUDIT_WORKERS must be positive, got %d", c.AuditWorkers)
	}

	if c.AuditBufferSize <= 0 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be positive, got %d", c.AuditBufferSize)
	}

	if c.CleanupIntervalMinutes <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL_MINUTES must be positive, got %d", c.CleanupIntervalMinutes)
	}

	if c.EventRetentionDays <= 0 {
		return fmt.Errorf("EVENT_RETENTION_DAYS must be positive, got %d", c.EventRetentionDays)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// Accepts the forms strconv.ParseBool accepts ("true", "1", "false", "0", ...).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
