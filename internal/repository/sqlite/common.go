// Package sqlite provides SQLite implementations of repository interfaces.
package sqlite

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// validateIPAddress checks if the IP address is valid and within length limits.
func validateIPAddress(ipAddress string) error {
	if ipAddress == "" {
		return fmt.Errorf("IP address cannot be empty")
	}
	if len(ipAddress) > 45 { // Max IPv6 with zone ID
		return fmt.Errorf("IP address too long")
	}
	if net.ParseIP(ipAddress) == nil {
		return fmt.Errorf("invalid IP address format")
	}
	return nil
}

// isSQLiteBusyError checks if an error is an SQLITE_BUSY or SQLITE_LOCKED error.
func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "sqlite_busy") ||
		strings.Contains(errStr, "sqlite_locked") ||
		strings.Contains(errStr, "(5)") ||   // SQLITE_BUSY
		strings.Contains(errStr, "(6)") ||   // SQLITE_LOCKED
		strings.Contains(errStr, "(517)") || // SQLITE_BUSY_SNAPSHOT
		strings.Contains(errStr, "(262)")    // SQLITE_BUSY_RECOVERY
}

// wrapError adds the failing operation to a driver error. Lock contention is
// mapped onto repository.ErrServiceUnavailable so admission-path callers can
// recognize it and fail open instead of failing the request.
func wrapError(op string, err error) error {
	if isSQLiteBusyError(err) {
		return fmt.Errorf("%s: %w: %v", op, repository.ErrServiceUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// parseTimestamp attempts to parse a timestamp string from SQLite.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Try alternate SQLite format
		t, err = time.Parse("2006-01-02 15:04:05", s)
	}
	return t, err
}

// formatTimestamp renders a timestamp the way every writer in this package
// stores it, so string ordering matches time ordering.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// boolToInt converts a boolean to an integer (0 or 1) for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// joinIPList converts an IP list to the comma-separated form stored in a
// settings column. Entries are validated so a bad value cannot corrupt the
// whole list.
func joinIPList(ips []string) (string, error) {
	cleaned := make([]string, 0, len(ips))
	for _, ip := range ips {
		trimmed := strings.TrimSpace(ip)
		if trimmed == "" {
			continue
		}
		if err := validateIPAddress(trimmed); err != nil {
			return "", fmt.Errorf("list entry %q: %w", ip, err)
		}
		cleaned = append(cleaned, trimmed)
	}
	return strings.Join(cleaned, ","), nil
}

// parseIPList converts a comma-separated settings column back to a slice.
func parseIPList(s string) []string {
	if s == "" {
		return []string{}
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
