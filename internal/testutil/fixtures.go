package testutil

import (
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// SampleSettings returns a settings row with default values
func SampleSettings() *repository.SecuritySettings {
	return &repository.SecuritySettings{
		RateLimitingEnabled:          true,
		IPBlockingEnabled:            true,
		MaxRequestsPerMinute:         300,
		MaxRequestsPerSecond:         10,
		MaxRequestsPerMinuteAuth:     30,
		MaxRequestsPerSecondAuth:     3,
		ExemptAdminsFromRateLimiting: true,
		ErrorSpikeThresholdPerMinute: 20,
		ErrorSpikeConsecutiveMinutes: 1,
		IPBlockDurationMinutes:       30,
		WhitelistedIPs:               []string{},
		BlacklistedIPs:               []string{},
		UpdatedAt:                    time.Now(),
	}
}

// SampleBlockedIP returns a temporary block record for the given address
func SampleBlockedIP(ip string) *repository.BlockedIP {
	now := time.Now()
	expires := now.Add(30 * time.Minute)

	return &repository.BlockedIP{
		IPAddress: ip,
		Reason:    "rate limit exceeded",
		Source:    "admin",
		Permanent: false,
		BlockedAt: now,
		ExpiresAt: &expires,
	}
}

// SampleSecurityEvent returns an audit event record of the given type
func SampleSecurityEvent(eventType string) *repository.SecurityEvent {
	return &repository.SecurityEvent{
		EventID:   "evt-" + eventType,
		EventType: eventType,
		Severity:  "medium",
		IPAddress: "203.0.113.50",
		Endpoint:  "/products",
		UserAgent: "test-agent",
		Details:   "fixture event",
		IsBlocked: false,
		CreatedAt: time.Now(),
	}
}
