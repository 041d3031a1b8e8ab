// Package audit defines the storefront's security events and the sinks
// that record them. Events describe denials and escalations made by the
// admission layer; recording them must never fail or slow down a request.
package audit

import "time"

// EventType identifies what a security event describes.
type EventType string

// Security event types.
const (
	// EventRateLimitExceeded is emitted when a request is denied for
	// exceeding its rate budget.
	EventRateLimitExceeded EventType = "RateLimitExceeded"

	// EventBlockedIPAttempt is emitted when a temporarily blocked IP makes
	// a request.
	EventBlockedIPAttempt EventType = "BlockedIpAttempt"

	// EventBlacklistedIPAttempt is emitted when a permanently blacklisted
	// IP makes a request.
	EventBlacklistedIPAttempt EventType = "BlacklistedIpAttempt"

	// EventSuspiciousActivity is emitted when the error-spike detector
	// fires for an IP.
	EventSuspiciousActivity EventType = "SuspiciousActivity"

	// EventIPBlacklistedPermanent is emitted when an escalation results in
	// a permanent blacklist entry.
	EventIPBlacklistedPermanent EventType = "IpBlacklistedPermanent"

	// EventIPManuallyBlocked is emitted when an administrator blocks an IP.
	EventIPManuallyBlocked EventType = "IpManuallyBlocked"

	// EventIPUnblocked is emitted when an administrator removes a block.
	EventIPUnblocked EventType = "IpUnblocked"

	// EventWhitelistUpdated is emitted when an administrator changes the
	// whitelist.
	EventWhitelistUpdated EventType = "WhitelistUpdated"
)

// Severity ranks how much operator attention an event deserves.
type Severity string

// Severity levels, lowest to highest.
const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Event is one structured security occurrence. ID and CreatedAt are filled
// in at emission when left empty.
type Event struct {
	ID        string
	Type      EventType
	Severity  Severity
	IPAddress string
	Endpoint  string
	UserAgent string
	Details   string
	IsBlocked bool
	CreatedAt time.Time
}
