// Package policy defines the security policy snapshot consumed on every
// admission decision, and the providers that supply it from configuration
// or from the settings store.
package policy

import "github.com/davidtres03/EcommerceStarter-sub003/internal/repository"

// Documented defaults, substituted for absent or non-positive values.
// A non-positive configured threshold is never honored as "no limit".
const (
	DefaultMaxRequestsPerMinute     = 300
	DefaultMaxRequestsPerSecond     = 10
	DefaultMaxRequestsPerMinuteAuth = 30
	DefaultMaxRequestsPerSecondAuth = 3
	DefaultErrorSpikeThreshold      = 20
	DefaultErrorSpikeMinutes        = 1
	DefaultBlockDurationMinutes     = 30
)

// Policy is one immutable configuration snapshot for the admission
// pipeline. Each request is evaluated against a single snapshot; changes
// apply to subsequent requests, never mid-request.
type Policy struct {
	RateLimitingEnabled bool
	IPBlockingEnabled   bool

	// Standard endpoint budgets.
	MaxRequestsPerMinute int
	MaxRequestsPerSecond int

	// Auth-sensitive endpoint budgets (login, register, admin paths).
	MaxRequestsPerMinuteAuth int
	MaxRequestsPerSecondAuth int

	ExemptAdminsFromRateLimiting bool

	ErrorSpikeThresholdPerMinute  int
	ErrorSpikeConsecutiveMinutes  int
	AutoPermanentBlacklistEnabled bool
	IPBlockDurationMinutes        int
}

// Default returns the policy in effect when nothing at all is configured:
// both protections on, documented thresholds, admins exempt, temporary
// blocks only.
func Default() Policy {
	return Policy{
		RateLimitingEnabled:          true,
		IPBlockingEnabled:            true,
		MaxRequestsPerMinute:         DefaultMaxRequestsPerMinute,
		MaxRequestsPerSecond:         DefaultMaxRequestsPerSecond,
		MaxRequestsPerMinuteAuth:     DefaultMaxRequestsPerMinuteAuth,
		MaxRequestsPerSecondAuth:     DefaultMaxRequestsPerSecondAuth,
		ExemptAdminsFromRateLimiting: true,
		ErrorSpikeThresholdPerMinute: DefaultErrorSpikeThreshold,
		ErrorSpikeConsecutiveMinutes: DefaultErrorSpikeMinutes,
		IPBlockDurationMinutes:       DefaultBlockDurationMinutes,
	}
}

// Normalized returns a copy with every non-positive threshold replaced by
// its documented default. Callers on the decision path normalize once and
// work with the result.
func (p Policy) Normalized() Policy {
	if p.MaxRequestsPerMinute <= 0 {
		p.MaxRequestsPerMinute = DefaultMaxRequestsPerMinute
	}
	if p.MaxRequestsPerSecond <= 0 {
		p.MaxRequestsPerSecond = DefaultMaxRequestsPerSecond
	}
	if p.MaxRequestsPerMinuteAuth <= 0 {
		p.MaxRequestsPerMinuteAuth = DefaultMaxRequestsPerMinuteAuth
	}
	if p.MaxRequestsPerSecondAuth <= 0 {
		p.MaxRequestsPerSecondAuth = DefaultMaxRequestsPerSecondAuth
	}
	if p.ErrorSpikeThresholdPerMinute <= 0 {
		p.ErrorSpikeThresholdPerMinute = DefaultErrorSpikeThreshold
	}
	if p.ErrorSpikeConsecutiveMinutes <= 0 {
		p.ErrorSpikeConsecutiveMinutes = DefaultErrorSpikeMinutes
	}
	if p.IPBlockDurationMinutes <= 0 {
		p.IPBlockDurationMinutes = DefaultBlockDurationMinutes
	}
	return p
}

// Enabled reports whether any enforcement is switched on.
func (p Policy) Enabled() bool {
	return p.RateLimitingEnabled || p.IPBlockingEnabled
}

// FromSettings maps a stored settings row onto a policy snapshot. The
// whitelist and blacklist columns are membership data, not policy; they are
// applied to the reputation store separately.
func FromSettings(s *repository.SecuritySettings) Policy {
	return Policy{
		RateLimitingEnabled:           s.RateLimitingEnabled,
		IPBlockingEnabled:             s.IPBlockingEnabled,
		MaxRequestsPerMinute:          s.MaxRequestsPerMinute,
		MaxRequestsPerSecond:          s.MaxRequestsPerSecond,
		MaxRequestsPerMinuteAuth:      s.MaxRequestsPerMinuteAuth,
		MaxRequestsPerSecondAuth:      s.MaxRequestsPerSecondAuth,
		ExemptAdminsFromRateLimiting:  s.ExemptAdminsFromRateLimiting,
		ErrorSpikeThresholdPerMinute:  s.ErrorSpikeThresholdPerMinute,
		ErrorSpikeConsecutiveMinutes:  s.ErrorSpikeConsecutiveMinutes,
		AutoPermanentBlacklistEnabled: s.AutoPermanentBlacklistEnabled,
		IPBlockDurationMinutes:        s.IPBlockDurationMinutes,
	}
}
