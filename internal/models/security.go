package models

import "time"

// SecuritySettingsResponse is the current admin-editable security
// configuration as returned by the admin API.
type SecuritySettingsResponse struct {
	RateLimitingEnabled           bool      `json:"rate_limiting_enabled"`
	IPBlockingEnabled             bool      `json:"ip_blocking_enabled"`
	MaxRequestsPerMinute          int       `json:"max_requests_per_minute"`
	MaxRequestsPerSecond          int       `json:"max_requests_per_second"`
	MaxRequestsPerMinuteAuth      int       `json:"max_requests_per_minute_auth"`
	MaxRequestsPerSecondAuth      int       `json:"max_requests_per_second_auth"`
	ExemptAdminsFromRateLimiting  bool      `json:"exempt_admins_from_rate_limiting"`
	ErrorSpikeThresholdPerMinute  int       `json:"error_spike_threshold_per_minute"`
	ErrorSpikeConsecutiveMinutes  int       `json:"error_spike_consecutive_minutes"`
	AutoPermanentBlacklistEnabled bool      `json:"auto_permanent_blacklist_enabled"`
	IPBlockDurationMinutes        int       `json:"ip_block_duration_minutes"`
	WhitelistedIPs                []string  `json:"whitelisted_ips"`
	BlacklistedIPs                []string  `json:"blacklisted_ips"`
	UpdatedAt                     time.Time `json:"updated_at"`
}

// UpdateSecuritySettingsRequest is the request body for replacing the
// security settings. The whole configuration is submitted at once; absent
// numeric fields arrive as zero and are stored as-is, with documented
// defaults substituted when the row becomes a policy snapshot.
type UpdateSecuritySettingsRequest struct {
	RateLimitingEnabled           bool     `json:"rate_limiting_enabled"`
	IPBlockingEnabled             bool     `json:"ip_blocking_enabled"`
	MaxRequestsPerMinute          int      `json:"max_requests_per_minute"`
	MaxRequestsPerSecond          int      `json:"max_requests_per_second"`
	MaxRequestsPerMinuteAuth      int      `json:"max_requests_per_minute_auth"`
	MaxRequestsPerSecondAuth      int      `json:"max_requests_per_second_auth"`
	ExemptAdminsFromRateLimiting  bool     `json:"exempt_admins_from_rate_limiting"`
	ErrorSpikeThresholdPerMinute  int      `json:"error_spike_threshold_per_minute"`
	ErrorSpikeConsecutiveMinutes  int      `json:"error_spike_consecutive_minutes"`
	AutoPermanentBlacklistEnabled bool     `json:"auto_permanent_blacklist_enabled"`
	IPBlockDurationMinutes        int      `json:"ip_block_duration_minutes"`
	WhitelistedIPs                []string `json:"whitelisted_ips"`
	BlacklistedIPs                []string `json:"blacklisted_ips"`
}

// BlockIPRequest is the request body for blocking an IP address.
// DurationMinutes of zero means the policy's configured block duration.
type BlockIPRequest struct {
	IPAddress       string `json:"ip_address"`
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"duration_minutes"`
	Permanent       bool   `json:"permanent"`
}

// UnblockIPRequest is the request body for removing an IP block.
type UnblockIPRequest struct {
	IPAddress string `json:"ip_address"`
}

// WhitelistRequest is the request body for adding or removing a whitelist
// entry.
type WhitelistRequest struct {
	IPAddress string `json:"ip_address"`
}

// BlockedIPResponse is one active block entry in the admin list.
type BlockedIPResponse struct {
	IPAddress string     `json:"ip_address"`
	Reason    string     `json:"reason"`
	Source    string     `json:"source"`
	Permanent bool       `json:"permanent"`
	BlockedAt time.Time  `json:"blocked_at"`
	ExpiresAt *time.Time `json:"expires_at"` // null for permanent entries
}

// SecurityEventResponse is one audit record in the admin event list.
type SecurityEventResponse struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Severity  string    `json:"severity"`
	IPAddress string    `json:"ip_address"`
	Endpoint  string    `json:"endpoint"`
	UserAgent string    `json:"user_agent,omitempty"`
	Details   string    `json:"details,omitempty"`
	IsBlocked bool      `json:"is_blocked"`
	CreatedAt time.Time `json:"created_at"`
}

// SecurityStatsResponse summarizes current protection state for the admin
// dashboard.
type SecurityStatsResponse struct {
	WhitelistedIPs  int `json:"whitelisted_ips"`
	TemporaryBlocks int `json:"temporary_blocks"`
	PermanentBlocks int `json:"permanent_blocks"`
}
