package models

// ErrorResponse is the JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the JSON response for the health check endpoint
type HealthResponse struct {
	Status          string   `json:"status"`
	StatusDetails   []string `json:"status_details,omitempty"`
	UptimeSeconds   int64    `json:"uptime_seconds"`
	Database        string   `json:"database"`
	WhitelistedIPs  int      `json:"whitelisted_ips"`
	TemporaryBlocks int      `json:"temporary_blocks"`
	PermanentBlocks int      `json:"permanent_blocks"`
}
