package repository

import (
	"context"
	"time"
)

// HealthStatus represents the overall health state.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name    string
	Status  HealthStatus
	Latency time.Duration
	Message string
}

// HealthRepository provides health check operations for the database.
type HealthRepository interface {
	// Ping performs a basic connectivity check to the database.
	// This should be fast (< 10ms) for liveness probes.
	Ping(ctx context.Context) error

	// CheckHealth verifies the database is responsive and can execute
	// queries, reporting degraded status on high latency.
	CheckHealth(ctx context.Context) (*ComponentHealth, error)
}
