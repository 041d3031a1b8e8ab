package mock

import (
	"context"
	"sync"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// HealthRepository is a mock implementation of repository.HealthRepository.
// By default it reports a healthy backend; tests set Health or the error
// fields to simulate degraded and unreachable databases.
type HealthRepository struct {
	mu sync.RWMutex

	// Health overrides the reported component health when non-nil.
	Health *repository.ComponentHealth

	// Error injection for testing error handling
	// NOTE: Set these BEFORE concurrent access begins
	PingError        error
	CheckHealthError error
}

// NewHealthRepository creates a new mock HealthRepository reporting healthy.
func NewHealthRepository() *HealthRepository {
	return &HealthRepository{}
}

// Ensure HealthRepository implements repository.HealthRepository
var _ repository.HealthRepository = (*HealthRepository)(nil)

// Reset clears the health override and injected errors.
func (r *HealthRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Health = nil
	r.PingError = nil
	r.CheckHealthError = nil
}

// SetHealth replaces the reported component health.
func (r *HealthRepository) SetHealth(health repository.ComponentHealth) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Health = &health
}

// Ping performs a basic connectivity check.
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.PingError
}

// CheckHealth reports the configured component health.
func (r *HealthRepository) CheckHealth(ctx context.Context) (*repository.ComponentHealth, error) {
	if r.CheckHealthError != nil {
		return nil, r.CheckHealthError
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Health != nil {
		health := *r.Health
		return &health, nil
	}
	return &repository.ComponentHealth{
		Name:    "mock",
		Status:  repository.HealthStatusHealthy,
		Message: "mock database is healthy",
	}, nil
}
