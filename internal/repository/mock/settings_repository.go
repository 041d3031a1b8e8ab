// Package mock provides mock implementations of repository interfaces for testing.
// These mocks allow tests to run without a real database and provide
// configurable behavior for testing error conditions and edge cases.
//
// IMPORTANT: Error injection fields (e.g., GetError) should be set BEFORE any
// concurrent operations begin. They are not protected by the mutex for
// performance reasons in typical test scenarios.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// SettingsRepository is a mock implementation of repository.SettingsRepository.
// It holds the single settings row in memory.
type SettingsRepository struct {
	mu  sync.RWMutex
	row *repository.SecuritySettings

	// Error injection for testing error handling
	// NOTE: Set these BEFORE concurrent access begins
	GetError         error
	SaveError        error
	UpdateListsError error
}

// NewSettingsRepository creates a new mock SettingsRepository with no row.
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{}
}

// Ensure SettingsRepository implements repository.SettingsRepository
var _ repository.SettingsRepository = (*SettingsRepository)(nil)

// Reset clears the row and all injected errors for a fresh test state.
func (r *SettingsRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.row = nil
	r.GetError = nil
	r.SaveError = nil
	r.UpdateListsError = nil
}

// Seed directly stores a settings row for test setup.
func (r *SettingsRepository) Seed(settings *repository.SecuritySettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.row = copySettings(settings)
}

// Get retrieves the current settings. Returns (nil, nil) when no row exists.
func (r *SettingsRepository) Get(ctx context.Context) (*repository.SecuritySettings, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Check for context cancellation
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return copySettings(r.row), nil
}

// Save creates or replaces the settings row, stamping UpdatedAt the way the
// real backends do.
func (r *SettingsRepository) Save(ctx context.Context, settings *repository.SecuritySettings) error {
	if r.SaveError != nil {
		return r.SaveError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	row := copySettings(settings)
	row.UpdatedAt = time.Now().UTC()
	r.row = row
	return nil
}

// UpdateLists replaces only the IP list columns, creating the row with the
// documented defaults when absent.
func (r *SettingsRepository) UpdateLists(ctx context.Context, whitelisted, blacklisted []string) error {
	if r.UpdateListsError != nil {
		return r.UpdateListsError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if r.row == nil {
		r.row = defaultSettingsRow()
	}
	r.row.WhitelistedIPs = append([]string(nil), whitelisted...)
	r.row.BlacklistedIPs = append([]string(nil), blacklisted...)
	r.row.UpdatedAt = time.Now().UTC()
	return nil
}

// defaultSettingsRow mirrors the schema column defaults.
func defaultSettingsRow() *repository.SecuritySettings {
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
	}
}

// copySettings creates a deep copy including the list slices.
func copySettings(src *repository.SecuritySettings) *repository.SecuritySettings {
	if src == nil {
		return nil
	}
	dst := *src
	dst.WhitelistedIPs = append([]string(nil), src.WhitelistedIPs...)
	dst.BlacklistedIPs = append([]string(nil), src.BlacklistedIPs...)
	return &dst
}
