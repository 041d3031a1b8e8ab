package testutil

import (
	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
	repoMock "github.com/davidtres03/EcommerceStarter-sub003/internal/repository/mock"
)

// MockRepositories contains all mock repository implementations for testing.
// This provides a convenient way to set up and access mocks in tests.
type MockRepositories struct {
	Settings   *repoMock.SettingsRepository
	Reputation *repoMock.ReputationRepository
	Events     *repoMock.SecurityEventRepository
	Health     *repoMock.HealthRepository
}

// NewMockRepositories creates a new set of mock repositories for testing.
func NewMockRepositories() *MockRepositories {
	return &MockRepositories{
		Settings:   repoMock.NewSettingsRepository(),
		Reputation: repoMock.NewReputationRepository(),
		Events:     repoMock.NewSecurityEventRepository(),
		Health:     repoMock.NewHealthRepository(),
	}
}

// Reset clears all mock repositories to a fresh state.
func (m *MockRepositories) Reset() {
	m.Settings.Reset()
	m.Reputation.Reset()
	m.Events.Reset()
	m.Health.Reset()
}

// Repositories bundles the mocks into a repository.Repositories value,
// for handlers that take the whole set.
func (m *MockRepositories) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Settings:     m.Settings,
		Reputation:   m.Reputation,
		Events:       m.Events,
		Health:       m.Health,
		DatabaseType: "mock",
		Cleanup:      func() error { return nil },
	}
}

// Verify interface implementations at compile time
var (
	_ repository.SettingsRepository      = (*repoMock.SettingsRepository)(nil)
	_ repository.ReputationRepository    = (*repoMock.ReputationRepository)(nil)
	_ repository.SecurityEventRepository = (*repoMock.SecurityEventRepository)(nil)
	_ repository.HealthRepository        = (*repoMock.HealthRepository)(nil)
)
