package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

func TestNewMockRepositories(t *testing.T) {
	mocks := NewMockRepositories()
	if mocks == nil {
		t.Fatal("NewMockRepositories returned nil")
	}
	if mocks.Settings == nil {
		t.Error("Settings repository should be initialized")
	}
	if mocks.Reputation == nil {
		t.Error("Reputation repository should be initialized")
	}
	if mocks.Events == nil {
		t.Error("Events repository should be initialized")
	}
	if mocks.Health == nil {
		t.Error("Health repository should be initialized")
	}
}

func TestMockRepositories_Reset(t *testing.T) {
	mocks := NewMockRepositories()

	// Add some data
	mocks.Settings.Seed(SampleSettings())
	mocks.Reputation.AddBlock(repository.BlockedIP{
		IPAddress: "203.0.113.1",
		BlockedAt: time.Now(),
	})

	// Reset
	mocks.Reset()

	// Verify cleared
	settings, err := mocks.Settings.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if settings != nil {
		t.Error("settings row should be cleared after reset")
	}
	if mocks.Reputation.Count() != 0 {
		t.Error("blocks should be cleared after reset")
	}
}

func TestMockRepositories_Repositories(t *testing.T) {
	mocks := NewMockRepositories()
	repos := mocks.Repositories()

	if repos == nil {
		t.Fatal("Repositories returned nil")
	}
	if repos.Settings == nil {
		t.Error("Settings should be wired")
	}
	if repos.Reputation == nil {
		t.Error("Reputation should be wired")
	}
	if repos.Events == nil {
		t.Error("Events should be wired")
	}
	if repos.Health == nil {
		t.Error("Health should be wired")
	}
	if repos.DatabaseType != "mock" {
		t.Errorf("expected database type mock, got %s", repos.DatabaseType)
	}
	if err := repos.Cleanup(); err != nil {
		t.Errorf("Cleanup should be a no-op, got %v", err)
	}
}
