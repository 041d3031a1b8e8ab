package sqlite

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

func TestNewRepositories_Success(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	repos, err := NewRepositories(db)
	if err != nil {
		t.Fatalf("NewRepositories() error = %v", err)
	}

	// Verify all repositories are created
	if repos.Settings == nil {
		t.Error("Settings repository is nil")
	}
	if repos.Reputation == nil {
		t.Error("Reputation repository is nil")
	}
	if repos.Events == nil {
		t.Error("Events repository is nil")
	}
	if repos.Health == nil {
		t.Error("Health repository is nil")
	}
	if repos.DatabaseType != repository.DatabaseTypeSQLite {
		t.Errorf("DatabaseType = %q, want %q", repos.DatabaseType, repository.DatabaseTypeSQLite)
	}
	if repos.Cleanup == nil {
		t.Error("Cleanup function is nil")
	}
}

func TestNewRepositories_NilDatabase(t *testing.T) {
	repos, err := NewRepositories(nil)
	if err == nil {
		t.Fatal("NewRepositories() expected error for nil database, got nil")
	}
	if err != repository.ErrNilDatabase {
		t.Errorf("NewRepositories() error = %v, want %v", err, repository.ErrNilDatabase)
	}
	if repos != nil {
		t.Error("NewRepositories() expected nil repos for nil database")
	}
}

func TestNewRepositories_CleanupClosesDatabase(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	repos, err := NewRepositories(db)
	if err != nil {
		t.Fatalf("NewRepositories() error = %v", err)
	}

	if err := repos.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if err := db.Ping(); err == nil {
		t.Error("database still usable after Cleanup()")
	}
}
