package sqlite

import (
	"database/sql"

	"github.com/davidtres03/EcommerceStarter-sub003/internal/repository"
)

// NewRepositories creates all SQLite repository implementations.
// The db parameter must be a valid, open database connection.
//
// Returns the repositories struct with DatabaseType set to "sqlite" and
// a Cleanup function that closes the database connection.
func NewRepositories(db *sql.DB) (*repository.Repositories, error) {
	if db == nil {
		return nil, repository.ErrNilDatabase
	}

	return &repository.Repositories{
		Settings:     NewSettingsRepository(db),
		Reputation:   NewReputationRepository(db),
		Events:       NewEventRepository(db),
		Health:       NewHealthRepository(db),
		DatabaseType: repository.DatabaseTypeSQLite,
		Cleanup:      db.Close,
	}, nil
}
