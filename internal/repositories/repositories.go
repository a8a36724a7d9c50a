package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tunepipe/internal/shared"
)

// OpenSessionRepository opens the SQLite database at path, applies migrations and returns a session repository.
func OpenSessionRepository(ctx context.Context, cfg shared.DatabaseConfig, ttl time.Duration) (*SessionRepository, error) {
	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Path != ":memory:" {
		shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
	}

	if err := shared.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}

	return NewSessionRepository(db, ttl), nil
}

// Migrated returns a migrated in-memory database for tests.
func Migrated(ctx context.Context) (*sql.DB, error) {
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		return nil, err
	}
	if err := shared.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
