package repositories

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tunepipe/internal/models"
	"github.com/desertthunder/tunepipe/internal/shared"
)

func TestSessionRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Closed Database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSessionRepository(db, time.Hour)
		db.Close()

		if _, err := repo.Get(ctx, "id"); err == nil || !strings.Contains(err.Error(), "failed to query session") {
			t.Errorf("expected query error, got %v", err)
		}
		if err := repo.Save(ctx, models.NewSession("id")); err == nil || !strings.Contains(err.Error(), "failed to save session") {
			t.Errorf("expected save error, got %v", err)
		}
		if err := repo.Delete(ctx, "id"); err == nil || !strings.Contains(err.Error(), "failed to delete session") {
			t.Errorf("expected delete error, got %v", err)
		}
		if _, err := repo.Purge(ctx); err == nil || !strings.Contains(err.Error(), "failed to purge sessions") {
			t.Errorf("expected purge error, got %v", err)
		}
	})

	t.Run("Corrupt Row", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		now := time.Now().UTC()
		_, err := db.ExecContext(ctx,
			`INSERT INTO sessions (id, data, created_at, updated_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
			"broken", "{not json", now, now, now.Add(time.Hour),
		)
		if err != nil {
			t.Fatalf("failed to insert row: %v", err)
		}

		repo := NewSessionRepository(db, time.Hour)
		if _, err := repo.Get(ctx, "broken"); err == nil || !strings.Contains(err.Error(), "failed to decode session broken") {
			t.Errorf("expected decode error, got %v", err)
		}
	})

	t.Run("Open Invalid Path", func(t *testing.T) {
		cfg := shared.DatabaseConfig{Path: t.TempDir() + "/missing/dir/sessions.db"}
		if _, err := OpenSessionRepository(ctx, cfg, time.Hour); err == nil {
			t.Error("expected an error for an unreachable database path")
		}
	})
}
