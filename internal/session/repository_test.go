package session

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/devicehub/devicehub-core/internal/infrastructure/database"
	_ "github.com/devicehub/devicehub-core/migrations" // registers the schema
)

// setupTestDB creates an in-memory SQLite database with the full schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Test cleanup
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})
	return db.DB
}

func TestSQLiteRepository_Contract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository {
		return NewSQLiteRepository(setupTestDB(t))
	})
}

// runRepositoryContract checks the behaviour every Repository must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("save and get", func(t *testing.T) {
		repo := newRepo(t)
		exp := now.Add(time.Hour)
		if err := repo.Save(ctx, &Record{ID: "h1", UserID: "u1", ExpiresAt: &exp, CreatedAt: now}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := repo.Get(ctx, "h1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.UserID != "u1" {
			t.Errorf("UserID = %q, want u1", got.UserID)
		}
		if got.ExpiresAt == nil || !got.ExpiresAt.Equal(exp) {
			t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, exp)
		}
	})

	t.Run("save replaces", func(t *testing.T) {
		repo := newRepo(t)
		if err := repo.Save(ctx, &Record{ID: "h1", UserID: "u1", CreatedAt: now}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := repo.Save(ctx, &Record{ID: "h1", UserID: "u2", CreatedAt: now}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := repo.Get(ctx, "h1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.UserID != "u2" || got.ExpiresAt != nil {
			t.Errorf("Get() = %+v, want user u2 with no expiry", got)
		}
	})

	t.Run("missing", func(t *testing.T) {
		repo := newRepo(t)
		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
		if err := repo.Delete(ctx, "nope"); err != nil {
			t.Errorf("Delete() missing error = %v", err)
		}
	})

	t.Run("delete expired", func(t *testing.T) {
		repo := newRepo(t)
		past := now.Add(-time.Minute)
		future := now.Add(time.Minute)
		records := []*Record{
			{ID: "old", UserID: "u1", ExpiresAt: &past, CreatedAt: now},
			{ID: "live", UserID: "u1", ExpiresAt: &future, CreatedAt: now},
			{ID: "forever", UserID: "u1", CreatedAt: now},
		}
		for _, rec := range records {
			if err := repo.Save(ctx, rec); err != nil {
				t.Fatalf("Save(%s) error = %v", rec.ID, err)
			}
		}

		n, err := repo.DeleteExpired(ctx, now)
		if err != nil {
			t.Fatalf("DeleteExpired() error = %v", err)
		}
		if n != 1 {
			t.Errorf("DeleteExpired() = %d, want 1", n)
		}
		if _, err := repo.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expired record still present: %v", err)
		}
		for _, id := range []string{"live", "forever"} {
			if _, err := repo.Get(ctx, id); err != nil {
				t.Errorf("Get(%s) error = %v", id, err)
			}
		}
	})
}
