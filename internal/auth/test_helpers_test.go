package auth

import (
	"context"
	"database/sql"
	"testing"

	"github.com/devicehub/devicehub-core/internal/infrastructure/database"
	_ "github.com/devicehub/devicehub-core/migrations" // registers the schema
)

// testDB creates an in-memory SQLite database with the full schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Test cleanup
		t.Fatalf("migrating test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	return db.DB
}
