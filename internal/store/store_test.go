package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/chorely/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustUser(t *testing.T, us *UserStore, id, name string) {
	t.Helper()
	if _, err := us.Ensure(context.Background(), id, name, id+"@example.com", ""); err != nil {
		t.Fatalf("ensure user %s: %v", id, err)
	}
}
