package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/tcalvo/mejenga/internal/db"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// SeedUser inserts a user row and returns its id.
func SeedUser(t *testing.T, database *db.DB, name, email, apiToken string) int64 {
	t.Helper()

	result, err := database.ExecContext(context.Background(),
		`INSERT INTO users (name, email, api_token) VALUES (?, ?, ?)`,
		name, email, nullable(apiToken))
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("seed user id: %v", err)
	}
	return id
}

// SeedField inserts an active field row and returns its id.
func SeedField(t *testing.T, database *db.DB, ownerID int64, name string, hourlyRate int64) int64 {
	t.Helper()

	result, err := database.ExecContext(context.Background(),
		`INSERT INTO fields (owner_id, name, hourly_rate, is_active) VALUES (?, ?, ?, 1)`,
		ownerID, name, hourlyRate)
	if err != nil {
		t.Fatalf("seed field: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("seed field id: %v", err)
	}
	return id
}

func nullable(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
