package testutil

import (
	"testing"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/config"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/database"
)

// NewTestDatabase opens the "memory" database type, which applies the
// embedded migrations on open, and closes it when the test ends.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("opening scan database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
