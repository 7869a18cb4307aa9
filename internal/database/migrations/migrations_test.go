package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Migrate up
	err := MigrateUp(db)
	if err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Verify tables were created
	tables := []string{"assets", "brand_guidelines", "scans", "scan_findings", "video_frames", "provenance_details", "usage_events", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Fresh database should need migration
	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Error("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}

	// Error should mention needing migration
	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Migrate up
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Status should be OK now
	err := CheckDBMigrationStatus(db)
	if err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Run migration twice
	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	// Status should still be OK
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	// Migrate
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// A scan must reference an existing asset
	_, err := db.Exec(`
		INSERT INTO scans (id, asset_id, status, created_at)
		VALUES ('scan-1', 'missing-asset', 'pending', datetime('now'))
	`)

	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_ScanStatusCheck(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO assets (id, storage_key, filename, mime_type, media_kind, size, created_at)
		VALUES ('a-1', 'assets/a-1/x.png', 'x.png', 'image/png', 'image', 10, datetime('now'))`)
	if err != nil {
		t.Fatalf("Failed to insert asset: %v", err)
	}

	_, err = db.Exec("INSERT INTO scans (id, asset_id, status, created_at) VALUES ('s-1', 'a-1', 'pending', datetime('now'))")
	if err != nil {
		t.Fatalf("Failed to insert pending scan: %v", err)
	}

	_, err = db.Exec("INSERT INTO scans (id, asset_id, status, created_at) VALUES ('s-2', 'a-1', 'queued', datetime('now'))")
	if err == nil {
		t.Error("Expected check constraint violation for unknown status, but insert succeeded")
	}
}

func TestSchema_CompositeScoreRange(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO assets (id, storage_key, filename, mime_type, media_kind, size, created_at)
		VALUES ('a-1', 'assets/a-1/x.png', 'x.png', 'image/png', 'image', 10, datetime('now'))`)
	if err != nil {
		t.Fatalf("Failed to insert asset: %v", err)
	}

	_, err = db.Exec("INSERT INTO scans (id, asset_id, status, composite_score, created_at) VALUES ('s-1', 'a-1', 'complete', 101, datetime('now'))")
	if err == nil {
		t.Error("Expected check constraint violation for composite_score 101, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every pooled connection to :memory: would be a separate database
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}

func TestLatestVersion(t *testing.T) {
	v, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if v < 1 {
		t.Errorf("LatestVersion() = %d, want >= 1", v)
	}
}
