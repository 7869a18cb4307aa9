package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/config"
)

// dbFileName is the SQLite file created under data_dir.
const dbFileName = "riskshield.db"

// NewDatabaseFromConfig creates a database based on the database config type.
// A memory database is migrated on open since it starts empty; a sqlite file
// is left to `riskshield db migrate`.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, dbFileName))
	case "memory":
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
