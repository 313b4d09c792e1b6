package database

import (
	"fmt"
	"os"
	"path/filepath"

	"cmsbackup/internal/backup"
	"cmsbackup/internal/config"
)

// DatabaseFile is the name of the SQLite file inside data_dir.
const DatabaseFile = "cmsbackup.db"

// NewDatabaseFromConfig opens the database selected by cfg.Type.
// A memory database starts empty and is migrated immediately; a sqlite
// database is left as found so the caller can check its migration status.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock backup.Clock) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, DatabaseFile), clock)
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", clock)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating memory database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
