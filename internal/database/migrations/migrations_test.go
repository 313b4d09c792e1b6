package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{
		"users", "categories", "tags", "posts", "post_tags", "comments",
		"media_files", "site_settings", "backup_records", "backup_policies",
		"schema_migrations",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestCheckStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)

		err := CheckStatus(db)
		if !errors.Is(err, ErrNeedsMigration) {
			t.Errorf("CheckStatus() error = %v, want ErrNeedsMigration", err)
		}
	})

	t.Run("migrated database is up to date", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() failed: %v", err)
		}

		if err := CheckStatus(db); err != nil {
			t.Errorf("CheckStatus() after migration returned error: %v", err)
		}

		st, err := ReadStatus(db)
		if err != nil {
			t.Fatalf("ReadStatus() error = %v", err)
		}
		if !st.UpToDate() {
			t.Errorf("ReadStatus() = %+v, want up to date", st)
		}
	})
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("first MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckStatus(db); err != nil {
		t.Errorf("CheckStatus() after double migration returned error: %v", err)
	}
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

func TestSchema_ForeignKeys(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO posts (id, title, slug, author_id, created_at, updated_at)
		VALUES (1, 'Orphan', 'orphan', 999, datetime('now'), datetime('now'))
	`)
	if err == nil {
		t.Error("expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_Checks(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tests := []struct {
		name  string
		query string
	}{
		{
			name:  "unknown backup kind",
			query: `INSERT INTO backup_records (name, kind, status, created_at) VALUES ('x', 'everything', 'running', datetime('now'))`,
		},
		{
			name:  "unknown backup status",
			query: `INSERT INTO backup_records (name, kind, status, created_at) VALUES ('x', 'full', 'queued', datetime('now'))`,
		},
		{
			name:  "non-positive retention",
			query: `INSERT INTO backup_policies (name, kind, frequency, retention_days, created_at, updated_at) VALUES ('x', 'full', 'daily', 0, datetime('now'), datetime('now'))`,
		},
		{
			name:  "duplicate setting key",
			query: `INSERT INTO site_settings (key, value, updated_at) VALUES ('site_name', 'a', datetime('now')), ('site_name', 'b', datetime('now'))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := db.Exec(tt.query); err == nil {
				t.Error("expected constraint violation, but insert succeeded")
			}
		})
	}
}

// openTestDB opens a single-connection in-memory SQLite database with foreign keys on.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	return db
}
