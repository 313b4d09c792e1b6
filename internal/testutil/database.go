package testutil

import (
	"database/sql"
	"testing"

	"cmsbackup/internal/backup"
	"cmsbackup/internal/database"
	"cmsbackup/internal/database/migrations"
)

// TestDatabase is a migrated in-memory database plus its raw connection,
// for seeding and inspecting CMS tables directly.
type TestDatabase struct {
	*database.SQLiteDatabase
	Conn *sql.DB
}

// NewTestDatabase creates a new in-memory SQLite database with all migrations applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T, clock backup.Clock) *TestDatabase {
	t.Helper()

	conn, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := migrations.MigrateUp(conn); err != nil {
		conn.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(conn, ":memory:", clock)

	t.Cleanup(func() {
		db.Close()
	})

	return &TestDatabase{SQLiteDatabase: db, Conn: conn}
}

// Exec runs statements against the raw connection, failing the test on error.
func (d *TestDatabase) Exec(t *testing.T, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		if _, err := d.Conn.Exec(s); err != nil {
			t.Fatalf("exec failed: %v\n%s", err, s)
		}
	}
}

// Count returns the number of rows in table.
func (d *TestDatabase) Count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := d.Conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

// Strings returns column col of table ordered by id.
func (d *TestDatabase) Strings(t *testing.T, table, col string) []string {
	t.Helper()
	rows, err := d.Conn.Query("SELECT " + col + " FROM " + table + " ORDER BY id")
	if err != nil {
		t.Fatalf("querying %s.%s: %v", table, col, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			t.Fatalf("scanning %s.%s: %v", table, col, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterating %s.%s: %v", table, col, err)
	}
	return out
}
