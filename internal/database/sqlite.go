package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cmsbackup/internal/backup"
	"cmsbackup/internal/database/migrations"
	"cmsbackup/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements backup.Catalog and backup.EntityStore on one SQLite database.
type SQLiteDatabase struct {
	db    *sql.DB
	clock backup.Clock
	path  string
}

// NewSQLiteDatabase opens the database at path.
// path can be a file path or ":memory:" for an in-memory database.
// A nil clock uses backup.RealClock.
func NewSQLiteDatabase(path string, clock backup.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteDatabaseFromDB(db, path, clock), nil
}

// NewSQLiteDatabaseFromDB wraps a connection opened with OpenConnection.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, clock backup.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = backup.RealClock{}
	}
	return &SQLiteDatabase{db: db, clock: clock, path: path}
}

// OpenConnection opens and configures a SQLite connection.
//
// The pool is limited to one connection: an in-memory database exists per
// connection, and PRAGMA foreign_keys applies only to the connection it ran on.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Backup records

const recordColumns = `id, name, description, kind, payload_ref, size_bytes, media_ref, media_bytes,
	status, operation, error_message, is_automatic, created_at, started_at, completed_at,
	created_by_id, created_by_name`

func (s *SQLiteDatabase) InsertBackup(ctx context.Context, rec *model.BackupRecord) error {
	rec.CreatedAt = s.clock.Now().UTC()
	if rec.Operation == "" {
		rec.Operation = model.OperationBackup
	}
	byID, byName := principalColumns(rec.CreatedBy)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO backup_records (name, description, kind, payload_ref, size_bytes, media_ref, media_bytes,
			status, operation, error_message, is_automatic, created_at, started_at, completed_at,
			created_by_id, created_by_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Name, rec.Description, string(rec.Kind), rec.PayloadRef, rec.SizeBytes, rec.MediaRef, rec.MediaBytes,
		string(rec.Status), string(rec.Operation), rec.ErrorMessage, rec.IsAutomatic, rec.CreatedAt,
		nullTime(rec.StartedAt), nullTime(rec.CompletedAt), byID, byName)
	if err != nil {
		return fmt.Errorf("inserting backup record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading backup record id: %w", err)
	}
	rec.ID = id
	return nil
}

func (s *SQLiteDatabase) UpdateBackup(ctx context.Context, rec *model.BackupRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE backup_records SET
			name = ?, description = ?, payload_ref = ?, size_bytes = ?, media_ref = ?, media_bytes = ?,
			status = ?, operation = ?, error_message = ?, started_at = ?, completed_at = ?
		WHERE id = ?`,
		rec.Name, rec.Description, rec.PayloadRef, rec.SizeBytes, rec.MediaRef, rec.MediaBytes,
		string(rec.Status), string(rec.Operation), rec.ErrorMessage,
		nullTime(rec.StartedAt), nullTime(rec.CompletedAt), rec.ID)
	if err != nil {
		return fmt.Errorf("updating backup record %d: %w", rec.ID, err)
	}
	return expectOneRow(res, "backup record", rec.ID)
}

func (s *SQLiteDatabase) GetBackup(ctx context.Context, id int64) (*model.BackupRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM backup_records WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding backup record %d: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteDatabase) ListBackups(ctx context.Context, filter model.BackupFilter) ([]*model.BackupRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Automatic != nil {
		where = append(where, "is_automatic = ?")
		args = append(args, *filter.Automatic)
	}

	query := "SELECT " + recordColumns + " FROM backup_records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	return s.queryRecords(ctx, query, args...)
}

func (s *SQLiteDatabase) FindExpiredBackups(ctx context.Context, kind model.Kind, cutoff time.Time) ([]*model.BackupRecord, error) {
	recs, err := s.queryRecords(ctx, "SELECT "+recordColumns+` FROM backup_records
		WHERE kind = ? AND is_automatic = 1 AND status = ?
		ORDER BY id`, string(kind), string(model.StatusCompleted))
	if err != nil {
		return nil, err
	}

	// Compared in Go: stored timestamps are text and need not share one layout.
	expired := recs[:0]
	for _, rec := range recs {
		if rec.CreatedAt.Before(cutoff) {
			expired = append(expired, rec)
		}
	}
	return expired, nil
}

func (s *SQLiteDatabase) DeleteBackup(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM backup_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting backup record %d: %w", id, err)
	}
	return expectOneRow(res, "backup record", id)
}

func (s *SQLiteDatabase) BackupStats(ctx context.Context) (*model.BackupStats, error) {
	var stats model.BackupStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN size_bytes + media_bytes ELSE 0 END), 0)
		FROM backup_records`).Scan(&stats.Total, &stats.Completed, &stats.Failed, &stats.TotalSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("computing backup stats: %w", err)
	}

	var latest sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT completed_at FROM backup_records
		WHERE status = 'completed' AND completed_at IS NOT NULL
		ORDER BY completed_at DESC, id DESC LIMIT 1`).Scan(&latest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finding latest completed backup: %w", err)
	}
	stats.LatestCompleted = timePtr(latest)
	return &stats, nil
}

func (s *SQLiteDatabase) queryRecords(ctx context.Context, query string, args ...any) ([]*model.BackupRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying backup records: %w", err)
	}
	defer rows.Close()

	var recs []*model.BackupRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning backup record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating backup records: %w", err)
	}
	return recs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.BackupRecord, error) {
	var (
		rec                model.BackupRecord
		kind, status, op   string
		started, completed sql.NullTime
		byID, byName       sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Description, &kind, &rec.PayloadRef, &rec.SizeBytes,
		&rec.MediaRef, &rec.MediaBytes, &status, &op, &rec.ErrorMessage, &rec.IsAutomatic,
		&rec.CreatedAt, &started, &completed, &byID, &byName)
	if err != nil {
		return nil, err
	}
	rec.Kind = model.Kind(kind)
	rec.Status = model.Status(status)
	rec.Operation = model.Operation(op)
	rec.StartedAt = timePtr(started)
	rec.CompletedAt = timePtr(completed)
	if byID.Valid || byName.Valid {
		rec.CreatedBy = &model.Principal{ID: byID.String, Name: byName.String}
	}
	return &rec, nil
}

// Policies

const policyColumns = `id, name, enabled, kind, frequency, retention_days, scheduled_time_of_day,
	last_run_at, next_run_at, created_at, updated_at`

func (s *SQLiteDatabase) InsertPolicy(ctx context.Context, p *model.BackupPolicy) error {
	now := s.clock.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO backup_policies (name, enabled, kind, frequency, retention_days, scheduled_time_of_day,
			last_run_at, next_run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Enabled, string(p.Kind), string(p.Frequency), p.RetentionDays, p.ScheduledTimeOfDay,
		nullTime(p.LastRunAt), nullTime(p.NextRunAt), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting policy: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading policy id: %w", err)
	}
	p.ID = id
	return nil
}

func (s *SQLiteDatabase) UpdatePolicy(ctx context.Context, p *model.BackupPolicy) error {
	p.UpdatedAt = s.clock.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE backup_policies SET
			name = ?, enabled = ?, kind = ?, frequency = ?, retention_days = ?, scheduled_time_of_day = ?,
			last_run_at = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Enabled, string(p.Kind), string(p.Frequency), p.RetentionDays, p.ScheduledTimeOfDay,
		nullTime(p.LastRunAt), nullTime(p.NextRunAt), p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("updating policy %d: %w", p.ID, err)
	}
	return expectOneRow(res, "policy", p.ID)
}

func (s *SQLiteDatabase) GetPolicy(ctx context.Context, id int64) (*model.BackupPolicy, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+policyColumns+" FROM backup_policies WHERE id = ?", id)
	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding policy %d: %w", id, err)
	}
	return p, nil
}

func (s *SQLiteDatabase) ListPolicies(ctx context.Context) ([]*model.BackupPolicy, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+policyColumns+" FROM backup_policies ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing policies: %w", err)
	}
	defer rows.Close()

	var ps []*model.BackupPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning policy: %w", err)
		}
		ps = append(ps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating policies: %w", err)
	}
	return ps, nil
}

func (s *SQLiteDatabase) DeletePolicy(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM backup_policies WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting policy %d: %w", id, err)
	}
	return expectOneRow(res, "policy", id)
}

func scanPolicy(row scanner) (*model.BackupPolicy, error) {
	var (
		p                model.BackupPolicy
		kind, freq       string
		lastRun, nextRun sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Name, &p.Enabled, &kind, &freq, &p.RetentionDays, &p.ScheduledTimeOfDay,
		&lastRun, &nextRun, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Kind = model.Kind(kind)
	p.Frequency = model.Frequency(freq)
	p.LastRunAt = timePtr(lastRun)
	p.NextRunAt = timePtr(nextRun)
	return &p, nil
}

// Maintenance

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// CopyTo writes a consistent copy of the whole database to destPath using VACUUM INTO.
func (s *SQLiteDatabase) CopyTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("copying database: %w", err)
	}
	return nil
}

// Schema returns the CREATE statements of every table and index, excluding
// SQLite internals and the migration bookkeeping table.
func (s *SQLiteDatabase) Schema(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY
		  CASE type
		    WHEN 'table' THEN 1
		    WHEN 'index' THEN 2
		  END,
		  name`)
	if err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("reading schema: %w", err)
		}
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	return b.String(), nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func expectOneRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, backup.ErrNotFound)
	}
	return nil
}

func principalColumns(p *model.Principal) (sql.NullString, sql.NullString) {
	if p == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: p.ID, Valid: true}, sql.NullString{String: p.Name, Valid: true}
}

// nullTime stores t in UTC so DATETIME text sorts chronologically.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var (
	_ backup.Catalog     = (*SQLiteDatabase)(nil)
	_ backup.EntityStore = (*SQLiteDatabase)(nil)
)
