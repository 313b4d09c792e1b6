package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"cmsbackup/internal/backup"
)

// collection maps an entity-collection identifier to its table.
type collection struct {
	table   string
	orderBy string
}

// collections lists every entity collection the store can export and restore.
var collections = map[string]collection{
	"user.User":            {table: "users", orderBy: "id"},
	"post.Category":        {table: "categories", orderBy: "id"},
	"post.Tag":             {table: "tags", orderBy: "id"},
	"post.Post":            {table: "posts", orderBy: "id"},
	"post.PostTag":         {table: "post_tags", orderBy: "id"},
	"post.Comment":         {table: "comments", orderBy: "id"},
	"media.MediaFile":      {table: "media_files", orderBy: "id"},
	"settings.SiteSetting": {table: "site_settings", orderBy: "id"},
}

// CollectionIDs returns every known collection identifier, sorted.
func CollectionIDs() []string {
	ids := make([]string, 0, len(collections))
	for id := range collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasCollection reports whether id names a known collection.
func (s *SQLiteDatabase) HasCollection(id string) bool {
	_, ok := collections[id]
	return ok
}

func lookupCollections(ids []string) ([]collection, error) {
	out := make([]collection, len(ids))
	for i, id := range ids {
		c, ok := collections[id]
		if !ok {
			return nil, fmt.Errorf("unknown collection %q", id)
		}
		out[i] = c
	}
	return out, nil
}

// ReadCollections reads every row of each collection inside one transaction.
// Rows are ordered by primary key.
func (s *SQLiteDatabase) ReadCollections(ctx context.Context, ids []string) (map[string][]backup.Record, error) {
	cols, err := lookupCollections(ids)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	out := make(map[string][]backup.Record, len(ids))
	for i, id := range ids {
		records, err := readTable(ctx, tx, cols[i])
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", id, err)
		}
		out[id] = records
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing read transaction: %w", err)
	}
	return out, nil
}

func readTable(ctx context.Context, tx *sql.Tx, c collection) ([]backup.Record, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY %s", quoteIdent(c.table), quoteIdent(c.orderBy)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []backup.Record{}
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(backup.Record, len(names))
		for i, name := range names {
			rec[name] = values[i]
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ReplaceCollections deletes every row of each collection and inserts rows in
// their place, in one transaction with foreign key checks deferred to commit.
// Timestamp strings destined for DATETIME columns are parsed back into times.
// Any failure rolls the whole transaction back.
func (s *SQLiteDatabase) ReplaceCollections(ctx context.Context, ids []string, rows map[string][]backup.Record) error {
	cols, err := lookupCollections(ids)
	if err != nil {
		return err
	}

	schemas := make([]map[string]string, len(cols))
	for i, c := range cols {
		schemas[i], err = s.columnTypes(ctx, c.table)
		if err != nil {
			return fmt.Errorf("reading columns of %s: %w", c.table, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
		return fmt.Errorf("deferring foreign keys: %w", err)
	}

	for i, c := range cols {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoteIdent(c.table)); err != nil {
			return fmt.Errorf("clearing %s: %w", ids[i], err)
		}
	}

	for i, c := range cols {
		for n, rec := range rows[ids[i]] {
			if err := insertRecord(ctx, tx, c.table, schemas[i], rec); err != nil {
				return fmt.Errorf("collection %s: record %d: %w", ids[i], n, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing restore: %w", err)
	}
	return nil
}

// columnTypes returns column name to lower-cased declared type.
func (s *SQLiteDatabase) columnTypes(ctx context.Context, table string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make(map[string]string)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		types[name] = strings.ToLower(ctype)
	}
	return types, rows.Err()
}

func insertRecord(ctx context.Context, tx *sql.Tx, table string, types map[string]string, rec backup.Record) error {
	if len(rec) == 0 {
		return fmt.Errorf("empty record")
	}

	fields := make([]string, 0, len(rec))
	for f := range rec {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	quoted := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		ctype, ok := types[f]
		if !ok {
			return fmt.Errorf("unknown field %q", f)
		}
		v, err := columnValue(ctype, rec[f])
		if err != nil {
			return fmt.Errorf("field %s: %w", f, err)
		}
		quoted[i] = quoteIdent(f)
		args[i] = v
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(fields)), ", "))
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func columnValue(ctype string, v any) (any, error) {
	s, ok := v.(string)
	if !ok || !isTimeColumn(ctype) {
		return v, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q", s)
	}
	return t.UTC(), nil
}

func isTimeColumn(ctype string) bool {
	return ctype == "datetime" || ctype == "timestamp" || ctype == "date"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
