package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cmsbackup/internal/backup"
	"cmsbackup/internal/model"
)

type stubClock struct{ now time.Time }

func (c *stubClock) Now() time.Time { return c.now }

// newTestDB creates a migrated in-memory database whose clock starts at 2024-01-15 10:30 UTC.
func newTestDB(t *testing.T) (*SQLiteDatabase, *stubClock) {
	t.Helper()

	clock := &stubClock{now: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
	db, err := NewSQLiteDatabase(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db, clock
}

func seedBlog(t *testing.T, db *SQLiteDatabase) {
	t.Helper()

	stmts := []string{
		`INSERT INTO users (id, username, email, is_staff, date_joined) VALUES (1, 'ada', 'ada@example.com', 1, '2023-05-01 09:00:00')`,
		`INSERT INTO categories (id, name, slug) VALUES (1, 'News', 'news'), (2, 'Guides', 'guides')`,
		`INSERT INTO categories (id, name, slug, parent_id) VALUES (3, 'Go', 'go', 2)`,
		`INSERT INTO posts (id, title, slug, author_id, category_id, created_at, updated_at)
			VALUES (10, 'Hello', 'hello', 1, 1, '2024-01-01 08:00:00', '2024-01-01 08:00:00')`,
		`INSERT INTO site_settings (id, key, value, updated_at) VALUES (1, 'site_name', 'Example', '2024-01-02 00:00:00')`,
	}
	for _, s := range stmts {
		if _, err := db.db.Exec(s); err != nil {
			t.Fatalf("seeding: %v\n%s", err, s)
		}
	}
}

func TestSQLiteDatabase_Backups(t *testing.T) {
	ctx := context.Background()

	t.Run("returns nil when record not found", func(t *testing.T) {
		db, _ := newTestDB(t)

		rec, err := db.GetBackup(ctx, 42)
		if err != nil {
			t.Fatalf("GetBackup() error = %v", err)
		}
		if rec != nil {
			t.Errorf("GetBackup() = %v, want nil", rec)
		}
	})

	t.Run("insert then update round trips every field", func(t *testing.T) {
		db, clock := newTestDB(t)

		started := clock.now
		rec := &model.BackupRecord{
			Name:        "nightly",
			Description: "before upgrade",
			Kind:        model.KindFull,
			Status:      model.StatusRunning,
			StartedAt:   &started,
			CreatedBy:   &model.Principal{ID: "7", Name: "Ada"},
		}
		if err := db.InsertBackup(ctx, rec); err != nil {
			t.Fatalf("InsertBackup() error = %v", err)
		}
		if rec.ID == 0 {
			t.Fatal("InsertBackup() did not set ID")
		}
		if !rec.CreatedAt.Equal(clock.now) {
			t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, clock.now)
		}

		done := started.Add(3 * time.Second)
		rec.Status = model.StatusCompleted
		rec.PayloadRef = "backup_full_20240115_103000_abcd1234.json"
		rec.SizeBytes = 512
		rec.MediaRef = "media_20240115_103000"
		rec.MediaBytes = 2048
		rec.CompletedAt = &done
		if err := db.UpdateBackup(ctx, rec); err != nil {
			t.Fatalf("UpdateBackup() error = %v", err)
		}

		got, err := db.GetBackup(ctx, rec.ID)
		if err != nil {
			t.Fatalf("GetBackup() error = %v", err)
		}
		if got.Status != model.StatusCompleted || got.Operation != model.OperationBackup {
			t.Errorf("Status/Operation = %s/%s, want completed/backup", got.Status, got.Operation)
		}
		if got.PayloadRef != rec.PayloadRef || got.SizeBytes != 512 || got.MediaBytes != 2048 {
			t.Errorf("artifacts = %q %d %d, want %q 512 2048", got.PayloadRef, got.SizeBytes, got.MediaBytes, rec.PayloadRef)
		}
		if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
			t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, done)
		}
		if got.CreatedBy == nil || got.CreatedBy.Name != "Ada" {
			t.Errorf("CreatedBy = %+v, want Ada", got.CreatedBy)
		}
	})

	t.Run("system backups have no principal", func(t *testing.T) {
		db, _ := newTestDB(t)

		rec := &model.BackupRecord{Name: "auto", Kind: model.KindSettings, Status: model.StatusRunning, IsAutomatic: true}
		if err := db.InsertBackup(ctx, rec); err != nil {
			t.Fatalf("InsertBackup() error = %v", err)
		}
		got, _ := db.GetBackup(ctx, rec.ID)
		if got.CreatedBy != nil {
			t.Errorf("CreatedBy = %+v, want nil", got.CreatedBy)
		}
		if !got.IsAutomatic {
			t.Error("IsAutomatic = false, want true")
		}
	})

	t.Run("update and delete of missing record report not found", func(t *testing.T) {
		db, _ := newTestDB(t)

		err := db.UpdateBackup(ctx, &model.BackupRecord{ID: 99, Kind: model.KindFull, Status: model.StatusFailed})
		if !errors.Is(err, backup.ErrNotFound) {
			t.Errorf("UpdateBackup() error = %v, want ErrNotFound", err)
		}
		if err := db.DeleteBackup(ctx, 99); !errors.Is(err, backup.ErrNotFound) {
			t.Errorf("DeleteBackup() error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteDatabase_ListBackups(t *testing.T) {
	ctx := context.Background()
	db, clock := newTestDB(t)

	insert := func(kind model.Kind, status model.Status, automatic bool) int64 {
		rec := &model.BackupRecord{Name: "b", Kind: kind, Status: status, IsAutomatic: automatic}
		if err := db.InsertBackup(ctx, rec); err != nil {
			t.Fatalf("InsertBackup() error = %v", err)
		}
		clock.now = clock.now.Add(time.Minute)
		return rec.ID
	}
	first := insert(model.KindFull, model.StatusCompleted, false)
	insert(model.KindDatabase, model.StatusFailed, true)
	last := insert(model.KindFull, model.StatusCompleted, true)

	yes := true
	tests := []struct {
		name    string
		filter  model.BackupFilter
		wantIDs []int64
	}{
		{name: "all newest first", filter: model.BackupFilter{}, wantIDs: []int64{last, first + 1, first}},
		{name: "by kind", filter: model.BackupFilter{Kind: model.KindFull}, wantIDs: []int64{last, first}},
		{name: "by status", filter: model.BackupFilter{Status: model.StatusFailed}, wantIDs: []int64{first + 1}},
		{name: "automatic only", filter: model.BackupFilter{Automatic: &yes}, wantIDs: []int64{last, first + 1}},
		{name: "limit", filter: model.BackupFilter{Limit: 1}, wantIDs: []int64{last}},
		{name: "offset without limit", filter: model.BackupFilter{Offset: 2}, wantIDs: []int64{first}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := db.ListBackups(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListBackups() error = %v", err)
			}
			if len(recs) != len(tt.wantIDs) {
				t.Fatalf("ListBackups() returned %d records, want %d", len(recs), len(tt.wantIDs))
			}
			for i, rec := range recs {
				if rec.ID != tt.wantIDs[i] {
					t.Errorf("record %d ID = %d, want %d", i, rec.ID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestSQLiteDatabase_ListBackups_OrdersAcrossZones(t *testing.T) {
	ctx := context.Background()
	db, clock := newTestDB(t)

	// 15:00+05:00 is 10:00 UTC, an hour before the second record.
	clock.now = time.Date(2024, 1, 15, 15, 0, 0, 0, time.FixedZone("UTC+5", 5*60*60))
	older := &model.BackupRecord{Name: "older", Kind: model.KindFull, Status: model.StatusCompleted}
	if err := db.InsertBackup(ctx, older); err != nil {
		t.Fatalf("InsertBackup() error = %v", err)
	}
	clock.now = time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)
	newer := &model.BackupRecord{Name: "newer", Kind: model.KindFull, Status: model.StatusCompleted}
	if err := db.InsertBackup(ctx, newer); err != nil {
		t.Fatalf("InsertBackup() error = %v", err)
	}

	recs, err := db.ListBackups(ctx, model.BackupFilter{})
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("ListBackups() returned %d records, want 2", len(recs))
	}
	if recs[0].ID != newer.ID || recs[1].ID != older.ID {
		t.Errorf("ListBackups() order = [%d %d], want [%d %d]", recs[0].ID, recs[1].ID, newer.ID, older.ID)
	}
	if !recs[1].CreatedAt.Equal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v, want 2024-01-15 10:00 UTC", recs[1].CreatedAt)
	}
}

func TestSQLiteDatabase_FindExpiredBackups(t *testing.T) {
	ctx := context.Background()
	db, clock := newTestDB(t)
	start := clock.now

	insert := func(kind model.Kind, status model.Status, automatic bool) int64 {
		rec := &model.BackupRecord{Name: "b", Kind: kind, Status: status, IsAutomatic: automatic}
		if err := db.InsertBackup(ctx, rec); err != nil {
			t.Fatalf("InsertBackup() error = %v", err)
		}
		return rec.ID
	}

	old := insert(model.KindDatabase, model.StatusCompleted, true)
	insert(model.KindDatabase, model.StatusCompleted, false) // manual
	insert(model.KindDatabase, model.StatusFailed, true)     // failed
	insert(model.KindFull, model.StatusCompleted, true)      // other kind
	clock.now = start.Add(20 * 24 * time.Hour)
	insert(model.KindDatabase, model.StatusCompleted, true) // young

	got, err := db.FindExpiredBackups(ctx, model.KindDatabase, start.Add(10*24*time.Hour))
	if err != nil {
		t.Fatalf("FindExpiredBackups() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != old {
		ids := make([]int64, len(got))
		for i, r := range got {
			ids[i] = r.ID
		}
		t.Errorf("FindExpiredBackups() = %v, want [%d]", ids, old)
	}
}

func TestSQLiteDatabase_BackupStats(t *testing.T) {
	ctx := context.Background()
	db, clock := newTestDB(t)

	stats, err := db.BackupStats(ctx)
	if err != nil {
		t.Fatalf("BackupStats() error = %v", err)
	}
	if stats.Total != 0 || stats.LatestCompleted != nil {
		t.Errorf("empty stats = %+v, want zero", stats)
	}

	done := clock.now.Add(time.Minute)
	recs := []*model.BackupRecord{
		{Name: "a", Kind: model.KindFull, Status: model.StatusCompleted, SizeBytes: 100, MediaBytes: 50, CompletedAt: &done},
		{Name: "b", Kind: model.KindDatabase, Status: model.StatusCompleted, SizeBytes: 10, CompletedAt: &clock.now},
		{Name: "c", Kind: model.KindDatabase, Status: model.StatusFailed, ErrorMessage: "boom", CompletedAt: &done},
	}
	for _, r := range recs {
		if err := db.InsertBackup(ctx, r); err != nil {
			t.Fatalf("InsertBackup() error = %v", err)
		}
	}

	stats, err = db.BackupStats(ctx)
	if err != nil {
		t.Fatalf("BackupStats() error = %v", err)
	}
	if stats.Total != 3 || stats.Completed != 2 || stats.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", stats.Total, stats.Completed, stats.Failed)
	}
	if stats.TotalSizeBytes != 160 {
		t.Errorf("TotalSizeBytes = %d, want 160", stats.TotalSizeBytes)
	}
	if stats.LatestCompleted == nil || !stats.LatestCompleted.Equal(done) {
		t.Errorf("LatestCompleted = %v, want %v", stats.LatestCompleted, done)
	}
}

func TestSQLiteDatabase_Policies(t *testing.T) {
	ctx := context.Background()
	db, clock := newTestDB(t)

	p := &model.BackupPolicy{
		Name:               "daily database backup",
		Enabled:            true,
		Kind:               model.KindDatabase,
		Frequency:          model.FrequencyDaily,
		RetentionDays:      7,
		ScheduledTimeOfDay: "03:00",
	}
	if err := db.InsertPolicy(ctx, p); err != nil {
		t.Fatalf("InsertPolicy() error = %v", err)
	}

	got, err := db.GetPolicy(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}
	if got.LastRunAt != nil || got.NextRunAt != nil {
		t.Errorf("new policy run times = %v/%v, want nil", got.LastRunAt, got.NextRunAt)
	}
	if got.RetentionDays != 7 || got.ScheduledTimeOfDay != "03:00" || !got.Enabled {
		t.Errorf("GetPolicy() = %+v", got)
	}

	clock.now = clock.now.Add(time.Hour)
	last := clock.now
	next := last.Add(24 * time.Hour)
	got.LastRunAt, got.NextRunAt = &last, &next
	if err := db.UpdatePolicy(ctx, got); err != nil {
		t.Fatalf("UpdatePolicy() error = %v", err)
	}

	ps, err := db.ListPolicies(ctx)
	if err != nil {
		t.Fatalf("ListPolicies() error = %v", err)
	}
	if len(ps) != 1 {
		t.Fatalf("ListPolicies() returned %d, want 1", len(ps))
	}
	if ps[0].NextRunAt == nil || !ps[0].NextRunAt.Equal(next) {
		t.Errorf("NextRunAt = %v, want %v", ps[0].NextRunAt, next)
	}
	if !ps[0].UpdatedAt.Equal(clock.now) {
		t.Errorf("UpdatedAt = %v, want %v", ps[0].UpdatedAt, clock.now)
	}

	if err := db.DeletePolicy(ctx, p.ID); err != nil {
		t.Fatalf("DeletePolicy() error = %v", err)
	}
	if got, _ := db.GetPolicy(ctx, p.ID); got != nil {
		t.Errorf("GetPolicy() after delete = %+v, want nil", got)
	}
}

func TestSQLiteDatabase_ReadCollections(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	seedBlog(t, db)

	rows, err := db.ReadCollections(ctx, []string{"post.Category", "post.Post", "post.Tag"})
	if err != nil {
		t.Fatalf("ReadCollections() error = %v", err)
	}

	cats := rows["post.Category"]
	if len(cats) != 3 {
		t.Fatalf("len(categories) = %d, want 3", len(cats))
	}
	for i, want := range []int64{1, 2, 3} {
		if cats[i]["id"] != want {
			t.Errorf("categories[%d].id = %v, want %d", i, cats[i]["id"], want)
		}
	}
	if cats[0]["parent_id"] != nil {
		t.Errorf("categories[0].parent_id = %v, want nil", cats[0]["parent_id"])
	}

	posts := rows["post.Post"]
	if len(posts) != 1 {
		t.Fatalf("len(posts) = %d, want 1", len(posts))
	}
	if _, ok := posts[0]["created_at"].(time.Time); !ok {
		t.Errorf("posts[0].created_at has type %T, want time.Time", posts[0]["created_at"])
	}

	if tags, ok := rows["post.Tag"]; !ok || len(tags) != 0 {
		t.Errorf("tags = %v, want empty list", tags)
	}

	if _, err := db.ReadCollections(ctx, []string{"post.Nope"}); err == nil {
		t.Error("ReadCollections() expected error for unknown collection")
	}
}

func TestSQLiteDatabase_ReplaceCollections(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces rows and parses timestamps", func(t *testing.T) {
		db, _ := newTestDB(t)
		seedBlog(t, db)

		err := db.ReplaceCollections(ctx, []string{"post.Category", "post.Post"}, map[string][]backup.Record{
			"post.Category": {
				{"id": int64(5), "name": "Archive", "slug": "archive", "description": "", "parent_id": nil},
			},
			"post.Post": {
				{"id": int64(11), "title": "Back", "slug": "back", "content": "", "excerpt": "", "status": "published",
					"author_id": int64(1), "category_id": int64(5), "view_count": int64(3),
					"created_at": "2023-12-31T23:59:59.5Z", "updated_at": "2024-01-01T00:00:00Z", "published_at": nil},
			},
		})
		if err != nil {
			t.Fatalf("ReplaceCollections() error = %v", err)
		}

		rows, err := db.ReadCollections(ctx, []string{"post.Category", "post.Post"})
		if err != nil {
			t.Fatalf("ReadCollections() error = %v", err)
		}
		if len(rows["post.Category"]) != 1 || rows["post.Category"][0]["slug"] != "archive" {
			t.Errorf("categories = %v, want only archive", rows["post.Category"])
		}
		created, ok := rows["post.Post"][0]["created_at"].(time.Time)
		want := time.Date(2023, 12, 31, 23, 59, 59, 500000000, time.UTC)
		if !ok || !created.Equal(want) {
			t.Errorf("created_at = %v, want %v", rows["post.Post"][0]["created_at"], want)
		}
	})

	t.Run("parents may follow children within the transaction", func(t *testing.T) {
		db, _ := newTestDB(t)
		seedBlog(t, db)

		// Child category listed before its parent.
		err := db.ReplaceCollections(ctx, []string{"post.Category", "post.Post"}, map[string][]backup.Record{
			"post.Category": {
				{"id": int64(3), "name": "Go", "slug": "go", "parent_id": int64(2)},
				{"id": int64(2), "name": "Guides", "slug": "guides"},
			},
		})
		if err != nil {
			t.Fatalf("ReplaceCollections() error = %v", err)
		}
	})

	tests := []struct {
		name    string
		rows    map[string][]backup.Record
		wantErr string
	}{
		{
			name: "unknown field",
			rows: map[string][]backup.Record{"post.Category": {
				{"id": int64(1), "name": "News", "slug": "news"},
				{"id": int64(2), "name": "Guides", "slug": "guides", "colour": "red"},
			}},
			wantErr: "record 1",
		},
		{
			name: "bad timestamp",
			rows: map[string][]backup.Record{"post.Post": {
				{"id": int64(10), "title": "Hello", "slug": "hello", "author_id": int64(1),
					"created_at": "yesterday", "updated_at": "2024-01-01T00:00:00Z"},
			}},
			wantErr: "invalid timestamp",
		},
		{
			name: "dangling foreign key",
			rows: map[string][]backup.Record{"post.Category": {
				{"id": int64(1), "name": "News", "slug": "news", "parent_id": int64(404)},
			}},
			wantErr: "committing restore",
		},
		{
			name: "not null violation",
			rows: map[string][]backup.Record{"post.Category": {
				{"id": int64(1), "slug": "news"},
			}},
			wantErr: "record 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _ := newTestDB(t)
			seedBlog(t, db)
			before, err := db.ReadCollections(ctx, []string{"post.Category", "post.Post"})
			if err != nil {
				t.Fatalf("ReadCollections() error = %v", err)
			}

			err = db.ReplaceCollections(ctx, []string{"post.Category", "post.Post"}, tt.rows)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("ReplaceCollections() error = %v, want containing %q", err, tt.wantErr)
			}

			after, err := db.ReadCollections(ctx, []string{"post.Category", "post.Post"})
			if err != nil {
				t.Fatalf("ReadCollections() error = %v", err)
			}
			if len(after["post.Category"]) != len(before["post.Category"]) || len(after["post.Post"]) != len(before["post.Post"]) {
				t.Errorf("live data changed after failed replace: before %d/%d rows, after %d/%d",
					len(before["post.Category"]), len(before["post.Post"]),
					len(after["post.Category"]), len(after["post.Post"]))
			}
		})
	}
}

func TestSQLiteDatabase_HasCollection(t *testing.T) {
	db, _ := newTestDB(t)

	for _, id := range CollectionIDs() {
		if !db.HasCollection(id) {
			t.Errorf("HasCollection(%q) = false, want true", id)
		}
	}
	for _, id := range backup.DefaultCollections()[model.KindFull] {
		if !db.HasCollection(id) {
			t.Errorf("default collection %q is not backed by a table", id)
		}
	}
	if db.HasCollection("auth.Group") {
		t.Error("HasCollection(auth.Group) = true, want false")
	}
}

func TestSQLiteDatabase_Schema(t *testing.T) {
	db, _ := newTestDB(t)

	schema, err := db.Schema(context.Background())
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	for _, want := range []string{"CREATE TABLE backup_records", "CREATE TABLE posts", "CREATE INDEX idx_posts_author"} {
		if !strings.Contains(schema, want) {
			t.Errorf("Schema() missing %q", want)
		}
	}
	if strings.Contains(schema, "schema_migrations") {
		t.Error("Schema() should not include schema_migrations")
	}
}

func TestSQLiteDatabase_CopyTo(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	seedBlog(t, db)

	dest := filepath.Join(t.TempDir(), "copy.db")
	if err := db.CopyTo(ctx, dest); err != nil {
		t.Fatalf("CopyTo() error = %v", err)
	}

	cp, err := NewSQLiteDatabase(dest, nil)
	if err != nil {
		t.Fatalf("opening copy: %v", err)
	}
	defer cp.Close()

	if err := cp.CheckMigrations(); err != nil {
		t.Errorf("copy CheckMigrations() error = %v", err)
	}
	rows, err := cp.ReadCollections(ctx, []string{"post.Category"})
	if err != nil {
		t.Fatalf("ReadCollections() on copy error = %v", err)
	}
	if len(rows["post.Category"]) != 3 {
		t.Errorf("copy has %d categories, want 3", len(rows["post.Category"]))
	}
}
