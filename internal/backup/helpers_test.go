package backup_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cmsbackup/internal/backup"
	"cmsbackup/internal/fs"
	"cmsbackup/internal/model"
	"cmsbackup/internal/testutil"
	"cmsbackup/internal/vault"
)

// testEnv wires a Service to an in-memory database, a memory vault and a
// media archiver over a temporary directory, all sharing one stub clock.
type testEnv struct {
	svc       *backup.Service
	db        *testutil.TestDatabase
	vault     *vault.MemoryVault
	mediaRoot string
	clock     *testutil.StubClock
	recorder  *testutil.RecordingRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithCatalog(t, nil)
}

// newTestEnvWithCatalog is newTestEnv with the service's catalog replaced by
// wrap(db). Reads through env.db bypass the wrapper.
func newTestEnvWithCatalog(t *testing.T, wrap func(backup.Catalog) backup.Catalog) *testEnv {
	t.Helper()

	clock := testutil.FixedClock()
	db := testutil.NewTestDatabase(t, clock)
	v := testutil.NewTestVault()

	mediaRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(mediaRoot, "logo.png"), []byte("png"), 0644); err != nil {
		t.Fatalf("writing media file: %v", err)
	}
	media, err := fs.NewMediaArchiver(mediaRoot, nil, clock)
	if err != nil {
		t.Fatalf("NewMediaArchiver() error = %v", err)
	}

	registry, err := backup.NewRegistry(backup.DefaultCollections(), nil, db.HasCollection)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	var catalog backup.Catalog = db
	if wrap != nil {
		catalog = wrap(db)
	}
	svc := backup.NewService(catalog, db, v, media, registry, backup.NewNopLogger(), clock, testutil.NewStubIDGenerator())
	recorder := testutil.NewRecordingRecorder()
	svc.SetRecorder(recorder)

	return &testEnv{svc: svc, db: db, vault: v, mediaRoot: mediaRoot, clock: clock, recorder: recorder}
}

func (e *testEnv) backup(t *testing.T, kind model.Kind) *model.BackupRecord {
	t.Helper()
	rec, err := e.svc.CreateBackup(context.Background(), backup.BackupRequest{Name: "manual " + string(kind), Kind: kind})
	if err != nil {
		t.Fatalf("CreateBackup(%s) error = %v", kind, err)
	}
	return rec
}

func (e *testEnv) automaticBackup(t *testing.T, kind model.Kind) *model.BackupRecord {
	t.Helper()
	rec, err := e.svc.CreateBackup(context.Background(), backup.BackupRequest{Name: "auto " + string(kind), Kind: kind, Automatic: true})
	if err != nil {
		t.Fatalf("CreateBackup(%s, automatic) error = %v", kind, err)
	}
	return rec
}

func (e *testEnv) policy(t *testing.T, req backup.PolicyRequest) *model.BackupPolicy {
	t.Helper()
	p, err := e.svc.CreatePolicy(context.Background(), req)
	if err != nil {
		t.Fatalf("CreatePolicy() error = %v", err)
	}
	return p
}

func (e *testEnv) record(t *testing.T, id int64) *model.BackupRecord {
	t.Helper()
	rec, err := e.db.GetBackup(context.Background(), id)
	if err != nil {
		t.Fatalf("GetBackup(%d) error = %v", id, err)
	}
	return rec
}

// failingCatalog fails UpdateBackup for records moving to completed while
// failCompletion is set, and every UpdatePolicy while failPolicyUpdate is set.
type failingCatalog struct {
	backup.Catalog
	failCompletion   bool
	failPolicyUpdate bool
	err              error
}

func (c *failingCatalog) UpdatePolicy(ctx context.Context, p *model.BackupPolicy) error {
	if c.failPolicyUpdate {
		return c.err
	}
	return c.Catalog.UpdatePolicy(ctx, p)
}

func (c *failingCatalog) UpdateBackup(ctx context.Context, rec *model.BackupRecord) error {
	if c.failCompletion && rec.Status == model.StatusCompleted {
		return c.err
	}
	return c.Catalog.UpdateBackup(ctx, rec)
}
