package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cmsbackup/internal/backup"
	"cmsbackup/internal/config"
	"cmsbackup/internal/database"
	"cmsbackup/internal/fs"
	"cmsbackup/internal/metrics"
	"cmsbackup/internal/model"
	"cmsbackup/internal/vault"
)

// CatalogSnapshotPrefix is the vault key prefix of uploaded catalog copies.
const CatalogSnapshotPrefix = "catalog/"

// Options tune an App beyond what the config file holds.
type Options struct {
	Verbose bool // log at debug level
}

// App is the application layer between the CLI and backup.Service.
// It constructs all dependencies from config and manages the database and
// log file lifecycle on Close.
type App struct {
	cfg      *config.Config
	db       *database.SQLiteDatabase
	vault    backup.Vault
	service  *backup.Service
	registry *prometheus.Registry
	clock    backup.Clock
	logger   *slog.Logger
	op       *Operation
	logFile  *os.File
}

// New creates a fully wired App from cfg.
// command identifies the CLI command being run (e.g. "backup create").
// The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, command string, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	clock := backup.RealClock{}

	overrides, err := collectionOverrides(cfg.Collections)
	if err != nil {
		return nil, err
	}

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	media, err := fs.NewMediaArchiver(cfg.MediaRoot, cfg.Media.Ignore, clock)
	if err != nil {
		return nil, fmt.Errorf("creating media archiver: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, clock)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date (run \"cmsbackup db migrate\"): %w", err)
	}

	registry, err := backup.NewRegistry(backup.DefaultCollections(), overrides, db.HasCollection)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building collection registry: %w", err)
	}

	op := NewOperation(command, clock.Now())
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, level)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := backup.NewService(db, db, v, media, registry, &slogAdapter{l: logger}, clock, backup.UUIDGenerator{})
	svc.SetRecorder(metrics.NewRecorder(promRegistry))

	return &App{
		cfg:      cfg,
		db:       db,
		vault:    v,
		service:  svc,
		registry: promRegistry,
		clock:    clock,
		logger:   logger,
		op:       op,
		logFile:  logFile,
	}, nil
}

// collectionOverrides converts the [collections] config table into registry overrides.
func collectionOverrides(raw map[string][]string) (map[model.Kind][]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[model.Kind][]string, len(raw))
	for k, ids := range raw {
		kind, err := model.ParseKind(k)
		if err != nil {
			return nil, fmt.Errorf("config [collections]: %w", err)
		}
		out[kind] = ids
	}
	return out, nil
}

// Migrate opens the configured database and applies pending migrations.
// It does not need a fully working App, so it can run before the first New.
func Migrate(cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(cfg.Database, backup.RealClock{})
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// Service exposes the backup engine.
func (a *App) Service() *backup.Service {
	return a.service
}

// Backups

// CreateBackup runs a manual backup of kind, recording the OS user as initiator.
func (a *App) CreateBackup(ctx context.Context, kind model.Kind, name, description string) (*model.BackupRecord, error) {
	a.op.MarkDirty()
	if name == "" {
		name = fmt.Sprintf("Manual %s backup %s", kind, a.clock.Now().Format("2006-01-02 15:04"))
	}
	return a.service.CreateBackup(ctx, backup.BackupRequest{
		Name:        name,
		Description: description,
		Kind:        kind,
		Initiator:   currentPrincipal(),
	})
}

// Restore restores the live data from a completed backup.
func (a *App) Restore(ctx context.Context, id int64) (*model.BackupRecord, error) {
	a.op.MarkDirty()
	return a.service.Restore(ctx, id)
}

func (a *App) ListBackups(ctx context.Context, filter model.BackupFilter) ([]*model.BackupRecord, error) {
	return a.service.ListBackups(ctx, filter)
}

func (a *App) GetBackup(ctx context.Context, id int64) (*model.BackupRecord, error) {
	return a.service.GetBackup(ctx, id)
}

func (a *App) DeleteBackup(ctx context.Context, id int64) error {
	a.op.MarkDirty()
	return a.service.DeleteBackup(ctx, id)
}

func (a *App) Stats(ctx context.Context) (*model.BackupStats, error) {
	return a.service.Stats(ctx)
}

// ArchiveMedia snapshots the media tree without recording a backup.
func (a *App) ArchiveMedia(ctx context.Context) (*backup.MediaArchive, error) {
	return a.service.ArchiveMedia(ctx)
}

// Policies

func (a *App) CreatePolicy(ctx context.Context, req backup.PolicyRequest) (*model.BackupPolicy, error) {
	a.op.MarkDirty()
	return a.service.CreatePolicy(ctx, req)
}

func (a *App) UpdatePolicy(ctx context.Context, id int64, req backup.PolicyRequest) (*model.BackupPolicy, error) {
	a.op.MarkDirty()
	return a.service.UpdatePolicy(ctx, id, req)
}

func (a *App) GetPolicy(ctx context.Context, id int64) (*model.BackupPolicy, error) {
	return a.service.GetPolicy(ctx, id)
}

func (a *App) ListPolicies(ctx context.Context) ([]*model.BackupPolicy, error) {
	return a.service.ListPolicies(ctx)
}

func (a *App) DeletePolicy(ctx context.Context, id int64) error {
	a.op.MarkDirty()
	return a.service.DeletePolicy(ctx, id)
}

// Scheduling

// Tick runs one scheduler pass.
func (a *App) Tick(ctx context.Context) (backup.TickResult, error) {
	a.op.MarkDirty()
	return a.service.Tick(ctx)
}

// Reap runs one retention pass.
func (a *App) Reap(ctx context.Context) (backup.ReapResult, error) {
	a.op.MarkDirty()
	return a.service.Reap(ctx)
}

// Serve runs the scheduler until ctx is cancelled. When metrics_addr is set
// a Prometheus endpoint is served alongside it.
func (a *App) Serve(ctx context.Context) error {
	interval, err := a.cfg.Scheduler.TickInterval()
	if err != nil {
		return err
	}
	a.op.MarkDirty()

	var srv *http.Server
	if addr := a.cfg.Scheduler.MetricsAddr; addr != "" {
		srv = metrics.NewServer(addr, a.registry)
		go func() {
			a.logger.Info("metrics server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	runErr := a.service.Run(ctx, interval)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown", "error", err)
		}
	}
	return runErr
}

// Maintenance

// Schema returns the catalog and CMS schema as SQL.
func (a *App) Schema(ctx context.Context) (string, error) {
	return a.db.Schema(ctx)
}

// VerifySetup checks that the vault is reachable and writable.
func (a *App) VerifySetup(ctx context.Context) error {
	if err := a.vault.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	return nil
}

// SnapshotCatalog copies the whole database and uploads it to the vault under
// catalog/cmsbackup_<timestamp>.db. It returns the vault key.
func (a *App) SnapshotCatalog(ctx context.Context) (string, error) {
	tmpDir, err := os.MkdirTemp("", "cmsbackup-catalog-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir for catalog snapshot: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, database.DatabaseFile)
	if err := a.db.CopyTo(ctx, tmpPath); err != nil {
		return "", fmt.Errorf("snapshotting catalog: %w", err)
	}

	key := CatalogSnapshotPrefix + "cmsbackup_" + a.clock.Now().UTC().Format("20060102_150405") + ".db"
	if err := a.upload(ctx, key, tmpPath); err != nil {
		return "", err
	}
	a.logger.Info("catalog snapshot uploaded", "key", key)
	return key, nil
}

// upload opens the file at path and stores it in the vault under key.
func (a *App) upload(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening catalog snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat catalog snapshot: %w", err)
	}

	if err := a.vault.PutPayload(ctx, key, f, info.Size()); err != nil {
		return fmt.Errorf("uploading catalog snapshot to vault: %w", err)
	}
	return nil
}

// Close finishes the operation and releases resources.
// When the operation changed the catalog a snapshot is uploaded to the vault first.
func (a *App) Close() error {
	var errs []error

	if a.op.Dirty() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		if _, err := a.SnapshotCatalog(ctx); err != nil {
			a.logger.Error("catalog snapshot failed", "error", err)
			errs = append(errs, err)
		}
		cancel()
	}

	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return errors.Join(errs...)
}
