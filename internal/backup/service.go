package backup

import (
	"context"
	"errors"
	"fmt"

	"cmsbackup/internal/model"
)

// Service is the backup engine. It coordinates the catalog, the live entity
// store, the payload vault and the media archiver.
//
// Operations run synchronously on the caller's goroutine. Nothing prevents two
// operations on the same kind from running concurrently; callers that need that
// guarantee must hold their own lock keyed by kind.
type Service struct {
	catalog  Catalog
	store    EntityStore
	vault    Vault
	media    MediaArchiver
	registry *Registry
	exporter *Exporter
	logger   Logger
	clock    Clock
	recorder Recorder
}

// NewService creates a Service with the provided dependencies.
func NewService(catalog Catalog, store EntityStore, vault Vault, media MediaArchiver, registry *Registry, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		catalog:  catalog,
		store:    store,
		vault:    vault,
		media:    media,
		registry: registry,
		exporter: NewExporter(store, vault, clock, idgen),
		logger:   logger,
		clock:    clock,
		recorder: NopRecorder{},
	}
}

// SetRecorder installs r to receive operation measurements.
func (s *Service) SetRecorder(r Recorder) {
	if r == nil {
		r = NopRecorder{}
	}
	s.recorder = r
}

// Registry returns the kind to collection mapping the service was built with.
func (s *Service) Registry() *Registry {
	return s.registry
}

// BackupRequest describes a backup to create.
type BackupRequest struct {
	Name        string
	Description string
	Kind        model.Kind
	Initiator   *model.Principal // nil for system-triggered backups
	Automatic   bool
}

// CreateBackup records a new backup, exports the kind's collections and, for
// full and files backups, archives the media tree.
//
// The record is always persisted. On failure it is marked failed with the error
// text, and the same error is returned together with the record.
// Failed backups are not retried.
func (s *Service) CreateBackup(ctx context.Context, req BackupRequest) (*model.BackupRecord, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("backup name is required")
	}
	if _, err := model.ParseKind(string(req.Kind)); err != nil {
		return nil, err
	}
	collections := s.registry.Resolve(req.Kind)

	started := s.clock.Now()
	rec := &model.BackupRecord{
		Name:        req.Name,
		Description: req.Description,
		Kind:        req.Kind,
		Status:      model.StatusRunning,
		Operation:   model.OperationBackup,
		IsAutomatic: req.Automatic,
		StartedAt:   &started,
		CreatedBy:   req.Initiator,
	}
	if err := s.catalog.InsertBackup(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording backup: %w", err)
	}
	s.logger.Info("backup started", "id", rec.ID, "kind", rec.Kind, "automatic", rec.IsAutomatic)

	runErr := s.runBackup(ctx, rec, collections)

	finished := s.clock.Now()
	rec.CompletedAt = &finished
	took := finished.Sub(started)

	if runErr != nil {
		rec.Status = model.StatusFailed
		rec.ErrorMessage = runErr.Error()
		s.recorder.BackupFinished(rec.Kind, rec.Status, rec.IsAutomatic, 0, took)
		s.logger.Error("backup failed", "id", rec.ID, "kind", rec.Kind, "error", runErr)
		if err := s.catalog.UpdateBackup(ctx, rec); err != nil {
			return rec, errors.Join(runErr, fmt.Errorf("recording backup failure: %w", err))
		}
		return rec, runErr
	}

	rec.Status = model.StatusCompleted
	if err := s.catalog.UpdateBackup(ctx, rec); err != nil {
		completeErr := fmt.Errorf("recording backup completion: %w", err)
		s.abandonBackup(ctx, rec, completeErr)
		s.recorder.BackupFinished(rec.Kind, rec.Status, rec.IsAutomatic, 0, took)
		return rec, completeErr
	}
	s.recorder.BackupFinished(rec.Kind, rec.Status, rec.IsAutomatic, rec.SizeBytes+rec.MediaBytes, took)
	s.logger.Info("backup completed", "id", rec.ID, "kind", rec.Kind, "payload", rec.PayloadRef, "size", rec.SizeBytes)
	return rec, nil
}

// runBackup performs the export and media steps, filling in the artifact fields of rec.
func (s *Service) runBackup(ctx context.Context, rec *model.BackupRecord, collections []string) error {
	key, size, err := s.exporter.ExportSnapshot(ctx, rec.Kind, collections)
	if err != nil {
		return err
	}
	rec.PayloadRef = key
	rec.SizeBytes = size

	if !rec.Kind.IncludesMedia() {
		return nil
	}

	archive, err := s.media.ArchiveMedia(ctx)
	if err != nil {
		// The document alone is not a usable full/files backup.
		s.removePayload(ctx, rec.PayloadRef)
		rec.PayloadRef = ""
		rec.SizeBytes = 0
		return err
	}
	rec.MediaRef = archive.Dir
	rec.MediaBytes = archive.Bytes
	return nil
}

// ArchiveMedia snapshots the media tree on its own, without a catalog record.
func (s *Service) ArchiveMedia(ctx context.Context) (*MediaArchive, error) {
	archive, err := s.media.ArchiveMedia(ctx)
	if err != nil {
		s.logger.Error("media archive failed", "error", err)
		return nil, err
	}
	s.logger.Info("media archived", "dir", archive.Dir, "files", archive.Files, "bytes", archive.Bytes)
	return archive, nil
}

// GetBackup returns a record by ID, or ErrNotFound.
func (s *Service) GetBackup(ctx context.Context, id int64) (*model.BackupRecord, error) {
	rec, err := s.catalog.GetBackup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding backup %d: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("backup %d: %w", id, ErrNotFound)
	}
	return rec, nil
}

// ListBackups returns records matching filter, newest first.
func (s *Service) ListBackups(ctx context.Context, filter model.BackupFilter) ([]*model.BackupRecord, error) {
	recs, err := s.catalog.ListBackups(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	return recs, nil
}

// DeleteBackup removes a record and then, best effort, its payload and media artifacts.
// A backup or restore that is still running cannot be deleted.
func (s *Service) DeleteBackup(ctx context.Context, id int64) error {
	rec, err := s.GetBackup(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == model.StatusRunning || rec.Status == model.StatusPending {
		return fmt.Errorf("backup %d is %s and cannot be deleted", id, rec.Status)
	}

	if err := s.catalog.DeleteBackup(ctx, id); err != nil {
		return fmt.Errorf("deleting backup %d: %w", id, err)
	}
	s.removeArtifacts(ctx, rec)
	s.logger.Info("backup deleted", "id", id, "kind", rec.Kind)
	return nil
}

// Stats summarizes the catalog.
func (s *Service) Stats(ctx context.Context) (*model.BackupStats, error) {
	stats, err := s.catalog.BackupStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing backup stats: %w", err)
	}
	return stats, nil
}

// abandonBackup handles a backup whose completion could not be recorded.
// The artifacts are removed and the record is marked failed with cause in one
// more best-effort write, so it does not stay running.
func (s *Service) abandonBackup(ctx context.Context, rec *model.BackupRecord, cause error) {
	s.logger.Error("backup failed", "id", rec.ID, "kind", rec.Kind, "error", cause)
	s.removeArtifacts(ctx, rec)
	rec.PayloadRef = ""
	rec.SizeBytes = 0
	rec.MediaRef = ""
	rec.MediaBytes = 0
	rec.Status = model.StatusFailed
	rec.ErrorMessage = cause.Error()
	if err := s.catalog.UpdateBackup(ctx, rec); err != nil {
		s.logger.Warn("recording backup failure", "id", rec.ID, "error", err)
	}
}

// removeArtifacts deletes the payload and media snapshot of rec.
// Failures are logged; the catalog row is already gone.
func (s *Service) removeArtifacts(ctx context.Context, rec *model.BackupRecord) {
	s.removePayload(ctx, rec.PayloadRef)
	if rec.MediaRef != "" {
		if err := s.media.RemoveArchive(rec.MediaRef); err != nil {
			s.logger.Warn("removing media archive", "id", rec.ID, "dir", rec.MediaRef, "error", err)
		}
	}
}

func (s *Service) removePayload(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.vault.DeletePayload(ctx, key); err != nil {
		s.logger.Warn("removing snapshot payload", "payload", key, "error", err)
	}
}
