package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"cmsbackup/internal/model"
)

// Restore replaces the live collections of the record's kind with the contents
// of its snapshot document.
//
// The source record itself carries the restore's progress: it moves to running
// (operation=restore) and then to completed or failed. Precondition failures
// return *RestoreValidationError and leave the record untouched. Failures in
// the restore body return *RestoreError; the live data is rolled back in full
// and the record is marked failed, which means it cannot be restored again
// without operator intervention. The same happens, with the data already
// committed, when the completion itself cannot be recorded.
func (s *Service) Restore(ctx context.Context, id int64) (*model.BackupRecord, error) {
	rec, err := s.GetBackup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateRestoreSource(rec); err != nil {
		return rec, err
	}

	started := s.clock.Now()
	rec.Status = model.StatusRunning
	rec.Operation = model.OperationRestore
	rec.StartedAt = &started
	rec.CompletedAt = nil
	rec.ErrorMessage = ""
	if err := s.catalog.UpdateBackup(ctx, rec); err != nil {
		return rec, fmt.Errorf("recording restore start: %w", err)
	}
	s.logger.Info("restore started", "id", rec.ID, "kind", rec.Kind, "payload", rec.PayloadRef)

	runErr := s.runRestore(ctx, rec)

	finished := s.clock.Now()
	rec.CompletedAt = &finished
	took := finished.Sub(started)

	if runErr != nil {
		restoreErr := &RestoreError{BackupID: rec.ID, Err: runErr}
		rec.Status = model.StatusFailed
		rec.ErrorMessage = restoreErr.Error()
		s.recorder.RestoreFinished(rec.Kind, rec.Status, took)
		s.logger.Error("restore failed", "id", rec.ID, "kind", rec.Kind, "error", runErr)
		if err := s.catalog.UpdateBackup(ctx, rec); err != nil {
			return rec, errors.Join(restoreErr, fmt.Errorf("recording restore failure: %w", err))
		}
		return rec, restoreErr
	}

	rec.Status = model.StatusCompleted
	if err := s.catalog.UpdateBackup(ctx, rec); err != nil {
		completeErr := fmt.Errorf("recording restore completion: %w", err)
		s.logger.Error("restore failed", "id", rec.ID, "kind", rec.Kind, "error", completeErr)
		// The data is already committed. The payload is kept.
		rec.Status = model.StatusFailed
		rec.ErrorMessage = completeErr.Error()
		if err := s.catalog.UpdateBackup(ctx, rec); err != nil {
			s.logger.Warn("recording restore failure", "id", rec.ID, "error", err)
		}
		s.recorder.RestoreFinished(rec.Kind, rec.Status, took)
		return rec, completeErr
	}
	s.recorder.RestoreFinished(rec.Kind, rec.Status, took)
	s.logger.Info("restore completed", "id", rec.ID, "kind", rec.Kind)
	return rec, nil
}

// validateRestoreSource checks the restore preconditions.
// Status is checked first so a pending or running record reports that it did not complete.
func validateRestoreSource(rec *model.BackupRecord) error {
	if rec.Status != model.StatusCompleted {
		return &RestoreValidationError{BackupID: rec.ID, Err: ErrSourceNotCompleted}
	}
	if rec.PayloadRef == "" {
		return &RestoreValidationError{BackupID: rec.ID, Err: ErrNoSnapshotPayload}
	}
	return nil
}

// runRestore reads and parses the snapshot, then hands the collections of the
// record's kind to the store for a single-transaction replace.
func (s *Service) runRestore(ctx context.Context, rec *model.BackupRecord) error {
	var buf bytes.Buffer
	if err := s.vault.GetPayload(ctx, rec.PayloadRef, &buf); err != nil {
		return fmt.Errorf("reading payload %s: %w", rec.PayloadRef, err)
	}

	doc, err := DecodeDocument(&buf)
	if err != nil {
		return err
	}

	collections := s.registry.Resolve(rec.Kind)
	rows := make(map[string][]Record, len(collections))
	for _, id := range collections {
		if records, ok := doc[id]; ok {
			rows[id] = records
		}
	}
	for id := range doc {
		if _, ok := rows[id]; !ok {
			s.logger.Debug("ignoring collection not in kind", "id", rec.ID, "kind", rec.Kind, "collection", id)
		}
	}

	if err := s.store.ReplaceCollections(ctx, collections, rows); err != nil {
		return fmt.Errorf("replacing live collections: %w", err)
	}
	return nil
}
