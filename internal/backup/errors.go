package backup

import (
	"errors"
	"fmt"

	"cmsbackup/internal/model"
)

var (
	// ErrNotFound is returned when a backup record or policy does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoSnapshotPayload means the record has no snapshot document to restore from.
	ErrNoSnapshotPayload = errors.New("no snapshot payload")

	// ErrSourceNotCompleted means the record is not in the completed state.
	ErrSourceNotCompleted = errors.New("source backup did not complete successfully")

	// ErrInvalidPolicy is wrapped by every policy validation failure.
	ErrInvalidPolicy = errors.New("invalid backup policy")
)

// ExportError reports a failure to serialize or persist a snapshot document.
type ExportError struct {
	Kind model.Kind
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("exporting %s snapshot: %v", e.Kind, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// MediaArchiveError reports an I/O failure while copying the media tree.
// The partial snapshot directory has already been removed when this is returned.
type MediaArchiveError struct {
	Path string
	Err  error
}

func (e *MediaArchiveError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("archiving media: %v", e.Err)
	}
	return fmt.Sprintf("archiving media at %s: %v", e.Path, e.Err)
}

func (e *MediaArchiveError) Unwrap() error { return e.Err }

// RestoreValidationError reports a failed restore precondition.
// Err is ErrNoSnapshotPayload or ErrSourceNotCompleted.
type RestoreValidationError struct {
	BackupID int64
	Err      error
}

func (e *RestoreValidationError) Error() string {
	return fmt.Sprintf("cannot restore backup %d: %v", e.BackupID, e.Err)
}

func (e *RestoreValidationError) Unwrap() error { return e.Err }

// RestoreError reports a failure inside the transactional restore body.
// The live data has been rolled back when this is returned.
type RestoreError struct {
	BackupID int64
	Err      error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restoring backup %d: %v", e.BackupID, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// SchedulingError reports the failure of one policy's automatic backup.
type SchedulingError struct {
	PolicyID int64
	Kind     model.Kind
	Err      error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("policy %d (%s): %v", e.PolicyID, e.Kind, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }
