package backup

import (
	"context"
	"time"

	"cmsbackup/internal/model"
)

// Catalog is the durable store for backup records and policies.
// Find/Get methods return (nil, nil) when the row does not exist.
type Catalog interface {
	// Backup records

	// InsertBackup stores a new record and sets its ID and CreatedAt.
	InsertBackup(ctx context.Context, rec *model.BackupRecord) error

	// UpdateBackup overwrites the mutable fields of an existing record.
	UpdateBackup(ctx context.Context, rec *model.BackupRecord) error

	GetBackup(ctx context.Context, id int64) (*model.BackupRecord, error)

	// ListBackups returns records matching the filter, newest first.
	ListBackups(ctx context.Context, filter model.BackupFilter) ([]*model.BackupRecord, error)

	// FindExpiredBackups returns automatic, completed records of kind created before cutoff.
	FindExpiredBackups(ctx context.Context, kind model.Kind, cutoff time.Time) ([]*model.BackupRecord, error)

	DeleteBackup(ctx context.Context, id int64) error

	BackupStats(ctx context.Context) (*model.BackupStats, error)

	// Policies

	// InsertPolicy stores a new policy and sets its ID and timestamps.
	InsertPolicy(ctx context.Context, p *model.BackupPolicy) error

	UpdatePolicy(ctx context.Context, p *model.BackupPolicy) error

	GetPolicy(ctx context.Context, id int64) (*model.BackupPolicy, error)

	// ListPolicies returns every policy ordered by ID.
	ListPolicies(ctx context.Context) ([]*model.BackupPolicy, error)

	DeletePolicy(ctx context.Context, id int64) error
}

// Record is one serialized entity: field name to portable scalar.
type Record = map[string]any

// EntityStore gives the engine access to the live entity collections.
type EntityStore interface {
	// HasCollection reports whether the identifier names a known collection.
	HasCollection(id string) bool

	// ReadCollections returns every row of each collection, read inside a single
	// read transaction so the result is a consistent point-in-time view.
	ReadCollections(ctx context.Context, ids []string) (map[string][]Record, error)

	// ReplaceCollections deletes all live rows of each collection in ids (in order),
	// then inserts rows[id] for each id in order, all in one transaction.
	// On any error nothing is changed.
	ReplaceCollections(ctx context.Context, ids []string, rows map[string][]Record) error
}
