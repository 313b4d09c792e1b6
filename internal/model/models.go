package model

import (
	"fmt"
	"time"
)

// Kind is the scope of a snapshot. Each kind maps to a fixed, ordered set of
// entity collections (see backup.Registry).
type Kind string

const (
	KindFull     Kind = "full"
	KindDatabase Kind = "database"
	KindFiles    Kind = "files"
	KindSettings Kind = "settings"
)

// Kinds lists every backup kind in a stable order.
var Kinds = []Kind{KindFull, KindDatabase, KindFiles, KindSettings}

// ParseKind validates a raw kind string.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown backup kind: %q", s)
}

// IncludesMedia reports whether backups of this kind also archive the media tree.
func (k Kind) IncludesMedia() bool {
	return k == KindFull || k == KindFiles
}

// Status is the state of a BackupRecord.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Operation tags which operation last drove a record's status.
type Operation string

const (
	OperationBackup  Operation = "backup"
	OperationRestore Operation = "restore"
)

// Frequency is how often a policy fires.
type Frequency string

const (
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// frequencyIntervals are fixed-size windows; monthly is 30 days, not a calendar month.
var frequencyIntervals = map[Frequency]time.Duration{
	FrequencyHourly:  time.Hour,
	FrequencyDaily:   24 * time.Hour,
	FrequencyWeekly:  7 * 24 * time.Hour,
	FrequencyMonthly: 30 * 24 * time.Hour,
}

// ParseFrequency validates a raw frequency string.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if _, ok := frequencyIntervals[f]; !ok {
		return "", fmt.Errorf("unknown frequency: %q", s)
	}
	return f, nil
}

// Interval returns the time between two runs of a policy with this frequency.
func (f Frequency) Interval() time.Duration {
	return frequencyIntervals[f]
}

// Principal is a weak reference to whoever started a backup.
// Both fields are empty for system-triggered backups.
type Principal struct {
	ID   string
	Name string
}

// BackupRecord is one attempt to produce (or restore) a snapshot.
type BackupRecord struct {
	ID           int64
	Name         string
	Description  string
	Kind         Kind
	PayloadRef   string // vault key of the snapshot document
	SizeBytes    int64
	MediaRef     string // media snapshot directory, full/files only
	MediaBytes   int64
	Status       Status
	Operation    Operation
	ErrorMessage string
	IsAutomatic  bool
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedBy    *Principal
}

// BackupPolicy is a recurring backup configuration evaluated by the scheduler.
type BackupPolicy struct {
	ID                 int64
	Name               string
	Enabled            bool
	Kind               Kind
	Frequency          Frequency
	RetentionDays      int
	ScheduledTimeOfDay string // "HH:MM", informational
	LastRunAt          *time.Time
	NextRunAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Retention returns the retention window as a duration.
func (p *BackupPolicy) Retention() time.Duration {
	return time.Duration(p.RetentionDays) * 24 * time.Hour
}

// IsDue reports whether the policy should run at now.
// A policy that has never been scheduled is always due.
func (p *BackupPolicy) IsDue(now time.Time) bool {
	if !p.Enabled {
		return false
	}
	return p.NextRunAt == nil || !p.NextRunAt.After(now)
}

// BackupFilter narrows ListBackups. Zero values mean "any".
type BackupFilter struct {
	Kind      Kind
	Status    Status
	Automatic *bool
	Limit     int
	Offset    int
}

// BackupStats summarizes the catalog.
type BackupStats struct {
	Total           int64
	Completed       int64
	Failed          int64
	TotalSizeBytes  int64
	LatestCompleted *time.Time
}
