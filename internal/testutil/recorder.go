package testutil

import (
	"sync"
	"time"

	"cmsbackup/internal/model"
)

// RecordedBackup is one BackupFinished call seen by a RecordingRecorder.
type RecordedBackup struct {
	Kind      model.Kind
	Status    model.Status
	Automatic bool
	SizeBytes int64
}

// RecordingRecorder keeps every measurement it receives. Safe for concurrent use.
type RecordingRecorder struct {
	mu       sync.Mutex
	Backups  []RecordedBackup
	Restores []model.Status
	Reaped   map[model.Kind]int
	Ticks    int
}

func NewRecordingRecorder() *RecordingRecorder {
	return &RecordingRecorder{Reaped: make(map[model.Kind]int)}
}

func (r *RecordingRecorder) BackupFinished(kind model.Kind, status model.Status, automatic bool, sizeBytes int64, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Backups = append(r.Backups, RecordedBackup{Kind: kind, Status: status, Automatic: automatic, SizeBytes: sizeBytes})
}

func (r *RecordingRecorder) RestoreFinished(_ model.Kind, status model.Status, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Restores = append(r.Restores, status)
}

func (r *RecordingRecorder) BackupsReaped(kind model.Kind, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reaped[kind] += n
}

func (r *RecordingRecorder) SchedulerTicked(int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ticks++
}

// TickCount returns the number of SchedulerTicked calls so far.
func (r *RecordingRecorder) TickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Ticks
}
