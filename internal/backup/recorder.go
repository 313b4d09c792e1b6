package backup

import (
	"time"

	"cmsbackup/internal/model"
)

// Recorder receives operational measurements from the engine.
type Recorder interface {
	BackupFinished(kind model.Kind, status model.Status, automatic bool, sizeBytes int64, took time.Duration)
	RestoreFinished(kind model.Kind, status model.Status, took time.Duration)
	BackupsReaped(kind model.Kind, n int)
	SchedulerTicked(ran, failed int)
}

// NopRecorder drops all measurements.
type NopRecorder struct{}

func (NopRecorder) BackupFinished(model.Kind, model.Status, bool, int64, time.Duration) {}
func (NopRecorder) RestoreFinished(model.Kind, model.Status, time.Duration)            {}
func (NopRecorder) BackupsReaped(model.Kind, int)                                      {}
func (NopRecorder) SchedulerTicked(int, int)                                           {}
