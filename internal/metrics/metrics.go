package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cmsbackup/internal/backup"
	"cmsbackup/internal/model"
)

const namespace = "cmsbackup"

// Recorder exports engine measurements as Prometheus metrics.
type Recorder struct {
	backupsTotal      *prometheus.CounterVec
	backupDuration    *prometheus.HistogramVec
	backupBytes       *prometheus.GaugeVec
	lastSuccess       *prometheus.GaugeVec
	restoresTotal     *prometheus.CounterVec
	restoreDuration   prometheus.Histogram
	reapedTotal       *prometheus.CounterVec
	ticksTotal        prometheus.Counter
	tickFailuresTotal prometheus.Counter
}

// NewRecorder registers the backup collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		backupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "Backups finished, by kind, status and trigger.",
		}, []string{"kind", "status", "automatic"}),
		backupDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backup_duration_seconds",
			Help:      "Backup duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
		}, []string{"kind"}),
		backupBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_backup_size_bytes",
			Help:      "Size of the most recent successful backup, document plus media.",
		}, []string{"kind"}),
		lastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_backup_success_timestamp_seconds",
			Help:      "Unix time of the most recent successful backup.",
		}, []string{"kind"}),
		restoresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restores_total",
			Help:      "Restores finished, by kind and status.",
		}, []string{"kind", "status"}),
		restoreDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "restore_duration_seconds",
			Help:      "Restore duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
		}),
		reapedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_reaped_total",
			Help:      "Automatic backups deleted by retention.",
		}, []string{"kind"}),
		ticksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_ticks_total",
			Help:      "Scheduler passes.",
		}),
		tickFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_policy_failures_total",
			Help:      "Scheduled backups that failed.",
		}),
	}
}

func (r *Recorder) BackupFinished(kind model.Kind, status model.Status, automatic bool, sizeBytes int64, took time.Duration) {
	r.backupsTotal.WithLabelValues(string(kind), string(status), strconv.FormatBool(automatic)).Inc()
	r.backupDuration.WithLabelValues(string(kind)).Observe(took.Seconds())
	if status == model.StatusCompleted {
		r.backupBytes.WithLabelValues(string(kind)).Set(float64(sizeBytes))
		r.lastSuccess.WithLabelValues(string(kind)).SetToCurrentTime()
	}
}

func (r *Recorder) RestoreFinished(kind model.Kind, status model.Status, took time.Duration) {
	r.restoresTotal.WithLabelValues(string(kind), string(status)).Inc()
	r.restoreDuration.Observe(took.Seconds())
}

func (r *Recorder) BackupsReaped(kind model.Kind, n int) {
	r.reapedTotal.WithLabelValues(string(kind)).Add(float64(n))
}

func (r *Recorder) SchedulerTicked(ran, failed int) {
	r.ticksTotal.Inc()
	r.tickFailuresTotal.Add(float64(failed))
}

var _ backup.Recorder = (*Recorder)(nil)
