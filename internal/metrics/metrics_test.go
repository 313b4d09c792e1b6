package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"cmsbackup/internal/model"
)

func TestRecorder_BackupFinished(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.BackupFinished(model.KindFull, model.StatusCompleted, true, 2048, time.Second)
	r.BackupFinished(model.KindFull, model.StatusFailed, true, 0, time.Second)
	r.BackupFinished(model.KindFull, model.StatusCompleted, false, 4096, time.Second)

	if got := testutil.ToFloat64(r.backupsTotal.WithLabelValues("full", "completed", "true")); got != 1 {
		t.Errorf("automatic completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.backupsTotal.WithLabelValues("full", "failed", "true")); got != 1 {
		t.Errorf("automatic failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.backupBytes.WithLabelValues("full")); got != 4096 {
		t.Errorf("last size = %v, want 4096", got)
	}
	if got := testutil.ToFloat64(r.lastSuccess.WithLabelValues("full")); got <= 0 {
		t.Errorf("last success = %v, want a timestamp", got)
	}
	if n := testutil.CollectAndCount(r.backupDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestRecorder_RestoreReapTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RestoreFinished(model.KindSettings, model.StatusCompleted, time.Millisecond)
	r.BackupsReaped(model.KindDatabase, 3)
	r.BackupsReaped(model.KindDatabase, 2)
	r.SchedulerTicked(2, 1)
	r.SchedulerTicked(0, 0)

	if got := testutil.ToFloat64(r.restoresTotal.WithLabelValues("settings", "completed")); got != 1 {
		t.Errorf("restores = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.reapedTotal.WithLabelValues("database")); got != 5 {
		t.Errorf("reaped = %v, want 5", got)
	}
	if got := testutil.ToFloat64(r.ticksTotal); got != 2 {
		t.Errorf("ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.tickFailuresTotal); got != 1 {
		t.Errorf("tick failures = %v, want 1", got)
	}
}

func TestNewServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.SchedulerTicked(1, 0)

	srv := httptest.NewServer(NewServer(":0", reg).Handler)
	defer srv.Close()

	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "ok"},
		{"/metrics", "cmsbackup_scheduler_ticks_total 1"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := srv.Client().Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s error = %v", tt.path, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("reading body: %v", err)
			}
			if resp.StatusCode != 200 {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
			if !strings.Contains(string(body), tt.want) {
				t.Errorf("body does not contain %q:\n%s", tt.want, body)
			}
		})
	}
}
