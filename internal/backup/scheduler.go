package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cmsbackup/internal/model"
)

// TickResult summarizes one scheduler pass.
type TickResult struct {
	Ran     []*model.BackupRecord // records created this tick, including failed ones
	Failed  []*SchedulingError
	Reaped  ReapResult
	ReapErr error
}

// Err joins every failure of the tick, or returns nil.
func (r TickResult) Err() error {
	errs := make([]error, 0, len(r.Failed)+1)
	for _, f := range r.Failed {
		errs = append(errs, f)
	}
	if r.ReapErr != nil {
		errs = append(errs, r.ReapErr)
	}
	return errors.Join(errs...)
}

// Tick runs every enabled policy that is due, then reaps expired backups.
//
// A policy's failure is recorded as a *SchedulingError and does not stop the
// remaining policies or the reaper. The policy's schedule advances even when
// its backup fails, so a broken policy retries on its next window, not on the
// next tick. An error is returned only when the policy list cannot be read.
func (s *Service) Tick(ctx context.Context) (TickResult, error) {
	var result TickResult

	policies, err := s.catalog.ListPolicies(ctx)
	if err != nil {
		return result, fmt.Errorf("listing policies: %w", err)
	}

	now := s.clock.Now()
	for _, p := range policies {
		if !p.IsDue(now) {
			continue
		}
		rec, err := s.runPolicy(ctx, p, now)
		if rec != nil {
			result.Ran = append(result.Ran, rec)
		}
		if err != nil {
			schedErr := &SchedulingError{PolicyID: p.ID, Kind: p.Kind, Err: err}
			result.Failed = append(result.Failed, schedErr)
			s.logger.Error("scheduled backup failed", "policy", p.ID, "kind", p.Kind, "error", err)
		}
	}

	result.Reaped, result.ReapErr = s.Reap(ctx)
	if result.ReapErr != nil {
		s.logger.Error("retention reaping failed", "error", result.ReapErr)
	}

	s.recorder.SchedulerTicked(len(result.Ran), len(result.Failed))
	s.logger.Debug("scheduler tick finished", "ran", len(result.Ran), "failed", len(result.Failed), "reaped", len(result.Reaped.Deleted))
	return result, nil
}

// runPolicy creates one automatic backup for p and advances its schedule.
// The returned record may be non-nil together with an error.
func (s *Service) runPolicy(ctx context.Context, p *model.BackupPolicy, now time.Time) (*model.BackupRecord, error) {
	rec, backupErr := s.CreateBackup(ctx, BackupRequest{
		Name:        fmt.Sprintf("Automatic %s backup %s", p.Kind, now.Format("2006-01-02 15:04")),
		Description: fmt.Sprintf("Created by policy %q (%s)", p.Name, p.Frequency),
		Kind:        p.Kind,
		Automatic:   true,
	})

	last := now
	next := now.Add(p.Frequency.Interval())
	p.LastRunAt = &last
	p.NextRunAt = &next
	if err := s.catalog.UpdatePolicy(ctx, p); err != nil {
		if backupErr == nil {
			s.logger.Warn("scheduled backup completed but schedule not advanced", "policy", p.ID, "backup", rec.ID, "error", err)
			return rec, fmt.Errorf("backup %d completed, advancing schedule: %w", rec.ID, err)
		}
		return rec, errors.Join(backupErr, fmt.Errorf("advancing schedule: %w", err))
	}
	if backupErr == nil {
		s.logger.Info("scheduled backup completed", "policy", p.ID, "backup", rec.ID, "next_run", next)
	}
	return rec, backupErr
}

// Run calls Tick immediately and then every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", interval)
	}

	s.logger.Info("scheduler started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}
