package backup

import (
	"context"
	"fmt"

	"cmsbackup/internal/model"
)

// ReapResult summarizes one retention pass.
type ReapResult struct {
	Deleted []int64
}

// Reap deletes automatic, completed backups that have outlived the retention
// window of a policy for their kind. When several policies share a kind the
// shortest window wins, and each record is deleted at most once.
// Manual backups are never touched.
//
// The catalog row goes first; payload and media artifacts are then removed
// best effort. Reap stops at the first catalog error.
func (s *Service) Reap(ctx context.Context) (ReapResult, error) {
	var result ReapResult

	policies, err := s.catalog.ListPolicies(ctx)
	if err != nil {
		return result, fmt.Errorf("listing policies: %w", err)
	}

	now := s.clock.Now()
	deleted := make(map[int64]bool)
	for _, p := range policies {
		cutoff := now.Add(-p.Retention())
		expired, err := s.catalog.FindExpiredBackups(ctx, p.Kind, cutoff)
		if err != nil {
			return result, fmt.Errorf("finding expired %s backups: %w", p.Kind, err)
		}

		n := 0
		for _, rec := range expired {
			if deleted[rec.ID] {
				continue
			}
			if !reapable(rec) {
				continue
			}
			if err := s.catalog.DeleteBackup(ctx, rec.ID); err != nil {
				return result, fmt.Errorf("deleting backup %d: %w", rec.ID, err)
			}
			deleted[rec.ID] = true
			result.Deleted = append(result.Deleted, rec.ID)
			s.removeArtifacts(ctx, rec)
			n++
		}

		if n > 0 {
			s.recorder.BackupsReaped(p.Kind, n)
			s.logger.Info("reaped expired backups", "policy", p.ID, "kind", p.Kind, "count", n, "cutoff", cutoff)
		}
	}

	return result, nil
}

// reapable guards against a catalog that returns more than was asked for.
func reapable(rec *model.BackupRecord) bool {
	return rec.IsAutomatic && rec.Status == model.StatusCompleted
}
