package backup

import (
	"context"
	"fmt"
	"time"

	"cmsbackup/internal/model"
)

// PolicyRequest holds the operator-editable fields of a BackupPolicy.
type PolicyRequest struct {
	Name               string
	Enabled            bool
	Kind               model.Kind
	Frequency          model.Frequency
	RetentionDays      int
	ScheduledTimeOfDay string
}

// CreatePolicy validates req and stores a new policy. The policy has never
// run, so the next scheduler tick picks it up when it is enabled.
func (s *Service) CreatePolicy(ctx context.Context, req PolicyRequest) (*model.BackupPolicy, error) {
	p := &model.BackupPolicy{}
	if err := applyPolicyRequest(p, req); err != nil {
		return nil, err
	}
	if err := s.catalog.InsertPolicy(ctx, p); err != nil {
		return nil, fmt.Errorf("recording policy: %w", err)
	}
	s.logger.Info("policy created", "policy", p.ID, "kind", p.Kind, "frequency", p.Frequency, "retention_days", p.RetentionDays)
	return p, nil
}

// UpdatePolicy replaces the editable fields of an existing policy.
// LastRunAt and NextRunAt belong to the scheduler and are preserved.
func (s *Service) UpdatePolicy(ctx context.Context, id int64, req PolicyRequest) (*model.BackupPolicy, error) {
	p, err := s.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyPolicyRequest(p, req); err != nil {
		return nil, err
	}
	if err := s.catalog.UpdatePolicy(ctx, p); err != nil {
		return nil, fmt.Errorf("updating policy %d: %w", id, err)
	}
	s.logger.Info("policy updated", "policy", p.ID, "kind", p.Kind, "enabled", p.Enabled)
	return p, nil
}

// GetPolicy returns a policy by ID, or ErrNotFound.
func (s *Service) GetPolicy(ctx context.Context, id int64) (*model.BackupPolicy, error) {
	p, err := s.catalog.GetPolicy(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding policy %d: %w", id, err)
	}
	if p == nil {
		return nil, fmt.Errorf("policy %d: %w", id, ErrNotFound)
	}
	return p, nil
}

// ListPolicies returns every policy ordered by ID.
func (s *Service) ListPolicies(ctx context.Context) ([]*model.BackupPolicy, error) {
	ps, err := s.catalog.ListPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing policies: %w", err)
	}
	return ps, nil
}

// DeletePolicy removes a policy. Backups it created are kept; they are no
// longer reaped unless another policy of the same kind remains.
func (s *Service) DeletePolicy(ctx context.Context, id int64) error {
	if _, err := s.GetPolicy(ctx, id); err != nil {
		return err
	}
	if err := s.catalog.DeletePolicy(ctx, id); err != nil {
		return fmt.Errorf("deleting policy %d: %w", id, err)
	}
	s.logger.Info("policy deleted", "policy", id)
	return nil
}

func applyPolicyRequest(p *model.BackupPolicy, req PolicyRequest) error {
	kind, err := model.ParseKind(string(req.Kind))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	freq, err := model.ParseFrequency(string(req.Frequency))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if req.RetentionDays <= 0 {
		return fmt.Errorf("%w: retention days must be positive, got %d", ErrInvalidPolicy, req.RetentionDays)
	}
	tod := req.ScheduledTimeOfDay
	if tod == "" {
		tod = "00:00"
	}
	if _, err := time.Parse("15:04", tod); err != nil {
		return fmt.Errorf("%w: scheduled time %q is not HH:MM", ErrInvalidPolicy, tod)
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s %s backup", freq, kind)
	}

	p.Name = name
	p.Enabled = req.Enabled
	p.Kind = kind
	p.Frequency = freq
	p.RetentionDays = req.RetentionDays
	p.ScheduledTimeOfDay = tod
	return nil
}
