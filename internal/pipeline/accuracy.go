package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quipufin/quipu/internal/common"
	"github.com/quipufin/quipu/internal/model"
)

// RecomputeAccuracy re-derives a cohort's weighted accuracy from its full
// feedback history, writes the result back to the cohort's policy row, and
// evaluates the policy flip. There are no running counters: recomputation
// after a late correction always converges to the same value.
func (p *Pipeline) RecomputeAccuracy(ctx context.Context, cohort string) (float64, int, error) {
	entries, err := p.storage.GetFeedbackByCohort(ctx, cohort)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load feedback history: %w", err)
	}

	var totalWeight, correctWeight float64
	for _, entry := range entries {
		totalWeight += entry.Weight
		if entry.Correct {
			correctWeight += entry.Weight
		}
	}

	accuracy := 0.0
	if totalWeight > 0 {
		accuracy = 100 * correctWeight / totalWeight
	}
	verified := len(entries)

	policy, err := p.storage.GetConfirmationPolicy(ctx, cohort)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return 0, 0, fmt.Errorf("failed to load confirmation policy: %w", err)
		}
		policy = model.DefaultConfirmationPolicy(cohort)
	}

	policy.Accuracy = accuracy
	policy.VerifiedCount = verified
	p.evaluatePolicy(policy, time.Now().UTC())

	if err := p.storage.SaveConfirmationPolicy(ctx, policy); err != nil {
		return 0, 0, fmt.Errorf("failed to save confirmation policy: %w", err)
	}

	return accuracy, verified, nil
}

// evaluatePolicy applies the threshold rules to a freshly recomputed policy.
// The flip to automatic happens when accuracy and volume both clear their
// thresholds; an automatic cohort whose accuracy degrades below the disable
// threshold reverts to manual confirmation once the cool-down has passed.
func (p *Pipeline) evaluatePolicy(policy *model.ConfirmationPolicy, now time.Time) {
	switch {
	case !policy.AutoEnabled &&
		policy.Accuracy >= p.cfg.AutoEnableAccuracy &&
		policy.VerifiedCount >= p.cfg.AutoEnableMinCount:

		policy.AutoEnabled = true
		policy.RequireConfirmation = false
		enabledAt := now
		policy.AutoEnabledAt = &enabledAt
		slog.Info("Cohort switched to automatic commitment",
			"cohort", policy.Cohort,
			"accuracy", policy.Accuracy,
			"verified_count", policy.VerifiedCount)

	case policy.AutoEnabled &&
		policy.Accuracy < p.cfg.AutoDisableAccuracy &&
		policy.AutoEnabledAt != nil &&
		now.Sub(*policy.AutoEnabledAt) >= p.cfg.AutoDisableCooldown:

		policy.AutoEnabled = false
		policy.RequireConfirmation = true
		policy.AutoEnabledAt = nil
		slog.Warn("Cohort accuracy degraded, re-enabling confirmation",
			"cohort", policy.Cohort,
			"accuracy", policy.Accuracy,
			"verified_count", policy.VerifiedCount)
	}
}
