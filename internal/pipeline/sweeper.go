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

// SweepStats reports the outcome of one sweeper run.
type SweepStats struct {
	Processed int
	Skipped   int
	Errored   int
}

// SweepExpired finds unresolved pending confirmations whose window has
// passed and resolves each via the timeout path. One row's failure does not
// abort the sweep, and rows already resolved by a concurrent explicit
// confirmation are skipped. Overlapping sweeps are safe because every write
// is idempotent against the resolved flag.
func (p *Pipeline) SweepExpired(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	expired, err := p.storage.GetExpiredPendingConfirmations(ctx, time.Now().UTC())
	if err != nil {
		return stats, fmt.Errorf("failed to list expired pending confirmations: %w", err)
	}

	if len(expired) == 0 {
		slog.Debug("No expired pending confirmations")
		return stats, nil
	}

	slog.Info("Sweeping expired pending confirmations", "count", len(expired))

	for i := range expired {
		pending := expired[i]
		_, _, err := p.resolvePending(ctx, &pending, model.ResolutionTimeout, nil)
		switch {
		case errors.Is(err, common.ErrAlreadyResolved):
			stats.Skipped++
			continue
		case err != nil:
			stats.Errored++
			slog.Error("Failed to sweep pending confirmation",
				"pending_id", pending.ID,
				"prediction_id", pending.PredictionID,
				"error", err)
			continue
		}
		stats.Processed++

		if _, _, err := p.RecomputeAccuracy(ctx, pending.Cohort); err != nil {
			slog.Error("Failed to recompute accuracy after timeout",
				"cohort", pending.Cohort,
				"error", err)
		}
	}

	slog.Info("Sweep complete",
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"errored", stats.Errored)
	return stats, nil
}
