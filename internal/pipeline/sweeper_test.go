package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipufin/quipu/internal/model"
	"github.com/quipufin/quipu/internal/storage"
)

func seedPending(t *testing.T, store *storage.SQLiteStorage, user *model.User, num int, expiresAt time.Time) *model.Prediction {
	t.Helper()
	ctx := context.Background()

	prediction := &model.Prediction{
		ID:         fmt.Sprintf("pred-%d", num),
		UserID:     user.ID,
		Cohort:     user.Cohort,
		Amount:     decimal.RequireFromString("20"),
		Direction:  model.DirectionDebit,
		Currency:   "BOB",
		MessageID:  fmt.Sprintf("msg-%d", num),
		Resolution: model.ResolutionNone,
		OccurredAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, store.SavePrediction(ctx, prediction))
	require.NoError(t, store.SavePendingConfirmation(ctx, &model.PendingConfirmation{
		ID:           fmt.Sprintf("pend-%d", num),
		PredictionID: prediction.ID,
		UserID:       user.ID,
		Cohort:       user.Cohort,
		MessageID:    prediction.MessageID,
		ExpiresAt:    expiresAt,
	}))
	return prediction
}

func TestSweepExpired_ResolvesViaTimeout(t *testing.T) {
	p, store, _, user := newTestPipeline(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := seedPending(t, store, user, 1, now.Add(-time.Minute))
	waiting := seedPending(t, store, user, 2, now.Add(29*time.Minute))

	stats, err := p.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Zero(t, stats.Skipped)
	assert.Zero(t, stats.Errored)

	// The expired prediction commits via the low-trust timeout path.
	got, err := store.GetPrediction(ctx, expired.ID)
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
	assert.Equal(t, model.ResolutionTimeout, got.Resolution)

	txn, err := store.GetTransactionByPredictionID(ctx, expired.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, expired.OccurredAt, txn.OccurredAt, time.Second)

	entries, err := store.GetFeedbackByCohort(ctx, user.Cohort)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Correct)
	assert.InDelta(t, model.WeightTimeout, entries[0].Weight, 0.001)

	// The entry inside its window is untouched.
	stillPending, err := store.GetUnresolvedPendingByPrediction(ctx, waiting.ID)
	require.NoError(t, err)
	assert.False(t, stillPending.Resolved)
}

func TestSweepExpired_SecondRunFindsNothing(t *testing.T) {
	p, store, _, user := newTestPipeline(t)
	ctx := context.Background()

	seedPending(t, store, user, 1, time.Now().UTC().Add(-time.Minute))

	stats, err := p.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Processed)

	stats, err = p.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
	assert.Zero(t, stats.Skipped)
}

func TestSweepExpired_UpdatesPolicyStatistics(t *testing.T) {
	p, store, _, user := newTestPipeline(t)
	ctx := context.Background()

	seedPending(t, store, user, 1, time.Now().UTC().Add(-time.Minute))

	_, err := p.SweepExpired(ctx)
	require.NoError(t, err)

	policy, err := store.GetConfirmationPolicy(ctx, user.Cohort)
	require.NoError(t, err)
	assert.Equal(t, 1, policy.VerifiedCount)
	assert.InDelta(t, 100.0, policy.Accuracy, 0.001)
}

func TestSweepExpired_ContinuesPastConcurrentResolution(t *testing.T) {
	p, store, _, user := newTestPipeline(t)
	ctx := context.Background()
	now := time.Now().UTC()

	prediction := seedPending(t, store, user, 1, now.Add(-time.Minute))
	seedPending(t, store, user, 2, now.Add(-time.Minute))

	// An explicit confirmation lands between listing and sweeping; simulate by
	// resolving the first entry out from under the sweeper.
	expired, err := store.GetExpiredPendingConfirmations(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 2)

	_, err = p.Confirm(ctx, user.ID, prediction.ID)
	require.NoError(t, err)

	stats, err := p.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Zero(t, stats.Errored)

	// The explicitly confirmed prediction keeps its reaction resolution.
	got, err := store.GetPrediction(ctx, prediction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionReaction, got.Resolution)
}
