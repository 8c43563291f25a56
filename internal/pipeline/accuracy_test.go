package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipufin/quipu/internal/model"
	"github.com/quipufin/quipu/internal/storage"
)

// seedFeedback inserts count raw feedback entries against a single stored
// prediction so the history can be grown without one ingest per signal.
func seedFeedback(t *testing.T, store *storage.SQLiteStorage, user *model.User, count int, correct bool, method model.ResolutionMethod) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < count; i++ {
		entry := &model.FeedbackEntry{
			PredictionID: "seed-pred",
			UserID:       user.ID,
			Cohort:       user.Cohort,
			Correct:      correct,
			Origin:       method,
			Weight:       model.FeedbackWeight(method),
		}
		require.NoError(t, store.SaveFeedbackEntry(ctx, entry))
	}
}

func seedPrediction(t *testing.T, store *storage.SQLiteStorage, user *model.User) {
	t.Helper()
	prediction := &model.Prediction{
		ID:         "seed-pred",
		UserID:     user.ID,
		Cohort:     user.Cohort,
		MessageID:  "seed-msg",
		Resolution: model.ResolutionNone,
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, store.SavePrediction(context.Background(), prediction))
}

func TestRecomputeAccuracy_WeightedFormula(t *testing.T) {
	p, store, _, user := newTestPipeline(t)
	ctx := context.Background()
	seedPrediction(t, store, user)

	// Correct: edit (2.0) + reaction (1.0). Incorrect: rejection (1.0).
	// 100 * 3 / 4 = 75.
	seedFeedback(t, store, user, 1, true, model.ResolutionEdit)
	seedFeedback(t, store, user, 1, true, model.ResolutionReaction)
	seedFeedback(t, store, user, 1, false, model.ResolutionRejected)

	accuracy, verified, err := p.RecomputeAccuracy(ctx, user.Cohort)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, accuracy, 0.001)
	assert.Equal(t, 3, verified)
}

func TestRecomputeAccuracy_TimeoutWeighsLess(t *testing.T) {
	p, store, _, user := newTestPipeline(t)
	ctx := context.Background()
	seedPrediction(t, store, user)

	// One explicit rejection against one timeout-confirm:
	// 100 * 0.5 / 1.5 = 33.33. With equal weights it would read 50.
	seedFeedback(t, store, user, 1, true, model.ResolutionTimeout)
	seedFeedback(t, store, user, 1, false, model.ResolutionRejected)

	accuracy, _, err := p.RecomputeAccuracy(ctx, user.Cohort)
	require.NoError(t, err)
	assert.InDelta(t, 100.0/3.0, accuracy, 0.001)
}

func TestRecomputeAccuracy_EmptyHistory(t *testing.T) {
	p, _, _, user := newTestPipeline(t)

	accuracy, verified, err := p.RecomputeAccuracy(context.Background(), user.Cohort)
	require.NoError(t, err)
	assert.Zero(t, accuracy)
	assert.Zero(t, verified)
}

func TestPolicyFlip_AtThreshold(t *testing.T) {
	p, store, _, user := newTestPipeline(t)
	ctx := context.Background()
	seedPrediction(t, store, user)

	// 900 correct + 100 incorrect at weight 1.0 lands exactly on 90.0 with
	// 1000 verified entries, so both thresholds are met inclusively.
	seedFeedback(t, store, user, 900, true, model.ResolutionReaction)
	seedFeedback(t, store, user, 100, false, model.ResolutionRejected)

	accuracy, verified, err := p.RecomputeAccuracy(ctx, user.Cohort)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, accuracy, 0.001)
	assert.Equal(t, 1000, verified)

	policy, err := store.GetConfirmationPolicy(ctx, user.Cohort)
	require.NoError(t, err)
	assert.True(t, policy.AutoEnabled)
	assert.False(t, policy.RequireConfirmation)
	require.NotNil(t, policy.AutoEnabledAt)
}

func TestPolicyFlip_NotBelowMinCount(t *testing.T) {
	p, store, _, user := newTestPipeline(t)
	ctx := context.Background()
	seedPrediction(t, store, user)

	// 999 entries at 90%+ accuracy: volume threshold not met.
	seedFeedback(t, store, user, 900, true, model.ResolutionReaction)
	seedFeedback(t, store, user, 99, false, model.ResolutionRejected)

	_, verified, err := p.RecomputeAccuracy(ctx, user.Cohort)
	require.NoError(t, err)
	assert.Equal(t, 999, verified)

	policy, err := store.GetConfirmationPolicy(ctx, user.Cohort)
	require.NoError(t, err)
	assert.False(t, policy.AutoEnabled)
	assert.True(t, policy.RequireConfirmation)
}

func TestPolicyFlip_RevertsAfterCooldown(t *testing.T) {
	p, store, _, user := newTestPipeline(t)
	ctx := context.Background()
	seedPrediction(t, store, user)

	enabledAt := time.Now().UTC().Add(-25 * time.Hour)
	require.NoError(t, store.SaveConfirmationPolicy(ctx, &model.ConfirmationPolicy{
		Cohort:              user.Cohort,
		RequireConfirmation: false,
		AutoEnabled:         true,
		AutoEnabledAt:       &enabledAt,
	}))

	// Accuracy collapses to 50, below the disable threshold.
	seedFeedback(t, store, user, 1, true, model.ResolutionReaction)
	seedFeedback(t, store, user, 1, false, model.ResolutionRejected)

	_, _, err := p.RecomputeAccuracy(ctx, user.Cohort)
	require.NoError(t, err)

	policy, err := store.GetConfirmationPolicy(ctx, user.Cohort)
	require.NoError(t, err)
	assert.False(t, policy.AutoEnabled)
	assert.True(t, policy.RequireConfirmation)
	assert.Nil(t, policy.AutoEnabledAt)
}

func TestPolicyFlip_HoldsWithinCooldown(t *testing.T) {
	p, store, _, user := newTestPipeline(t)
	ctx := context.Background()
	seedPrediction(t, store, user)

	enabledAt := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.SaveConfirmationPolicy(ctx, &model.ConfirmationPolicy{
		Cohort:              user.Cohort,
		RequireConfirmation: false,
		AutoEnabled:         true,
		AutoEnabledAt:       &enabledAt,
	}))

	seedFeedback(t, store, user, 1, true, model.ResolutionReaction)
	seedFeedback(t, store, user, 1, false, model.ResolutionRejected)

	_, _, err := p.RecomputeAccuracy(ctx, user.Cohort)
	require.NoError(t, err)

	// Degraded accuracy inside the cool-down window does not flap the policy.
	policy, err := store.GetConfirmationPolicy(ctx, user.Cohort)
	require.NoError(t, err)
	assert.True(t, policy.AutoEnabled)
	assert.False(t, policy.RequireConfirmation)
}
