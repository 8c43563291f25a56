package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipufin/quipu/internal/common"
	"github.com/quipufin/quipu/internal/model"
)

func TestSQLiteStorage_SaveAndGetPrediction(t *testing.T) {
	store, user, cleanup := createTestStorageWithUser(t, "+59170000001", "BOL")
	defer cleanup()
	ctx := context.Background()

	prediction := makeTestPrediction(user.ID, user.Cohort, 1)
	require.NoError(t, store.SavePrediction(ctx, prediction))

	got, err := store.GetPrediction(ctx, prediction.ID)
	require.NoError(t, err)
	assert.Equal(t, prediction.UserID, got.UserID)
	assert.Equal(t, prediction.MessageID, got.MessageID)
	assert.True(t, prediction.Amount.Equal(got.Amount))
	assert.Equal(t, model.DirectionDebit, got.Direction)
	assert.Equal(t, model.ResolutionNone, got.Resolution)
	assert.False(t, got.Confirmed)
	assert.WithinDuration(t, prediction.OccurredAt, got.OccurredAt, time.Second)
}

func TestSQLiteStorage_DuplicateMessageID(t *testing.T) {
	store, user, cleanup := createTestStorageWithUser(t, "+59170000001", "BOL")
	defer cleanup()
	ctx := context.Background()

	first := makeTestPrediction(user.ID, user.Cohort, 1)
	require.NoError(t, store.SavePrediction(ctx, first))

	// Same message id, different prediction id: the unique constraint turns
	// the insert race into a typed failure.
	second := makeTestPrediction(user.ID, user.Cohort, 1)
	second.ID = "pred-other"
	err := store.SavePrediction(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDuplicateMessage))
}

func TestSQLiteStorage_GetPredictionsByMessageID(t *testing.T) {
	store, user, cleanup := createTestStorageWithUser(t, "+59170000001", "BOL")
	defer cleanup()
	ctx := context.Background()

	// Two siblings of a multi-candidate message share the base id with
	// ordinal suffixes.
	for i := 1; i <= 2; i++ {
		p := makeTestPrediction(user.ID, user.Cohort, i)
		p.ID = model.MemberMessageID("pred", i)
		p.MessageID = model.MemberMessageID("m1", i)
		p.GroupID = "g1"
		require.NoError(t, store.SavePrediction(ctx, p))
	}
	// An unrelated message must not match.
	other := makeTestPrediction(user.ID, user.Cohort, 3)
	other.MessageID = "m10"
	require.NoError(t, store.SavePrediction(ctx, other))

	found, err := store.GetPredictionsByMessageID(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "m1:1", found[0].MessageID)
	assert.Equal(t, "m1:2", found[1].MessageID)

	missing, err := store.GetPredictionsByMessageID(ctx, "m2")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestSQLiteStorage_UpdatePredictionFieldsKeepsTimestamp(t *testing.T) {
	store, user, cleanup := createTestStorageWithUser(t, "+59170000001", "BOL")
	defer cleanup()
	ctx := context.Background()

	prediction := makeTestPrediction(user.ID, user.Cohort, 1)
	require.NoError(t, store.SavePrediction(ctx, prediction))

	err := store.UpdatePredictionFields(ctx, prediction.ID, model.EditedFields{
		Amount:        decimal.RequireFromString("35.50"),
		Direction:     model.DirectionDebit,
		Category:      "groceries",
		Description:   "market run",
		PaymentMethod: "card",
		Currency:      "BOB",
	})
	require.NoError(t, err)

	got, err := store.GetPrediction(ctx, prediction.ID)
	require.NoError(t, err)
	assert.Equal(t, "groceries", got.Category)
	assert.True(t, decimal.RequireFromString("35.50").Equal(got.Amount))
	assert.WithinDuration(t, prediction.OccurredAt, got.OccurredAt, time.Second)
}

func TestSQLiteStorage_UpdatePredictionFieldsNotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	err := store.UpdatePredictionFields(context.Background(), "missing", model.EditedFields{
		Amount: decimal.RequireFromString("1"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestSQLiteStorage_MarkPredictionResolved(t *testing.T) {
	store, user, cleanup := createTestStorageWithUser(t, "+59170000001", "BOL")
	defer cleanup()
	ctx := context.Background()

	prediction := makeTestPrediction(user.ID, user.Cohort, 1)
	require.NoError(t, store.SavePrediction(ctx, prediction))

	require.NoError(t, store.MarkPredictionResolved(ctx, prediction.ID, true, model.ResolutionReaction))

	got, err := store.GetPrediction(ctx, prediction.ID)
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
	assert.Equal(t, model.ResolutionReaction, got.Resolution)
}
