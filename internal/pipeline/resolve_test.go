package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipufin/quipu/internal/common"
	"github.com/quipufin/quipu/internal/intent"
	"github.com/quipufin/quipu/internal/model"
)

func ingestOne(t *testing.T, p *Pipeline, extractor *MockExtractor, messageID string) model.Prediction {
	t.Helper()
	extractor.SetResult("spent 20 on lunch "+messageID, singleCandidate("20"))
	result, err := p.ProcessMessage(context.Background(), textMessage(messageID, "spent 20 on lunch "+messageID))
	require.NoError(t, err)
	require.Len(t, result.Predictions, 1)
	return result.Predictions[0]
}

func TestConfirm_ResolvesLatestPending(t *testing.T) {
	p, store, extractor, user := newTestPipeline(t)
	ctx := context.Background()

	prediction := ingestOne(t, p, extractor, "m1")

	result, err := p.Confirm(ctx, user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionReaction, result.Method)
	require.Len(t, result.Predictions, 1)
	require.Len(t, result.Transactions, 1)
	assert.InDelta(t, 100.0, result.Accuracy, 0.001)
	assert.Equal(t, 1, result.VerifiedCount)

	got, err := store.GetPrediction(ctx, prediction.ID)
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
	assert.Equal(t, model.ResolutionReaction, got.Resolution)

	// The committed record keeps the original event timestamp.
	txn, err := store.GetTransactionByPredictionID(ctx, prediction.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, prediction.OccurredAt, txn.OccurredAt, time.Second)

	entries, err := store.GetFeedbackByCohort(ctx, user.Cohort)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Correct)
	assert.InDelta(t, model.WeightReaction, entries[0].Weight, 0.001)
}

func TestConfirm_TargetsMostRecentOfSeveral(t *testing.T) {
	p, store, extractor, user := newTestPipeline(t)
	ctx := context.Background()

	first := ingestOne(t, p, extractor, "m1")
	second := ingestOne(t, p, extractor, "m2")

	result, err := p.Confirm(ctx, user.ID, "")
	require.NoError(t, err)
	require.Len(t, result.Predictions, 1)
	assert.Equal(t, second.ID, result.Predictions[0].ID)

	// The earlier entry is still waiting.
	pending, err := store.GetUnresolvedPendingByPrediction(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, pending.Resolved)
}

func TestConfirm_NothingPending(t *testing.T) {
	p, _, _, user := newTestPipeline(t)

	_, err := p.Confirm(context.Background(), user.ID, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNothingToConfirm))
}

func TestConfirm_AlreadyResolved(t *testing.T) {
	p, _, extractor, user := newTestPipeline(t)
	ctx := context.Background()

	prediction := ingestOne(t, p, extractor, "m1")

	_, err := p.Confirm(ctx, user.ID, prediction.ID)
	require.NoError(t, err)

	_, err = p.Confirm(ctx, user.ID, prediction.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNothingToConfirm))
}

func TestReject_RetainsPredictionWithoutCommit(t *testing.T) {
	p, store, extractor, user := newTestPipeline(t)
	ctx := context.Background()

	prediction := ingestOne(t, p, extractor, "m1")

	result, err := p.Reject(ctx, user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionRejected, result.Method)
	assert.Empty(t, result.Transactions)
	assert.InDelta(t, 0.0, result.Accuracy, 0.001)

	got, err := store.GetPrediction(ctx, prediction.ID)
	require.NoError(t, err)
	assert.False(t, got.Confirmed)
	assert.Equal(t, model.ResolutionRejected, got.Resolution)

	_, err = store.GetTransactionByPredictionID(ctx, prediction.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	entries, err := store.GetFeedbackByCohort(ctx, user.Cohort)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Correct)
	assert.InDelta(t, model.WeightRejected, entries[0].Weight, 0.001)
}

func TestEdit_AppliesFieldsAndSupersedesFeedback(t *testing.T) {
	p, store, extractor, user := newTestPipeline(t)
	ctx := context.Background()

	prediction := ingestOne(t, p, extractor, "m1")

	result, err := p.Edit(ctx, user.ID, prediction.ID, model.EditedFields{
		Amount:        decimal.RequireFromString("35.50"),
		Direction:     model.DirectionDebit,
		Category:      "transport",
		Description:   "taxi home",
		PaymentMethod: "card",
		Currency:      "BOB",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionEdit, result.Method)
	require.Len(t, result.Transactions, 1)
	assert.True(t, decimal.RequireFromString("35.50").Equal(result.Transactions[0].Amount))

	got, err := store.GetPrediction(ctx, prediction.ID)
	require.NoError(t, err)
	assert.Equal(t, "transport", got.Category)
	assert.True(t, got.Confirmed)
	assert.Equal(t, model.ResolutionEdit, got.Resolution)
	// Editing field values never moves the event timestamp.
	assert.WithinDuration(t, prediction.OccurredAt, got.OccurredAt, time.Second)

	// The edit is the single surviving signal and carries the higher weight.
	entries, err := store.GetFeedbackByCohort(ctx, user.Cohort)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ResolutionEdit, entries[0].Origin)
	assert.InDelta(t, model.WeightEdit, entries[0].Weight, 0.001)
}

func TestEdit_RequiresPredictionID(t *testing.T) {
	p, _, _, user := newTestPipeline(t)

	_, err := p.Edit(context.Background(), user.ID, "", model.EditedFields{
		Amount: decimal.RequireFromString("10"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNothingToConfirm))
}

func TestConfirm_GroupResolvesAllSiblings(t *testing.T) {
	p, store, extractor, user := newTestPipeline(t)
	ctx := context.Background()

	extractor.SetResult("lunch 20 and taxi 35", model.ExtractionResult{
		Transactions: []model.ExtractedTransaction{candidate("20"), candidate("35")},
		IsMultiple:   true,
	})
	ingested, err := p.ProcessMessage(ctx, textMessage("m1", "lunch 20 and taxi 35"))
	require.NoError(t, err)
	require.Len(t, ingested.Pending, 2)

	result, err := p.Confirm(ctx, user.ID, "")
	require.NoError(t, err)
	assert.Len(t, result.Predictions, 2)
	assert.Len(t, result.Transactions, 2)
	assert.Equal(t, 2, result.VerifiedCount)

	for _, prediction := range ingested.Predictions {
		got, getErr := store.GetPrediction(ctx, prediction.ID)
		require.NoError(t, getErr)
		assert.True(t, got.Confirmed)
		assert.Equal(t, model.ResolutionReaction, got.Resolution)
	}
}

func TestEdit_GroupMemberConfirmsSiblings(t *testing.T) {
	p, store, extractor, user := newTestPipeline(t)
	ctx := context.Background()

	extractor.SetResult("lunch 20 and taxi 35", model.ExtractionResult{
		Transactions: []model.ExtractedTransaction{candidate("20"), candidate("35")},
		IsMultiple:   true,
	})
	ingested, err := p.ProcessMessage(ctx, textMessage("m1", "lunch 20 and taxi 35"))
	require.NoError(t, err)
	edited := ingested.Predictions[0]
	sibling := ingested.Predictions[1]

	_, err = p.Edit(ctx, user.ID, edited.ID, model.EditedFields{
		Amount:        decimal.RequireFromString("22"),
		Direction:     model.DirectionDebit,
		Category:      "food",
		Description:   "lunch",
		PaymentMethod: "cash",
		Currency:      "BOB",
	})
	require.NoError(t, err)

	gotEdited, err := store.GetPrediction(ctx, edited.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionEdit, gotEdited.Resolution)
	assert.True(t, decimal.RequireFromString("22").Equal(gotEdited.Amount))

	gotSibling, err := store.GetPrediction(ctx, sibling.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionReaction, gotSibling.Resolution)
	assert.True(t, gotSibling.Confirmed)
}

func TestHandleReply(t *testing.T) {
	p, _, extractor, user := newTestPipeline(t)
	ctx := context.Background()

	ingestOne(t, p, extractor, "m1")

	outcome, err := p.HandleReply(ctx, user.Identity, "hmm let me check")
	require.NoError(t, err)
	assert.Equal(t, intent.IntentUnknown, outcome.Intent)
	assert.Nil(t, outcome.Result)

	outcome, err = p.HandleReply(ctx, user.Identity, "yes please")
	require.NoError(t, err)
	assert.Equal(t, intent.IntentConfirm, outcome.Intent)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, model.ResolutionReaction, outcome.Result.Method)

	ingestOne(t, p, extractor, "m2")
	outcome, err = p.HandleReply(ctx, user.Identity, "no, that's wrong")
	require.NoError(t, err)
	assert.Equal(t, intent.IntentReject, outcome.Intent)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, model.ResolutionRejected, outcome.Result.Method)
}

func TestHandleReply_UnregisteredSender(t *testing.T) {
	p, _, _, _ := newTestPipeline(t)

	_, err := p.HandleReply(context.Background(), "+59170000099", "yes")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotRegistered))
}

func TestConfirm_OtherUsersPrediction(t *testing.T) {
	p, store, extractor, _ := newTestPipeline(t)
	ctx := context.Background()

	other := &model.User{ID: "u2", Identity: "+59170000002", Name: "Beto", Cohort: "BOL"}
	require.NoError(t, store.SaveUser(ctx, other))

	prediction := ingestOne(t, p, extractor, "m1")

	_, err := p.Confirm(ctx, other.ID, prediction.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNothingToConfirm))
}
