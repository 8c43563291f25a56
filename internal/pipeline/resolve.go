package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quipufin/quipu/internal/common"
	"github.com/quipufin/quipu/internal/intent"
	"github.com/quipufin/quipu/internal/model"
)

// ResolveResult describes the outcome of resolving a pending confirmation
// (and, for grouped messages, all of its siblings).
type ResolveResult struct {
	Method        model.ResolutionMethod
	Predictions   []model.Prediction
	Transactions  []model.Transaction
	Accuracy      float64
	VerifiedCount int
}

// ReplyOutcome is the pipeline's answer to a free-text reply.
type ReplyOutcome struct {
	Intent intent.Intent
	Result *ResolveResult
}

// Confirm resolves a pending confirmation via the explicit-confirmation path.
// With an empty predictionID the user's most recently created unresolved
// entry is targeted; a grouped entry resolves every sibling.
func (p *Pipeline) Confirm(ctx context.Context, userID, predictionID string) (*ResolveResult, error) {
	pending, err := p.findTarget(ctx, userID, predictionID)
	if err != nil {
		return nil, err
	}
	return p.resolveGroup(ctx, pending, model.ResolutionReaction, nil)
}

// Reject resolves a pending confirmation as incorrect. The prediction is
// retained unconfirmed and no transaction is committed.
func (p *Pipeline) Reject(ctx context.Context, userID, predictionID string) (*ResolveResult, error) {
	pending, err := p.findTarget(ctx, userID, predictionID)
	if err != nil {
		return nil, err
	}
	return p.resolveGroup(ctx, pending, model.ResolutionRejected, nil)
}

// Edit resolves a prediction with corrected field values. The edited member
// resolves via the edit path; unresolved siblings in the same group are
// confirmed alongside it, since the user reviewed the whole message.
func (p *Pipeline) Edit(ctx context.Context, userID, predictionID string, fields model.EditedFields) (*ResolveResult, error) {
	if predictionID == "" {
		return nil, fmt.Errorf("%w: edit requires a prediction id", common.ErrNothingToConfirm)
	}
	pending, err := p.findTarget(ctx, userID, predictionID)
	if err != nil {
		return nil, err
	}
	return p.resolveGroup(ctx, pending, model.ResolutionEdit, &fields)
}

// HandleReply classifies a free-text reply from a sender and advances the
// state machine when the intent is recognized. Unrecognized replies leave
// the pending confirmation untouched.
func (p *Pipeline) HandleReply(ctx context.Context, senderIdentity, text string) (*ReplyOutcome, error) {
	user, err := p.storage.GetUserByIdentity(ctx, senderIdentity)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotRegistered, senderIdentity)
		}
		return nil, fmt.Errorf("failed to look up sender: %w", err)
	}

	classified := intent.Classify(text)
	switch classified {
	case intent.IntentConfirm:
		result, err := p.Confirm(ctx, user.ID, "")
		if err != nil {
			return nil, err
		}
		return &ReplyOutcome{Intent: classified, Result: result}, nil
	case intent.IntentReject:
		result, err := p.Reject(ctx, user.ID, "")
		if err != nil {
			return nil, err
		}
		return &ReplyOutcome{Intent: classified, Result: result}, nil
	default:
		return &ReplyOutcome{Intent: intent.IntentUnknown}, nil
	}
}

// findTarget selects the pending confirmation a resolution applies to.
func (p *Pipeline) findTarget(ctx context.Context, userID, predictionID string) (*model.PendingConfirmation, error) {
	var pending *model.PendingConfirmation
	var err error

	if predictionID != "" {
		pending, err = p.storage.GetUnresolvedPendingByPrediction(ctx, predictionID)
	} else {
		pending, err = p.storage.GetLatestUnresolvedPending(ctx, userID)
	}
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", common.ErrNothingToConfirm, userID)
		}
		return nil, fmt.Errorf("failed to find pending confirmation: %w", err)
	}
	if pending.UserID != userID {
		return nil, fmt.Errorf("%w: prediction belongs to another user", common.ErrNothingToConfirm)
	}
	return pending, nil
}

// resolveGroup applies a resolution to the triggering entry and every
// unresolved sibling sharing its group id, then recomputes the cohort's
// accuracy once.
func (p *Pipeline) resolveGroup(ctx context.Context, pending *model.PendingConfirmation, method model.ResolutionMethod, edited *model.EditedFields) (*ResolveResult, error) {
	members := []model.PendingConfirmation{*pending}
	if pending.GroupID != "" {
		group, err := p.storage.GetUnresolvedPendingsByGroup(ctx, pending.GroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to load group members: %w", err)
		}
		if len(group) > 0 {
			members = group
		}
	}

	result := &ResolveResult{Method: method}
	for _, member := range members {
		memberMethod := method
		var memberFields *model.EditedFields
		if method == model.ResolutionEdit {
			if member.PredictionID == pending.PredictionID {
				memberFields = edited
			} else {
				// Siblings of an edited member count as reviewed-and-correct.
				memberMethod = model.ResolutionReaction
			}
		}

		prediction, txn, err := p.resolvePending(ctx, &member, memberMethod, memberFields)
		if err != nil {
			if errors.Is(err, common.ErrAlreadyResolved) {
				continue
			}
			return nil, err
		}
		result.Predictions = append(result.Predictions, *prediction)
		if txn != nil {
			result.Transactions = append(result.Transactions, *txn)
		}
	}

	if len(result.Predictions) == 0 {
		return nil, common.ErrAlreadyResolved
	}

	accuracy, verified, err := p.RecomputeAccuracy(ctx, pending.Cohort)
	if err != nil {
		return nil, err
	}
	result.Accuracy = accuracy
	result.VerifiedCount = verified
	return result, nil
}

// resolvePending performs the write sequence for one pending confirmation.
// The resolved flag is claimed last with a conditional update, so a partial
// failure leaves the entry unresolved for a retry or the sweeper; every
// earlier write is idempotent against replay.
func (p *Pipeline) resolvePending(ctx context.Context, pending *model.PendingConfirmation, method model.ResolutionMethod, edited *model.EditedFields) (*model.Prediction, *model.Transaction, error) {
	if pending.Resolved {
		return nil, nil, common.ErrAlreadyResolved
	}

	prediction, err := p.storage.GetPrediction(ctx, pending.PredictionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load prediction: %w", err)
	}

	if method == model.ResolutionEdit && edited != nil {
		if err := p.storage.UpdatePredictionFields(ctx, prediction.ID, *edited); err != nil {
			return nil, nil, fmt.Errorf("failed to apply edit: %w", err)
		}
		// An edit supersedes any earlier resolution of the same prediction.
		if err := p.storage.DeleteFeedbackForPrediction(ctx, prediction.ID); err != nil {
			return nil, nil, fmt.Errorf("failed to supersede feedback: %w", err)
		}
		prediction.Amount = edited.Amount
		prediction.Direction = edited.Direction
		prediction.Category = edited.Category
		prediction.Description = edited.Description
		prediction.PaymentMethod = edited.PaymentMethod
		prediction.Currency = edited.Currency
	}

	confirmed := method != model.ResolutionRejected
	if err := p.storage.MarkPredictionResolved(ctx, prediction.ID, confirmed, method); err != nil {
		return nil, nil, fmt.Errorf("failed to mark prediction resolved: %w", err)
	}
	prediction.Confirmed = confirmed
	prediction.Resolution = method

	entry := model.FeedbackEntry{
		PredictionID: prediction.ID,
		UserID:       prediction.UserID,
		Cohort:       prediction.Cohort,
		Correct:      method != model.ResolutionRejected,
		Origin:       method,
		Weight:       model.FeedbackWeight(method),
	}
	if err := p.storage.SaveFeedbackEntry(ctx, &entry); err != nil {
		return nil, nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	var txn *model.Transaction
	if confirmed {
		txn = model.TransactionFromPrediction(uuid.NewString(), prediction)
		if err := p.storage.SaveTransaction(ctx, txn); err != nil {
			return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	won, err := p.storage.MarkPendingResolved(ctx, pending.ID, time.Now().UTC())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to mark pending resolved: %w", err)
	}
	if !won {
		// A concurrent resolver claimed the entry first. Our writes were
		// idempotent replays of its work.
		slog.Info("Pending confirmation already claimed by concurrent resolver",
			"pending_id", pending.ID,
			"prediction_id", prediction.ID)
		return nil, nil, common.ErrAlreadyResolved
	}

	slog.Info("Pending confirmation resolved",
		"pending_id", pending.ID,
		"prediction_id", prediction.ID,
		"method", string(method),
		"cohort", prediction.Cohort)
	return prediction, txn, nil
}
