// Package pipeline implements the confirmation and consensus-learning
// pipeline: idempotent message ingestion, the pending/confirmed state
// machine, and the per-cohort accuracy estimator that governs whether human
// confirmation is required.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quipufin/quipu/internal/common"
	"github.com/quipufin/quipu/internal/model"
	"github.com/quipufin/quipu/internal/service"
)

// Pipeline orchestrates ingestion and resolution of predicted transactions.
type Pipeline struct {
	storage   service.Storage
	extractor service.Extractor
	cfg       Config
}

// Config holds tuning knobs for the pipeline.
type Config struct {
	// ConfirmationTTL is how long a pending confirmation waits for a human
	// before the sweeper times it out.
	ConfirmationTTL time.Duration
	// AutoEnableAccuracy and AutoEnableMinCount are the thresholds that
	// switch a cohort to automatic commitment.
	AutoEnableAccuracy float64
	AutoEnableMinCount int
	// AutoDisableAccuracy re-enables confirmation for an auto cohort whose
	// accuracy degrades; AutoDisableCooldown guards against flapping.
	AutoDisableAccuracy float64
	AutoDisableCooldown time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		ConfirmationTTL:     30 * time.Minute,
		AutoEnableAccuracy:  90.0,
		AutoEnableMinCount:  1000,
		AutoDisableAccuracy: 85.0,
		AutoDisableCooldown: 24 * time.Hour,
	}
}

// New creates a pipeline with the default configuration.
func New(storage service.Storage, extractor service.Extractor) *Pipeline {
	return NewWithConfig(storage, extractor, DefaultConfig())
}

// NewWithConfig creates a pipeline with custom configuration.
func NewWithConfig(storage service.Storage, extractor service.Extractor, cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.ConfirmationTTL <= 0 {
		cfg.ConfirmationTTL = def.ConfirmationTTL
	}
	if cfg.AutoEnableAccuracy <= 0 {
		cfg.AutoEnableAccuracy = def.AutoEnableAccuracy
	}
	if cfg.AutoEnableMinCount <= 0 {
		cfg.AutoEnableMinCount = def.AutoEnableMinCount
	}
	if cfg.AutoDisableAccuracy <= 0 {
		cfg.AutoDisableAccuracy = def.AutoDisableAccuracy
	}
	if cfg.AutoDisableCooldown <= 0 {
		cfg.AutoDisableCooldown = def.AutoDisableCooldown
	}
	return &Pipeline{
		storage:   storage,
		extractor: extractor,
		cfg:       cfg,
	}
}

// IngestResult describes what one inbound message produced.
type IngestResult struct {
	Predictions          []model.Prediction
	Pending              []model.PendingConfirmation
	Committed            []model.Transaction
	RequiresConfirmation bool
	Deduplicated         bool
}

// ProcessMessage runs one inbound message through the pipeline: dedupe,
// extraction, prediction storage, and — depending on the cohort's policy —
// either pending-confirmation creation or immediate commitment.
func (p *Pipeline) ProcessMessage(ctx context.Context, msg model.InboundMessage) (*IngestResult, error) {
	if msg.Kind != model.MessageKindText && msg.Kind != model.MessageKindAudio {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedMessageKind, msg.Kind)
	}

	user, err := p.storage.GetUserByIdentity(ctx, msg.SenderIdentity)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotRegistered, msg.SenderIdentity)
		}
		return nil, fmt.Errorf("failed to look up sender: %w", err)
	}

	// Idempotent replay: a message id we have already processed returns the
	// stored result without spending another extraction call.
	if msg.MessageID != "" {
		existing, lookupErr := p.storage.GetPredictionsByMessageID(ctx, msg.MessageID)
		if lookupErr != nil {
			return nil, fmt.Errorf("failed to check for duplicate message: %w", lookupErr)
		}
		if len(existing) > 0 {
			slog.Info("Duplicate message, returning stored result",
				"message_id", msg.MessageID,
				"predictions", len(existing))
			return &IngestResult{Predictions: existing, Deduplicated: true}, nil
		}
	}

	extracted, err := p.extractor.Extract(ctx, msg.Payload, user.Cohort)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}
	if len(extracted.Transactions) == 0 {
		slog.Info("No transactions extracted",
			"message_id", msg.MessageID,
			"user_id", user.ID)
		return &IngestResult{}, nil
	}

	requires, err := p.requiresConfirmation(ctx, user.Cohort)
	if err != nil {
		return nil, err
	}

	occurredAt := msg.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	groupID := ""
	if len(extracted.Transactions) > 1 {
		groupID = uuid.NewString()
	}

	result := &IngestResult{RequiresConfirmation: requires}
	expiresAt := time.Now().UTC().Add(p.cfg.ConfirmationTTL)

	for i, candidate := range extracted.Transactions {
		messageID := msg.MessageID
		if groupID != "" {
			messageID = model.MemberMessageID(msg.MessageID, i+1)
		}

		prediction := model.Prediction{
			ID:            uuid.NewString(),
			UserID:        user.ID,
			Cohort:        user.Cohort,
			Transcript:    msg.Payload,
			Amount:        candidate.Amount,
			Direction:     candidate.Direction,
			Category:      candidate.Category,
			Description:   candidate.Description,
			PaymentMethod: candidate.PaymentMethod,
			Currency:      candidate.Currency,
			MessageID:     messageID,
			Channel:       msg.Channel,
			GroupID:       groupID,
			Resolution:    model.ResolutionNone,
			OccurredAt:    occurredAt,
			Confirmed:     !requires,
		}

		if err := p.storage.SavePrediction(ctx, &prediction); err != nil {
			if errors.Is(err, common.ErrDuplicateMessage) {
				// A concurrent delivery of the same message won the insert
				// race; fall back to its stored result.
				existing, lookupErr := p.storage.GetPredictionsByMessageID(ctx, msg.MessageID)
				if lookupErr == nil && len(existing) > 0 {
					return &IngestResult{Predictions: existing, Deduplicated: true}, nil
				}
			}
			return nil, fmt.Errorf("failed to save prediction: %w", err)
		}
		result.Predictions = append(result.Predictions, prediction)

		if requires {
			pending := model.PendingConfirmation{
				ID:           uuid.NewString(),
				PredictionID: prediction.ID,
				UserID:       user.ID,
				Cohort:       user.Cohort,
				MessageID:    messageID,
				GroupID:      groupID,
				ExpiresAt:    expiresAt,
			}
			if err := p.storage.SavePendingConfirmation(ctx, &pending); err != nil {
				return nil, fmt.Errorf("failed to save pending confirmation: %w", err)
			}
			result.Pending = append(result.Pending, pending)
		} else {
			// Auto cohort: the extraction is trusted and commits directly.
			txn := model.TransactionFromPrediction(uuid.NewString(), &prediction)
			if err := p.storage.SaveTransaction(ctx, txn); err != nil {
				return nil, fmt.Errorf("failed to commit transaction: %w", err)
			}
			result.Committed = append(result.Committed, *txn)
		}
	}

	slog.Info("Message processed",
		"message_id", msg.MessageID,
		"user_id", user.ID,
		"cohort", user.Cohort,
		"predictions", len(result.Predictions),
		"requires_confirmation", requires)
	return result, nil
}

// requiresConfirmation reads the cohort's stored policy; cohorts with no
// stored row default to requiring confirmation.
func (p *Pipeline) requiresConfirmation(ctx context.Context, cohort string) (bool, error) {
	policy, err := p.storage.GetConfirmationPolicy(ctx, cohort)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to load confirmation policy: %w", err)
	}
	return policy.RequireConfirmation, nil
}
