// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/quipufin/quipu/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// User operations
	GetUserByIdentity(ctx context.Context, identity string) (*model.User, error)
	SaveUser(ctx context.Context, user *model.User) error
	GetUsers(ctx context.Context) ([]model.User, error)

	// Prediction operations
	SavePrediction(ctx context.Context, prediction *model.Prediction) error
	GetPrediction(ctx context.Context, id string) (*model.Prediction, error)
	GetPredictionsByMessageID(ctx context.Context, messageID string) ([]model.Prediction, error)
	UpdatePredictionFields(ctx context.Context, id string, fields model.EditedFields) error
	MarkPredictionResolved(ctx context.Context, id string, confirmed bool, method model.ResolutionMethod) error

	// Pending-confirmation operations
	SavePendingConfirmation(ctx context.Context, pending *model.PendingConfirmation) error
	GetPendingConfirmation(ctx context.Context, id string) (*model.PendingConfirmation, error)
	GetUnresolvedPendingByPrediction(ctx context.Context, predictionID string) (*model.PendingConfirmation, error)
	GetLatestUnresolvedPending(ctx context.Context, userID string) (*model.PendingConfirmation, error)
	GetUnresolvedPendingsByGroup(ctx context.Context, groupID string) ([]model.PendingConfirmation, error)
	GetExpiredPendingConfirmations(ctx context.Context, now time.Time) ([]model.PendingConfirmation, error)
	MarkPendingResolved(ctx context.Context, id string, resolvedAt time.Time) (bool, error)

	// Feedback operations
	SaveFeedbackEntry(ctx context.Context, entry *model.FeedbackEntry) error
	DeleteFeedbackForPrediction(ctx context.Context, predictionID string) error
	GetFeedbackByCohort(ctx context.Context, cohort string) ([]model.FeedbackEntry, error)

	// Confirmation-policy operations
	GetConfirmationPolicy(ctx context.Context, cohort string) (*model.ConfirmationPolicy, error)
	SaveConfirmationPolicy(ctx context.Context, policy *model.ConfirmationPolicy) error

	// Committed-transaction operations
	SaveTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransactionByPredictionID(ctx context.Context, predictionID string) (*model.Transaction, error)
	GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Extractor turns a free-form transcript into candidate transactions.
type Extractor interface {
	Extract(ctx context.Context, transcript, cohort string) (model.ExtractionResult, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
