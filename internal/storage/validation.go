package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quipufin/quipu/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidPrediction = errors.New("invalid prediction")
	ErrInvalidPending    = errors.New("invalid pending confirmation")
	ErrInvalidFeedback   = errors.New("invalid feedback entry")
	ErrInvalidPolicy     = errors.New("invalid confirmation policy")
	ErrInvalidUser       = errors.New("invalid user")
	ErrInvalidTxn        = errors.New("invalid transaction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validatePrediction(p *model.Prediction) error {
	if p == nil {
		return fmt.Errorf("%w: prediction", ErrNilParameter)
	}
	if p.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidPrediction)
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidPrediction)
	}
	if p.Cohort == "" {
		return fmt.Errorf("%w: missing cohort", ErrInvalidPrediction)
	}
	if p.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing event timestamp", ErrInvalidPrediction)
	}
	return nil
}

func validatePending(p *model.PendingConfirmation) error {
	if p == nil {
		return fmt.Errorf("%w: pending confirmation", ErrNilParameter)
	}
	if p.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidPending)
	}
	if p.PredictionID == "" {
		return fmt.Errorf("%w: missing prediction ID", ErrInvalidPending)
	}
	if p.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: missing expiry", ErrInvalidPending)
	}
	return nil
}

func validateFeedback(f *model.FeedbackEntry) error {
	if f == nil {
		return fmt.Errorf("%w: feedback entry", ErrNilParameter)
	}
	if f.PredictionID == "" {
		return fmt.Errorf("%w: missing prediction ID", ErrInvalidFeedback)
	}
	if f.Cohort == "" {
		return fmt.Errorf("%w: missing cohort", ErrInvalidFeedback)
	}
	if f.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive", ErrInvalidFeedback)
	}
	return nil
}

func validatePolicy(p *model.ConfirmationPolicy) error {
	if p == nil {
		return fmt.Errorf("%w: confirmation policy", ErrNilParameter)
	}
	if p.Cohort == "" {
		return fmt.Errorf("%w: missing cohort", ErrInvalidPolicy)
	}
	return nil
}

func validateUser(u *model.User) error {
	if u == nil {
		return fmt.Errorf("%w: user", ErrNilParameter)
	}
	if u.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidUser)
	}
	if u.Identity == "" {
		return fmt.Errorf("%w: missing identity", ErrInvalidUser)
	}
	if u.Cohort == "" {
		return fmt.Errorf("%w: missing cohort", ErrInvalidUser)
	}
	return nil
}

func validateTransaction(t *model.Transaction) error {
	if t == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if t.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTxn)
	}
	if t.PredictionID == "" {
		return fmt.Errorf("%w: missing prediction ID", ErrInvalidTxn)
	}
	if t.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing event timestamp", ErrInvalidTxn)
	}
	return nil
}
