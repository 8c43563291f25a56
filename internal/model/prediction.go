// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionDirection indicates whether money left or entered the account.
type TransactionDirection string

// Transaction direction constants.
const (
	DirectionDebit  TransactionDirection = "debit"
	DirectionCredit TransactionDirection = "credit"
)

// ResolutionMethod records how a prediction left the pending state.
type ResolutionMethod string

// Resolution method constants.
const (
	ResolutionNone     ResolutionMethod = "none"
	ResolutionReaction ResolutionMethod = "reaction"
	ResolutionEdit     ResolutionMethod = "edit"
	ResolutionRejected ResolutionMethod = "rejected"
	ResolutionTimeout  ResolutionMethod = "timeout"
)

// Prediction is a candidate transaction extracted from an inbound message.
// OccurredAt is captured at extraction time and is never altered afterwards;
// edits change content fields only.
type Prediction struct {
	OccurredAt    time.Time
	CreatedAt     time.Time
	ID            string
	UserID        string
	Cohort        string
	Transcript    string
	Category      string
	Description   string
	PaymentMethod string
	Currency      string
	MessageID     string // inbound message id; unique when set, empty otherwise
	Channel       string // origin channel tag (e.g. whatsapp, telegram, cli)
	GroupID       string // shared by sibling predictions from one message
	Direction     TransactionDirection
	Resolution    ResolutionMethod
	Amount        decimal.Decimal
	Confirmed     bool
}

// EditedFields carries corrected content values supplied by the user at
// edit-resolution time. The original event timestamp is deliberately absent.
type EditedFields struct {
	Amount        decimal.Decimal
	Direction     TransactionDirection
	Category      string
	Description   string
	PaymentMethod string
	Currency      string
}

// MemberMessageID returns the ordinal-suffixed inbound-message id for the
// n-th sibling of a multi-candidate message, preserving per-prediction
// uniqueness while keeping every member traceable to the source message.
func MemberMessageID(messageID string, ordinal int) string {
	if messageID == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", messageID, ordinal)
}
