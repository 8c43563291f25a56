package model

import "time"

// PendingConfirmation is the time-boxed waiting record for a prediction that
// requires human review before it becomes a committed transaction.
type PendingConfirmation struct {
	ExpiresAt    time.Time
	CreatedAt    time.Time
	ResolvedAt   *time.Time
	ID           string
	PredictionID string
	UserID       string
	Cohort       string
	MessageID    string
	GroupID      string // non-empty only for multi-candidate messages
	Resolved     bool
}

// Expired reports whether the entry's confirmation window has passed.
func (p *PendingConfirmation) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
