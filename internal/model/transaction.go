package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the durable financial record materialized when a prediction
// resolves. OccurredAt carries the prediction's original event timestamp, not
// the resolution-time clock, so timeline ordering reflects when the expense
// actually happened.
type Transaction struct {
	OccurredAt    time.Time
	CreatedAt     time.Time
	ID            string
	PredictionID  string
	UserID        string
	Cohort        string
	Category      string
	Description   string
	PaymentMethod string
	Currency      string
	Direction     TransactionDirection
	Amount        decimal.Decimal
}

// TransactionFromPrediction materializes the committed record for a resolved
// prediction.
func TransactionFromPrediction(id string, p *Prediction) *Transaction {
	return &Transaction{
		ID:            id,
		PredictionID:  p.ID,
		UserID:        p.UserID,
		Cohort:        p.Cohort,
		Amount:        p.Amount,
		Direction:     p.Direction,
		Category:      p.Category,
		Description:   p.Description,
		PaymentMethod: p.PaymentMethod,
		Currency:      p.Currency,
		OccurredAt:    p.OccurredAt,
	}
}
