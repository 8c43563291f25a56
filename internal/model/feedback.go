package model

import "time"

// Confidence weights per resolution origin. An edit is the strongest
// correctness signal because the user actively reviewed and corrected the
// fields; a timeout carries the least trust since nobody looked at it.
const (
	WeightReaction = 1.0
	WeightEdit     = 2.0
	WeightRejected = 1.0
	WeightTimeout  = 0.5
)

// FeedbackEntry records one confidence-weighted correctness signal for a
// resolved prediction. Entries are append-only: accuracy is always recomputed
// from the full history, never from a running counter.
type FeedbackEntry struct {
	CreatedAt    time.Time
	PredictionID string
	UserID       string
	Cohort       string
	Origin       ResolutionMethod
	Weight       float64
	Correct      bool
	ID           int64
}

// FeedbackWeight returns the confidence weight for a resolution method.
func FeedbackWeight(method ResolutionMethod) float64 {
	switch method {
	case ResolutionEdit:
		return WeightEdit
	case ResolutionTimeout:
		return WeightTimeout
	case ResolutionRejected:
		return WeightRejected
	default:
		return WeightReaction
	}
}
