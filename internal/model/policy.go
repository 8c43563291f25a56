package model

import "time"

// ConfirmationPolicy holds the per-cohort confirmation switch and the rolling
// weighted-accuracy statistic that governs it. A cohort with no stored policy
// row defaults to requiring confirmation.
type ConfirmationPolicy struct {
	UpdatedAt           time.Time
	AutoEnabledAt       *time.Time
	Cohort              string
	Accuracy            float64
	VerifiedCount       int
	RequireConfirmation bool
	AutoEnabled         bool
}

// DefaultConfirmationPolicy returns the policy applied to cohorts that have
// never been evaluated.
func DefaultConfirmationPolicy(cohort string) *ConfirmationPolicy {
	return &ConfirmationPolicy{
		Cohort:              cohort,
		RequireConfirmation: true,
	}
}
