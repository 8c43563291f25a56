package storage

import (
	"context"
	"fmt"

	"github.com/quipufin/quipu/internal/model"
)

// SaveFeedbackEntry appends one correctness signal. Entries are never
// mutated; accuracy is always re-derived from the full history.
func (s *SQLiteStorage) SaveFeedbackEntry(ctx context.Context, entry *model.FeedbackEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFeedback(entry); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback_entries (prediction_id, user_id, cohort, correct, origin, weight)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.PredictionID,
		entry.UserID,
		entry.Cohort,
		entry.Correct,
		string(entry.Origin),
		entry.Weight,
	)
	if err != nil {
		return fmt.Errorf("failed to save feedback entry: %w", err)
	}

	if id, idErr := result.LastInsertId(); idErr == nil {
		entry.ID = id
	}
	return nil
}

// DeleteFeedbackForPrediction removes earlier signals for a prediction. An
// edit supersedes any prior resolution of the same prediction.
func (s *SQLiteStorage) DeleteFeedbackForPrediction(ctx context.Context, predictionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(predictionID, "predictionID"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM feedback_entries WHERE prediction_id = ?`, predictionID); err != nil {
		return fmt.Errorf("failed to delete feedback for prediction: %w", err)
	}
	return nil
}

// GetFeedbackByCohort returns the cohort's full feedback history, oldest
// first.
func (s *SQLiteStorage) GetFeedbackByCohort(ctx context.Context, cohort string) ([]model.FeedbackEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(cohort, "cohort"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prediction_id, user_id, cohort, correct, origin, weight, created_at
		FROM feedback_entries
		WHERE cohort = ?
		ORDER BY id
	`, cohort)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.FeedbackEntry
	for rows.Next() {
		var e model.FeedbackEntry
		var origin string
		if err := rows.Scan(&e.ID, &e.PredictionID, &e.UserID, &e.Cohort,
			&e.Correct, &origin, &e.Weight, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback entry: %w", err)
		}
		e.Origin = model.ResolutionMethod(origin)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback entries: %w", err)
	}
	return entries, nil
}
