package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quipufin/quipu/internal/common"
	"github.com/quipufin/quipu/internal/model"
)

// SavePendingConfirmation creates the time-boxed waiting entry for a
// prediction that requires human review.
func (s *SQLiteStorage) SavePendingConfirmation(ctx context.Context, pending *model.PendingConfirmation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePending(pending); err != nil {
		return err
	}

	// CURRENT_TIMESTAMP is second-precision; rapid voice notes need a finer
	// grain for "most recent pending" to be well defined.
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_confirmations (
			id, prediction_id, user_id, cohort, message_id, group_id,
			expires_at, resolved, resolved_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		pending.ID,
		pending.PredictionID,
		pending.UserID,
		pending.Cohort,
		nullString(pending.MessageID),
		nullString(pending.GroupID),
		pending.ExpiresAt,
		pending.Resolved,
		pending.ResolvedAt,
		pending.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save pending confirmation: %w", err)
	}
	return nil
}

// GetPendingConfirmation retrieves a pending confirmation by id.
func (s *SQLiteStorage) GetPendingConfirmation(ctx context.Context, id string) (*model.PendingConfirmation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, pendingSelect+` WHERE id = ?`, id)
	pending, err := scanPending(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: pending confirmation %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get pending confirmation: %w", err)
	}
	return pending, nil
}

// GetUnresolvedPendingByPrediction returns the open waiting entry for a
// prediction. At most one exists at any time.
func (s *SQLiteStorage) GetUnresolvedPendingByPrediction(ctx context.Context, predictionID string) (*model.PendingConfirmation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(predictionID, "predictionID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		pendingSelect+` WHERE prediction_id = ? AND resolved = 0`, predictionID)
	pending, err := scanPending(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no unresolved pending for prediction %s", common.ErrNotFound, predictionID)
		}
		return nil, fmt.Errorf("failed to get pending confirmation: %w", err)
	}
	return pending, nil
}

// GetLatestUnresolvedPending returns the user's most recently created open
// entry. Bare "yes" replies resolve against this.
func (s *SQLiteStorage) GetLatestUnresolvedPending(ctx context.Context, userID string) (*model.PendingConfirmation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		pendingSelect+` WHERE user_id = ? AND resolved = 0 ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID)
	pending, err := scanPending(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no unresolved pending for user %s", common.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get latest pending confirmation: %w", err)
	}
	return pending, nil
}

// GetUnresolvedPendingsByGroup returns every open member of a grouped
// multi-candidate message.
func (s *SQLiteStorage) GetUnresolvedPendingsByGroup(ctx context.Context, groupID string) ([]model.PendingConfirmation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(groupID, "groupID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		pendingSelect+` WHERE group_id = ? AND resolved = 0 ORDER BY created_at, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending group: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPendings(rows)
}

// GetExpiredPendingConfirmations returns unresolved entries whose window has
// passed, oldest first, for the sweeper.
func (s *SQLiteStorage) GetExpiredPendingConfirmations(ctx context.Context, now time.Time) ([]model.PendingConfirmation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		pendingSelect+` WHERE resolved = 0 AND expires_at < ? ORDER BY expires_at`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired pending confirmations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPendings(rows)
}

// MarkPendingResolved sets the resolved flag iff it is still unset, and
// reports whether this caller won. Concurrent resolution attempts (a timeout
// firing at the same instant as a late confirmation) converge to exactly one
// winner through the conditional update.
func (s *SQLiteStorage) MarkPendingResolved(ctx context.Context, id string, resolvedAt time.Time) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(id, "id"); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE pending_confirmations SET resolved = 1, resolved_at = ? WHERE id = ? AND resolved = 0`,
		resolvedAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark pending resolved: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check update result: %w", err)
	}
	return affected > 0, nil
}

const pendingSelect = `
	SELECT id, prediction_id, user_id, cohort, message_id, group_id,
	       expires_at, resolved, resolved_at, created_at
	FROM pending_confirmations`

func scanPending(row rowScanner) (*model.PendingConfirmation, error) {
	var p model.PendingConfirmation
	var messageID, groupID sql.NullString
	var resolvedAt, createdAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.PredictionID, &p.UserID, &p.Cohort, &messageID, &groupID,
		&p.ExpiresAt, &p.Resolved, &resolvedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.MessageID = messageID.String
	p.GroupID = groupID.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		p.ResolvedAt = &t
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	return &p, nil
}

func collectPendings(rows *sql.Rows) ([]model.PendingConfirmation, error) {
	var pendings []model.PendingConfirmation
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending confirmation: %w", err)
		}
		pendings = append(pendings, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending confirmations: %w", err)
	}
	return pendings, nil
}
