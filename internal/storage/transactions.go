package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quipufin/quipu/internal/common"
	"github.com/quipufin/quipu/internal/model"
)

// SaveTransaction materializes a committed transaction. The insert is keyed
// on prediction_id with OR IGNORE so a retried resolution never produces a
// second committed record for the same prediction.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, prediction_id, user_id, cohort, amount, direction,
			category, description, payment_method, currency, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID,
		txn.PredictionID,
		txn.UserID,
		txn.Cohort,
		txn.Amount.String(),
		string(txn.Direction),
		txn.Category,
		txn.Description,
		txn.PaymentMethod,
		txn.Currency,
		txn.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// GetTransactionByPredictionID returns the committed record for a resolved
// prediction.
func (s *SQLiteStorage) GetTransactionByPredictionID(ctx context.Context, predictionID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(predictionID, "predictionID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, transactionSelect+` WHERE prediction_id = ?`, predictionID)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction for prediction %s", common.ErrNotFound, predictionID)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactionsByUser returns a user's committed transactions ordered by
// when the underlying events happened.
func (s *SQLiteStorage) GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		transactionSelect+` WHERE user_id = ? ORDER BY occurred_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

const transactionSelect = `
	SELECT id, prediction_id, user_id, cohort, amount, direction, category,
	       description, payment_method, currency, occurred_at, created_at
	FROM transactions`

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var t model.Transaction
	var amount, direction string
	var createdAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.PredictionID, &t.UserID, &t.Cohort, &amount, &direction,
		&t.Category, &t.Description, &t.PaymentMethod, &t.Currency,
		&t.OccurredAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", amount, err)
	}
	t.Amount = parsed
	t.Direction = model.TransactionDirection(direction)
	if createdAt.Valid {
		t.CreatedAt = createdAt.Time
	}
	return &t, nil
}
