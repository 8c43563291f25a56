package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/quipufin/quipu/internal/common"
	"github.com/quipufin/quipu/internal/model"
)

// SavePrediction writes one candidate transaction. The UNIQUE constraint on
// message_id is the deduplication backstop: a racing duplicate delivery hits
// the constraint and surfaces as common.ErrDuplicateMessage instead of a
// second row.
func (s *SQLiteStorage) SavePrediction(ctx context.Context, prediction *model.Prediction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePrediction(prediction); err != nil {
		return err
	}

	if prediction.Resolution == "" {
		prediction.Resolution = model.ResolutionNone
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (
			id, user_id, cohort, transcript, amount, direction, category,
			description, payment_method, currency, message_id, channel,
			group_id, confirmed, resolution, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		prediction.ID,
		prediction.UserID,
		prediction.Cohort,
		prediction.Transcript,
		prediction.Amount.String(),
		string(prediction.Direction),
		prediction.Category,
		prediction.Description,
		prediction.PaymentMethod,
		prediction.Currency,
		nullString(prediction.MessageID),
		prediction.Channel,
		nullString(prediction.GroupID),
		prediction.Confirmed,
		string(prediction.Resolution),
		prediction.OccurredAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: message_id %q", common.ErrDuplicateMessage, prediction.MessageID)
		}
		return fmt.Errorf("failed to save prediction: %w", err)
	}

	return nil
}

// GetPrediction retrieves a prediction by id.
func (s *SQLiteStorage) GetPrediction(ctx context.Context, id string) (*model.Prediction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, predictionSelect+` WHERE id = ?`, id)
	prediction, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: prediction %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return prediction, nil
}

// GetPredictionsByMessageID returns every prediction traceable to an inbound
// message id: the id itself, or the ordinal-suffixed members of a
// multi-candidate message ("m1:1", "m1:2"). An empty result means the message
// has not been processed.
func (s *SQLiteStorage) GetPredictionsByMessageID(ctx context.Context, messageID string) ([]model.Prediction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(messageID, "messageID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		predictionSelect+` WHERE message_id = ? OR message_id LIKE ? || ':%' ORDER BY message_id`,
		messageID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions by message: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPredictions(rows)
}

// UpdatePredictionFields overwrites the content fields at edit-resolution
// time. The original event timestamp is deliberately not part of the update.
func (s *SQLiteStorage) UpdatePredictionFields(ctx context.Context, id string, fields model.EditedFields) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE predictions
		SET amount = ?, direction = ?, category = ?, description = ?,
		    payment_method = ?, currency = ?
		WHERE id = ?
	`,
		fields.Amount.String(),
		string(fields.Direction),
		fields.Category,
		fields.Description,
		fields.PaymentMethod,
		fields.Currency,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update prediction fields: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: prediction %s", common.ErrNotFound, id)
	}
	return nil
}

// MarkPredictionResolved records the one-time resolution outcome.
func (s *SQLiteStorage) MarkPredictionResolved(ctx context.Context, id string, confirmed bool, method model.ResolutionMethod) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE predictions SET confirmed = ?, resolution = ? WHERE id = ?`,
		confirmed, string(method), id)
	if err != nil {
		return fmt.Errorf("failed to mark prediction resolved: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: prediction %s", common.ErrNotFound, id)
	}
	return nil
}

const predictionSelect = `
	SELECT id, user_id, cohort, transcript, amount, direction, category,
	       description, payment_method, currency, message_id, channel,
	       group_id, confirmed, resolution, occurred_at, created_at
	FROM predictions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row rowScanner) (*model.Prediction, error) {
	var p model.Prediction
	var amount string
	var direction, resolution string
	var messageID, groupID sql.NullString
	var createdAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.UserID, &p.Cohort, &p.Transcript, &amount, &direction,
		&p.Category, &p.Description, &p.PaymentMethod, &p.Currency,
		&messageID, &p.Channel, &groupID, &p.Confirmed, &resolution,
		&p.OccurredAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", amount, err)
	}
	p.Amount = parsed
	p.Direction = model.TransactionDirection(direction)
	p.Resolution = model.ResolutionMethod(resolution)
	p.MessageID = messageID.String
	p.GroupID = groupID.String
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	return &p, nil
}

func collectPredictions(rows *sql.Rows) ([]model.Prediction, error) {
	var predictions []model.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}
	return predictions, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
