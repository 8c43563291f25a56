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

// GetConfirmationPolicy retrieves the stored policy for a cohort. A missing
// row surfaces as common.ErrNotFound; callers treat that as the default
// "confirmation required" policy.
func (s *SQLiteStorage) GetConfirmationPolicy(ctx context.Context, cohort string) (*model.ConfirmationPolicy, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(cohort, "cohort"); err != nil {
		return nil, err
	}

	var p model.ConfirmationPolicy
	var autoEnabledAt sql.NullTime
	var updatedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT cohort, require_confirmation, auto_enabled, verified_count,
		       accuracy, auto_enabled_at, updated_at
		FROM confirmation_policies
		WHERE cohort = ?
	`, cohort).Scan(
		&p.Cohort, &p.RequireConfirmation, &p.AutoEnabled, &p.VerifiedCount,
		&p.Accuracy, &autoEnabledAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: policy for cohort %s", common.ErrNotFound, cohort)
		}
		return nil, fmt.Errorf("failed to get confirmation policy: %w", err)
	}

	if autoEnabledAt.Valid {
		t := autoEnabledAt.Time
		p.AutoEnabledAt = &t
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return &p, nil
}

// SaveConfirmationPolicy upserts a cohort's policy row.
func (s *SQLiteStorage) SaveConfirmationPolicy(ctx context.Context, policy *model.ConfirmationPolicy) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePolicy(policy); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO confirmation_policies (
			cohort, require_confirmation, auto_enabled, verified_count,
			accuracy, auto_enabled_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cohort) DO UPDATE SET
			require_confirmation = excluded.require_confirmation,
			auto_enabled = excluded.auto_enabled,
			verified_count = excluded.verified_count,
			accuracy = excluded.accuracy,
			auto_enabled_at = excluded.auto_enabled_at,
			updated_at = excluded.updated_at
	`,
		policy.Cohort,
		policy.RequireConfirmation,
		policy.AutoEnabled,
		policy.VerifiedCount,
		policy.Accuracy,
		policy.AutoEnabledAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save confirmation policy: %w", err)
	}
	return nil
}
