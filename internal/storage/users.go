package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quipufin/quipu/internal/common"
	"github.com/quipufin/quipu/internal/model"
)

// GetUserByIdentity looks up a registered sender by gateway identity.
func (s *SQLiteStorage) GetUserByIdentity(ctx context.Context, identity string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(identity, "identity"); err != nil {
		return nil, err
	}

	var u model.User
	var createdAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, identity, name, cohort, created_at
		FROM users
		WHERE identity = ?
	`, identity).Scan(&u.ID, &u.Identity, &u.Name, &u.Cohort, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: identity %s", common.ErrNotFound, identity)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if createdAt.Valid {
		u.CreatedAt = createdAt.Time
	}
	return &u, nil
}

// SaveUser registers a sender.
func (s *SQLiteStorage) SaveUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUser(user); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, identity, name, cohort)
		VALUES (?, ?, ?, ?)
	`, user.ID, user.Identity, user.Name, user.Cohort)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUsers returns all registered users.
func (s *SQLiteStorage) GetUsers(ctx context.Context) ([]model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, name, cohort, created_at
		FROM users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		var u model.User
		var createdAt sql.NullTime
		if err := rows.Scan(&u.ID, &u.Identity, &u.Name, &u.Cohort, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if createdAt.Valid {
			u.CreatedAt = createdAt.Time
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}
