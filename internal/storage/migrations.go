package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					identity TEXT UNIQUE NOT NULL,
					name TEXT,
					cohort TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_users_identity ON users(identity)`,

				`CREATE TABLE IF NOT EXISTS predictions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					cohort TEXT NOT NULL,
					transcript TEXT,
					amount TEXT NOT NULL,
					direction TEXT NOT NULL,
					category TEXT,
					description TEXT,
					payment_method TEXT,
					currency TEXT,
					message_id TEXT UNIQUE,
					channel TEXT,
					group_id TEXT,
					confirmed INTEGER NOT NULL DEFAULT 0,
					resolution TEXT NOT NULL DEFAULT 'none',
					occurred_at DATETIME NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (user_id) REFERENCES users(id)
				)`,
				`CREATE INDEX idx_predictions_user ON predictions(user_id)`,
				`CREATE INDEX idx_predictions_group ON predictions(group_id)`,

				`CREATE TABLE IF NOT EXISTS pending_confirmations (
					id TEXT PRIMARY KEY,
					prediction_id TEXT NOT NULL,
					user_id TEXT NOT NULL,
					cohort TEXT NOT NULL,
					message_id TEXT,
					group_id TEXT,
					expires_at DATETIME NOT NULL,
					resolved INTEGER NOT NULL DEFAULT 0,
					resolved_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (prediction_id) REFERENCES predictions(id)
				)`,
				`CREATE INDEX idx_pending_prediction ON pending_confirmations(prediction_id)`,
				`CREATE INDEX idx_pending_user ON pending_confirmations(user_id, resolved)`,
				`CREATE INDEX idx_pending_group ON pending_confirmations(group_id)`,

				`CREATE TABLE IF NOT EXISTS feedback_entries (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					prediction_id TEXT NOT NULL,
					user_id TEXT NOT NULL,
					cohort TEXT NOT NULL,
					correct INTEGER NOT NULL,
					origin TEXT NOT NULL,
					weight REAL NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (prediction_id) REFERENCES predictions(id)
				)`,
				`CREATE INDEX idx_feedback_cohort ON feedback_entries(cohort)`,
				`CREATE INDEX idx_feedback_prediction ON feedback_entries(prediction_id)`,

				`CREATE TABLE IF NOT EXISTS confirmation_policies (
					cohort TEXT PRIMARY KEY,
					require_confirmation INTEGER NOT NULL DEFAULT 1,
					auto_enabled INTEGER NOT NULL DEFAULT 0,
					verified_count INTEGER NOT NULL DEFAULT 0,
					accuracy REAL NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					prediction_id TEXT UNIQUE NOT NULL,
					user_id TEXT NOT NULL,
					cohort TEXT NOT NULL,
					amount TEXT NOT NULL,
					direction TEXT NOT NULL,
					category TEXT,
					description TEXT,
					payment_method TEXT,
					currency TEXT,
					occurred_at DATETIME NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (prediction_id) REFERENCES predictions(id)
				)`,
				`CREATE INDEX idx_transactions_user ON transactions(user_id)`,
				`CREATE INDEX idx_transactions_occurred ON transactions(occurred_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Track when a cohort was auto-enabled, for the reversible policy flip",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`ALTER TABLE confirmation_policies ADD COLUMN auto_enabled_at DATETIME`); err != nil {
				return fmt.Errorf("failed to add auto_enabled_at: %w", err)
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index expired pending confirmations for the sweeper",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_pending_expiry ON pending_confirmations(resolved, expires_at)`); err != nil {
				return fmt.Errorf("failed to create expiry index: %w", err)
			}
			return nil
		},
	},
}

// Migrate applies any outstanding schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
