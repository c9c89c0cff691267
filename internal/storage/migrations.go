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
		Description: "Initial run history schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS runs (
					id TEXT PRIMARY KEY,
					period TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					elapsed_ms INTEGER NOT NULL DEFAULT 0,
					matched INTEGER NOT NULL DEFAULT 0,
					unmatched INTEGER NOT NULL DEFAULT 0,
					manual_review INTEGER NOT NULL DEFAULT 0,
					excluded INTEGER NOT NULL DEFAULT 0,
					loaded INTEGER NOT NULL DEFAULT 0,
					rejected INTEGER NOT NULL DEFAULT 0,
					duplicates INTEGER NOT NULL DEFAULT 0,
					out_of_period INTEGER NOT NULL DEFAULT 0,
					complete INTEGER NOT NULL DEFAULT 0,
					incomplete INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_runs_period ON runs(period)`,

				`CREATE TABLE IF NOT EXISTS company_results (
					run_id TEXT NOT NULL,
					company TEXT NOT NULL,
					ordinal INTEGER NOT NULL,
					status TEXT NOT NULL,
					dir TEXT,
					matched INTEGER NOT NULL DEFAULT 0,
					unmatched INTEGER NOT NULL DEFAULT 0,
					manual_review INTEGER NOT NULL DEFAULT 0,
					excluded INTEGER NOT NULL DEFAULT 0,
					loaded INTEGER NOT NULL DEFAULT 0,
					rejected INTEGER NOT NULL DEFAULT 0,
					duplicates INTEGER NOT NULL DEFAULT 0,
					out_of_period INTEGER NOT NULL DEFAULT 0,
					matched_pairs INTEGER NOT NULL DEFAULT 0,
					elapsed_ms INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY (run_id, company),
					FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
				)`,

				`CREATE TABLE IF NOT EXISTS classifications (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					company TEXT NOT NULL,
					seq INTEGER NOT NULL,
					bucket TEXT NOT NULL,
					reason TEXT NOT NULL,
					match_reason TEXT,
					origin TEXT NOT NULL,
					source TEXT,
					position INTEGER,
					document TEXT NOT NULL,
					counterparty TEXT NOT NULL,
					date DATETIME,
					amount TEXT NOT NULL,
					description TEXT,
					paired_document TEXT,
					paired_date DATETIME,
					paired_amount TEXT,
					delta TEXT,
					activity_code TEXT,
					FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
				)`,

				`CREATE TABLE IF NOT EXISTS failures (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					company TEXT NOT NULL,
					kind TEXT NOT NULL,
					detail TEXT,
					FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
				)`,
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
		Description: "Index classifications for review lookups",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_classifications_lookup ON classifications(run_id, company, bucket)`,
				`CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add invoice plate and detail lines to classifications",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE classifications ADD COLUMN plate TEXT`,
				`ALTER TABLE classifications ADD COLUMN details TEXT`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
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
