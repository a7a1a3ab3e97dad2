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
		Description: "Legislative open data tables",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS deputies (
					id INTEGER PRIMARY KEY,
					name TEXT NOT NULL,
					civil_name TEXT,
					party TEXT,
					state TEXT,
					sex TEXT,
					email TEXT,
					birth_date DATETIME,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_deputies_party ON deputies(party)`,

				`CREATE TABLE IF NOT EXISTS propositions (
					id INTEGER PRIMARY KEY,
					type_acronym TEXT,
					number INTEGER,
					year INTEGER,
					summary TEXT,
					keywords TEXT,
					uri TEXT,
					presented_at DATETIME,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_propositions_year ON propositions(year)`,

				`CREATE TABLE IF NOT EXISTS votes (
					voting_id TEXT NOT NULL,
					deputy_id INTEGER NOT NULL,
					proposition_id INTEGER,
					vote TEXT NOT NULL,
					voted_at DATETIME,
					PRIMARY KEY (voting_id, deputy_id)
				)`,
				`CREATE INDEX idx_votes_deputy ON votes(deputy_id)`,
				`CREATE INDEX idx_votes_proposition ON votes(proposition_id)`,

				`CREATE TABLE IF NOT EXISTS expenses (
					document_id TEXT PRIMARY KEY,
					deputy_id INTEGER NOT NULL,
					year INTEGER NOT NULL,
					month INTEGER NOT NULL,
					category TEXT,
					supplier TEXT,
					supplier_doc TEXT,
					net_value REAL NOT NULL DEFAULT 0,
					issued_at DATETIME
				)`,
				`CREATE INDEX idx_expenses_deputy ON expenses(deputy_id, year, month)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Categories and proposition category links",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					code TEXT UNIQUE NOT NULL,
					name TEXT NOT NULL,
					description TEXT DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS proposition_categories (
					proposition_id INTEGER NOT NULL,
					category_id INTEGER NOT NULL,
					source TEXT NOT NULL CHECK (source IN ('rule', 'llm')),
					confidence REAL NOT NULL DEFAULT 1.0,
					matched_pattern TEXT DEFAULT '',
					classified_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (proposition_id, category_id, source),
					FOREIGN KEY (proposition_id) REFERENCES propositions(id) ON DELETE CASCADE,
					FOREIGN KEY (category_id) REFERENCES categories(id)
				)`,
				`CREATE INDEX idx_proposition_categories_source ON proposition_categories(source)`,
				`CREATE INDEX idx_proposition_categories_category ON proposition_categories(category_id)`,
			)
		},
	},
	{
		Version:     3,
		Description: "HTTP cache validators and pipeline run history",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS http_cache (
					url TEXT PRIMARY KEY,
					etag TEXT NOT NULL,
					fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS pipeline_runs (
					id TEXT PRIMARY KEY,
					started_at DATETIME NOT NULL,
					finished_at DATETIME,
					status TEXT NOT NULL,
					error TEXT DEFAULT '',
					warnings TEXT DEFAULT '[]',
					loaded INTEGER DEFAULT 0,
					classified INTEGER DEFAULT 0,
					enriched INTEGER DEFAULT 0
				)`,
				`CREATE INDEX idx_pipeline_runs_started_at ON pipeline_runs(started_at)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
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

// SchemaVersion reports the database's current user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
