package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of all database migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: error log, patterns, recovery attempts, journal, default plans, suggestions",
		SQL: `
-- Durable log of every detected error
CREATE TABLE IF NOT EXISTS error_log (
    id TEXT PRIMARY KEY,
    error_type TEXT NOT NULL,
    error_category TEXT NOT NULL,
    severity TEXT NOT NULL,
    source_type TEXT NOT NULL,
    source_id TEXT,
    step_id TEXT,
    component_id TEXT,
    message TEXT NOT NULL,
    details TEXT,
    stack_trace TEXT,
    context TEXT,
    input_data TEXT,
    confidence REAL,
    recoverable BOOLEAN NOT NULL,
    detected_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_error_log_type ON error_log(error_type);
CREATE INDEX IF NOT EXISTS idx_error_log_detected ON error_log(detected_at DESC);

-- Learned aggregates keyed by generalized error shape
CREATE TABLE IF NOT EXISTS error_patterns (
    id TEXT PRIMARY KEY,
    error_type TEXT NOT NULL,
    error_category TEXT NOT NULL,
    source_type TEXT NOT NULL,
    component_id TEXT NOT NULL DEFAULT '',
    message_shape TEXT NOT NULL,
    occurrences INTEGER NOT NULL DEFAULT 0,
    success_count INTEGER NOT NULL DEFAULT 0,
    success_rate REAL NOT NULL DEFAULT 0,
    recovery_strategies TEXT NOT NULL DEFAULT '[]',
    successful_strategies TEXT NOT NULL DEFAULT '[]',
    first_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(error_type, error_category, source_type, component_id, message_shape)
);

CREATE INDEX IF NOT EXISTS idx_error_patterns_type ON error_patterns(error_type);
CREATE INDEX IF NOT EXISTS idx_error_patterns_rate ON error_patterns(success_rate DESC);

-- One row per recovery attempt; plan serialized so crashed or waiting
-- attempts are resumable
CREATE TABLE IF NOT EXISTS recovery_attempts (
    recovery_id TEXT PRIMARY KEY,
    error_id TEXT NOT NULL,
    plan TEXT NOT NULL,
    status TEXT NOT NULL,
    executed_steps INTEGER NOT NULL DEFAULT 0,
    total_steps INTEGER NOT NULL DEFAULT 0,
    successful BOOLEAN NOT NULL DEFAULT 0,
    error_message TEXT,
    user_input TEXT,
    output_data TEXT,
    execution_time_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_recovery_attempts_error ON recovery_attempts(error_id);
CREATE INDEX IF NOT EXISTS idx_recovery_attempts_status ON recovery_attempts(status);

-- Append-only journal of step attempts and status transitions
CREATE TABLE IF NOT EXISTS recovery_journal (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    recovery_id TEXT NOT NULL,
    event TEXT NOT NULL,
    detail TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (recovery_id) REFERENCES recovery_attempts(recovery_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_recovery_journal_recovery ON recovery_journal(recovery_id);

-- Reusable plans stored against high-success patterns
CREATE TABLE IF NOT EXISTS default_plans (
    pattern_id TEXT PRIMARY KEY,
    plan TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Proposed system improvements awaiting human review
CREATE TABLE IF NOT EXISTS adaptation_suggestions (
    id TEXT PRIMARY KEY,
    error_pattern_id TEXT,
    suggestion_type TEXT NOT NULL,
    target_id TEXT,
    suggestion TEXT NOT NULL,
    rationale TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 0,
    implementation_difficulty TEXT,
    potential_impact TEXT,
    status TEXT NOT NULL DEFAULT 'suggested',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_adaptation_suggestions_status ON adaptation_suggestions(status);
`,
	},
}

// ApplyMigrations applies all pending migrations in order, each inside a
// transaction, recording applied versions in schema_version.
func (s *Store) ApplyMigrations(ctx context.Context) error {
	if err := s.ensureSchemaVersionTable(); err != nil {
		return err
	}

	current, err := s.GetLatestVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

// applyMigration runs one migration inside a transaction.
func (s *Store) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("exec migration SQL: %w", err)
	}
	if err := recordMigrationTx(ctx, tx, m.Version); err != nil {
		return err
	}
	return tx.Commit()
}

// ensureSchemaVersionTable ensures the schema_version table exists.
func (s *Store) ensureSchemaVersionTable() error {
	stmt := `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}
	return nil
}

// recordMigrationTx records that a migration has been applied.
func recordMigrationTx(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("insert migration version: %w", err)
	}
	return nil
}

// GetLatestVersion returns the latest applied migration version.
func (s *Store) GetLatestVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("query latest version: %w", err)
	}
	return version, nil
}
