// Package store provides SQLite persistence for the recovery pipeline:
// the error log, learned error patterns, recovery attempts with their
// journals, stored default plans, and adaptation suggestions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidTransition is returned when a recovery attempt status update
// would violate the state machine.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store manages the SQLite database backing the recovery pipeline.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a Store instance and initializes the database schema.
// Pass ":memory:" for an ephemeral database (tests).
func NewStore(dbPath string) (*Store, error) {
	if dbPath == ":memory:" {
		return openAndInitStore(dbPath)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	return openAndInitStore(dbPath)
}

// openAndInitStore opens the database connection and initializes schema.
func openAndInitStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each pooled connection would get its own in-memory database, so pin
	// the pool to a single connection for ":memory:".
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Configure SQLite for concurrent access. busy_timeout must come first so
	// subsequent pragmas wait on locks instead of failing.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return s, nil
}

// execWithRetry executes a statement with backoff retry on lock errors.
// Concurrent initialization of the same database file can hit
// "database is locked" transiently.
func execWithRetry(db *sql.DB, stmt string) error {
	return RetryWithBackoff(func() error {
		_, err := db.Exec(stmt)
		return err
	})
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

// nullString converts an empty string to a NULL-able value so optional
// columns stay NULL rather than storing empty strings.
func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// fromNull unwraps a NullString into a plain string.
func fromNull(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

// isLockError reports whether err is a transient SQLite contention error.
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
