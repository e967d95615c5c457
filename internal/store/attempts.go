package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harrison/remedy/internal/models"
)

// RecoveryAttempt is the persisted state of one plan execution, including
// enough to resume an attempt that is waiting for user input.
type RecoveryAttempt struct {
	RecoveryID    string
	ErrorID       string
	Plan          *models.RemediationPlan
	Status        models.RecoveryStatus
	ExecutedSteps int
	TotalSteps    int
	Successful    bool
	ErrorMessage  string
	UserInput     map[string]interface{}
	OutputData    map[string]interface{}
	ExecutionTime time.Duration
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// JournalEntry is one audit record attached to a recovery attempt.
type JournalEntry struct {
	ID         int64
	RecoveryID string
	Event      string
	Detail     string
	CreatedAt  time.Time
}

// CreateAttempt persists a new recovery attempt in the given status with its
// serialized plan. Plans are stored before execution begins so a crash
// mid-flight is resumable.
func (s *Store) CreateAttempt(ctx context.Context, recoveryID string, plan *models.RemediationPlan, status models.RecoveryStatus) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	query := `INSERT INTO recovery_attempts
		(recovery_id, error_id, plan, status, total_steps)
		VALUES (?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		recoveryID, plan.ErrorID, string(planJSON), string(status), len(plan.Steps))
	if err != nil {
		return fmt.Errorf("insert recovery attempt: %w", err)
	}
	return nil
}

// GetAttempt retrieves a recovery attempt by identifier.
func (s *Store) GetAttempt(ctx context.Context, recoveryID string) (*RecoveryAttempt, error) {
	query := `SELECT recovery_id, error_id, plan, status, executed_steps, total_steps,
		successful, error_message, user_input, output_data, execution_time_ms, created_at, updated_at
		FROM recovery_attempts WHERE recovery_id = ?`

	row := s.db.QueryRowContext(ctx, query, recoveryID)

	a := &RecoveryAttempt{}
	var planJSON, status string
	var errorMessage, userInput, outputData sql.NullString
	var executionMs int64

	err := row.Scan(
		&a.RecoveryID, &a.ErrorID, &planJSON, &status,
		&a.ExecutedSteps, &a.TotalSteps, &a.Successful,
		&errorMessage, &userInput, &outputData, &executionMs,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query recovery attempt: %w", err)
	}

	a.Status = models.RecoveryStatus(status)
	a.ErrorMessage = fromNull(errorMessage)
	a.ExecutionTime = time.Duration(executionMs) * time.Millisecond

	a.Plan = &models.RemediationPlan{}
	if err := json.Unmarshal([]byte(planJSON), a.Plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	if a.UserInput, err = unmarshalMap(userInput); err != nil {
		return nil, fmt.Errorf("unmarshal user input: %w", err)
	}
	if a.OutputData, err = unmarshalMap(outputData); err != nil {
		return nil, fmt.Errorf("unmarshal output data: %w", err)
	}
	return a, nil
}

// UpdateAttemptStatus transitions an attempt's status, enforcing the state
// machine. The update is conditional on the current status so concurrent
// writers cannot race an attempt into an illegal state.
func (s *Store) UpdateAttemptStatus(ctx context.Context, recoveryID string, from, to models.RecoveryStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE recovery_attempts SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE recovery_id = ? AND status = ?`,
		string(to), recoveryID, string(from))
	if err != nil {
		return fmt.Errorf("update attempt status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: attempt %s not in status %s", ErrInvalidTransition, recoveryID, from)
	}
	return nil
}

// FinishAttempt records the terminal outcome of an attempt alongside its
// final status.
func (s *Store) FinishAttempt(ctx context.Context, recoveryID string, status models.RecoveryStatus, result *models.RecoveryResult) error {
	outputData, err := marshalMap(result.OutputData)
	if err != nil {
		return fmt.Errorf("marshal output data: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE recovery_attempts SET
			status = ?, executed_steps = ?, successful = ?, error_message = ?,
			output_data = ?, execution_time_ms = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE recovery_id = ?`,
		string(status), result.ExecutedSteps, result.Successful,
		nullString(result.ErrorMessage), outputData,
		result.ExecutionTime.Milliseconds(), recoveryID)
	if err != nil {
		return fmt.Errorf("finish attempt: %w", err)
	}
	return nil
}

// AttachUserInput stores user-provided input on a waiting attempt.
func (s *Store) AttachUserInput(ctx context.Context, recoveryID string, input map[string]interface{}) error {
	inputJSON, err := marshalMap(input)
	if err != nil {
		return fmt.Errorf("marshal user input: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE recovery_attempts SET user_input = ?, updated_at = CURRENT_TIMESTAMP WHERE recovery_id = ?`,
		inputJSON, recoveryID)
	if err != nil {
		return fmt.Errorf("attach user input: %w", err)
	}
	return nil
}

// AppendJournal adds an audit entry to an attempt's journal.
func (s *Store) AppendJournal(ctx context.Context, recoveryID, event, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recovery_journal (recovery_id, event, detail) VALUES (?, ?, ?)`,
		recoveryID, event, nullString(detail))
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// GetJournal returns an attempt's journal entries in insertion order.
func (s *Store) GetJournal(ctx context.Context, recoveryID string) ([]*JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recovery_id, event, detail, created_at
		 FROM recovery_journal WHERE recovery_id = ? ORDER BY id ASC`, recoveryID)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []*JournalEntry
	for rows.Next() {
		e := &JournalEntry{}
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.RecoveryID, &e.Event, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Detail = fromNull(detail)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// ListAttempts returns recent recovery attempts, newest first. An empty
// status lists all attempts.
func (s *Store) ListAttempts(ctx context.Context, status models.RecoveryStatus, limit int) ([]*RecoveryAttempt, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT recovery_id FROM recovery_attempts`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan attempt id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}

	attempts := make([]*RecoveryAttempt, 0, len(ids))
	for _, id := range ids {
		a, err := s.GetAttempt(ctx, id)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}
