package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/harrison/remedy/internal/models"
)

// LogError persists a detected error and assigns it an identifier if it does
// not already carry one. The error record is immutable once logged.
func (s *Store) LogError(ctx context.Context, e *models.DetectedError) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	details, err := marshalMap(e.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	contextJSON, err := marshalMap(e.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	inputData, err := marshalMap(e.InputData)
	if err != nil {
		return fmt.Errorf("marshal input data: %w", err)
	}

	query := `INSERT INTO error_log
		(id, error_type, error_category, severity, source_type, source_id, step_id, component_id,
		 message, details, stack_trace, context, input_data, confidence, recoverable, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		e.ID,
		string(e.Type),
		string(e.Category),
		string(e.Severity),
		e.SourceType,
		nullString(e.SourceID),
		nullString(e.StepID),
		nullString(e.ComponentID),
		e.Message,
		details,
		nullString(e.StackTrace),
		contextJSON,
		inputData,
		e.Confidence,
		e.Recoverable,
		e.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert error log: %w", err)
	}
	return nil
}

// GetError retrieves a logged error by identifier.
func (s *Store) GetError(ctx context.Context, id string) (*models.DetectedError, error) {
	query := `SELECT id, error_type, error_category, severity, source_type, source_id, step_id,
		component_id, message, details, stack_trace, context, input_data, confidence, recoverable, detected_at
		FROM error_log WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	e := &models.DetectedError{}
	var errType, category, severity string
	var sourceID, stepID, componentID, details, stackTrace, contextJSON, inputData sql.NullString

	err := row.Scan(
		&e.ID, &errType, &category, &severity, &e.SourceType,
		&sourceID, &stepID, &componentID,
		&e.Message, &details, &stackTrace, &contextJSON, &inputData,
		&e.Confidence, &e.Recoverable, &e.DetectedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query error log: %w", err)
	}

	e.Type = models.ErrorType(errType)
	e.Category = models.ErrorCategory(category)
	e.Severity = models.Severity(severity)
	e.SourceID = fromNull(sourceID)
	e.StepID = fromNull(stepID)
	e.ComponentID = fromNull(componentID)
	e.StackTrace = fromNull(stackTrace)

	if e.Details, err = unmarshalMap(details); err != nil {
		return nil, fmt.Errorf("unmarshal details: %w", err)
	}
	if e.Context, err = unmarshalMap(contextJSON); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	if e.InputData, err = unmarshalMap(inputData); err != nil {
		return nil, fmt.Errorf("unmarshal input data: %w", err)
	}
	return e, nil
}

// marshalMap serializes a map to JSON, returning NULL for empty maps.
func marshalMap(m map[string]interface{}) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalMap deserializes a JSON column into a map; NULL yields nil.
func unmarshalMap(v sql.NullString) (map[string]interface{}, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(v.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}
