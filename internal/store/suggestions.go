package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/harrison/remedy/internal/models"
)

// InsertSuggestion persists an adaptation suggestion. IDs are assigned when
// absent; new suggestions always start in status "suggested".
func (s *Store) InsertSuggestion(ctx context.Context, sg *models.AdaptationSuggestion) error {
	if sg.ID == "" {
		sg.ID = uuid.NewString()
	}
	if sg.Status == "" {
		sg.Status = models.SuggestionSuggested
	}

	query := `INSERT INTO adaptation_suggestions
		(id, error_pattern_id, suggestion_type, target_id, suggestion, rationale,
		 confidence, implementation_difficulty, potential_impact, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		sg.ID,
		nullString(sg.ErrorPatternID),
		sg.SuggestionType,
		nullString(sg.TargetID),
		sg.Suggestion,
		sg.Rationale,
		sg.Confidence,
		nullString(sg.ImplementationDifficulty),
		nullString(sg.PotentialImpact),
		string(sg.Status),
	)
	if err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}
	return nil
}

// GetSuggestion retrieves a suggestion by identifier.
func (s *Store) GetSuggestion(ctx context.Context, id string) (*models.AdaptationSuggestion, error) {
	rows, err := s.db.QueryContext(ctx, suggestionSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query suggestion: %w", err)
	}
	defer rows.Close()

	suggestions, err := scanSuggestions(rows)
	if err != nil {
		return nil, err
	}
	if len(suggestions) == 0 {
		return nil, ErrNotFound
	}
	return suggestions[0], nil
}

// ListSuggestions returns suggestions filtered by status, newest first.
// An empty status lists all suggestions.
func (s *Store) ListSuggestions(ctx context.Context, status models.SuggestionStatus, limit int) ([]*models.AdaptationSuggestion, error) {
	if limit <= 0 {
		limit = 50
	}

	query := suggestionSelect
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	return scanSuggestions(rows)
}

// UpdateSuggestionStatus advances a suggestion through its review lifecycle.
// Lifecycle changes only happen through this explicit call, never
// automatically.
func (s *Store) UpdateSuggestionStatus(ctx context.Context, id string, status models.SuggestionStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid suggestion status %q", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE adaptation_suggestions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update suggestion status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const suggestionSelect = `SELECT id, error_pattern_id, suggestion_type, target_id, suggestion,
	rationale, confidence, implementation_difficulty, potential_impact, status, created_at
	FROM adaptation_suggestions`

// scanSuggestions reads suggestion rows into models.
func scanSuggestions(rows *sql.Rows) ([]*models.AdaptationSuggestion, error) {
	var suggestions []*models.AdaptationSuggestion
	for rows.Next() {
		sg := &models.AdaptationSuggestion{}
		var patternID, targetID, difficulty, impact sql.NullString
		var status string
		err := rows.Scan(
			&sg.ID, &patternID, &sg.SuggestionType, &targetID, &sg.Suggestion,
			&sg.Rationale, &sg.Confidence, &difficulty, &impact, &status, &sg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		sg.ErrorPatternID = fromNull(patternID)
		sg.TargetID = fromNull(targetID)
		sg.ImplementationDifficulty = fromNull(difficulty)
		sg.PotentialImpact = fromNull(impact)
		sg.Status = models.SuggestionStatus(status)
		suggestions = append(suggestions, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return suggestions, nil
}
