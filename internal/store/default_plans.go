package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/harrison/remedy/internal/models"
)

// SaveDefaultPlan stores (or replaces) the reusable plan associated with a
// pattern, so future occurrences can skip plan synthesis.
func (s *Store) SaveDefaultPlan(ctx context.Context, patternID string, plan *models.RemediationPlan) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal default plan: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO default_plans (pattern_id, plan) VALUES (?, ?)
		 ON CONFLICT(pattern_id) DO UPDATE SET plan = excluded.plan, updated_at = CURRENT_TIMESTAMP`,
		patternID, string(planJSON))
	if err != nil {
		return fmt.Errorf("save default plan: %w", err)
	}
	return nil
}

// GetDefaultPlan retrieves the stored plan for a pattern, if any.
func (s *Store) GetDefaultPlan(ctx context.Context, patternID string) (*models.RemediationPlan, error) {
	var planJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT plan FROM default_plans WHERE pattern_id = ?`, patternID).Scan(&planJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query default plan: %w", err)
	}

	plan := &models.RemediationPlan{}
	if err := json.Unmarshal([]byte(planJSON), plan); err != nil {
		return nil, fmt.Errorf("unmarshal default plan: %w", err)
	}
	return plan, nil
}
