package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/harrison/remedy/internal/models"
)

// PatternKey identifies an error pattern aggregate. ComponentID may be empty.
type PatternKey struct {
	Type         models.ErrorType
	Category     models.ErrorCategory
	SourceType   string
	ComponentID  string
	MessageShape string
}

// RecordOutcome folds one recovery outcome into the pattern keyed by key.
// The occurrence counters and success rate are updated in a single atomic
// upsert computed store-side, so concurrent writers cannot lose counts.
// On success, strategy is unioned into the pattern's strategy lists in a
// follow-up transaction; the union is idempotent so contention there is
// harmless.
func (s *Store) RecordOutcome(ctx context.Context, key PatternKey, successful bool, strategy models.Strategy) (*models.ErrorPattern, error) {
	successDelta := 0
	if successful {
		successDelta = 1
	}

	upsert := `INSERT INTO error_patterns
		(id, error_type, error_category, source_type, component_id, message_shape,
		 occurrences, success_count, success_rate)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(error_type, error_category, source_type, component_id, message_shape) DO UPDATE SET
			occurrences = occurrences + 1,
			success_count = success_count + excluded.success_count,
			success_rate = CAST(success_count + excluded.success_count AS REAL) / (occurrences + 1),
			last_seen = CURRENT_TIMESTAMP`

	err := RetryWithBackoff(func() error {
		_, execErr := s.db.ExecContext(ctx, upsert,
			uuid.NewString(),
			string(key.Type),
			string(key.Category),
			key.SourceType,
			key.ComponentID,
			key.MessageShape,
			successDelta,
			float64(successDelta),
		)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("upsert pattern stats: %w", err)
	}

	if successful && strategy != "" {
		if err := s.unionStrategy(ctx, key, strategy); err != nil {
			return nil, err
		}
	}

	return s.getPatternByKey(ctx, key)
}

// unionStrategy adds strategy to the pattern's strategy lists if not present.
// The read-modify-write of the JSON columns runs in a transaction whose
// commit fails with SQLITE_BUSY when a concurrent writer got there first;
// RetryWithBackoff then re-runs the whole closure against the fresh row, and
// the union is idempotent, so no concurrent writer's strategy is lost.
func (s *Store) unionStrategy(ctx context.Context, key PatternKey, strategy models.Strategy) error {
	return RetryWithBackoff(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		var recoveryJSON, successfulJSON string
		row := tx.QueryRowContext(ctx,
			`SELECT recovery_strategies, successful_strategies FROM error_patterns
			 WHERE error_type = ? AND error_category = ? AND source_type = ? AND component_id = ? AND message_shape = ?`,
			string(key.Type), string(key.Category), key.SourceType, key.ComponentID, key.MessageShape)
		if err := row.Scan(&recoveryJSON, &successfulJSON); err != nil {
			return fmt.Errorf("read pattern strategies: %w", err)
		}

		recovery, err := unmarshalStrategies(recoveryJSON)
		if err != nil {
			return fmt.Errorf("unmarshal recovery strategies: %w", err)
		}
		successful, err := unmarshalStrategies(successfulJSON)
		if err != nil {
			return fmt.Errorf("unmarshal successful strategies: %w", err)
		}

		recovery = appendUnique(recovery, strategy)
		successful = appendUnique(successful, strategy)

		recoveryOut, _ := json.Marshal(recovery)
		successfulOut, _ := json.Marshal(successful)

		_, err = tx.ExecContext(ctx,
			`UPDATE error_patterns SET recovery_strategies = ?, successful_strategies = ?
			 WHERE error_type = ? AND error_category = ? AND source_type = ? AND component_id = ? AND message_shape = ?`,
			string(recoveryOut), string(successfulOut),
			string(key.Type), string(key.Category), key.SourceType, key.ComponentID, key.MessageShape)
		if err != nil {
			return fmt.Errorf("update pattern strategies: %w", err)
		}
		return tx.Commit()
	})
}

// FindPatterns returns candidate patterns for a classification lookup, ranked
// by match specificity (exact message shape and component first), then by
// success rate and occurrence count.
func (s *Store) FindPatterns(ctx context.Context, key PatternKey, limit int) ([]*models.ErrorPattern, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `SELECT id, error_type, error_category, source_type, component_id, message_shape,
		occurrences, success_count, success_rate, recovery_strategies, successful_strategies,
		first_seen, last_seen
		FROM error_patterns
		WHERE error_type = ? AND error_category = ? AND source_type = ?
		ORDER BY
			(message_shape = ?) DESC,
			(component_id = ?) DESC,
			success_rate DESC,
			occurrences DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query,
		string(key.Type), string(key.Category), key.SourceType,
		key.MessageShape, key.ComponentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// GetPattern retrieves a pattern by identifier.
func (s *Store) GetPattern(ctx context.Context, id string) (*models.ErrorPattern, error) {
	query := patternSelect + ` WHERE id = ?`
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query pattern: %w", err)
	}
	defer rows.Close()

	patterns, err := scanPatterns(rows)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, ErrNotFound
	}
	return patterns[0], nil
}

// getPatternByKey retrieves a pattern by its unique key.
func (s *Store) getPatternByKey(ctx context.Context, key PatternKey) (*models.ErrorPattern, error) {
	query := patternSelect +
		` WHERE error_type = ? AND error_category = ? AND source_type = ? AND component_id = ? AND message_shape = ?`
	rows, err := s.db.QueryContext(ctx, query,
		string(key.Type), string(key.Category), key.SourceType, key.ComponentID, key.MessageShape)
	if err != nil {
		return nil, fmt.Errorf("query pattern by key: %w", err)
	}
	defer rows.Close()

	patterns, err := scanPatterns(rows)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, ErrNotFound
	}
	return patterns[0], nil
}

// ListPatternsByType returns all patterns sharing an error type, most
// frequent first.
func (s *Store) ListPatternsByType(ctx context.Context, errorType models.ErrorType) ([]*models.ErrorPattern, error) {
	query := patternSelect + ` WHERE error_type = ? ORDER BY occurrences DESC`
	rows, err := s.db.QueryContext(ctx, query, string(errorType))
	if err != nil {
		return nil, fmt.Errorf("query patterns by type: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// CountPatternsByType returns the number of distinct patterns for an error type.
func (s *Store) CountPatternsByType(ctx context.Context, errorType models.ErrorType) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM error_patterns WHERE error_type = ?`, string(errorType)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count patterns: %w", err)
	}
	return count, nil
}

// ListPatterns returns all patterns ordered by last occurrence.
func (s *Store) ListPatterns(ctx context.Context, limit int) ([]*models.ErrorPattern, error) {
	if limit <= 0 {
		limit = 100
	}
	query := patternSelect + ` ORDER BY last_seen DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

const patternSelect = `SELECT id, error_type, error_category, source_type, component_id, message_shape,
	occurrences, success_count, success_rate, recovery_strategies, successful_strategies,
	first_seen, last_seen
	FROM error_patterns`

// scanPatterns reads pattern rows into models.
func scanPatterns(rows *sql.Rows) ([]*models.ErrorPattern, error) {
	var patterns []*models.ErrorPattern
	for rows.Next() {
		p := &models.ErrorPattern{}
		var errType, category, recoveryJSON, successfulJSON string
		err := rows.Scan(
			&p.ID, &errType, &category, &p.SourceType, &p.ComponentID, &p.MessageShape,
			&p.Occurrences, &p.SuccessCount, &p.SuccessRate,
			&recoveryJSON, &successfulJSON, &p.FirstSeen, &p.LastSeen,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		p.Type = models.ErrorType(errType)
		p.Category = models.ErrorCategory(category)
		if p.RecoveryStrategies, err = unmarshalStrategies(recoveryJSON); err != nil {
			return nil, fmt.Errorf("unmarshal recovery strategies: %w", err)
		}
		if p.SuccessfulStrategies, err = unmarshalStrategies(successfulJSON); err != nil {
			return nil, fmt.Errorf("unmarshal successful strategies: %w", err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return patterns, nil
}

// unmarshalStrategies parses a JSON strategy list column.
func unmarshalStrategies(v string) ([]models.Strategy, error) {
	if v == "" {
		return nil, nil
	}
	var out []models.Strategy
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// appendUnique appends s to list if absent.
func appendUnique(list []models.Strategy, s models.Strategy) []models.Strategy {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
