// Package learning closes the feedback loop: every recovery result updates
// the durable pattern statistics, and accumulations of similar failures
// trigger advisory improvement analysis.
package learning

import (
	"context"
	"fmt"

	"github.com/harrison/remedy/internal/advisor"
	"github.com/harrison/remedy/internal/config"
	"github.com/harrison/remedy/internal/logger"
	"github.com/harrison/remedy/internal/models"
	"github.com/harrison/remedy/internal/store"
)

// OutcomeStore persists patterns, default plans and suggestions. Satisfied
// by *store.Store.
type OutcomeStore interface {
	RecordOutcome(ctx context.Context, key store.PatternKey, successful bool, strategy models.Strategy) (*models.ErrorPattern, error)
	SaveDefaultPlan(ctx context.Context, patternID string, plan *models.RemediationPlan) error
	CountPatternsByType(ctx context.Context, errorType models.ErrorType) (int, error)
	ListPatternsByType(ctx context.Context, errorType models.ErrorType) ([]*models.ErrorPattern, error)
	InsertSuggestion(ctx context.Context, sg *models.AdaptationSuggestion) error
}

// Adapter updates pattern statistics from recovery outcomes and proposes
// system improvements when patterns accumulate. Safe for concurrent use;
// the statistics merge is atomic at the store layer.
type Adapter struct {
	store  OutcomeStore
	adv    advisor.Advisor
	cfg    config.LearningConfig
	logger logger.Logger
}

// NewAdapter creates an Adapter. adv may be nil to disable improvement
// analysis.
func NewAdapter(s OutcomeStore, adv advisor.Advisor, cfg config.LearningConfig, lg logger.Logger) *Adapter {
	return &Adapter{store: s, adv: adv, cfg: cfg, logger: lg}
}

// ProcessRecoveryResult folds one recovery outcome into the learned state:
// the pattern keyed by the error's shape gains an occurrence, a successful
// attempt unions the used strategy and refreshes the pattern's default
// plan, and enough patterns of one error type trigger improvement analysis.
func (a *Adapter) ProcessRecoveryResult(ctx context.Context, result *models.RecoveryResult, e *models.DetectedError, plan *models.RemediationPlan) error {
	key := store.PatternKey{
		Type:         e.Type,
		Category:     e.Category,
		SourceType:   e.SourceType,
		ComponentID:  e.ComponentID,
		MessageShape: models.MessageShape(e.Message),
	}

	pattern, err := a.store.RecordOutcome(ctx, key, result.Successful, plan.Strategy)
	if err != nil {
		return fmt.Errorf("record recovery outcome: %w", err)
	}
	a.logger.Debugf("Pattern %s now at %d occurrences, success rate %.2f",
		pattern.ID, pattern.Occurrences, pattern.SuccessRate)

	if result.Successful {
		if err := a.store.SaveDefaultPlan(ctx, pattern.ID, plan); err != nil {
			a.logger.Warnf("Failed to save default plan for pattern %s: %v", pattern.ID, err)
		}
	}

	a.analyzeImprovements(ctx, e)
	return nil
}

// analyzeImprovements asks the advisor for durable system improvements once
// enough distinct patterns share the error type. Failures are logged and
// swallowed; suggestion generation must never fail the learning path.
func (a *Adapter) analyzeImprovements(ctx context.Context, e *models.DetectedError) {
	if a.adv == nil {
		return
	}

	count, err := a.store.CountPatternsByType(ctx, e.Type)
	if err != nil {
		a.logger.Warnf("Pattern count failed for type %s: %v", e.Type, err)
		return
	}
	if count < a.cfg.MinPatternsForSuggestions {
		return
	}

	patterns, err := a.store.ListPatternsByType(ctx, e.Type)
	if err != nil {
		a.logger.Warnf("Pattern listing failed for type %s: %v", e.Type, err)
		return
	}

	advice, err := a.adv.AdviseImprovements(ctx, patterns, e)
	if err != nil {
		a.logger.Debugf("Improvement advisor unavailable for type %s: %v", e.Type, err)
		return
	}

	for _, s := range advice.Suggestions {
		sg := &models.AdaptationSuggestion{
			ErrorPatternID:           patternIDForSuggestion(patterns, s.TargetID),
			SuggestionType:           s.SuggestionType,
			TargetID:                 s.TargetID,
			Suggestion:               s.Suggestion,
			Rationale:                s.Rationale,
			Confidence:               s.Confidence,
			ImplementationDifficulty: s.ImplementationDifficulty,
			PotentialImpact:          s.PotentialImpact,
			Status:                   models.SuggestionSuggested,
		}
		if err := a.store.InsertSuggestion(ctx, sg); err != nil {
			a.logger.Warnf("Failed to persist adaptation suggestion: %v", err)
			continue
		}
		a.logger.Infof("Adaptation suggestion %s recorded for %s: %s", sg.ID, e.Type, s.Suggestion)
	}
}

// patternIDForSuggestion links a suggestion to a concrete pattern when the
// advisor named one, otherwise to the first accumulated pattern.
func patternIDForSuggestion(patterns []*models.ErrorPattern, targetID string) string {
	for _, p := range patterns {
		if p.ID == targetID {
			return p.ID
		}
	}
	if len(patterns) > 0 {
		return patterns[0].ID
	}
	return ""
}
