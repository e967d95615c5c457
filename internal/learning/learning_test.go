package learning

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/remedy/internal/config"
	"github.com/harrison/remedy/internal/logger"
	"github.com/harrison/remedy/internal/models"
	"github.com/harrison/remedy/internal/store"
)

type fakeImprovementAdvisor struct {
	advice *models.ImprovementAdvice
	err    error
	calls  int
}

func (f *fakeImprovementAdvisor) AdviseClassification(context.Context, *models.DetectedError, *models.ErrorClassification) (*models.ClassificationAdvice, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeImprovementAdvisor) AdvisePlan(context.Context, *models.DetectedError, *models.ErrorClassification, *models.RemediationPlan) (*models.PlanAdvice, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeImprovementAdvisor) AdviseImprovements(context.Context, []*models.ErrorPattern, *models.DetectedError) (*models.ImprovementAdvice, error) {
	f.calls++
	return f.advice, f.err
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func schemaError(field string) *models.DetectedError {
	return &models.DetectedError{
		ID:          "err-" + field,
		Type:        models.ErrorTypeSchemaViolation,
		Category:    models.CategoryRecoverable,
		Severity:    models.SeverityMedium,
		SourceType:  "workflow",
		ComponentID: "intake",
		Message:     fmt.Sprintf("schema validation failed: field %s out of range 42", field),
		Recoverable: true,
	}
}

func retryPlan(errorID string) *models.RemediationPlan {
	return &models.RemediationPlan{
		PlanID:   "plan-" + errorID,
		ErrorID:  errorID,
		Strategy: models.StrategyTransformData,
		Steps: []models.RemediationStep{
			{StepID: "s1", Action: models.ActionTransformData, Order: 1},
			{StepID: "s2", Action: models.ActionRetryExecution, Order: 2},
		},
	}
}

func result(errorID string, successful bool) *models.RecoveryResult {
	return &models.RecoveryResult{
		RecoveryID:    "rec-" + errorID,
		ErrorID:       errorID,
		Successful:    successful,
		ExecutedSteps: 2,
		TotalSteps:    2,
	}
}

func TestProcessRecoveryResult_AccumulatesPattern(t *testing.T) {
	s := newTestStore(t)
	a := NewAdapter(s, nil, config.LearningConfig{MinPatternsForSuggestions: 3}, logger.Discard())
	ctx := context.Background()

	e := schemaError("budget")
	// Same shape, different literals: all three collapse into one pattern.
	for i, msg := range []string{
		"schema validation failed: field budget out of range 42",
		"schema validation failed: field budget out of range 17",
		"schema validation failed: field budget out of range 256",
	} {
		dup := *e
		dup.ID = fmt.Sprintf("err-%d", i)
		dup.Message = msg
		successful := i != 1
		require.NoError(t, a.ProcessRecoveryResult(ctx, result(dup.ID, successful), &dup, retryPlan(dup.ID)))
	}

	patterns, err := s.ListPatternsByType(ctx, models.ErrorTypeSchemaViolation)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, 3, p.Occurrences)
	assert.InDelta(t, 2.0/3.0, p.SuccessRate, 1e-9)
	assert.Contains(t, p.RecoveryStrategies, models.StrategyTransformData)
	assert.Contains(t, p.SuccessfulStrategies, models.StrategyTransformData)
}

func TestProcessRecoveryResult_SavesDefaultPlanOnSuccess(t *testing.T) {
	s := newTestStore(t)
	a := NewAdapter(s, nil, config.LearningConfig{MinPatternsForSuggestions: 3}, logger.Discard())
	ctx := context.Background()

	e := schemaError("budget")
	plan := retryPlan(e.ID)
	require.NoError(t, a.ProcessRecoveryResult(ctx, result(e.ID, true), e, plan))

	patterns, err := s.ListPatternsByType(ctx, models.ErrorTypeSchemaViolation)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	stored, err := s.GetDefaultPlan(ctx, patterns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StrategyTransformData, stored.Strategy)
	require.Len(t, stored.Steps, 2)
}

func TestProcessRecoveryResult_NoDefaultPlanOnFailure(t *testing.T) {
	s := newTestStore(t)
	a := NewAdapter(s, nil, config.LearningConfig{MinPatternsForSuggestions: 3}, logger.Discard())
	ctx := context.Background()

	e := schemaError("budget")
	require.NoError(t, a.ProcessRecoveryResult(ctx, result(e.ID, false), e, retryPlan(e.ID)))

	patterns, err := s.ListPatternsByType(ctx, models.ErrorTypeSchemaViolation)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	_, err = s.GetDefaultPlan(ctx, patterns[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestImprovementAnalysis_TriggersAtThreshold(t *testing.T) {
	s := newTestStore(t)
	adv := &fakeImprovementAdvisor{advice: &models.ImprovementAdvice{
		Suggestions: []models.SuggestedImprovement{{
			SuggestionType:           "validation_rule",
			Suggestion:               "Require budget at intake",
			Rationale:                "Recurring missing budget",
			Confidence:               0.8,
			ImplementationDifficulty: "low",
			PotentialImpact:          "high",
		}},
	}}
	a := NewAdapter(s, adv, config.LearningConfig{MinPatternsForSuggestions: 3}, logger.Discard())
	ctx := context.Background()

	// Three distinct fields make three distinct patterns of one error type.
	for _, field := range []string{"budget", "deadline", "owner"} {
		e := schemaError(field)
		require.NoError(t, a.ProcessRecoveryResult(ctx, result(e.ID, true), e, retryPlan(e.ID)))
	}

	// The first two results are below the pattern threshold.
	assert.Equal(t, 1, adv.calls)

	suggestions, err := s.ListSuggestions(ctx, models.SuggestionSuggested, 10)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "Require budget at intake", suggestions[0].Suggestion)
	assert.Equal(t, models.SuggestionSuggested, suggestions[0].Status)
	assert.NotEmpty(t, suggestions[0].ErrorPatternID)
}

func TestImprovementAnalysis_AdvisorFailureDoesNotFailLearning(t *testing.T) {
	s := newTestStore(t)
	adv := &fakeImprovementAdvisor{err: errors.New("advisor down")}
	a := NewAdapter(s, adv, config.LearningConfig{MinPatternsForSuggestions: 1}, logger.Discard())
	ctx := context.Background()

	e := schemaError("budget")
	err := a.ProcessRecoveryResult(ctx, result(e.ID, true), e, retryPlan(e.ID))
	require.NoError(t, err)

	suggestions, err := s.ListSuggestions(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestMessageShape(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"field budget out of range 42", "field budget out of range *"},
		{"field budget out of range 17", "field budget out of range *"},
		{"error for id 0b06cb8b-92c2-4a23-a0d5-c2d146c39f68", "error for id *"},
		{"timed out at 2026-07-01T12:00:00Z after 30s", "timed out at * after *s"},
		{"no literals here", "no literals here"},
	}
	for _, tc := range cases {
		if got := models.MessageShape(tc.in); got != tc.out {
			t.Errorf("MessageShape(%q) = %q, expected %q", tc.in, got, tc.out)
		}
	}
}
