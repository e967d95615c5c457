package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/remedy/internal/config"
	"github.com/harrison/remedy/internal/logger"
	"github.com/harrison/remedy/internal/models"
	"github.com/harrison/remedy/internal/store"
)

type fakePlanStore struct {
	plans map[string]*models.RemediationPlan
}

func (f *fakePlanStore) GetDefaultPlan(_ context.Context, patternID string) (*models.RemediationPlan, error) {
	if p, ok := f.plans[patternID]; ok {
		return p, nil
	}
	return nil, store.ErrNotFound
}

type fakePlanAdvisor struct {
	advice *models.PlanAdvice
	err    error
	calls  int
}

func (f *fakePlanAdvisor) AdviseClassification(context.Context, *models.DetectedError, *models.ErrorClassification) (*models.ClassificationAdvice, error) {
	return nil, errors.New("not implemented")
}

func (f *fakePlanAdvisor) AdvisePlan(context.Context, *models.DetectedError, *models.ErrorClassification, *models.RemediationPlan) (*models.PlanAdvice, error) {
	f.calls++
	return f.advice, f.err
}

func (f *fakePlanAdvisor) AdviseImprovements(context.Context, []*models.ErrorPattern, *models.DetectedError) (*models.ImprovementAdvice, error) {
	return nil, errors.New("not implemented")
}

func testConfig() config.PlannerConfig {
	return config.PlannerConfig{AdvisorTrigger: 0.8, DefaultWait: time.Second}
}

func timeoutClassification() (*models.ErrorClassification, *models.DetectedError) {
	e := &models.DetectedError{
		ID:          "err-1",
		Type:        models.ErrorTypeTimeout,
		Category:    models.CategoryRecoverable,
		Severity:    models.SeverityHigh,
		SourceType:  "workflow",
		Message:     "operation timed out",
		Recoverable: true,
	}
	cls := &models.ErrorClassification{
		ErrorID:             e.ID,
		Type:                e.Type,
		Category:            e.Category,
		SourceType:          e.SourceType,
		Message:             e.Message,
		Recoverable:         true,
		Strategies:          []models.Strategy{models.StrategyBackoffRetry},
		RecommendedStrategy: models.StrategyBackoffRetry,
		Confidence:          0.85,
	}
	return cls, e
}

func TestCreatePlan_BackoffRetrySteps(t *testing.T) {
	p := NewPlanner(&fakePlanStore{}, nil, testConfig(), logger.Discard())
	cls, e := timeoutClassification()

	plan := p.CreatePlan(context.Background(), cls, e)

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, models.ActionWait, plan.Steps[0].Action)
	assert.Equal(t, int64(1000), plan.Steps[0].Parameters["duration_ms"])
	assert.Equal(t, models.ActionRetryExecution, plan.Steps[1].Action)
	assert.Equal(t, "err-1", plan.ErrorID)
	assert.NotEmpty(t, plan.PlanID)
	assert.False(t, plan.RequiresUserInput)
}

func TestCreatePlan_TimeoutRetryIncludesWait(t *testing.T) {
	p := NewPlanner(&fakePlanStore{}, nil, testConfig(), logger.Discard())
	cls, e := timeoutClassification()
	cls.RecommendedStrategy = models.StrategyRetry
	cls.Strategies = []models.Strategy{models.StrategyRetry, models.StrategyIncreaseTimeout}

	plan := p.CreatePlan(context.Background(), cls, e)

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, models.ActionWait, plan.Steps[0].Action)
	assert.Equal(t, int64(1000), plan.Steps[0].Parameters["duration_ms"])
	assert.Equal(t, models.ActionRetryExecution, plan.Steps[1].Action)
}

func TestCreatePlan_UserInputSteps(t *testing.T) {
	p := NewPlanner(&fakePlanStore{}, nil, testConfig(), logger.Discard())

	e := &models.DetectedError{
		ID:         "err-2",
		Type:       models.ErrorTypeMissingInput,
		Category:   models.CategoryInputGap,
		SourceType: "workflow",
		Message:    "missing required fields: budget",
		Details:    map[string]interface{}{"missing_fields": []string{"budget"}},
	}
	cls := &models.ErrorClassification{
		ErrorID:             e.ID,
		Type:                e.Type,
		Category:            e.Category,
		RecommendedStrategy: models.StrategyUserInput,
		Confidence:          0.9,
		RequiresUserInput:   true,
		SuggestedPrompt:     "Please provide values for the missing fields: budget",
	}

	plan := p.CreatePlan(context.Background(), cls, e)

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, models.ActionRequestUserInput, plan.Steps[0].Action)
	assert.Equal(t, cls.SuggestedPrompt, plan.Steps[0].Parameters["prompt"])
	assert.Equal(t, models.ActionRetryWithUserInput, plan.Steps[1].Action)
	assert.True(t, plan.RequiresUserInput)
	assert.Equal(t, cls.SuggestedPrompt, plan.UserPrompt)
}

func TestCreatePlan_DefaultValueSubstitution(t *testing.T) {
	p := NewPlanner(&fakePlanStore{}, nil, testConfig(), logger.Discard())

	e := &models.DetectedError{
		ID:      "err-3",
		Type:    models.ErrorTypeNullValue,
		Details: map[string]interface{}{"missing_fields": []string{"budget", "start_date"}},
	}
	cls := &models.ErrorClassification{
		ErrorID:             e.ID,
		RecommendedStrategy: models.StrategyDefaultValue,
		Confidence:          0.85,
	}

	plan := p.CreatePlan(context.Background(), cls, e)

	require.Len(t, plan.Steps, 2)
	sub := plan.Steps[0]
	assert.Equal(t, models.ActionSubstituteDefault, sub.Action)
	assert.Equal(t, 0, sub.Parameters["budget"])
	if _, err := time.Parse(time.RFC3339, sub.Parameters["start_date"].(string)); err != nil {
		t.Errorf("Expected date-like default for start_date, got %v", sub.Parameters["start_date"])
	}
}

func TestCreatePlan_ResolveContradictionSteps(t *testing.T) {
	p := NewPlanner(&fakePlanStore{}, nil, testConfig(), logger.Discard())

	cls := &models.ErrorClassification{
		ErrorID:             "err-4",
		RecommendedStrategy: models.StrategyResolveContradiction,
		Confidence:          0.85,
	}
	plan := p.CreatePlan(context.Background(), cls, &models.DetectedError{ID: "err-4"})

	require.Len(t, plan.Steps, 3)
	assert.Equal(t, models.ActionAnalyzeContradiction, plan.Steps[0].Action)
	assert.Equal(t, models.ActionResolveValues, plan.Steps[1].Action)
	assert.Equal(t, models.ActionRetryExecution, plan.Steps[2].Action)
	for i, s := range plan.Steps {
		assert.Equal(t, i+1, s.Order)
	}
}

func TestCreatePlan_StoredDefaultPlanReused(t *testing.T) {
	stored := &models.RemediationPlan{
		PlanID:   "stored-plan",
		Strategy: models.StrategyIncreaseTimeout,
		Steps: []models.RemediationStep{
			{StepID: "s1", Action: models.ActionModifyParameters, Order: 1, Description: "bump timeout"},
			{StepID: "s2", Action: models.ActionRetryExecution, Order: 2, Description: "retry"},
		},
		Confidence:           0.9,
		EstimatedSuccessRate: 0.88,
	}
	plans := &fakePlanStore{plans: map[string]*models.RemediationPlan{"pat-1": stored}}
	p := NewPlanner(plans, nil, testConfig(), logger.Discard())

	cls, e := timeoutClassification()
	cls.PatternID = "pat-1"

	plan := p.CreatePlan(context.Background(), cls, e)

	assert.NotEqual(t, "stored-plan", plan.PlanID)
	assert.Equal(t, "err-1", plan.ErrorID)
	assert.Equal(t, models.StrategyIncreaseTimeout, plan.Strategy)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, 0.88, plan.EstimatedSuccessRate)
}

func TestCreatePlan_UnknownPatternFallsThrough(t *testing.T) {
	p := NewPlanner(&fakePlanStore{}, nil, testConfig(), logger.Discard())

	cls, e := timeoutClassification()
	cls.PatternID = "pat-unknown"

	plan := p.CreatePlan(context.Background(), cls, e)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, models.ActionWait, plan.Steps[0].Action)
}

func TestCreatePlan_AdvisorReplacesLowConfidencePlan(t *testing.T) {
	adv := &fakePlanAdvisor{advice: &models.PlanAdvice{
		Steps: []models.RemediationStep{
			{Action: models.ActionAnalyzeContradiction, Description: "inspect", Order: 1},
			{Action: models.ActionResolveValues, Description: "pick", Order: 2, Optional: true},
			{Action: models.ActionRetryExecution, Description: "retry", Order: 3},
		},
		Confidence: 0.82,
	}}
	p := NewPlanner(&fakePlanStore{}, adv, testConfig(), logger.Discard())

	e := &models.DetectedError{ID: "err-5", Type: models.ErrorTypeContradictoryValues}
	cls := &models.ErrorClassification{
		ErrorID:             e.ID,
		Type:                e.Type,
		RecommendedStrategy: models.StrategyUseMostRecent,
		Confidence:          0.6,
	}

	plan := p.CreatePlan(context.Background(), cls, e)

	require.Len(t, plan.Steps, 3)
	assert.Equal(t, 0.82, plan.Confidence)
	require.NotNil(t, plan.FallbackPlan)
	assert.Equal(t, models.StrategyUseMostRecent, plan.FallbackPlan.Strategy)
	for _, s := range plan.Steps {
		assert.NotEmpty(t, s.StepID)
	}
}

func TestCreatePlan_InvalidAdvisorStepsDiscarded(t *testing.T) {
	adv := &fakePlanAdvisor{advice: &models.PlanAdvice{
		Steps:      []models.RemediationStep{{Action: "summon_wizard", Description: "??", Order: 1}},
		Confidence: 0.99,
	}}
	p := NewPlanner(&fakePlanStore{}, adv, testConfig(), logger.Discard())

	e := &models.DetectedError{ID: "err-6", Type: models.ErrorTypeLowConfidence}
	cls := &models.ErrorClassification{
		ErrorID:             e.ID,
		Type:                e.Type,
		RecommendedStrategy: models.StrategyRetry,
		Confidence:          0.65,
	}

	plan := p.CreatePlan(context.Background(), cls, e)

	assert.Nil(t, plan.FallbackPlan)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, models.ActionRetryExecution, plan.Steps[0].Action)
}

func TestCreatePlan_AdvisorFailureKeepsDeterministicPlan(t *testing.T) {
	adv := &fakePlanAdvisor{err: errors.New("advisor down")}
	p := NewPlanner(&fakePlanStore{}, adv, testConfig(), logger.Discard())

	e := &models.DetectedError{ID: "err-7", Type: models.ErrorTypeLowConfidence}
	cls := &models.ErrorClassification{
		ErrorID:             e.ID,
		Type:                e.Type,
		RecommendedStrategy: models.StrategyRetry,
		Confidence:          0.65,
	}

	plan := p.CreatePlan(context.Background(), cls, e)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, models.ActionRetryExecution, plan.Steps[0].Action)
	assert.Equal(t, 1, adv.calls)
}

func TestCreatePlan_UserInputPlanSkipsAdvisor(t *testing.T) {
	adv := &fakePlanAdvisor{}
	p := NewPlanner(&fakePlanStore{}, adv, testConfig(), logger.Discard())

	cls := &models.ErrorClassification{
		ErrorID:             "err-8",
		RecommendedStrategy: models.StrategyUserInput,
		Confidence:          0.6,
		RequiresUserInput:   true,
	}
	p.CreatePlan(context.Background(), cls, &models.DetectedError{ID: "err-8"})

	assert.Equal(t, 0, adv.calls)
}

func TestInferDefaultValue(t *testing.T) {
	cases := []struct {
		field string
		check func(v interface{}) bool
	}{
		{"created_at", func(v interface{}) bool { _, err := time.Parse(time.RFC3339, v.(string)); return err == nil }},
		{"item_count", func(v interface{}) bool { return v == 0 }},
		{"budget", func(v interface{}) bool { return v == 0 }},
		{"is_active", func(v interface{}) bool { return v == true }},
		{"user_id", func(v interface{}) bool { s, ok := v.(string); return ok && len(s) == 36 }},
		{"tags", func(v interface{}) bool { a, ok := v.([]interface{}); return ok && len(a) == 0 }},
		{"display_name", func(v interface{}) bool { return v == "unspecified" }},
		{"misc", func(v interface{}) bool { return v == "" }},
	}
	for _, tc := range cases {
		if v := InferDefaultValue(tc.field); !tc.check(v) {
			t.Errorf("InferDefaultValue(%q) = %v, failed check", tc.field, v)
		}
	}
}

func TestInferCoercion(t *testing.T) {
	if got := InferCoercion("number", "string"); got != "toNumber" {
		t.Errorf("Expected toNumber, got %q", got)
	}
	if got := InferCoercion("date", "string"); got != "toDate" {
		t.Errorf("Expected toDate, got %q", got)
	}
	if got := InferCoercion("string", "string"); got != "" {
		t.Errorf("Expected no coercion for matching types, got %q", got)
	}
}
