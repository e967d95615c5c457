package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/remedy/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	s := newTestStore(t)

	version, err := s.GetLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// Re-applying is a no-op.
	require.NoError(t, s.ApplyMigrations(context.Background()))
	version, err = s.GetLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestLogError_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &models.DetectedError{
		Type:        models.ErrorTypeMissingInput,
		Category:    models.CategoryInputGap,
		Severity:    models.SeverityMedium,
		SourceType:  "workflow_step",
		StepID:      "step-3",
		ComponentID: "report-generator",
		Message:     "missing required fields: budget",
		Details:     map[string]interface{}{"missingFields": []interface{}{"budget"}},
		Recoverable: true,
		DetectedAt:  time.Now().UTC(),
	}

	require.NoError(t, s.LogError(ctx, e))
	assert.NotEmpty(t, e.ID, "LogError should assign an identifier")

	got, err := s.GetError(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, e.Category, got.Category)
	assert.Equal(t, e.Message, got.Message)
	assert.Equal(t, e.ComponentID, got.ComponentID)
	assert.True(t, got.Recoverable)
	require.Contains(t, got.Details, "missingFields")
}

func TestGetError_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetError(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordOutcome_SuccessRateIsExactRatio(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := PatternKey{
		Type:         models.ErrorTypeTimeout,
		Category:     models.CategoryRecoverable,
		SourceType:   "api",
		MessageShape: "request to <*> timed out after <NUM>ms",
	}

	// 3 successes, 2 failures -> 3/5 exactly.
	outcomes := []bool{true, false, true, true, false}
	var p *models.ErrorPattern
	var err error
	for _, ok := range outcomes {
		p, err = s.RecordOutcome(ctx, key, ok, models.StrategyBackoffRetry)
		require.NoError(t, err)
	}

	assert.Equal(t, 5, p.Occurrences)
	assert.Equal(t, 3, p.SuccessCount)
	assert.InDelta(t, 0.6, p.SuccessRate, 1e-9)

	// Round-trip: read back recovers the same value.
	got, err := s.GetPattern(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Occurrences, got.Occurrences)
	assert.InDelta(t, 0.6, got.SuccessRate, 1e-9)
}

func TestRecordOutcome_StrategyUnionOnSuccessOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := PatternKey{
		Type:         models.ErrorTypeSchemaViolation,
		Category:     models.CategoryRecoverable,
		SourceType:   "workflow_step",
		MessageShape: "schema validation failed for field <*>",
	}

	p, err := s.RecordOutcome(ctx, key, false, models.StrategyRetry)
	require.NoError(t, err)
	assert.Empty(t, p.SuccessfulStrategies, "failed outcome must not record a strategy")

	p, err = s.RecordOutcome(ctx, key, true, models.StrategyTransformData)
	require.NoError(t, err)
	assert.Equal(t, []models.Strategy{models.StrategyTransformData}, p.SuccessfulStrategies)

	// Repeated success with the same strategy does not duplicate it.
	p, err = s.RecordOutcome(ctx, key, true, models.StrategyTransformData)
	require.NoError(t, err)
	assert.Len(t, p.SuccessfulStrategies, 1)
}

func TestRecordOutcome_ConcurrentWritersLoseNoCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := PatternKey{
		Type:         models.ErrorTypeAPIFailure,
		Category:     models.CategoryRecoverable,
		SourceType:   "api",
		MessageShape: "upstream returned <NUM>",
	}

	const writers = 8
	done := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func(ok bool) {
			_, err := s.RecordOutcome(ctx, key, ok, models.StrategyRetry)
			done <- err
		}(i%2 == 0)
	}
	for i := 0; i < writers; i++ {
		require.NoError(t, <-done)
	}

	patterns, err := s.FindPatterns(ctx, key, 1)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, writers, patterns[0].Occurrences)
	assert.Equal(t, writers/2, patterns[0].SuccessCount)
}

func TestFindPatterns_RanksExactShapeFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := PatternKey{
		Type:       models.ErrorTypeTimeout,
		Category:   models.CategoryRecoverable,
		SourceType: "api",
	}

	other := base
	other.MessageShape = "other shape"
	for i := 0; i < 5; i++ {
		_, err := s.RecordOutcome(ctx, other, true, models.StrategyRetry)
		require.NoError(t, err)
	}

	exact := base
	exact.MessageShape = "exact shape"
	_, err := s.RecordOutcome(ctx, exact, false, "")
	require.NoError(t, err)

	patterns, err := s.FindPatterns(ctx, exact, 5)
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, "exact shape", patterns[0].MessageShape,
		"exact message shape should rank above higher success rate")
}

func TestCountPatternsByType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, shape := range []string{"a", "b", "c"} {
		key := PatternKey{
			Type:         models.ErrorTypeSchemaViolation,
			Category:     models.CategoryRecoverable,
			SourceType:   "workflow_step",
			MessageShape: shape,
		}
		_, err := s.RecordOutcome(ctx, key, false, "")
		require.NoError(t, err)
	}

	n, err := s.CountPatternsByType(ctx, models.ErrorTypeSchemaViolation)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.CountPatternsByType(ctx, models.ErrorTypeTimeout)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testPlan(errorID string) *models.RemediationPlan {
	return &models.RemediationPlan{
		PlanID:   "plan-1",
		ErrorID:  errorID,
		Strategy: models.StrategyBackoffRetry,
		Steps: []models.RemediationStep{
			{StepID: "s1", Action: models.ActionWait, Order: 1, Description: "wait 1000ms"},
			{StepID: "s2", Action: models.ActionRetryExecution, Order: 2, Description: "retry"},
		},
		Confidence: 0.85,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestAttemptLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	plan := testPlan("err-1")
	require.NoError(t, s.CreateAttempt(ctx, "rec-1", plan, models.StatusPending))

	a, err := s.GetAttempt(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, a.Status)
	assert.Equal(t, 2, a.TotalSteps)
	assert.Equal(t, "err-1", a.ErrorID)
	require.Len(t, a.Plan.Steps, 2)

	require.NoError(t, s.UpdateAttemptStatus(ctx, "rec-1", models.StatusPending, models.StatusInProgress))

	result := &models.RecoveryResult{
		RecoveryID:    "rec-1",
		ErrorID:       "err-1",
		Successful:    true,
		ExecutedSteps: 2,
		TotalSteps:    2,
		ExecutionTime: 1250 * time.Millisecond,
	}
	require.NoError(t, s.FinishAttempt(ctx, "rec-1", models.StatusCompleted, result))

	a, err = s.GetAttempt(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, a.Status)
	assert.True(t, a.Successful)
	assert.Equal(t, 2, a.ExecutedSteps)
	assert.Equal(t, 1250*time.Millisecond, a.ExecutionTime)
}

func TestUpdateAttemptStatus_RejectsIllegalTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAttempt(ctx, "rec-2", testPlan("err-2"), models.StatusPending))

	err := s.UpdateAttemptStatus(ctx, "rec-2", models.StatusPending, models.StatusWaitingForUser)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Conditional update: claiming a transition from the wrong current state fails.
	err = s.UpdateAttemptStatus(ctx, "rec-2", models.StatusInProgress, models.StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAttachUserInput_AndResume(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAttempt(ctx, "rec-3", testPlan("err-3"), models.StatusPending))
	require.NoError(t, s.UpdateAttemptStatus(ctx, "rec-3", models.StatusPending, models.StatusInProgress))
	require.NoError(t, s.UpdateAttemptStatus(ctx, "rec-3", models.StatusInProgress, models.StatusWaitingForUser))

	require.NoError(t, s.AttachUserInput(ctx, "rec-3", map[string]interface{}{"budget": 5000}))
	require.NoError(t, s.UpdateAttemptStatus(ctx, "rec-3", models.StatusWaitingForUser, models.StatusInProgress))

	a, err := s.GetAttempt(ctx, "rec-3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, a.Status)
	require.Contains(t, a.UserInput, "budget")
}

func TestJournal_AppendAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAttempt(ctx, "rec-4", testPlan("err-4"), models.StatusPending))
	require.NoError(t, s.AppendJournal(ctx, "rec-4", "status_transition", "pending -> in_progress"))
	require.NoError(t, s.AppendJournal(ctx, "rec-4", "step_succeeded", "step s1"))

	entries, err := s.GetJournal(ctx, "rec-4")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "status_transition", entries[0].Event)
	assert.Equal(t, "step_succeeded", entries[1].Event)
}

func TestSuggestionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sg := &models.AdaptationSuggestion{
		SuggestionType: "validation_rule",
		Suggestion:     "require budget on report requests",
		Rationale:      "budget was missing in 12 of 15 report failures",
		Confidence:     0.8,
	}
	require.NoError(t, s.InsertSuggestion(ctx, sg))
	assert.NotEmpty(t, sg.ID)
	assert.Equal(t, models.SuggestionSuggested, sg.Status)

	list, err := s.ListSuggestions(ctx, models.SuggestionSuggested, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.UpdateSuggestionStatus(ctx, sg.ID, models.SuggestionApproved))

	got, err := s.GetSuggestion(ctx, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionApproved, got.Status)

	list, err = s.ListSuggestions(ctx, models.SuggestionSuggested, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = s.UpdateSuggestionStatus(ctx, sg.ID, models.SuggestionStatus("bogus"))
	assert.Error(t, err)

	err = s.UpdateSuggestionStatus(ctx, "missing", models.SuggestionApproved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDefaultPlan_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetDefaultPlan(ctx, "pattern-1")
	assert.ErrorIs(t, err, ErrNotFound)

	plan := testPlan("err-5")
	require.NoError(t, s.SaveDefaultPlan(ctx, "pattern-1", plan))

	got, err := s.GetDefaultPlan(ctx, "pattern-1")
	require.NoError(t, err)
	assert.Equal(t, plan.Strategy, got.Strategy)
	require.Len(t, got.Steps, 2)

	// Replacing is allowed.
	plan.Strategy = models.StrategyUserInput
	require.NoError(t, s.SaveDefaultPlan(ctx, "pattern-1", plan))
	got, err = s.GetDefaultPlan(ctx, "pattern-1")
	require.NoError(t, err)
	assert.Equal(t, models.StrategyUserInput, got.Strategy)
}
