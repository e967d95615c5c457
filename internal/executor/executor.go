// Package executor runs remediation plans through a per-attempt state
// machine: pending -> in_progress -> {waiting_for_user | completed |
// failed}. Every step attempt and status transition is journaled to the
// store so an attempt can be audited and resumed after a crash.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/remedy/internal/logger"
	"github.com/harrison/remedy/internal/models"
)

// AttemptStore persists recovery attempts. Satisfied by *store.Store.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, recoveryID string, plan *models.RemediationPlan, status models.RecoveryStatus) error
	UpdateAttemptStatus(ctx context.Context, recoveryID string, from, to models.RecoveryStatus) error
	FinishAttempt(ctx context.Context, recoveryID string, status models.RecoveryStatus, result *models.RecoveryResult) error
	AppendJournal(ctx context.Context, recoveryID, event, detail string) error
}

// OperationFunc re-runs the workflow operation a plan is trying to repair,
// with the remediated parameter set. Output data is merged into the result.
type OperationFunc func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)

// ExecutionContext is the mutable working state shared by the steps of one
// attempt.
type ExecutionContext struct {
	Error      *models.DetectedError
	Plan       *models.RemediationPlan
	UserInput  map[string]interface{}
	Parameters map[string]interface{}
	Output     map[string]interface{}
	Operation  OperationFunc
}

// StepHandler executes one remediation step against the attempt context.
type StepHandler func(ctx context.Context, step models.RemediationStep, ec *ExecutionContext) error

// Executor executes remediation plans. Safe for concurrent use once
// handler registration is done.
type Executor struct {
	attempts AttemptStore
	handlers map[models.StepAction]StepHandler
	logger   logger.Logger
}

// NewExecutor creates an Executor with the default handler set registered.
func NewExecutor(attempts AttemptStore, lg logger.Logger) *Executor {
	x := &Executor{
		attempts: attempts,
		handlers: make(map[models.StepAction]StepHandler),
		logger:   lg,
	}
	x.registerDefaults()
	return x
}

// RegisterHandler installs or replaces the handler for an action. Call
// before executing plans; registration is not synchronized with execution.
func (x *Executor) RegisterHandler(action models.StepAction, h StepHandler) {
	x.handlers[action] = h
}

// ExecutePlan runs the plan and returns its terminal result. The attempt is
// persisted before any step runs. Plans requiring user input transition to
// waiting_for_user immediately and return with no steps executed; the
// caller surfaces UserPrompt and later resumes via Resume.
func (x *Executor) ExecutePlan(ctx context.Context, plan *models.RemediationPlan, e *models.DetectedError, op OperationFunc) *models.RecoveryResult {
	recoveryID := uuid.NewString()
	started := time.Now()

	if err := x.attempts.CreateAttempt(ctx, recoveryID, plan, models.StatusPending); err != nil {
		x.logger.Errorf("Failed to persist recovery attempt %s: %v", recoveryID, err)
		return x.failedResult(recoveryID, plan, 0, started, fmt.Sprintf("persist attempt: %v", err))
	}
	x.journal(ctx, recoveryID, "attempt_created", fmt.Sprintf("plan %s, strategy %s, %d steps", plan.PlanID, plan.Strategy, len(plan.Steps)))

	if plan.RequiresUserInput {
		x.transition(ctx, recoveryID, models.StatusPending, models.StatusInProgress)
		x.transition(ctx, recoveryID, models.StatusInProgress, models.StatusWaitingForUser)
		result := &models.RecoveryResult{
			RecoveryID:    recoveryID,
			ErrorID:       plan.ErrorID,
			Successful:    false,
			ExecutedSteps: 0,
			TotalSteps:    len(plan.Steps),
			ErrorMessage:  "waiting for user input",
			ExecutionTime: time.Since(started),
		}
		x.journal(ctx, recoveryID, "waiting_for_user", plan.UserPrompt)
		return result
	}

	x.transition(ctx, recoveryID, models.StatusPending, models.StatusInProgress)

	ec := &ExecutionContext{
		Error:      e,
		Plan:       plan,
		Parameters: map[string]interface{}{},
		Output:     map[string]interface{}{},
		Operation:  op,
	}
	return x.run(ctx, recoveryID, plan, ec, started)
}

// Resume continues a waiting attempt with the provided user input. The
// caller re-reads the persisted plan; Resume transitions the attempt back
// to in_progress and runs the full step sequence.
func (x *Executor) Resume(ctx context.Context, recoveryID string, plan *models.RemediationPlan, e *models.DetectedError, userInput map[string]interface{}, op OperationFunc) *models.RecoveryResult {
	started := time.Now()

	if err := x.attempts.UpdateAttemptStatus(ctx, recoveryID, models.StatusWaitingForUser, models.StatusInProgress); err != nil {
		x.logger.Errorf("Cannot resume attempt %s: %v", recoveryID, err)
		return x.failedResult(recoveryID, plan, 0, started, fmt.Sprintf("resume attempt: %v", err))
	}
	x.journal(ctx, recoveryID, "resumed", "user input attached")

	ec := &ExecutionContext{
		Error:      e,
		Plan:       plan,
		UserInput:  userInput,
		Parameters: map[string]interface{}{},
		Output:     map[string]interface{}{},
		Operation:  op,
	}
	result := x.run(ctx, recoveryID, plan, ec, started)
	result.UserInputProvided = true
	return result
}

// run executes the step loop. Panics in handlers become FAILED results;
// context cancellation marks the attempt failed rather than leaving it
// in_progress forever.
func (x *Executor) run(ctx context.Context, recoveryID string, plan *models.RemediationPlan, ec *ExecutionContext, started time.Time) (result *models.RecoveryResult) {
	executed := 0

	defer func() {
		if r := recover(); r != nil {
			x.logger.Errorf("Recovered panic in attempt %s: %v", recoveryID, r)
			result = x.failedResult(recoveryID, plan, executed, started, fmt.Sprintf("panic: %v", r))
			x.finish(ctx, recoveryID, models.StatusFailed, result)
		}
	}()

	plan.SortSteps()
	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			result = x.failedResult(recoveryID, plan, executed, started, fmt.Sprintf("execution cancelled: %v", err))
			// The attempt must not stay in_progress after the caller walks
			// away, so the terminal write uses a fresh context.
			x.finish(context.WithoutCancel(ctx), recoveryID, models.StatusFailed, result)
			return result
		}

		x.journal(ctx, recoveryID, "step_started", stepLabel(step))
		err := x.dispatch(ctx, step, ec)
		if err == nil {
			executed++
			x.journal(ctx, recoveryID, "step_completed", stepLabel(step))
			continue
		}

		if step.Optional {
			x.journal(ctx, recoveryID, "optional_step_failed", fmt.Sprintf("%s: %v", stepLabel(step), err))
			x.logger.Warnf("Optional step %s failed in attempt %s: %v", step.StepID, recoveryID, err)
			continue
		}

		x.journal(ctx, recoveryID, "required_step_failed", fmt.Sprintf("%s: %v", stepLabel(step), err))
		result = x.failedResult(recoveryID, plan, executed, started, err.Error())
		x.finish(context.WithoutCancel(ctx), recoveryID, models.StatusFailed, result)
		return result
	}

	result = &models.RecoveryResult{
		RecoveryID:    recoveryID,
		ErrorID:       plan.ErrorID,
		Successful:    true,
		ExecutedSteps: executed,
		TotalSteps:    len(plan.Steps),
		OutputData:    ec.Output,
		ExecutionTime: time.Since(started),
	}
	x.finish(ctx, recoveryID, models.StatusCompleted, result)
	return result
}

// dispatch runs the handler registered for the step's action.
func (x *Executor) dispatch(ctx context.Context, step models.RemediationStep, ec *ExecutionContext) error {
	h, ok := x.handlers[step.Action]
	if !ok {
		return fmt.Errorf("no handler registered for action %s", step.Action)
	}
	return h(ctx, step, ec)
}

func (x *Executor) failedResult(recoveryID string, plan *models.RemediationPlan, executed int, started time.Time, msg string) *models.RecoveryResult {
	return &models.RecoveryResult{
		RecoveryID:    recoveryID,
		ErrorID:       plan.ErrorID,
		Successful:    false,
		ExecutedSteps: executed,
		TotalSteps:    len(plan.Steps),
		ErrorMessage:  msg,
		ExecutionTime: time.Since(started),
	}
}

// transition updates the persisted status, logging rather than failing on
// error: the in-memory execution is the source of truth for the result.
func (x *Executor) transition(ctx context.Context, recoveryID string, from, to models.RecoveryStatus) {
	if err := x.attempts.UpdateAttemptStatus(ctx, recoveryID, from, to); err != nil {
		x.logger.Warnf("Status transition %s -> %s failed for attempt %s: %v", from, to, recoveryID, err)
		return
	}
	x.journal(ctx, recoveryID, "status_changed", fmt.Sprintf("%s -> %s", from, to))
}

func (x *Executor) finish(ctx context.Context, recoveryID string, status models.RecoveryStatus, result *models.RecoveryResult) {
	if err := x.attempts.FinishAttempt(ctx, recoveryID, status, result); err != nil {
		x.logger.Warnf("Failed to finalize attempt %s as %s: %v", recoveryID, status, err)
	}
	x.journal(ctx, recoveryID, "finished", fmt.Sprintf("status=%s successful=%t executed=%d/%d",
		status, result.Successful, result.ExecutedSteps, result.TotalSteps))
}

func (x *Executor) journal(ctx context.Context, recoveryID, event, detail string) {
	if err := x.attempts.AppendJournal(ctx, recoveryID, event, detail); err != nil {
		x.logger.Tracef("Journal write failed for attempt %s: %v", recoveryID, err)
	}
}

func stepLabel(step models.RemediationStep) string {
	return fmt.Sprintf("step %d (%s)", step.Order, step.Action)
}
