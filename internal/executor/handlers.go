package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrison/remedy/internal/models"
)

// registerDefaults installs the built-in step handlers. Callers override
// individual actions (typically retry_execution) to wire in the real
// workflow operation.
func (x *Executor) registerDefaults() {
	x.handlers[models.ActionWait] = handleWait
	x.handlers[models.ActionRetryExecution] = handleRetry
	x.handlers[models.ActionRetryWithUserInput] = handleRetryWithUserInput
	x.handlers[models.ActionRequestUserInput] = handleRequestUserInput
	x.handlers[models.ActionSubstituteDefault] = mergeIntoParameters
	x.handlers[models.ActionModifyParameters] = mergeIntoParameters
	x.handlers[models.ActionTransformData] = mergeIntoParameters
	x.handlers[models.ActionAnalyzeContradiction] = handleAnalyzeContradiction
	x.handlers[models.ActionResolveValues] = handleResolveValues
	x.handlers[models.ActionFindAlternative] = handleFindAlternative
	x.handlers[models.ActionExecuteAlternative] = handleRetry
	x.handlers[models.ActionLogError] = x.handleLogError
}

// handleWait blocks for the step's duration_ms, honoring cancellation.
func handleWait(ctx context.Context, step models.RemediationStep, _ *ExecutionContext) error {
	d := durationMS(step.Parameters)
	if d <= 0 {
		return fmt.Errorf("wait step %s has no positive duration_ms", step.StepID)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleRetry re-runs the wired operation with the accumulated parameters.
// Without a wired operation the step is a recorded no-op so plans remain
// executable in isolation.
func handleRetry(ctx context.Context, step models.RemediationStep, ec *ExecutionContext) error {
	if ec.Operation == nil {
		ec.Output["retry_requested"] = true
		return nil
	}
	out, err := ec.Operation(ctx, ec.Parameters)
	if err != nil {
		return fmt.Errorf("operation retry failed: %w", err)
	}
	for k, v := range out {
		ec.Output[k] = v
	}
	return nil
}

// handleRetryWithUserInput merges the attached user input into the
// parameter set before retrying.
func handleRetryWithUserInput(ctx context.Context, step models.RemediationStep, ec *ExecutionContext) error {
	if len(ec.UserInput) == 0 {
		return errors.New("no user input attached to attempt")
	}
	for k, v := range ec.UserInput {
		ec.Parameters[k] = v
	}
	return handleRetry(ctx, step, ec)
}

// handleRequestUserInput verifies input is present. In the autonomous path
// this step never runs (the plan short-circuits to waiting_for_user); it
// executes only on resume, where the input has been attached.
func handleRequestUserInput(_ context.Context, _ models.RemediationStep, ec *ExecutionContext) error {
	if len(ec.UserInput) == 0 {
		return errors.New("user input requested but none attached")
	}
	return nil
}

// mergeIntoParameters folds the step's parameters into the working set.
// Covers substitution, transformation and parameter-modification steps.
func mergeIntoParameters(_ context.Context, step models.RemediationStep, ec *ExecutionContext) error {
	for k, v := range step.Parameters {
		ec.Parameters[k] = v
	}
	return nil
}

// handleAnalyzeContradiction records what conflicts for the resolution step.
func handleAnalyzeContradiction(_ context.Context, _ models.RemediationStep, ec *ExecutionContext) error {
	if ec.Error != nil {
		ec.Output["contradiction"] = ec.Error.Message
		if fields, ok := ec.Error.Details["fields"]; ok {
			ec.Output["conflicting_fields"] = fields
		}
	}
	return nil
}

// handleResolveValues applies user-chosen values when present, otherwise
// records the resolution policy for the retry.
func handleResolveValues(_ context.Context, step models.RemediationStep, ec *ExecutionContext) error {
	if len(ec.UserInput) > 0 {
		for k, v := range ec.UserInput {
			ec.Parameters[k] = v
		}
		return nil
	}
	if policy, ok := step.Parameters["policy"]; ok {
		ec.Parameters["resolution_policy"] = policy
	}
	return nil
}

func handleFindAlternative(_ context.Context, _ models.RemediationStep, ec *ExecutionContext) error {
	ec.Output["alternative_requested"] = true
	return nil
}

func (x *Executor) handleLogError(_ context.Context, step models.RemediationStep, ec *ExecutionContext) error {
	msg := "unknown error"
	if ec.Error != nil {
		msg = ec.Error.Message
	}
	x.logger.Warnf("Recovery logged error without remediation: %s", msg)
	ec.Output["logged"] = true
	if abort, _ := step.Parameters["abort"].(bool); abort {
		ec.Output["aborted"] = true
	}
	return nil
}

// durationMS reads duration_ms tolerating the numeric types a JSON
// round-trip can produce.
func durationMS(params map[string]interface{}) time.Duration {
	raw, ok := params["duration_ms"]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v) * time.Millisecond
	default:
		return 0
	}
}
