package planner

import (
	"time"

	"github.com/google/uuid"

	"github.com/harrison/remedy/internal/models"
)

// buildSteps generates the deterministic step sequence for a strategy.
// Steps come back ordered from 1.
func buildSteps(strategy models.Strategy, e *models.DetectedError, prompt string, wait time.Duration) []models.RemediationStep {
	switch strategy {
	case models.StrategyRetry:
		// Timeouts and flaky upstreams get a breather before the retry;
		// everything else retries immediately.
		if e != nil && (e.Type == models.ErrorTypeTimeout || e.Type == models.ErrorTypeAPIFailure) {
			return steps(
				step(models.ActionWait, "Back off before retrying", params("duration_ms", wait.Milliseconds()), false),
				step(models.ActionRetryExecution, "Retry the failed operation", nil, false),
			)
		}
		return steps(
			step(models.ActionRetryExecution, "Retry the failed operation", nil, false),
		)

	case models.StrategyBackoffRetry:
		return steps(
			step(models.ActionWait, "Back off before retrying", params("duration_ms", wait.Milliseconds()), false),
			step(models.ActionRetryExecution, "Retry the failed operation", nil, false),
		)

	case models.StrategyUserInput:
		return steps(
			step(models.ActionRequestUserInput, "Ask the user for the missing information", params("prompt", prompt), false),
			step(models.ActionRetryWithUserInput, "Retry with the provided input", nil, false),
		)

	case models.StrategyDefaultValue:
		p := map[string]interface{}{}
		for _, field := range missingFields(e) {
			p[field] = InferDefaultValue(field)
		}
		return steps(
			step(models.ActionSubstituteDefault, "Substitute inferred defaults for missing fields", p, false),
			step(models.ActionRetryExecution, "Retry with substituted values", nil, false),
		)

	case models.StrategyInfer:
		return steps(
			step(models.ActionModifyParameters, "Infer missing values from surrounding context", params("mode", "infer"), false),
			step(models.ActionRetryExecution, "Retry with inferred values", nil, false),
		)

	case models.StrategyIncreaseTimeout:
		return steps(
			step(models.ActionModifyParameters, "Double the operation timeout", params("timeout_multiplier", 2), false),
			step(models.ActionRetryExecution, "Retry with the longer timeout", nil, false),
		)

	case models.StrategySimplifyRequest:
		return steps(
			step(models.ActionModifyParameters, "Reduce request scope", params("simplify", true), false),
			step(models.ActionRetryExecution, "Retry the simplified request", nil, false),
		)

	case models.StrategyTransformData:
		p := map[string]interface{}{}
		if expected, ok := e.Details["expected_type"].(string); ok {
			actual, _ := e.Details["actual_type"].(string)
			if c := InferCoercion(expected, actual); c != "" {
				p["coercion"] = c
			}
			if field, ok := e.Details["field"].(string); ok {
				p["field"] = field
			}
		}
		return steps(
			step(models.ActionTransformData, "Coerce the value to the expected type", p, false),
			step(models.ActionRetryExecution, "Retry with transformed data", nil, false),
		)

	case models.StrategyResolveContradiction:
		return steps(
			step(models.ActionAnalyzeContradiction, "Determine which values conflict and why", nil, false),
			step(models.ActionResolveValues, "Pick the consistent value set", nil, false),
			step(models.ActionRetryExecution, "Retry with resolved values", nil, false),
		)

	case models.StrategyUseMostRecent:
		return steps(
			step(models.ActionResolveValues, "Keep the most recently produced value", params("policy", "most_recent"), false),
			step(models.ActionRetryExecution, "Retry with the chosen value", nil, false),
		)

	case models.StrategyAlternativeApproach:
		return steps(
			step(models.ActionFindAlternative, "Find an alternative way to satisfy the step", nil, false),
			step(models.ActionExecuteAlternative, "Execute the alternative", nil, false),
		)

	case models.StrategyRelaxValidation:
		return steps(
			step(models.ActionModifyParameters, "Relax non-essential validation rules", params("relax_validation", true), false),
			step(models.ActionRetryExecution, "Retry under relaxed validation", nil, false),
		)

	case models.StrategyLogAndSkip:
		return steps(
			step(models.ActionLogError, "Record the error and continue without this step", nil, false),
		)

	case models.StrategyAbort:
		return steps(
			step(models.ActionLogError, "Record the error and abort the workflow", params("abort", true), false),
		)

	default:
		return steps(
			step(models.ActionRetryExecution, "Retry the failed operation", nil, false),
		)
	}
}

// step builds an unordered step; steps assigns the order.
func step(action models.StepAction, description string, p map[string]interface{}, optional bool) models.RemediationStep {
	return models.RemediationStep{
		StepID:      uuid.NewString(),
		Action:      action,
		Parameters:  p,
		Description: description,
		Optional:    optional,
	}
}

func steps(list ...models.RemediationStep) []models.RemediationStep {
	for i := range list {
		list[i].Order = i + 1
	}
	return list
}

func params(key string, value interface{}) map[string]interface{} {
	return map[string]interface{}{key: value}
}

// missingFields reads details.missing_fields off a detected error,
// tolerating both []string and the JSON round-trip's []interface{}.
func missingFields(e *models.DetectedError) []string {
	raw, ok := e.Details["missing_fields"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, f := range v {
			if s, ok := f.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
