package classifier

import (
	"github.com/harrison/remedy/internal/models"
)

// rule is one row of the deterministic classification table.
type rule struct {
	strategies  []models.Strategy
	recommended models.Strategy
	confidence  float64
	needsUser   bool
}

// ruleTable maps error types to recovery strategy sets. Confidence reflects
// how well the type alone predicts the right strategy; low values push the
// classification toward the advisor.
var ruleTable = map[models.ErrorType]rule{
	models.ErrorTypeMissingInput: {
		strategies:  []models.Strategy{models.StrategyUserInput, models.StrategyDefaultValue, models.StrategyInfer},
		recommended: models.StrategyUserInput,
		confidence:  0.9,
		needsUser:   true,
	},
	models.ErrorTypeNullValue: {
		strategies:  []models.Strategy{models.StrategyDefaultValue, models.StrategyUserInput, models.StrategyInfer},
		recommended: models.StrategyDefaultValue,
		confidence:  0.85,
	},
	models.ErrorTypeSchemaViolation: {
		strategies:  []models.Strategy{models.StrategyTransformData, models.StrategyRelaxValidation, models.StrategyUserInput},
		recommended: models.StrategyTransformData,
		confidence:  0.8,
	},
	models.ErrorTypeAPIFailure: {
		strategies:  []models.Strategy{models.StrategyBackoffRetry, models.StrategyAlternativeApproach, models.StrategyAbort},
		recommended: models.StrategyBackoffRetry,
		confidence:  0.85,
	},
	models.ErrorTypeAgentFailure: {
		strategies:  []models.Strategy{models.StrategyRetry, models.StrategySimplifyRequest, models.StrategyAlternativeApproach},
		recommended: models.StrategyRetry,
		confidence:  0.75,
	},
	models.ErrorTypeTimeout: {
		strategies:  []models.Strategy{models.StrategyRetry, models.StrategyIncreaseTimeout, models.StrategySimplifyRequest},
		recommended: models.StrategyRetry,
		confidence:  0.85,
	},
	models.ErrorTypeContradictoryValues: {
		strategies:  []models.Strategy{models.StrategyUserInput, models.StrategyResolveContradiction, models.StrategyUseMostRecent},
		recommended: models.StrategyUserInput,
		confidence:  0.6,
		needsUser:   true,
	},
	models.ErrorTypeSemanticMismatch: {
		strategies:  []models.Strategy{models.StrategyTransformData, models.StrategyInfer, models.StrategyUserInput},
		recommended: models.StrategyTransformData,
		confidence:  0.7,
	},
	models.ErrorTypeLowConfidence: {
		strategies:  []models.Strategy{models.StrategyRetry, models.StrategyUserInput, models.StrategyLogAndSkip},
		recommended: models.StrategyRetry,
		confidence:  0.65,
	},
	models.ErrorTypeExecutionFailure: {
		strategies:  []models.Strategy{models.StrategyRetry, models.StrategyAlternativeApproach, models.StrategyAbort},
		recommended: models.StrategyRetry,
		confidence:  0.7,
	},
}

// fallbackRule covers error types outside the table.
var fallbackRule = rule{
	strategies:  []models.Strategy{models.StrategyRetry, models.StrategyLogAndSkip, models.StrategyUserInput},
	recommended: models.StrategyLogAndSkip,
	confidence:  0.5,
}

// unresolvableRule replaces any table row when the error category is
// unresolvable. These errors never enter the recovery loop on their own.
var unresolvableRule = rule{
	strategies:  []models.Strategy{models.StrategyLogAndSkip, models.StrategyUserInput, models.StrategyAbort},
	recommended: models.StrategyLogAndSkip,
	confidence:  0.95,
	needsUser:   true,
}

// ruleFor returns the table row governing e, applying the unresolvable
// override.
func ruleFor(e *models.DetectedError) rule {
	if e.Category == models.CategoryUnresolvable {
		return unresolvableRule
	}
	if r, ok := ruleTable[e.Type]; ok {
		return r
	}
	return fallbackRule
}
