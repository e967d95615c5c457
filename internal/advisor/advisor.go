// Package advisor is the LLM advisory boundary for the recovery pipeline.
// Every advisory call is optional: callers hold a rule-based answer already
// and only consult the advisor to refine it. Responses are strictly decoded;
// anything that fails extraction or validation is rejected with an error and
// the caller keeps its rule-based answer.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harrison/remedy/internal/models"
)

// ErrNoAdvice is returned when the advisor response contains no decodable
// JSON object. Callers treat it like any other advisor failure and keep
// their rule-based answer.
var ErrNoAdvice = errors.New("no decodable advice in response")

// Advisor refines rule-based pipeline decisions. Implementations must honor
// the context deadline; a slow advisor must never stall recovery.
type Advisor interface {
	// AdviseClassification refines a rule-based classification of err.
	AdviseClassification(ctx context.Context, err *models.DetectedError, prior *models.ErrorClassification) (*models.ClassificationAdvice, error)

	// AdvisePlan proposes a replacement step sequence for a low-confidence
	// draft plan.
	AdvisePlan(ctx context.Context, err *models.DetectedError, classification *models.ErrorClassification, draft *models.RemediationPlan) (*models.PlanAdvice, error)

	// AdviseImprovements proposes durable system improvements from recurring
	// pattern summaries.
	AdviseImprovements(ctx context.Context, patterns []*models.ErrorPattern, trigger *models.DetectedError) (*models.ImprovementAdvice, error)
}

// decodeAdvice extracts the JSON object from raw advisory output and
// unmarshals it into v.
func decodeAdvice(content string, v interface{}) error {
	extracted := ExtractJSON(content)
	if extracted == "" {
		return ErrNoAdvice
	}
	if err := json.Unmarshal([]byte(extracted), v); err != nil {
		return fmt.Errorf("unmarshal advice: %w", err)
	}
	return nil
}

// validConfidence reports whether c is a usable confidence score.
func validConfidence(c float64) bool {
	return c >= 0.0 && c <= 1.0
}

// DecodeClassificationAdvice decodes and validates classification advice
// from raw advisory output.
func DecodeClassificationAdvice(content string) (*models.ClassificationAdvice, error) {
	advice := &models.ClassificationAdvice{}
	if err := decodeAdvice(content, advice); err != nil {
		return nil, err
	}
	if !validConfidence(advice.Confidence) {
		return nil, fmt.Errorf("classification advice confidence %.2f out of range", advice.Confidence)
	}
	if advice.Category != "" && !advice.Category.IsValid() {
		return nil, fmt.Errorf("classification advice has unknown category %q", advice.Category)
	}
	return advice, nil
}

// DecodePlanAdvice decodes and validates plan advice from raw advisory
// output. Advice without steps is rejected; an empty replacement plan is
// never better than the draft.
func DecodePlanAdvice(content string) (*models.PlanAdvice, error) {
	advice := &models.PlanAdvice{}
	if err := decodeAdvice(content, advice); err != nil {
		return nil, err
	}
	if !validConfidence(advice.Confidence) {
		return nil, fmt.Errorf("plan advice confidence %.2f out of range", advice.Confidence)
	}
	if len(advice.Steps) == 0 {
		return nil, errors.New("plan advice has no steps")
	}
	for i, step := range advice.Steps {
		if step.Action == "" {
			return nil, fmt.Errorf("plan advice step %d has no action", i)
		}
	}
	return advice, nil
}

// maxImprovementSuggestions caps one advisory batch. The advisor is asked
// for 1-3 suggestions; anything past the third is noise.
const maxImprovementSuggestions = 3

// DecodeImprovementAdvice decodes and validates improvement advice from raw
// advisory output. Suggestions with out-of-range confidence are dropped
// rather than failing the whole batch.
func DecodeImprovementAdvice(content string) (*models.ImprovementAdvice, error) {
	advice := &models.ImprovementAdvice{}
	if err := decodeAdvice(content, advice); err != nil {
		return nil, err
	}

	kept := advice.Suggestions[:0]
	for _, s := range advice.Suggestions {
		if s.Suggestion == "" || !validConfidence(s.Confidence) {
			continue
		}
		kept = append(kept, s)
	}
	advice.Suggestions = kept
	if len(advice.Suggestions) == 0 {
		return nil, errors.New("improvement advice has no usable suggestions")
	}
	if len(advice.Suggestions) > maxImprovementSuggestions {
		advice.Suggestions = advice.Suggestions[:maxImprovementSuggestions]
	}
	return advice, nil
}
