package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The advisor contract: each advisory call receives the error plus the
// rule-based prior and must answer with a single JSON object matching the
// schemas below. Malformed or partially-JSON responses are expected input and
// are handled by the extraction boundary in internal/advisor; the schemas
// exist so the prompt can pin the response shape.

// ClassificationAdvice is the advisor's structured override of a rule-based
// classification. Empty fields mean "no opinion"; the caller keeps the
// rule-based value.
type ClassificationAdvice struct {
	Category            ErrorCategory `json:"error_category,omitempty"`
	Strategies          []Strategy    `json:"recovery_strategies,omitempty"`
	RecommendedStrategy Strategy      `json:"recommended_strategy,omitempty"`
	Confidence          float64       `json:"confidence"`
	RequiresUserInput   *bool         `json:"requires_user_input,omitempty"`
	SuggestedPrompt     string        `json:"suggested_prompt,omitempty"`
	Reasoning           string        `json:"reasoning,omitempty"`
}

// PlanAdvice is the advisor's proposed replacement step sequence for a
// deterministic plan judged low-confidence.
type PlanAdvice struct {
	Steps      []RemediationStep `json:"steps"`
	UserPrompt string            `json:"user_prompt,omitempty"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning,omitempty"`
}

// ImprovementAdvice carries 1-3 adaptation suggestions proposed from
// accumulated pattern summaries.
type ImprovementAdvice struct {
	Suggestions []SuggestedImprovement `json:"suggestions"`
}

// SuggestedImprovement is one proposed system improvement before it is
// persisted as an AdaptationSuggestion.
type SuggestedImprovement struct {
	SuggestionType           string  `json:"suggestion_type"`
	TargetID                 string  `json:"target_id,omitempty"`
	Suggestion               string  `json:"suggestion"`
	Rationale                string  `json:"rationale"`
	Confidence               float64 `json:"confidence"`
	ImplementationDifficulty string  `json:"implementation_difficulty"`
	PotentialImpact          string  `json:"potential_impact"`
}

// ClassificationAdviceSchema returns the JSON Schema enforcing the
// ClassificationAdvice response shape. Passed to the advisor alongside the
// prompt so schema-capable backends can constrain output.
func ClassificationAdviceSchema() string {
	schema := map[string]interface{}{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"title":    "Classification Advice",
		"type":     "object",
		"required": []string{"confidence"},
		"properties": map[string]interface{}{
			"error_category": map[string]interface{}{
				"type": "string",
				"enum": []string{"recoverable", "input_gap", "unresolvable"},
			},
			"recovery_strategies": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"recommended_strategy": map[string]interface{}{"type": "string"},
			"confidence": map[string]interface{}{
				"type":    "number",
				"minimum": 0.0,
				"maximum": 1.0,
			},
			"requires_user_input": map[string]interface{}{"type": "boolean"},
			"suggested_prompt":    map[string]interface{}{"type": "string"},
			"reasoning":           map[string]interface{}{"type": "string", "maxLength": 300},
		},
		"additionalProperties": false,
	}
	data, _ := json.Marshal(schema)
	return string(data)
}

// PlanAdviceSchema returns the JSON Schema enforcing the PlanAdvice response shape.
func PlanAdviceSchema() string {
	schema := map[string]interface{}{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"title":    "Plan Advice",
		"type":     "object",
		"required": []string{"steps", "confidence"},
		"properties": map[string]interface{}{
			"steps": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []string{"action", "description", "order"},
					"properties": map[string]interface{}{
						"action":      map[string]interface{}{"type": "string"},
						"description": map[string]interface{}{"type": "string"},
						"parameters":  map[string]interface{}{"type": "object"},
						"is_optional": map[string]interface{}{"type": "boolean"},
						"order":       map[string]interface{}{"type": "integer"},
					},
				},
			},
			"user_prompt": map[string]interface{}{"type": "string"},
			"confidence": map[string]interface{}{
				"type":    "number",
				"minimum": 0.0,
				"maximum": 1.0,
			},
			"reasoning": map[string]interface{}{"type": "string", "maxLength": 300},
		},
		"additionalProperties": false,
	}
	data, _ := json.Marshal(schema)
	return string(data)
}

// ImprovementAdviceSchema returns the JSON Schema enforcing the
// ImprovementAdvice response shape (1-3 suggestions).
func ImprovementAdviceSchema() string {
	schema := map[string]interface{}{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"title":    "Improvement Advice",
		"type":     "object",
		"required": []string{"suggestions"},
		"properties": map[string]interface{}{
			"suggestions": map[string]interface{}{
				"type":     "array",
				"minItems": 1,
				"maxItems": 3,
				"items": map[string]interface{}{
					"type":     "object",
					"required": []string{"suggestion_type", "suggestion", "rationale", "confidence"},
					"properties": map[string]interface{}{
						"suggestion_type": map[string]interface{}{"type": "string"},
						"target_id":       map[string]interface{}{"type": "string"},
						"suggestion":      map[string]interface{}{"type": "string"},
						"rationale":       map[string]interface{}{"type": "string"},
						"confidence": map[string]interface{}{
							"type":    "number",
							"minimum": 0.0,
							"maximum": 1.0,
						},
						"implementation_difficulty": map[string]interface{}{
							"type": "string",
							"enum": []string{"low", "medium", "high"},
						},
						"potential_impact": map[string]interface{}{
							"type": "string",
							"enum": []string{"low", "medium", "high"},
						},
					},
				},
			},
		},
		"additionalProperties": false,
	}
	data, _ := json.Marshal(schema)
	return string(data)
}

// ClassificationAdvicePrompt builds the advisory prompt for refining a
// rule-based classification. The prior is serialized so the advisor treats it
// as a baseline rather than classifying from scratch.
func ClassificationAdvicePrompt(err *DetectedError, prior *ErrorClassification) string {
	var sb strings.Builder
	sb.WriteString("You review error classifications for an automated recovery pipeline.\n")
	sb.WriteString("Given the error and the rule-based prior classification, refine the category,\n")
	sb.WriteString("recovery strategies and recommended strategy. Only override fields you are\n")
	sb.WriteString("confident about; omit fields to keep the prior. Respond with ONLY a JSON\n")
	sb.WriteString("object matching the provided schema. No markdown, no prose.\n\n")

	sb.WriteString("Known strategies: retry, backoff_retry, user_input, default_value, infer,\n")
	sb.WriteString("increase_timeout, simplify_request, transform_data, resolve_contradiction,\n")
	sb.WriteString("use_most_recent, alternative_approach, relax_validation, log_and_skip, abort.\n\n")

	sb.WriteString("## ERROR\n")
	writeJSONSection(&sb, err)
	sb.WriteString("\n## RULE-BASED PRIOR\n")
	writeJSONSection(&sb, prior)
	return sb.String()
}

// PlanAdvicePrompt builds the advisory prompt for replacing a deterministic
// plan's step sequence.
func PlanAdvicePrompt(err *DetectedError, classification *ErrorClassification, draft *RemediationPlan) string {
	var sb strings.Builder
	sb.WriteString("You design remediation plans for an automated recovery pipeline.\n")
	sb.WriteString("Given the error, its classification, and a draft plan, produce a better\n")
	sb.WriteString("ordered step sequence. Each step has: action (one of retry_execution, wait,\n")
	sb.WriteString("substitute_default, transform_data, modify_parameters, find_alternative,\n")
	sb.WriteString("execute_alternative, analyze_contradiction, resolve_values,\n")
	sb.WriteString("request_user_input, retry_with_user_input, log_error), description,\n")
	sb.WriteString("parameters, is_optional, order. Respond with ONLY a JSON object matching\n")
	sb.WriteString("the provided schema.\n\n")

	sb.WriteString("## ERROR\n")
	writeJSONSection(&sb, err)
	sb.WriteString("\n## CLASSIFICATION\n")
	writeJSONSection(&sb, classification)
	sb.WriteString("\n## DRAFT PLAN\n")
	writeJSONSection(&sb, draft)
	return sb.String()
}

// ImprovementAdvicePrompt builds the advisory prompt for proposing system
// improvements from recurring pattern summaries.
func ImprovementAdvicePrompt(patterns []*ErrorPattern, trigger *DetectedError) string {
	var sb strings.Builder
	sb.WriteString("You analyze recurring error patterns in an automated recovery pipeline and\n")
	sb.WriteString("propose durable system improvements (schema changes, validation rules,\n")
	sb.WriteString("timeout adjustments, prompt improvements). Propose 1-3 suggestions with\n")
	sb.WriteString("rationale, confidence, implementation_difficulty and potential_impact.\n")
	sb.WriteString("Respond with ONLY a JSON object matching the provided schema.\n\n")

	sb.WriteString(fmt.Sprintf("## RECURRING PATTERNS (%d)\n", len(patterns)))
	for _, p := range patterns {
		writeJSONSection(&sb, p)
		sb.WriteString("\n")
	}
	sb.WriteString("\n## TRIGGERING ERROR\n")
	writeJSONSection(&sb, trigger)
	return sb.String()
}

// writeJSONSection marshals v into the builder, falling back to %+v when
// marshaling fails so prompt construction never errors.
func writeJSONSection(sb *strings.Builder, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(sb, "%+v\n", v)
		return
	}
	sb.Write(data)
	sb.WriteString("\n")
}
