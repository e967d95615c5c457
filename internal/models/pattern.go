package models

import "time"

// ErrorPattern is a long-lived aggregate tracking how often a generalized
// error shape has occurred and how recovery attempts against it fared.
// Patterns are keyed by (error type, category, source type, component,
// message shape), accumulate occurrences monotonically, and are never deleted.
//
// SuccessRate is always SuccessCount/Occurrences and is recomputed by the
// store in a single atomic update, never incremented independently in
// application code.
type ErrorPattern struct {
	ID          string        `json:"id"`
	Type        ErrorType     `json:"error_type"`
	Category    ErrorCategory `json:"error_category"`
	SourceType  string        `json:"source_type"`
	ComponentID string        `json:"component_id,omitempty"`

	// MessageShape is the error message with volatile literals (numbers,
	// UUIDs, timestamps) replaced by wildcards, so structurally identical
	// errors collapse into one pattern.
	MessageShape string `json:"message_shape"`

	Occurrences  int     `json:"occurrences"`
	SuccessCount int     `json:"success_count"`
	SuccessRate  float64 `json:"success_rate"`

	// RecoveryStrategies accumulates every strategy that has succeeded at
	// least once against this pattern. SuccessfulStrategies preserves the
	// order in which strategies first succeeded.
	RecoveryStrategies   []Strategy `json:"recovery_strategies,omitempty"`
	SuccessfulStrategies []Strategy `json:"successful_strategies,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// AdaptationSuggestion is a proposed longer-lived system improvement derived
// from accumulated patterns. Suggestions never self-apply; a human or an
// external governance process advances Status through review.
type AdaptationSuggestion struct {
	ID             string `json:"id"`
	ErrorPatternID string `json:"error_pattern_id,omitempty"`

	// SuggestionType categorizes the proposal, e.g. "schema_change",
	// "prompt_improvement", "validation_rule", "timeout_adjustment".
	SuggestionType string `json:"suggestion_type"`

	// TargetID names the schema, component or workflow step the suggestion
	// applies to, when known.
	TargetID string `json:"target_id,omitempty"`

	Suggestion string  `json:"suggestion"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`

	// ImplementationDifficulty and PotentialImpact are coarse ratings:
	// "low", "medium", "high".
	ImplementationDifficulty string `json:"implementation_difficulty"`
	PotentialImpact          string `json:"potential_impact"`

	Status    SuggestionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}
