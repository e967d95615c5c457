package models

import "time"

// DetectedError is the normalized record of one anomaly observed during
// workflow execution. It is immutable once logged and owned by the pipeline
// run that created it.
type DetectedError struct {
	// ID is assigned when the error is logged to the store. If logging fails
	// the detector substitutes a locally generated identifier so the pipeline
	// can continue without persistence.
	ID string `json:"error_id"`

	Type     ErrorType     `json:"error_type"`
	Category ErrorCategory `json:"error_category"`
	Severity Severity      `json:"severity"`

	// SourceType names the workflow stage that produced the anomaly
	// (e.g. "workflow_step", "agent", "api").
	SourceType string `json:"source_type"`

	// SourceID, StepID and ComponentID locate the anomaly more precisely.
	// Any of them may be empty.
	SourceID    string `json:"source_id,omitempty"`
	StepID      string `json:"step_id,omitempty"`
	ComponentID string `json:"component_id,omitempty"`

	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	InputData  map[string]interface{} `json:"input_data,omitempty"`

	// Confidence carries the upstream result confidence for low-confidence
	// detections; zero otherwise.
	Confidence float64 `json:"confidence,omitempty"`

	Recoverable bool      `json:"is_recoverable"`
	DetectedAt  time.Time `json:"detected_at"`
}

// ErrorClassification is the categorized, strategy-ranked view of one
// DetectedError. A re-classification produces a new record referencing the
// same ErrorID; classifications are never mutated after creation.
type ErrorClassification struct {
	ErrorID    string        `json:"error_id"`
	Type       ErrorType     `json:"error_type"`
	Category   ErrorCategory `json:"error_category"`
	SourceType string        `json:"source_type"`
	Message    string        `json:"message"`

	Recoverable bool `json:"is_recoverable"`

	// Strategies is the ordered list of candidate recovery strategies,
	// best first. RecommendedStrategy is always Strategies[0] when non-empty.
	Strategies          []Strategy `json:"recovery_strategies"`
	RecommendedStrategy Strategy   `json:"recommended_strategy"`

	// Confidence is the classifier's certainty in [0,1].
	Confidence float64 `json:"confidence_score"`

	RequiresUserInput bool   `json:"requires_user_input"`
	SuggestedPrompt   string `json:"suggested_prompt,omitempty"`

	// PatternID is set when the classification was adopted from a stored
	// pattern with a high historical success rate.
	PatternID string `json:"pattern_id,omitempty"`
}
