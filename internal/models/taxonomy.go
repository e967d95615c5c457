// Package models defines the data contracts shared across the recovery
// pipeline: the error taxonomy, detection and classification records,
// remediation plans, recovery results, and the learned pattern aggregates.
package models

// ErrorType identifies the kind of anomaly a detector observed.
type ErrorType string

const (
	ErrorTypeMissingInput        ErrorType = "missing_input"
	ErrorTypeNullValue           ErrorType = "null_value"
	ErrorTypeSchemaViolation     ErrorType = "schema_violation"
	ErrorTypeAPIFailure          ErrorType = "api_failure"
	ErrorTypeAgentFailure        ErrorType = "agent_failure"
	ErrorTypeTimeout             ErrorType = "timeout"
	ErrorTypeContradictoryValues ErrorType = "contradictory_values"
	ErrorTypeSemanticMismatch    ErrorType = "semantic_mismatch"
	ErrorTypeLowConfidence       ErrorType = "low_confidence"
	ErrorTypeExecutionFailure    ErrorType = "execution_failure"
	ErrorTypeUnknown             ErrorType = "unknown"
)

// IsValid reports whether t is a known error type.
func (t ErrorType) IsValid() bool {
	switch t {
	case ErrorTypeMissingInput, ErrorTypeNullValue, ErrorTypeSchemaViolation,
		ErrorTypeAPIFailure, ErrorTypeAgentFailure, ErrorTypeTimeout,
		ErrorTypeContradictoryValues, ErrorTypeSemanticMismatch,
		ErrorTypeLowConfidence, ErrorTypeExecutionFailure, ErrorTypeUnknown:
		return true
	}
	return false
}

// ErrorCategory is the top-level disposition an anomaly receives.
type ErrorCategory string

const (
	// CategoryRecoverable marks errors the pipeline may attempt to fix autonomously.
	CategoryRecoverable ErrorCategory = "recoverable"
	// CategoryInputGap marks errors caused by missing or null inputs; recovery
	// usually needs a substituted default or user-provided value.
	CategoryInputGap ErrorCategory = "input_gap"
	// CategoryUnresolvable marks errors that must never enter the recovery loop
	// (authorization failures, rate limits). They are reported upward immediately.
	CategoryUnresolvable ErrorCategory = "unresolvable"
)

// IsValid reports whether c is a known error category.
func (c ErrorCategory) IsValid() bool {
	switch c {
	case CategoryRecoverable, CategoryInputGap, CategoryUnresolvable:
		return true
	}
	return false
}

// Severity ranks how urgent an anomaly is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IsValid reports whether s is a known severity level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Strategy names a recovery approach a classification can recommend.
type Strategy string

const (
	StrategyRetry                Strategy = "retry"
	StrategyBackoffRetry         Strategy = "backoff_retry"
	StrategyUserInput            Strategy = "user_input"
	StrategyDefaultValue         Strategy = "default_value"
	StrategyInfer                Strategy = "infer"
	StrategyIncreaseTimeout      Strategy = "increase_timeout"
	StrategySimplifyRequest      Strategy = "simplify_request"
	StrategyTransformData        Strategy = "transform_data"
	StrategyResolveContradiction Strategy = "resolve_contradiction"
	StrategyUseMostRecent        Strategy = "use_most_recent"
	StrategyAlternativeApproach  Strategy = "alternative_approach"
	StrategyRelaxValidation      Strategy = "relax_validation"
	StrategyLogAndSkip           Strategy = "log_and_skip"
	StrategyAbort                Strategy = "abort"
)

// RecoveryStatus is the state of one recovery attempt.
// Transitions: pending -> in_progress -> {waiting_for_user | completed | failed},
// and waiting_for_user -> in_progress once user input arrives.
type RecoveryStatus string

const (
	StatusPending        RecoveryStatus = "pending"
	StatusInProgress     RecoveryStatus = "in_progress"
	StatusWaitingForUser RecoveryStatus = "waiting_for_user"
	StatusCompleted      RecoveryStatus = "completed"
	StatusFailed         RecoveryStatus = "failed"
)

// IsTerminal reports whether the status ends an attempt. waiting_for_user is
// not terminal but is durable: the attempt can be resumed on a later call.
func (s RecoveryStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s RecoveryStatus) CanTransitionTo(next RecoveryStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusFailed
	case StatusInProgress:
		return next == StatusWaitingForUser || next == StatusCompleted || next == StatusFailed
	case StatusWaitingForUser:
		return next == StatusInProgress || next == StatusFailed
	default:
		return false
	}
}

// SuggestionStatus tracks the review lifecycle of an adaptation suggestion.
// Advancement happens only through explicit review, never automatically.
type SuggestionStatus string

const (
	SuggestionSuggested   SuggestionStatus = "suggested"
	SuggestionApproved    SuggestionStatus = "approved"
	SuggestionRejected    SuggestionStatus = "rejected"
	SuggestionImplemented SuggestionStatus = "implemented"
)

// IsValid reports whether s is a known suggestion status.
func (s SuggestionStatus) IsValid() bool {
	switch s {
	case SuggestionSuggested, SuggestionApproved, SuggestionRejected, SuggestionImplemented:
		return true
	}
	return false
}
