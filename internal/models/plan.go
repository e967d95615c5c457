package models

import (
	"sort"
	"time"
)

// StepAction names a remediation step handler. The executor dispatches each
// step to the handler registered under its action.
type StepAction string

const (
	ActionRetryExecution       StepAction = "retry_execution"
	ActionWait                 StepAction = "wait"
	ActionSubstituteDefault    StepAction = "substitute_default"
	ActionTransformData        StepAction = "transform_data"
	ActionModifyParameters     StepAction = "modify_parameters"
	ActionFindAlternative      StepAction = "find_alternative"
	ActionExecuteAlternative   StepAction = "execute_alternative"
	ActionAnalyzeContradiction StepAction = "analyze_contradiction"
	ActionResolveValues        StepAction = "resolve_values"
	ActionRequestUserInput     StepAction = "request_user_input"
	ActionRetryWithUserInput   StepAction = "retry_with_user_input"
	ActionLogError             StepAction = "log_error"
)

// IsValid reports whether the action names a known step handler.
func (a StepAction) IsValid() bool {
	switch a {
	case ActionRetryExecution, ActionWait, ActionSubstituteDefault,
		ActionTransformData, ActionModifyParameters, ActionFindAlternative,
		ActionExecuteAlternative, ActionAnalyzeContradiction, ActionResolveValues,
		ActionRequestUserInput, ActionRetryWithUserInput, ActionLogError:
		return true
	}
	return false
}

// RemediationStep is one concrete action within a plan. Steps are totally
// ordered by Order. Steps with Optional=false are load-bearing: their failure
// aborts the plan.
type RemediationStep struct {
	StepID      string                 `json:"step_id"`
	Action      StepAction             `json:"action"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Description string                 `json:"description"`
	Optional    bool                   `json:"is_optional"`
	Order       int                    `json:"order"`
}

// RemediationPlan is an ordered sequence of steps intended to resolve one
// anomaly. Plans are persisted before execution so a crash mid-flight is
// resumable.
type RemediationPlan struct {
	PlanID   string   `json:"plan_id"`
	ErrorID  string   `json:"error_id"`
	Strategy Strategy `json:"strategy"`

	Steps []RemediationStep `json:"steps"`

	RequiresUserInput bool                   `json:"requires_user_input"`
	UserPrompt        string                 `json:"user_prompt,omitempty"`
	Parameters        map[string]interface{} `json:"parameters,omitempty"`

	Confidence           float64 `json:"confidence"`
	EstimatedSuccessRate float64 `json:"estimated_success_rate"`

	// FallbackPlan holds the deterministic plan when the primary steps were
	// produced by the advisor, so execution can degrade gracefully.
	FallbackPlan *RemediationPlan `json:"fallback_plan,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SortSteps orders the plan's steps by ascending Order. The sort is stable so
// steps sharing an Order keep their insertion sequence.
func (p *RemediationPlan) SortSteps() {
	sort.SliceStable(p.Steps, func(i, j int) bool {
		return p.Steps[i].Order < p.Steps[j].Order
	})
}

// RequiredSteps returns the count of non-optional steps.
func (p *RemediationPlan) RequiredSteps() int {
	n := 0
	for _, s := range p.Steps {
		if !s.Optional {
			n++
		}
	}
	return n
}

// RecoveryResult is the terminal record of one execution attempt of one plan.
type RecoveryResult struct {
	RecoveryID string `json:"recovery_id"`
	ErrorID    string `json:"error_id"`

	Successful    bool `json:"successful"`
	ExecutedSteps int  `json:"executed_steps"`
	TotalSteps    int  `json:"total_steps"`

	UserInputProvided bool                   `json:"user_input_provided,omitempty"`
	OutputData        map[string]interface{} `json:"output_data,omitempty"`
	ErrorMessage      string                 `json:"error_message,omitempty"`

	// ExecutionTime is wall-clock elapsed since plan start.
	ExecutionTime time.Duration `json:"execution_time"`
}
