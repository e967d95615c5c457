// Package healing is the pipeline's caller-facing surface. A Service wires
// detection, classification, planning, execution and learning into the two
// entry points the rest of a system needs: HandleError for fresh anomalies
// and ProcessUserInput for resuming recoveries parked on a human.
package healing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/harrison/remedy/internal/classifier"
	"github.com/harrison/remedy/internal/detector"
	"github.com/harrison/remedy/internal/executor"
	"github.com/harrison/remedy/internal/learning"
	"github.com/harrison/remedy/internal/logger"
	"github.com/harrison/remedy/internal/models"
	"github.com/harrison/remedy/internal/planner"
	"github.com/harrison/remedy/internal/store"
)

// Outcome is what one pass through the pipeline produced. Plan is nil for
// unresolvable errors; Result is nil unless execution ran (or parked the
// attempt waiting for user input).
type Outcome struct {
	ErrorID        string                      `json:"error_id"`
	Classification *models.ErrorClassification `json:"classification"`
	Plan           *models.RemediationPlan     `json:"plan,omitempty"`
	Result         *models.RecoveryResult      `json:"result,omitempty"`
}

// Options controls one HandleError invocation.
type Options struct {
	// Autonomous permits execution without pausing for a human. When false
	// the pipeline stops after planning and returns the plan for display.
	Autonomous bool

	// Operation is the workflow operation retry steps re-run. Optional.
	Operation executor.OperationFunc
}

// Service is the self-healing pipeline. Each HandleError call is an
// independent journey; the service holds no cross-call state beyond its
// stores, so concurrent calls need no locking here.
type Service struct {
	detector   *detector.Detector
	classifier *classifier.Classifier
	planner    *planner.Planner
	executor   *executor.Executor
	adapter    *learning.Adapter
	store      *store.Store
	logger     logger.Logger
}

// NewService wires the pipeline stages together.
func NewService(det *detector.Detector, cls *classifier.Classifier, pl *planner.Planner, ex *executor.Executor, ad *learning.Adapter, st *store.Store, lg logger.Logger) *Service {
	return &Service{
		detector:   det,
		classifier: cls,
		planner:    pl,
		executor:   ex,
		adapter:    ad,
		store:      st,
		logger:     lg,
	}
}

// HandleError runs a detected error through the pipeline. It never returns
// an error or panics: any internal failure degrades to the safest outcome
// available at that stage, bottoming out at a minimal unresolvable
// classification.
func (s *Service) HandleError(ctx context.Context, e *models.DetectedError, opts Options) (outcome *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Recovered panic handling error %s: %v", e.ID, r)
			outcome = s.unresolvableOutcome(e)
		}
	}()

	s.ensureLogged(ctx, e)
	outcome = &Outcome{ErrorID: e.ID}

	outcome.Classification = s.classifier.Classify(ctx, e)
	if !outcome.Classification.Recoverable || e.Category == models.CategoryUnresolvable {
		s.logger.Infof("Error %s is unresolvable, reporting upward without a plan", e.ID)
		return outcome
	}

	outcome.Plan = s.planner.CreatePlan(ctx, outcome.Classification, e)

	if !opts.Autonomous {
		s.logger.Infof("Error %s planned but not executed (non-autonomous caller)", e.ID)
		return outcome
	}

	if outcome.Plan.RequiresUserInput {
		// Execution parks the attempt in waiting_for_user so a later
		// ProcessUserInput call can resume it by recovery identifier.
		outcome.Result = s.executor.ExecutePlan(ctx, outcome.Plan, e, opts.Operation)
		s.logger.Infof("Error %s waiting for user input (recovery %s)", e.ID, outcome.Result.RecoveryID)
		return outcome
	}

	outcome.Result = s.executor.ExecutePlan(ctx, outcome.Plan, e, opts.Operation)
	s.learn(ctx, outcome.Result, e, outcome.Plan)
	return outcome
}

// HandleException is a convenience wrapper for failures raised as plain
// errors: it detects, then handles.
func (s *Service) HandleException(ctx context.Context, execErr error, src detector.Source, opts Options) *Outcome {
	e := s.detector.DetectExecutionError(ctx, execErr, src)
	if e == nil {
		return nil
	}
	return s.HandleError(ctx, e, opts)
}

// ProcessUserInput resumes a recovery parked on user input. It re-reads the
// persisted plan, attaches the input, executes, and feeds the result to the
// learning adapter exactly as the autonomous path does.
func (s *Service) ProcessUserInput(ctx context.Context, recoveryID string, input map[string]interface{}, op executor.OperationFunc) (*models.RecoveryResult, error) {
	attempt, err := s.store.GetAttempt(ctx, recoveryID)
	if err != nil {
		return nil, fmt.Errorf("load recovery attempt %s: %w", recoveryID, err)
	}
	if attempt.Status != models.StatusWaitingForUser {
		return nil, fmt.Errorf("recovery %s is %s, not waiting for user input", recoveryID, attempt.Status)
	}

	if err := s.store.AttachUserInput(ctx, recoveryID, input); err != nil {
		s.logger.Warnf("Failed to persist user input for recovery %s: %v", recoveryID, err)
	}

	e, err := s.store.GetError(ctx, attempt.Plan.ErrorID)
	if err != nil {
		s.logger.Warnf("Original error %s not found for recovery %s: %v", attempt.Plan.ErrorID, recoveryID, err)
		e = &models.DetectedError{
			ID:          attempt.Plan.ErrorID,
			Type:        models.ErrorTypeUnknown,
			Category:    models.CategoryRecoverable,
			Recoverable: true,
		}
	}

	result := s.executor.Resume(ctx, recoveryID, attempt.Plan, e, input, op)
	s.learn(ctx, result, e, attempt.Plan)
	return result, nil
}

// GetAdaptationSuggestions lists suggestions, optionally filtered by
// status. limit <= 0 means no limit.
func (s *Service) GetAdaptationSuggestions(ctx context.Context, status models.SuggestionStatus, limit int) ([]*models.AdaptationSuggestion, error) {
	return s.store.ListSuggestions(ctx, status, limit)
}

// UpdateSuggestionStatus advances a suggestion through its review
// lifecycle. This is the only way a suggestion's status changes.
func (s *Service) UpdateSuggestionStatus(ctx context.Context, id string, status models.SuggestionStatus) error {
	return s.store.UpdateSuggestionStatus(ctx, id, status)
}

// learn feeds a terminal result to the adapter. Learning failures never
// surface to the caller; the recovery outcome stands on its own.
func (s *Service) learn(ctx context.Context, result *models.RecoveryResult, e *models.DetectedError, plan *models.RemediationPlan) {
	if err := s.adapter.ProcessRecoveryResult(ctx, result, e, plan); err != nil {
		s.logger.Warnf("Learning update failed for recovery %s: %v", result.RecoveryID, err)
	}
}

// ensureLogged guarantees the error carries an identifier, persisting it if
// the caller skipped the detector.
func (s *Service) ensureLogged(ctx context.Context, e *models.DetectedError) {
	if e.ID != "" {
		return
	}
	if err := s.store.LogError(ctx, e); err != nil {
		s.logger.Warnf("Failed to log error, continuing with local identifier: %v", err)
		e.ID = uuid.NewString()
	}
}

// unresolvableOutcome is the pipeline's bottom value: report upward, touch
// nothing.
func (s *Service) unresolvableOutcome(e *models.DetectedError) *Outcome {
	return &Outcome{
		ErrorID: e.ID,
		Classification: &models.ErrorClassification{
			ErrorID:             e.ID,
			Type:                e.Type,
			Category:            models.CategoryUnresolvable,
			SourceType:          e.SourceType,
			Message:             e.Message,
			Recoverable:         false,
			Strategies:          []models.Strategy{models.StrategyLogAndSkip, models.StrategyUserInput, models.StrategyAbort},
			RecommendedStrategy: models.StrategyLogAndSkip,
			Confidence:          0,
			RequiresUserInput:   true,
		},
	}
}
