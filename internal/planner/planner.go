// Package planner turns classifications into executable remediation plans.
// It mirrors the classifier's tiers: a stored default plan for a known
// pattern, a deterministic step table per strategy, and an advisory pass
// that may replace the step sequence wholesale while retaining the
// deterministic plan as fallback.
package planner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/remedy/internal/advisor"
	"github.com/harrison/remedy/internal/config"
	"github.com/harrison/remedy/internal/logger"
	"github.com/harrison/remedy/internal/models"
	"github.com/harrison/remedy/internal/store"
)

// PlanStore reads stored default plans. Satisfied by *store.Store.
type PlanStore interface {
	GetDefaultPlan(ctx context.Context, patternID string) (*models.RemediationPlan, error)
}

// Planner synthesizes remediation plans. Safe for concurrent use.
type Planner struct {
	plans  PlanStore
	adv    advisor.Advisor
	cfg    config.PlannerConfig
	logger logger.Logger
}

// NewPlanner creates a Planner. adv may be nil to run deterministically.
func NewPlanner(plans PlanStore, adv advisor.Advisor, cfg config.PlannerConfig, lg logger.Logger) *Planner {
	return &Planner{plans: plans, adv: adv, cfg: cfg, logger: lg}
}

// CreatePlan produces a plan for the classification. It never fails: any
// internal problem degrades to a retry-only plan rather than surfacing.
func (p *Planner) CreatePlan(ctx context.Context, cls *models.ErrorClassification, e *models.DetectedError) *models.RemediationPlan {
	if cls.PatternID != "" {
		if plan := p.fromStoredPlan(ctx, cls); plan != nil {
			p.logger.Infof("Planned recovery %s for error %s from stored plan (pattern %s)", plan.PlanID, cls.ErrorID, cls.PatternID)
			return plan
		}
	}

	plan := p.deterministicPlan(cls, e)

	if p.shouldConsultAdvisor(e, plan) {
		if advised := p.refineWithAdvisor(ctx, e, cls, plan); advised != nil {
			p.logger.Infof("Planned recovery %s for error %s via advisor (fallback retained)", advised.PlanID, cls.ErrorID)
			return advised
		}
	}

	p.logger.Infof("Planned recovery %s for error %s: strategy=%s steps=%d", plan.PlanID, cls.ErrorID, plan.Strategy, len(plan.Steps))
	return plan
}

// fromStoredPlan reuses the default plan saved for the matched pattern,
// rebound to this error with a fresh plan identifier.
func (p *Planner) fromStoredPlan(ctx context.Context, cls *models.ErrorClassification) *models.RemediationPlan {
	if p.plans == nil {
		return nil
	}
	stored, err := p.plans.GetDefaultPlan(ctx, cls.PatternID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warnf("Default plan lookup failed for pattern %s: %v", cls.PatternID, err)
		}
		return nil
	}

	plan := *stored
	plan.PlanID = uuid.NewString()
	plan.ErrorID = cls.ErrorID
	plan.CreatedAt = time.Now().UTC()
	plan.Steps = append([]models.RemediationStep(nil), stored.Steps...)
	plan.SortSteps()
	return &plan
}

// deterministicPlan builds the per-strategy step table plan.
func (p *Planner) deterministicPlan(cls *models.ErrorClassification, e *models.DetectedError) *models.RemediationPlan {
	strategy := cls.RecommendedStrategy
	if strategy == "" {
		strategy = models.StrategyRetry
	}

	plan := &models.RemediationPlan{
		PlanID:               uuid.NewString(),
		ErrorID:              cls.ErrorID,
		Strategy:             strategy,
		Steps:                buildSteps(strategy, e, cls.SuggestedPrompt, p.cfg.DefaultWait),
		RequiresUserInput:    cls.RequiresUserInput,
		UserPrompt:           cls.SuggestedPrompt,
		Confidence:           cls.Confidence,
		EstimatedSuccessRate: cls.Confidence,
		CreatedAt:            time.Now().UTC(),
	}
	return plan
}

// shouldConsultAdvisor reports whether the deterministic plan is too weak
// to run unexamined.
func (p *Planner) shouldConsultAdvisor(e *models.DetectedError, plan *models.RemediationPlan) bool {
	if p.adv == nil {
		return false
	}
	if plan.RequiresUserInput {
		// The user is already in the loop; no advisory step rewrite needed.
		return false
	}
	if plan.Confidence < p.cfg.AdvisorTrigger {
		return true
	}
	return e.Type == models.ErrorTypeSemanticMismatch || e.Type == models.ErrorTypeContradictoryValues
}

// refineWithAdvisor asks the advisor for a replacement step sequence. The
// deterministic plan is kept as FallbackPlan; invalid advice is discarded.
func (p *Planner) refineWithAdvisor(ctx context.Context, e *models.DetectedError, cls *models.ErrorClassification, det *models.RemediationPlan) *models.RemediationPlan {
	advice, err := p.adv.AdvisePlan(ctx, e, cls, det)
	if err != nil {
		p.logger.Debugf("Plan advisor unavailable for error %s, keeping deterministic plan: %v", cls.ErrorID, err)
		return nil
	}
	if !validSteps(advice.Steps) {
		p.logger.Debugf("Discarded advisor plan for error %s: unknown step actions", cls.ErrorID)
		return nil
	}

	plan := &models.RemediationPlan{
		PlanID:               uuid.NewString(),
		ErrorID:              cls.ErrorID,
		Strategy:             det.Strategy,
		Steps:                normalizeSteps(advice.Steps),
		RequiresUserInput:    det.RequiresUserInput,
		UserPrompt:           det.UserPrompt,
		Confidence:           advice.Confidence,
		EstimatedSuccessRate: advice.Confidence,
		FallbackPlan:         det,
		CreatedAt:            time.Now().UTC(),
	}
	if advice.UserPrompt != "" {
		plan.UserPrompt = advice.UserPrompt
	}
	plan.SortSteps()
	return plan
}

// validSteps rejects advisor step sequences referencing unknown actions.
func validSteps(list []models.RemediationStep) bool {
	if len(list) == 0 {
		return false
	}
	for _, s := range list {
		if !s.Action.IsValid() {
			return false
		}
	}
	return true
}

// normalizeSteps gives advisor steps identifiers and a contiguous order.
func normalizeSteps(list []models.RemediationStep) []models.RemediationStep {
	out := append([]models.RemediationStep(nil), list...)
	for i := range out {
		if out[i].StepID == "" {
			out[i].StepID = uuid.NewString()
		}
		if out[i].Order == 0 {
			out[i].Order = i + 1
		}
	}
	return out
}
