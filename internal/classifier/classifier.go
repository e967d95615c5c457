// Package classifier turns detected errors into recovery classifications
// using three tiers evaluated in order: learned patterns, the deterministic
// rule table, and the LLM advisor. The first tier meeting its confidence
// bar wins; the advisor refines the rule-based result rather than
// classifying from scratch, and its failures silently fall back.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrison/remedy/internal/advisor"
	"github.com/harrison/remedy/internal/config"
	"github.com/harrison/remedy/internal/logger"
	"github.com/harrison/remedy/internal/models"
	"github.com/harrison/remedy/internal/store"
)

// PatternSource looks up learned error patterns. Satisfied by *store.Store.
type PatternSource interface {
	FindPatterns(ctx context.Context, key store.PatternKey, limit int) ([]*models.ErrorPattern, error)
}

// Classifier classifies detected errors. Safe for concurrent use; the
// advice cache it owns is internally locked.
type Classifier struct {
	patterns PatternSource
	adv      advisor.Advisor
	cfg      config.ClassifierConfig
	cache    *adviceCache
	logger   logger.Logger
}

// NewClassifier creates a Classifier. adv may be nil to run rule-only.
func NewClassifier(patterns PatternSource, adv advisor.Advisor, cfg config.ClassifierConfig, lg logger.Logger) *Classifier {
	return &Classifier{
		patterns: patterns,
		adv:      adv,
		cfg:      cfg,
		cache:    newAdviceCache(cfg.CacheTTL, cfg.CacheSize),
		logger:   lg,
	}
}

// Classify produces a new classification record for e. The input record is
// never mutated; calling Classify twice yields equal results aside from the
// advisor's nondeterminism, which the cache absorbs within its TTL.
func (c *Classifier) Classify(ctx context.Context, e *models.DetectedError) *models.ErrorClassification {
	if cls, ok := c.classifyFromPattern(ctx, e); ok {
		c.journal(e, cls, "adopted learned pattern "+cls.PatternID)
		return cls
	}

	cls := c.classifyFromRules(e)
	if !c.shouldConsultAdvisor(e, cls) {
		c.journal(e, cls, "rule table")
		return cls
	}

	refined, rationale := c.refineWithAdvisor(ctx, e, cls)
	c.journal(e, refined, rationale)
	return refined
}

// classifyFromPattern is the first tier: adopt a learned pattern's
// strategies when its success rate clears the adoption bar.
func (c *Classifier) classifyFromPattern(ctx context.Context, e *models.DetectedError) (*models.ErrorClassification, bool) {
	if c.patterns == nil {
		return nil, false
	}

	key := store.PatternKey{
		Type:         e.Type,
		Category:     e.Category,
		SourceType:   e.SourceType,
		ComponentID:  e.ComponentID,
		MessageShape: models.MessageShape(e.Message),
	}
	matches, err := c.patterns.FindPatterns(ctx, key, 5)
	if err != nil {
		c.logger.Warnf("Pattern lookup failed for error %s: %v", e.ID, err)
		return nil, false
	}
	if len(matches) == 0 {
		return nil, false
	}

	best := matches[0]
	if best.SuccessRate <= c.cfg.PatternAdoptionRate || len(best.RecoveryStrategies) == 0 {
		return nil, false
	}

	cls := &models.ErrorClassification{
		ErrorID:             e.ID,
		Type:                e.Type,
		Category:            e.Category,
		SourceType:          e.SourceType,
		Message:             e.Message,
		Recoverable:         e.Recoverable,
		Strategies:          append([]models.Strategy(nil), best.RecoveryStrategies...),
		RecommendedStrategy: recommendedFromPattern(best),
		Confidence:          best.SuccessRate,
		PatternID:           best.ID,
	}
	c.applyOverrides(e, cls)
	return cls, true
}

// recommendedFromPattern prefers a strategy that has actually succeeded.
func recommendedFromPattern(p *models.ErrorPattern) models.Strategy {
	if len(p.SuccessfulStrategies) > 0 {
		return p.SuccessfulStrategies[0]
	}
	return p.RecoveryStrategies[0]
}

// classifyFromRules is the second tier: the deterministic table.
func (c *Classifier) classifyFromRules(e *models.DetectedError) *models.ErrorClassification {
	r := ruleFor(e)
	cls := &models.ErrorClassification{
		ErrorID:             e.ID,
		Type:                e.Type,
		Category:            e.Category,
		SourceType:          e.SourceType,
		Message:             e.Message,
		Recoverable:         e.Recoverable,
		Strategies:          append([]models.Strategy(nil), r.strategies...),
		RecommendedStrategy: r.recommended,
		Confidence:          r.confidence,
		RequiresUserInput:   r.needsUser,
	}
	c.applyOverrides(e, cls)
	return cls
}

// applyOverrides enforces the invariants no tier may relax: unresolvable
// errors, critical severity, missing input, and a user_input strategy all
// require a human.
func (c *Classifier) applyOverrides(e *models.DetectedError, cls *models.ErrorClassification) {
	if e.Category == models.CategoryUnresolvable {
		r := unresolvableRule
		cls.Strategies = append([]models.Strategy(nil), r.strategies...)
		cls.RecommendedStrategy = r.recommended
		cls.RequiresUserInput = true
		cls.Recoverable = false
	}
	if e.Severity == models.SeverityCritical {
		cls.RequiresUserInput = true
	}
	// A recovery that asks the user for something cannot run unattended,
	// regardless of which tier produced the classification.
	if cls.RecommendedStrategy == models.StrategyUserInput || e.Type == models.ErrorTypeMissingInput {
		cls.RequiresUserInput = true
	}
	if cls.RequiresUserInput && cls.SuggestedPrompt == "" {
		cls.SuggestedPrompt = suggestedPrompt(e)
	}
}

// suggestedPrompt builds the user-facing question for classifications that
// need human input.
func suggestedPrompt(e *models.DetectedError) string {
	if fields := missingFields(e); len(fields) > 0 {
		return fmt.Sprintf("Please provide values for the missing fields: %s", strings.Join(fields, ", "))
	}
	if e.Type == models.ErrorTypeContradictoryValues {
		return fmt.Sprintf("Conflicting values were detected (%s). Which value should be used?", e.Message)
	}
	return fmt.Sprintf("Additional input is needed to recover from: %s", e.Message)
}

// missingFields reads details.missing_fields, tolerating both the
// detector's []string and the JSON round-trip's []interface{}.
func missingFields(e *models.DetectedError) []string {
	raw, ok := e.Details["missing_fields"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		fields := make([]string, 0, len(v))
		for _, f := range v {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	default:
		return nil
	}
}

// shouldConsultAdvisor reports whether the rule-based result is too weak to
// stand alone.
func (c *Classifier) shouldConsultAdvisor(e *models.DetectedError, cls *models.ErrorClassification) bool {
	if c.adv == nil {
		return false
	}
	if cls.Confidence < c.cfg.AdvisorTrigger {
		return true
	}
	if e.Type == models.ErrorTypeSemanticMismatch || e.Type == models.ErrorTypeContradictoryValues {
		return true
	}
	return len(e.Message) > c.cfg.LongMessageChars
}

// refineWithAdvisor is the third tier. The merge keeps the advisor honest:
// its category and strategies are adopted only when it agrees with the
// rule-based category (or expresses no category opinion); on disagreement
// the rule-based result stands untouched.
func (c *Classifier) refineWithAdvisor(ctx context.Context, e *models.DetectedError, prior *models.ErrorClassification) (*models.ErrorClassification, string) {
	key := cacheKey(e)
	advice, cached := c.cache.get(key)
	if !cached {
		var err error
		advice, err = c.adv.AdviseClassification(ctx, e, prior)
		if err != nil {
			c.logger.Debugf("Advisor unavailable for error %s, keeping rule-based result: %v", e.ID, err)
			return prior, "rule table (advisor unavailable)"
		}
		c.cache.set(key, advice)
	}

	if advice.Category != "" && advice.Category != prior.Category {
		return prior, fmt.Sprintf("rule table (advisor disagreed on category: %s)", advice.Category)
	}

	merged := *prior
	merged.Strategies = append([]models.Strategy(nil), prior.Strategies...)
	if len(advice.Strategies) > 0 {
		merged.Strategies = append([]models.Strategy(nil), advice.Strategies...)
	}
	if advice.RecommendedStrategy != "" {
		merged.RecommendedStrategy = advice.RecommendedStrategy
	}
	if advice.Confidence > merged.Confidence {
		merged.Confidence = advice.Confidence
	}
	if advice.RequiresUserInput != nil {
		merged.RequiresUserInput = *advice.RequiresUserInput
	}
	if advice.SuggestedPrompt != "" {
		merged.SuggestedPrompt = advice.SuggestedPrompt
	}
	c.applyOverrides(e, &merged)

	rationale := "advisor refinement"
	if cached {
		rationale = "advisor refinement (cached)"
	}
	return &merged, rationale
}

// journal emits the audit line every classification carries.
func (c *Classifier) journal(e *models.DetectedError, cls *models.ErrorClassification, rationale string) {
	c.logger.Infof("Classified error %s: type=%s category=%s strategy=%s confidence=%.2f via %s",
		e.ID, cls.Type, cls.Category, cls.RecommendedStrategy, cls.Confidence, rationale)
}
