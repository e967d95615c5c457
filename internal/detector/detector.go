// Package detector inspects workflow step inputs, outputs and failures and
// raises normalized anomaly records. Detection never blocks on persistence:
// when the store is unreachable the record gets a locally generated
// identifier and lands in the fallback journal instead.
package detector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/remedy/internal/logger"
	"github.com/harrison/remedy/internal/models"
)

// ErrorLog persists detected errors. Satisfied by *store.Store.
type ErrorLog interface {
	LogError(ctx context.Context, e *models.DetectedError) error
}

// FallbackJournal receives detections the store could not take. Satisfied by
// *journal.Journal.
type FallbackJournal interface {
	Append(e *models.DetectedError, reason string) error
}

// Source identifies where in the workflow an anomaly was observed.
type Source struct {
	Type        string
	ID          string
	StepID      string
	ComponentID string
}

// ContradictionRule flags a combination of field values that cannot all be
// true at once. Violated reports whether the values contradict each other.
type ContradictionRule struct {
	Fields   []string
	Message  string
	Violated func(values map[string]interface{}) bool
}

// Detector raises DetectedError records from payloads, exceptions and
// timing. Safe for concurrent use.
type Detector struct {
	schemas  *SchemaRegistry
	log      ErrorLog
	fallback FallbackJournal
	logger   logger.Logger

	watchdogs watchdogTable
}

// NewDetector creates a Detector. fallback may be nil when no journal is
// configured; store failures are then logged and the record proceeds with a
// local identifier only.
func NewDetector(schemas *SchemaRegistry, log ErrorLog, fallback FallbackJournal, lg logger.Logger) *Detector {
	return &Detector{
		schemas:  schemas,
		log:      log,
		fallback: fallback,
		logger:   lg,
	}
}

// DetectInputErrors checks payload against the schema registered for
// schemaKey. Returns nil when the payload is acceptable.
func (d *Detector) DetectInputErrors(ctx context.Context, payload map[string]interface{}, schemaKey string, src Source) (*models.DetectedError, error) {
	if payload == nil {
		e := d.newError(models.ErrorTypeNullValue, models.CategoryInputGap, models.SeverityHigh, src,
			fmt.Sprintf("null payload for schema %s", schemaKey))
		d.record(ctx, e)
		return e, nil
	}

	schema := d.schemas.Get(schemaKey)
	if schema == nil {
		return nil, fmt.Errorf("no schema registered for key %q", schemaKey)
	}

	if missing := schema.MissingFields(payload); len(missing) > 0 {
		e := d.newError(models.ErrorTypeMissingInput, models.CategoryInputGap, models.SeverityMedium, src,
			fmt.Sprintf("missing required fields for schema %s: %s", schemaKey, strings.Join(missing, ", ")))
		e.Details = map[string]interface{}{"missing_fields": missing}
		e.InputData = payload
		d.record(ctx, e)
		return e, nil
	}

	if violations := d.schemas.Violations(schema, payload); len(violations) > 0 {
		e := d.newError(models.ErrorTypeSchemaViolation, models.CategoryRecoverable, models.SeverityMedium, src,
			fmt.Sprintf("schema %s validation failed: %s", schemaKey, strings.Join(violations, "; ")))
		e.Details = map[string]interface{}{"violations": violations}
		e.InputData = payload
		d.record(ctx, e)
		return e, nil
	}

	return nil, nil
}

// unresolvableMarkers identify failures recovery must not touch. Auth and
// quota problems need an operator, not a retry loop.
var unresolvableMarkers = []string{
	"unauthorized", "forbidden", "invalid api key", "api key",
	"permission denied", "access denied",
	"rate limit", "quota exceeded", "too many requests",
	"401", "403", "429",
}

// DetectExecutionError classifies a failure raised during step execution.
// Always returns a record for a non-nil execErr.
func (d *Detector) DetectExecutionError(ctx context.Context, execErr error, src Source) *models.DetectedError {
	if execErr == nil {
		return nil
	}
	msg := execErr.Error()
	lower := strings.ToLower(msg)

	for _, marker := range unresolvableMarkers {
		if strings.Contains(lower, marker) {
			e := d.newError(classifyExecutionType(lower), models.CategoryUnresolvable, models.SeverityCritical, src, msg)
			e.Recoverable = false
			d.record(ctx, e)
			return e
		}
	}

	errType := classifyExecutionType(lower)
	severity := models.SeverityMedium
	if errType == models.ErrorTypeTimeout || errType == models.ErrorTypeAPIFailure || errType == models.ErrorTypeAgentFailure {
		severity = models.SeverityHigh
	}
	e := d.newError(errType, models.CategoryRecoverable, severity, src, msg)
	d.record(ctx, e)
	return e
}

// classifyExecutionType maps a lowercased failure message to an error type
// by substring.
func classifyExecutionType(lower string) models.ErrorType {
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") || strings.Contains(lower, "deadline exceeded"):
		return models.ErrorTypeTimeout
	case strings.Contains(lower, "api") || strings.Contains(lower, "http") || strings.Contains(lower, "fetch") || strings.Contains(lower, "request failed") || strings.Contains(lower, "502") || strings.Contains(lower, "503"):
		return models.ErrorTypeAPIFailure
	case strings.Contains(lower, "agent"):
		return models.ErrorTypeAgentFailure
	case strings.Contains(lower, "schema") || strings.Contains(lower, "validation"):
		return models.ErrorTypeSchemaViolation
	default:
		return models.ErrorTypeExecutionFailure
	}
}

// DetectSemanticMismatch checks actual against the expected structural type
// (number, string, boolean, array, object, date). Returns nil on match.
func (d *Detector) DetectSemanticMismatch(ctx context.Context, expectedType string, actual interface{}, fieldName string, src Source) *models.DetectedError {
	actualType := structuralType(actual)
	if matchesType(expectedType, actual) {
		return nil
	}

	e := d.newError(models.ErrorTypeSemanticMismatch, models.CategoryRecoverable, models.SeverityMedium, src,
		fmt.Sprintf("field %s: expected %s, got %s", fieldName, expectedType, actualType))
	e.Details = map[string]interface{}{
		"field":         fieldName,
		"expected_type": expectedType,
		"actual_type":   actualType,
	}
	d.record(ctx, e)
	return e
}

// DetectContradictoryValues evaluates rules against values. The first
// violated rule produces the record; later rules are not evaluated.
func (d *Detector) DetectContradictoryValues(ctx context.Context, values map[string]interface{}, rules []ContradictionRule, src Source) *models.DetectedError {
	for _, rule := range rules {
		if rule.Violated == nil || !rule.Violated(values) {
			continue
		}
		e := d.newError(models.ErrorTypeContradictoryValues, models.CategoryRecoverable, models.SeverityMedium, src, rule.Message)
		e.Details = map[string]interface{}{"fields": rule.Fields}
		e.InputData = values
		d.record(ctx, e)
		return e
	}
	return nil
}

// DetectLowConfidence flags a result whose confidence fell below threshold.
func (d *Detector) DetectLowConfidence(ctx context.Context, confidence, threshold float64, src Source) *models.DetectedError {
	if confidence >= threshold {
		return nil
	}
	e := d.newError(models.ErrorTypeLowConfidence, models.CategoryRecoverable, models.SeverityLow, src,
		fmt.Sprintf("confidence %.2f below threshold %.2f", confidence, threshold))
	e.Confidence = confidence
	d.record(ctx, e)
	return e
}

// newError builds a recoverable-by-default record stamped with the source.
func (d *Detector) newError(t models.ErrorType, c models.ErrorCategory, sev models.Severity, src Source, msg string) *models.DetectedError {
	return &models.DetectedError{
		Type:        t,
		Category:    c,
		Severity:    sev,
		SourceType:  src.Type,
		SourceID:    src.ID,
		StepID:      src.StepID,
		ComponentID: src.ComponentID,
		Message:     msg,
		Recoverable: c != models.CategoryUnresolvable,
		DetectedAt:  time.Now().UTC(),
	}
}

// record persists the detection, degrading to a local identifier plus the
// fallback journal when the store is unreachable.
func (d *Detector) record(ctx context.Context, e *models.DetectedError) {
	if d.log == nil {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		return
	}

	err := d.log.LogError(ctx, e)
	if err == nil {
		d.logger.Debugf("Detected %s error %s (%s)", e.Type, e.ID, e.Severity)
		return
	}

	d.logger.Warnf("Failed to log detected error: %v", err)
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if d.fallback != nil {
		if jerr := d.fallback.Append(e, err.Error()); jerr != nil {
			d.logger.Errorf("Fallback journal write failed: %v", jerr)
		}
	}
}
