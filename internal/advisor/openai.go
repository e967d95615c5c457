package advisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/harrison/remedy/internal/config"
	"github.com/harrison/remedy/internal/logger"
	"github.com/harrison/remedy/internal/models"
)

const systemPrompt = "You are an advisory component inside an automated error " +
	"recovery pipeline. You always answer with a single JSON object matching " +
	"the schema included in the request. Never add markdown or prose."

// OpenAIAdvisor consults an OpenAI-compatible chat completion endpoint.
// Every call carries a hard timeout so advisory latency is bounded; the
// pipeline's rule-based answers remain usable when calls fail.
type OpenAIAdvisor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  logger.Logger
}

// NewOpenAIAdvisor builds an advisor from configuration. Returns an error
// when the API key environment variable is unset so callers can fall back
// to rule-only operation at startup rather than on first use.
func NewOpenAIAdvisor(cfg config.AdvisorConfig, log logger.Logger) (*OpenAIAdvisor, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("advisor API key environment variable %s not set", cfg.APIKeyEnv)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIAdvisor{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  log,
	}, nil
}

// AdviseClassification implements Advisor.
func (a *OpenAIAdvisor) AdviseClassification(ctx context.Context, detected *models.DetectedError, prior *models.ErrorClassification) (*models.ClassificationAdvice, error) {
	content, err := a.complete(ctx, models.ClassificationAdvicePrompt(detected, prior), models.ClassificationAdviceSchema())
	if err != nil {
		return nil, err
	}
	advice, err := DecodeClassificationAdvice(content)
	if err != nil {
		a.logger.Debugf("Rejected classification advice for error %s: %v", detected.ID, err)
		return nil, err
	}
	return advice, nil
}

// AdvisePlan implements Advisor.
func (a *OpenAIAdvisor) AdvisePlan(ctx context.Context, detected *models.DetectedError, classification *models.ErrorClassification, draft *models.RemediationPlan) (*models.PlanAdvice, error) {
	content, err := a.complete(ctx, models.PlanAdvicePrompt(detected, classification, draft), models.PlanAdviceSchema())
	if err != nil {
		return nil, err
	}
	advice, err := DecodePlanAdvice(content)
	if err != nil {
		a.logger.Debugf("Rejected plan advice for error %s: %v", detected.ID, err)
		return nil, err
	}
	return advice, nil
}

// AdviseImprovements implements Advisor.
func (a *OpenAIAdvisor) AdviseImprovements(ctx context.Context, patterns []*models.ErrorPattern, trigger *models.DetectedError) (*models.ImprovementAdvice, error) {
	content, err := a.complete(ctx, models.ImprovementAdvicePrompt(patterns, trigger), models.ImprovementAdviceSchema())
	if err != nil {
		return nil, err
	}
	advice, err := DecodeImprovementAdvice(content)
	if err != nil {
		a.logger.Debugf("Rejected improvement advice: %v", err)
		return nil, err
	}
	return advice, nil
}

// complete issues one chat completion with the advisor timeout applied and
// returns the raw message content.
func (a *OpenAIAdvisor) complete(ctx context.Context, prompt, schema string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt + "\n\n## RESPONSE SCHEMA\n" + schema},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("advisor call exceeded %s: %w", a.timeout, err)
		}
		return "", fmt.Errorf("advisor call failed: %w", err)
	}
	a.logger.Tracef("Advisor call completed in %s", time.Since(start).Round(time.Millisecond))

	if len(resp.Choices) == 0 {
		return "", errors.New("advisor returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
