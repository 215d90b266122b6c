package openai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bazaarline/discovery/internal/domain"
	"github.com/bazaarline/discovery/internal/metrics"
)

// Completer is a chat completion provider using the OpenAI-compatible API.
// Both the primary provider and the secondary (e.g. the Hugging Face router)
// speak this protocol, so one adapter covers both.
type Completer struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// CompleterConfig holds the completion provider settings.
type CompleterConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Logger    *zap.Logger
}

// NewCompleter creates an OpenAI-compatible chat completion provider.
func NewCompleter(cfg *CompleterConfig) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Completer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
}

// Complete sends a single-turn prompt and returns the assistant reply text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteChat(ctx, []domain.ConversationTurn{
		{Role: domain.RoleUser, Text: prompt},
	})
}

// CompleteChat sends a multi-turn conversation and returns the assistant reply text.
func (c *Completer) CompleteChat(ctx context.Context, turns []domain.ConversationTurn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Text,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", parseCompletionError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", fmt.Errorf("no choices in completion response: %w", domain.ErrLLMProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies the completion provider is reachable.
func (c *Completer) HealthCheck(ctx context.Context) error {
	_, err := c.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("llm health check: %w", err)
	}
	return nil
}

// rateLimitRe matches quota and rate-limit phrasing across providers
// (Gemini reports RESOURCE_EXHAUSTED through its compatibility endpoint).
var rateLimitRe = regexp.MustCompile(`(?i)RESOURCE_EXHAUSTED|quota|rate limit|429`)

// parseCompletionError maps provider errors to domain sentinels. Rate-limit
// rejections get their own sentinel so callers can route to a secondary provider.
func parseCompletionError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || rateLimitRe.MatchString(apiErr.Message) {
			return fmt.Errorf("completion API error %d: %s: %w",
				apiErr.HTTPStatusCode, apiErr.Message, domain.ErrLLMRateLimited)
		}
		return fmt.Errorf("completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrLLMProviderError)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 429 {
			return fmt.Errorf("completion API error %d: %w",
				reqErr.HTTPStatusCode, domain.ErrLLMRateLimited)
		}
		return fmt.Errorf("completion API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), domain.ErrLLMProviderError)
	}

	return fmt.Errorf("completion request failed: %w", domain.ErrLLMProviderError)
}
