package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/pkg/circuitbreaker"
	"github.com/aivis/backend/pkg/config"
	"github.com/aivis/backend/pkg/logger"
	"github.com/aivis/backend/pkg/retry"
)

// Provider identifies the vendor serving a model.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// OpenAI-compatible endpoints for the non-OpenAI vendors.
const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	googleBaseURL    = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// ProviderFor infers the vendor from a model name.
func ProviderFor(model string) Provider {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "claude"):
		return ProviderAnthropic
	case strings.Contains(m, "gemini"):
		return ProviderGoogle
	default:
		return ProviderOpenAI
	}
}

// Result is one completed LLM call.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	DurationMS       int
	Citations        []models.Citation
}

// Client fans completion requests out to the provider matching the model,
// with retry and a per-provider circuit breaker.
type Client struct {
	clients     map[Provider]*openai.Client
	breakers    map[Provider]*circuitbreaker.CircuitBreaker
	retryConfig retry.Config
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

func NewClient(cfg config.LLMConfig) (*Client, error) {
	keys := map[Provider]string{
		ProviderOpenAI:    cfg.OpenAIKey,
		ProviderAnthropic: cfg.AnthropicKey,
		ProviderGoogle:    cfg.GoogleKey,
	}
	baseURLs := map[Provider]string{
		ProviderAnthropic: anthropicBaseURL,
		ProviderGoogle:    googleBaseURL,
	}

	clients := map[Provider]*openai.Client{}
	breakers := map[Provider]*circuitbreaker.CircuitBreaker{}
	for provider, key := range keys {
		if key == "" {
			continue
		}
		clientCfg := openai.DefaultConfig(key)
		if baseURL, ok := baseURLs[provider]; ok {
			clientCfg.BaseURL = baseURL
		}
		clients[provider] = openai.NewClientWithConfig(clientCfg)
		breakers[provider] = circuitbreaker.NewCircuitBreaker(string(provider), circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			Logger:           logger.L(),
		})
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no llm provider keys configured")
	}

	logger.Info("LLM client initialized", zap.Int("providers", len(clients)))

	return &Client{
		clients:  clients,
		breakers: breakers,
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   time.Second,
			MaxDelay:       15 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.2,
			Logger:         logger.L(),
		},
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
	}, nil
}

// Complete runs one prompt against one model. When webSearch is on, markdown
// links in the answer are lifted out as citations.
func (c *Client) Complete(ctx context.Context, model, prompt string, webSearch bool) (*Result, error) {
	provider := ProviderFor(model)
	client, ok := c.clients[provider]
	if !ok {
		return nil, fmt.Errorf("no api key configured for provider %s", provider)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	start := time.Now()
	response, err := retry.DoWithResult(ctx, c.retryConfig, func() (openai.ChatCompletionResponse, error) {
		var resp openai.ChatCompletionResponse
		execErr := c.breakers[provider].Execute(ctx, func() error {
			var callErr error
			resp, callErr = client.CreateChatCompletion(ctx, request)
			return callErr
		})
		return resp, execErr
	})
	if err != nil {
		return nil, fmt.Errorf("completion failed for model %s: %w", model, err)
	}
	duration := time.Since(start)

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("model %s returned no choices", model)
	}
	text := response.Choices[0].Message.Content

	result := &Result{
		Text:             text,
		PromptTokens:     response.Usage.PromptTokens,
		CompletionTokens: response.Usage.CompletionTokens,
		TotalTokens:      response.Usage.TotalTokens,
		DurationMS:       int(duration.Milliseconds()),
	}
	if webSearch {
		result.Citations = extractCitations(text)
	}

	logger.Debug("Completion finished",
		zap.String("model", model),
		zap.Int("total_tokens", result.TotalTokens),
		zap.Duration("duration", duration),
	)
	return result, nil
}

var markdownLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)`)

func extractCitations(text string) []models.Citation {
	matches := markdownLinkPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	citations := make([]models.Citation, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m[2]]; dup {
			continue
		}
		seen[m[2]] = struct{}{}
		citations = append(citations, models.Citation{Title: m[1], URL: m[2]})
	}
	return citations
}
