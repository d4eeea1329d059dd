// Package models 提供各家模型提供方的适配器实现。
package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/easeaico/project-iyagi/internal/resilient"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// StoryOptions tunes a StoryClient.
type StoryOptions struct {
	Model       string
	// Temperature is left to the provider when nil.
	Temperature *float64
	MaxTokens   int
	Policy      resilient.Policy
	// Structured asks the provider for a JSON-schema constrained response.
	Structured bool
}

// StoryClient generates narrative text through an OpenAI-compatible
// chat completion endpoint.
type StoryClient struct {
	client             *openai.Client
	provider           string
	opts               StoryOptions
	versionHeaderValue string
}

// NewOpenAIStoryClient targets the OpenAI API.
func NewOpenAIStoryClient(apiKey string, opts StoryOptions, extra ...option.RequestOption) (*StoryClient, error) {
	return newStoryClient("openai", apiKey, opts, extra...)
}

func newStoryClient(provider, apiKey string, opts StoryOptions, extra ...option.RequestOption) (*StoryClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	// 重试由 resilient 统一负责，关闭 SDK 自带的重试。
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	reqOpts = append(reqOpts, extra...)
	client := openai.NewClient(reqOpts...)

	headerValue := fmt.Sprintf("%s-go/%s go/%s",
		provider, "1.0.0", strings.TrimPrefix(runtime.Version(), "go"))
	if opts.Policy.Name == "" {
		opts.Policy.Name = "story"
	}

	return &StoryClient{
		client:             &client,
		provider:           provider,
		opts:               opts,
		versionHeaderValue: headerValue,
	}, nil
}

// Provider names the backend the client talks to.
func (c *StoryClient) Provider() string {
	if c == nil {
		return ""
	}
	return c.provider
}

// Model returns the configured model name.
func (c *StoryClient) Model() string {
	if c == nil {
		return ""
	}
	return c.opts.Model
}

// Generate sends one system and user prompt pair and returns the raw text of
// the first choice. Rate-limited calls are retried per the client policy.
func (c *StoryClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("story client not configured")
	}
	params := buildStoryParams(c.opts, systemPrompt, userPrompt)

	attempt := func(ctx context.Context) (*openai.ChatCompletion, error) {
		resp, err := c.client.Chat.Completions.New(ctx, params, option.WithHeader("user-agent", c.versionHeaderValue))
		if err != nil {
			slog.Error("failed to call llm API", "provider", c.provider, "error", err.Error())
			return nil, fmt.Errorf("failed to call %s API: %w", c.provider, err)
		}
		return resp, nil
	}
	return resilient.Do(ctx, c.opts.Policy, attempt, classifyStory, decodeStory)
}

func classifyStory(resp *openai.ChatCompletion, err error) resilient.Outcome {
	if err == nil {
		return resilient.Success
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if resilient.IsRateLimitStatus(apiErr.StatusCode) || resilient.IsRateLimitBody(apiErr.RawJSON()) {
			return resilient.RateLimited
		}
	}
	return resilient.Failed
}

func decodeStory(resp *openai.ChatCompletion) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty message content")
	}
	return content, nil
}

// NewStoryClientFor picks the constructor for a provider name
// (openai, anthropic, grok, openrouter).
func NewStoryClientFor(provider, apiKey string, opts StoryOptions, extra ...option.RequestOption) (*StoryClient, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai":
		return NewOpenAIStoryClient(apiKey, opts, extra...)
	case "anthropic", "claude":
		return NewAnthropicStoryClient(apiKey, opts, extra...)
	case "grok", "xai":
		return NewGrokStoryClient(apiKey, opts, extra...)
	case "openrouter":
		return NewOpenRouterStoryClient(apiKey, opts, extra...)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", provider)
	}
}
