package models

import (
	"github.com/openai/openai-go/v3/option"
)

const anthropicBaseURL = "https://api.anthropic.com/v1/"

// NewAnthropicStoryClient targets the OpenAI SDK compatible endpoint of the
// Anthropic API. Structured output is not supported there.
func NewAnthropicStoryClient(apiKey string, opts StoryOptions, extra ...option.RequestOption) (*StoryClient, error) {
	opts.Structured = false
	reqOpts := append([]option.RequestOption{option.WithBaseURL(anthropicBaseURL)}, extra...)
	return newStoryClient("anthropic", apiKey, opts, reqOpts...)
}
