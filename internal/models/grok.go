package models

import (
	"github.com/openai/openai-go/v3/option"
)

const grokBaseURL = "https://api.x.ai/v1"

// NewGrokStoryClient targets x.ai through its OpenAI-compatible API
// (e.g. "grok-beta", "grok-2-1212").
func NewGrokStoryClient(apiKey string, opts StoryOptions, extra ...option.RequestOption) (*StoryClient, error) {
	reqOpts := append([]option.RequestOption{option.WithBaseURL(grokBaseURL)}, extra...)
	return newStoryClient("grok", apiKey, opts, reqOpts...)
}
