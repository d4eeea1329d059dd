package models

import (
	"strings"

	"github.com/openai/openai-go/v3/option"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouterStoryClient targets OpenRouter. Model names are routed as
// "vendor/model"; a bare name is sent unchanged.
func NewOpenRouterStoryClient(apiKey string, opts StoryOptions, extra ...option.RequestOption) (*StoryClient, error) {
	opts.Model = strings.TrimSpace(opts.Model)
	reqOpts := append([]option.RequestOption{option.WithBaseURL(openRouterBaseURL)}, extra...)
	return newStoryClient("openrouter", apiKey, opts, reqOpts...)
}
