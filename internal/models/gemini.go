package models

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/easeaico/project-iyagi/internal/resilient"
	"github.com/easeaico/project-iyagi/internal/utils"
	"google.golang.org/genai"
)

// generateContentFunc matches genai's Models.GenerateContent.
type generateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

func newGenaiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// TextClient generates plain text with a Gemini model.
type TextClient struct {
	generate generateContentFunc
	model    string
	policy   resilient.Policy
}

// NewGeminiTextClient creates a text client for model.
func NewGeminiTextClient(ctx context.Context, apiKey, model string, policy resilient.Policy) (*TextClient, error) {
	client, err := newGenaiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if policy.Name == "" {
		policy.Name = "text"
	}
	return &TextClient{
		generate: client.Models.GenerateContent,
		model:    strings.TrimSpace(model),
		policy:   policy,
	}, nil
}

// Generate returns the concatenated text of the first candidate.
func (c *TextClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.generate == nil {
		return "", fmt.Errorf("text client not configured")
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.9),
		TopK:            genai.Ptr[float32](40),
		TopP:            genai.Ptr[float32](0.95),
		MaxOutputTokens: 4096,
	}
	attempt := func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		resp, err := c.generate(ctx, c.model, genai.Text(prompt), config)
		if err != nil {
			return nil, fmt.Errorf("generate text: %w", err)
		}
		return resp, nil
	}
	return resilient.Do(ctx, c.policy, attempt, classifyGenai[*genai.GenerateContentResponse], decodeText)
}

func decodeText(resp *genai.GenerateContentResponse) (string, error) {
	text, ok := utils.ExtractResponseText(resp)
	if !ok {
		return "", fmt.Errorf("no candidates in response")
	}
	return text, nil
}

func classifyGenai[R any](_ R, err error) resilient.Outcome {
	if err == nil {
		return resilient.Success
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if resilient.IsRateLimitStatus(apiErr.Code) || resilient.IsRateLimitBody(apiErr.Message) || resilient.IsRateLimitBody(apiErr.Status) {
			return resilient.RateLimited
		}
		return resilient.Failed
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		if resilient.IsRateLimitStatus(apiErrPtr.Code) || resilient.IsRateLimitBody(apiErrPtr.Message) {
			return resilient.RateLimited
		}
	}
	return resilient.Failed
}

// ImageGenerator renders CG stills with a Gemini image model.
type ImageGenerator struct {
	generate    generateContentFunc
	model       string
	aspectRatio string
	policy      resilient.Policy
}

func NewGeminiImageGenerator(ctx context.Context, apiKey, model, aspectRatio string, policy resilient.Policy) (*ImageGenerator, error) {
	client, err := newGenaiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if policy.Name == "" {
		policy.Name = "image"
	}

	return &ImageGenerator{
		generate:    client.Models.GenerateContent,
		model:       strings.TrimSpace(model),
		aspectRatio: normalizeAspectRatio(aspectRatio),
		policy:      policy,
	}, nil
}

// Generate returns the first inline image of the response as a data URL.
func (g *ImageGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.generate == nil {
		return "", fmt.Errorf("image generator not configured")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: g.aspectRatio,
		},
	}
	attempt := func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		resp, err := g.generate(ctx, g.model, genai.Text(prompt), config)
		if err != nil {
			return nil, fmt.Errorf("generate image: %w", err)
		}
		return resp, nil
	}
	return resilient.Do(ctx, g.policy, attempt, classifyGenai[*genai.GenerateContentResponse], decodeImage)
}

func decodeImage(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty image response")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mimeType := strings.TrimSpace(part.InlineData.MIMEType)
		if mimeType == "" {
			mimeType = "image/png"
		}
		encoded := base64.StdEncoding.EncodeToString(part.InlineData.Data)
		return fmt.Sprintf("data:%s;base64,%s", mimeType, encoded), nil
	}
	return "", fmt.Errorf("image data missing in response")
}

// CG stills are landscape by default.
func normalizeAspectRatio(value string) string {
	value = strings.TrimSpace(value)
	switch value {
	case "1:1", "3:4", "4:3", "9:16", "16:9":
		return value
	default:
		return "16:9"
	}
}
