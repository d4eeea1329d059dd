package models

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/easeaico/project-iyagi/internal/types"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go/v3"
)

// storyResponse wraps the dialogue array because structured output requires
// an object at the top level. The array is still located by bracket search.
type storyResponse struct {
	Dialogues []types.StoryEntry `json:"dialogues" jsonschema:"dialogue entries in playback order"`
}

var (
	storySchemaOnce sync.Once
	storySchema     map[string]any
)

// buildStoryParams converts a prompt pair into chat completion parameters.
func buildStoryParams(opts StoryOptions, systemPrompt, userPrompt string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: opts.Model,
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))
	params.Messages = messages

	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	if opts.Structured {
		if schema := storyResponseSchema(); schema != nil {
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
					JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
						Name:        "story_dialogues",
						Description: openai.String("Visual novel dialogue entries"),
						Schema:      schema,
						Strict:      openai.Bool(false),
					},
				},
			}
		}
	}
	return params
}

// storyResponseSchema derives the response schema from the entry types once.
func storyResponseSchema() map[string]any {
	storySchemaOnce.Do(func() {
		schema, err := jsonschema.For[storyResponse](nil)
		if err != nil {
			slog.Error("failed to build story response schema", "error", err.Error())
			return
		}
		storySchema = convertSchemaToJSONSchema(schema)
	})
	return storySchema
}

// convertSchemaToJSONSchema converts jsonschema.Schema to a plain JSON Schema map
func convertSchemaToJSONSchema(schema *jsonschema.Schema) map[string]any {
	result := convertSchemaProperty(schema)
	if _, ok := result["type"]; !ok {
		result["type"] = "object"
	}
	if _, ok := result["required"]; !ok {
		result["required"] = []string{}
	}
	return result
}

// convertSchemaProperty converts a single jsonschema.Schema property to JSON Schema format
func convertSchemaProperty(schema *jsonschema.Schema) map[string]any {
	if schema == nil {
		return nil
	}

	prop := make(map[string]any)

	// Multiple types - use first non-null type
	if len(schema.Types) > 0 {
		prop["type"] = schema.Types[0]
		for _, t := range schema.Types {
			if t != "null" {
				prop["type"] = t
				break
			}
		}
	} else if schema.Type != "" {
		prop["type"] = schema.Type
	}

	if schema.Description != "" {
		prop["description"] = schema.Description
	}
	if len(schema.Enum) > 0 {
		prop["enum"] = schema.Enum
	}
	if len(schema.Default) > 0 {
		var defaultVal any
		if err := json.Unmarshal(schema.Default, &defaultVal); err == nil {
			prop["default"] = defaultVal
		}
	}

	if schema.Items != nil {
		prop["items"] = convertSchemaProperty(schema.Items)
	}

	if len(schema.Properties) > 0 {
		properties := make(map[string]any, len(schema.Properties))
		for name, propSchema := range schema.Properties {
			if propSchema != nil {
				properties[name] = convertSchemaProperty(propSchema)
			}
		}
		prop["properties"] = properties
		prop["additionalProperties"] = false
	}

	if len(schema.Required) > 0 {
		prop["required"] = schema.Required
	}

	return prop
}
