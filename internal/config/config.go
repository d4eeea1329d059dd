// Package config loads configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/easeaico/project-iyagi/internal/models"
	"github.com/easeaico/project-iyagi/internal/prompt"
	"github.com/easeaico/project-iyagi/internal/resilient"
	"github.com/easeaico/project-iyagi/internal/types"
)

// LLMConfig selects the story provider and the resources it may use.
type LLMConfig struct {
	Provider    string   `env:"LLM_PROVIDER" envDefault:"openai"`
	APIKey      string   `env:"LLM_API_KEY"`
	Model       string   `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	Temperature *float64 `env:"LLM_TEMPERATURE" envDefault:"0.8"`
	MaxTokens   int      `env:"LLM_MAX_TOKENS" envDefault:"1000"`
	Structured  bool     `env:"LLM_STRUCTURED_OUTPUT" envDefault:"false"`
	Characters  []string `env:"AVAILABLE_CHARACTERS" envDefault:"Hans,Heilner" envSeparator:","`
	Backgrounds []string `env:"AVAILABLE_BACKGROUNDS" envDefault:"riverside,council,black" envSeparator:","`
	Looks       []string `env:"AVAILABLE_LOOKS" envDefault:"Normal_Normal" envSeparator:","`
}

// Defaults returns the built-in LLM settings.
func Defaults() LLMConfig {
	temperature := 0.8
	return LLMConfig{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		Temperature: &temperature,
		MaxTokens:   1000,
		Characters:  []string{"Hans", "Heilner"},
		Backgrounds: []string{"riverside", "council", "black"},
		Looks:       []string{"Normal_Normal"},
	}
}

// Resolve applies the set fields of override on top of c. Empty resource
// lists fall back to the defaults.
func (c LLMConfig) Resolve(override *LLMConfig) LLMConfig {
	out := c
	if override != nil {
		if override.Provider != "" {
			out.Provider = override.Provider
		}
		if override.APIKey != "" {
			out.APIKey = override.APIKey
		}
		if override.Model != "" {
			out.Model = override.Model
		}
		// 0 is a valid temperature; only nil means unset
		if override.Temperature != nil {
			t := *override.Temperature
			out.Temperature = &t
		}
		if override.MaxTokens > 0 {
			out.MaxTokens = override.MaxTokens
		}
		if override.Structured {
			out.Structured = true
		}
		if len(override.Characters) > 0 {
			out.Characters = override.Characters
		}
		if len(override.Backgrounds) > 0 {
			out.Backgrounds = override.Backgrounds
		}
		if len(override.Looks) > 0 {
			out.Looks = override.Looks
		}
	}

	defaults := Defaults()
	if out.Provider == "" {
		out.Provider = defaults.Provider
	}
	if out.Model == "" {
		out.Model = defaults.Model
	}
	if len(trimList(out.Characters)) == 0 {
		out.Characters = defaults.Characters
	}
	if len(trimList(out.Backgrounds)) == 0 {
		out.Backgrounds = defaults.Backgrounds
	}
	if len(trimList(out.Looks)) == 0 {
		out.Looks = defaults.Looks
	}
	return out
}

// Resources returns the renderer resources for prompt building.
func (c LLMConfig) Resources() prompt.Resources {
	return prompt.Resources{
		Characters:  trimList(c.Characters),
		Backgrounds: trimList(c.Backgrounds),
		Looks:       trimList(c.Looks),
	}
}

// StoryOptions returns the client options for the story provider.
func (c LLMConfig) StoryOptions(policy resilient.Policy) models.StoryOptions {
	return models.StoryOptions{
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Policy:      policy,
		Structured:  c.Structured,
	}
}

// RetryConfig tunes the rate-limit retry of every remote client.
type RetryConfig struct {
	MaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	Delay       time.Duration `env:"RETRY_DELAY" envDefault:"60s"`
}

// Policy returns a named retry policy.
func (c RetryConfig) Policy(name string) resilient.Policy {
	return resilient.Policy{Name: name, MaxAttempts: c.MaxAttempts, Delay: c.Delay}
}

// ProjectConfig describes the game used for chapter generation.
type ProjectConfig struct {
	GUID          string   `env:"PROJECT_GUID"`
	Title         string   `env:"PROJECT_TITLE" envDefault:"Untitled"`
	Premise       string   `env:"PROJECT_PREMISE"`
	Genre         string   `env:"PROJECT_GENRE"`
	Tone          string   `env:"PROJECT_TONE"`
	TotalChapters int      `env:"TOTAL_CHAPTERS" envDefault:"5"`
	PlayerName    string   `env:"PLAYER_NAME" envDefault:"Player"`
	NPCs          []string `env:"PROJECT_NPCS" envSeparator:","`
	CoreValues    []string `env:"CORE_VALUES" envSeparator:","`
}

// Project converts the settings to a types.Project.
func (c ProjectConfig) Project() types.Project {
	return types.Project{
		GUID:          c.GUID,
		Title:         c.Title,
		Premise:       c.Premise,
		Genre:         c.Genre,
		Tone:          c.Tone,
		TotalChapters: c.TotalChapters,
		PlayerName:    c.PlayerName,
		NPCs:          trimList(c.NPCs),
		CoreValues:    trimList(c.CoreValues),
	}
}

// Config holds runtime settings.
type Config struct {
	LLM     LLMConfig
	Retry   RetryConfig
	Project ProjectConfig

	ContextHistory    int           `env:"CONTEXT_HISTORY" envDefault:"5"`
	ContextTokens     int           `env:"CONTEXT_TOKENS" envDefault:"2000"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"30s"`
	SessionID         string        `env:"SESSION_ID" envDefault:"default"`

	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	TextModel    string `env:"TEXT_MODEL" envDefault:"gemini-1.5-flash"`
	ImageModel   string `env:"IMAGE_MODEL" envDefault:"gemini-2.5-flash-image"`
	AspectRatio  string `env:"ASPECT_RATIO" envDefault:"16:9"`

	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
	AudioDir         string `env:"AUDIO_DIR"`

	DatabaseURL string `env:"DATABASE_URL"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Feature names a capability with required settings.
type Feature int

const (
	FeatureStory Feature = iota
	FeatureChapters
	FeatureSound
	FeatureDatabase
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.LLM = Defaults().Resolve(&cfg.LLM)
	if cfg.ContextHistory <= 0 {
		cfg.ContextHistory = 5
	}
	return cfg, nil
}

// Validate returns the environment variables missing for features.
func (c Config) Validate(features ...Feature) []string {
	var missing []string
	for _, feature := range features {
		switch feature {
		case FeatureStory:
			if strings.TrimSpace(c.LLM.APIKey) == "" {
				missing = append(missing, "LLM_API_KEY")
			}
		case FeatureChapters:
			if strings.TrimSpace(c.GoogleAPIKey) == "" {
				missing = append(missing, "GOOGLE_API_KEY")
			}
		case FeatureSound:
			if strings.TrimSpace(c.ElevenLabsAPIKey) == "" {
				missing = append(missing, "ELEVENLABS_API_KEY")
			}
		case FeatureDatabase:
			if strings.TrimSpace(c.DatabaseURL) == "" {
				missing = append(missing, "DATABASE_URL")
			}
		}
	}
	return missing
}

// AudioDirOrTemp returns AudioDir, or the OS temp dir when unset.
func (c Config) AudioDirOrTemp() string {
	if c.AudioDir != "" {
		return c.AudioDir
	}
	return os.TempDir()
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
