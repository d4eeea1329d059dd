package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" || *cfg.LLM.Temperature != 0.8 || cfg.LLM.MaxTokens != 1000 {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if !reflect.DeepEqual(cfg.LLM.Backgrounds, []string{"riverside", "council", "black"}) {
		t.Fatalf("unexpected backgrounds: %v", cfg.LLM.Backgrounds)
	}
	if cfg.ContextHistory != 5 || cfg.ContextTokens != 2000 || cfg.GenerationTimeout != 30*time.Second {
		t.Fatalf("unexpected context settings: %d %d %s", cfg.ContextHistory, cfg.ContextTokens, cfg.GenerationTimeout)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Delay != 60*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.AspectRatio != "16:9" || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected defaults: %s %s", cfg.AspectRatio, cfg.HTTPAddr)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "grok")
	t.Setenv("LLM_API_KEY", "key")
	t.Setenv("AVAILABLE_CHARACTERS", "Sera, Elian")
	t.Setenv("RETRY_DELAY", "2s")
	t.Setenv("CORE_VALUES", "Courage,Wisdom")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.LLM.Provider != "grok" || cfg.LLM.APIKey != "key" {
		t.Fatalf("unexpected llm config: %+v", cfg.LLM)
	}
	if got := cfg.LLM.Resources().Characters; !reflect.DeepEqual(got, []string{"Sera", "Elian"}) {
		t.Fatalf("unexpected characters: %v", got)
	}
	policy := cfg.Retry.Policy("story")
	if policy.Name != "story" || policy.Delay != 2*time.Second || policy.MaxAttempts != 3 {
		t.Fatalf("unexpected policy: %+v", policy)
	}
	if got := cfg.Project.Project().CoreValues; !reflect.DeepEqual(got, []string{"Courage", "Wisdom"}) {
		t.Fatalf("unexpected core values: %v", got)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := writeFile(dir+"/.env", "LLM_MODEL=gpt-4o\nPLAYER_NAME=Hans\n"); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	for _, key := range []string{"LLM_MODEL", "PLAYER_NAME"} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.LLM.Model != "gpt-4o" || cfg.Project.PlayerName != "Hans" {
		t.Fatalf("expected .env values, got %s %s", cfg.LLM.Model, cfg.Project.PlayerName)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_MAX_TOKENS", "many")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	base := Defaults()
	got := base.Resolve(&LLMConfig{Model: "claude-3-5-sonnet", Provider: "anthropic", Backgrounds: []string{" "}})
	if got.Model != "claude-3-5-sonnet" || got.Provider != "anthropic" || *got.Temperature != 0.8 {
		t.Fatalf("unexpected resolved config: %+v", got)
	}
	if !reflect.DeepEqual(got.Backgrounds, Defaults().Backgrounds) {
		t.Fatalf("expected blank backgrounds to fall back, got %v", got.Backgrounds)
	}
	if same := base.Resolve(nil); !reflect.DeepEqual(same, base) {
		t.Fatalf("expected nil override to keep the config")
	}
}

func TestResolveKeepsZeroTemperature(t *testing.T) {
	zero := 0.0
	got := Defaults().Resolve(&LLMConfig{Temperature: &zero})
	if got.Temperature == nil || *got.Temperature != 0 {
		t.Fatalf("expected explicit zero temperature, got %v", got.Temperature)
	}
	if *Defaults().Temperature != 0.8 {
		t.Fatalf("resolve must not change the defaults")
	}
}

func TestLoadZeroTemperature(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_TEMPERATURE", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.LLM.Temperature == nil || *cfg.LLM.Temperature != 0 {
		t.Fatalf("expected LLM_TEMPERATURE=0 to be kept, got %v", cfg.LLM.Temperature)
	}
	if opts := cfg.LLM.StoryOptions(cfg.Retry.Policy("story")); opts.Temperature == nil || *opts.Temperature != 0 {
		t.Fatalf("expected zero temperature in story options")
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{LLM: LLMConfig{APIKey: "key"}}
	if missing := cfg.Validate(FeatureStory); len(missing) != 0 {
		t.Fatalf("expected nothing missing, got %v", missing)
	}
	missing := cfg.Validate(FeatureStory, FeatureChapters, FeatureSound, FeatureDatabase)
	want := []string{"GOOGLE_API_KEY", "ELEVENLABS_API_KEY", "DATABASE_URL"}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("expected %v, got %v", want, missing)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
