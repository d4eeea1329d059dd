package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/easeaico/project-iyagi/internal/resilient"
	"github.com/segmentio/ksuid"
)

const (
	elevenLabsBaseURL   = "https://api.elevenlabs.io"
	soundGenerationPath = "/v1/sound-generation"

	defaultBGMSeconds      = 60
	defaultSFXSeconds      = 5
	defaultPromptInfluence = 0.3
)

// SoundClip is a decoded generated audio clip.
type SoundClip struct {
	Name     string
	Data     []byte
	Format   string
	Duration time.Duration
}

// SoundClient generates background music and sound effects with ElevenLabs.
type SoundClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	tempDir    string
	policy     resilient.Policy
}

// SoundOption customizes a SoundClient.
type SoundOption func(*SoundClient)

// WithSoundBaseURL points the client at another host, e.g. a test server.
func WithSoundBaseURL(baseURL string) SoundOption {
	return func(c *SoundClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithSoundHTTPClient replaces the default HTTP client.
func WithSoundHTTPClient(client *http.Client) SoundOption {
	return func(c *SoundClient) {
		c.httpClient = client
	}
}

// WithSoundTempDir sets where downloaded clips are staged.
func WithSoundTempDir(dir string) SoundOption {
	return func(c *SoundClient) {
		c.tempDir = dir
	}
}

func NewElevenLabsClient(apiKey string, policy resilient.Policy, opts ...SoundOption) (*SoundClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if policy.Name == "" {
		policy.Name = "sound"
	}
	c := &SoundClient{
		apiKey:     apiKey,
		baseURL:    elevenLabsBaseURL,
		httpClient: &http.Client{Timeout: 3 * time.Minute},
		tempDir:    os.TempDir(),
		policy:     policy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GenerateBGM generates a music track. A non-positive duration means 60s.
func (c *SoundClient) GenerateBGM(ctx context.Context, description string, seconds float64) (*SoundClip, error) {
	if seconds <= 0 {
		seconds = defaultBGMSeconds
	}
	return c.generate(ctx, description, seconds)
}

// GenerateSFX generates a sound effect. A non-positive duration means 5s.
func (c *SoundClient) GenerateSFX(ctx context.Context, description string, seconds float64) (*SoundClip, error) {
	if seconds <= 0 {
		seconds = defaultSFXSeconds
	}
	return c.generate(ctx, description, seconds)
}

type soundRequest struct {
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"duration_seconds"`
	PromptInfluence float64 `json:"prompt_influence"`
}

type soundResponse struct {
	status int
	body   []byte
}

func (c *SoundClient) generate(ctx context.Context, description string, seconds float64) (*SoundClip, error) {
	if c == nil || c.apiKey == "" {
		return nil, fmt.Errorf("sound client not configured")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}

	payload, err := json.Marshal(soundRequest{
		Text:            description,
		DurationSeconds: seconds,
		PromptInfluence: defaultPromptInfluence,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sound request: %w", err)
	}

	attempt := func(ctx context.Context) (soundResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+soundGenerationPath, bytes.NewReader(payload))
		if err != nil {
			return soundResponse{}, fmt.Errorf("failed to build sound request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("xi-api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return soundResponse{}, fmt.Errorf("failed to call sound API: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return soundResponse{status: resp.StatusCode}, fmt.Errorf("failed to read sound response: %w", err)
		}
		out := soundResponse{status: resp.StatusCode, body: body}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return out, fmt.Errorf("sound API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return out, nil
	}

	decode := func(resp soundResponse) (*SoundClip, error) {
		data, err := c.stageClip(resp.body)
		if err != nil {
			return nil, err
		}
		return &SoundClip{
			Name:     description,
			Data:     data,
			Format:   "mp3",
			Duration: time.Duration(seconds * float64(time.Second)),
		}, nil
	}

	return resilient.Do(ctx, c.policy, attempt, classifySound, decode)
}

func classifySound(resp soundResponse, err error) resilient.Outcome {
	if err == nil {
		return resilient.Success
	}
	if resilient.IsRateLimitStatus(resp.status) || (resp.status != 0 && resilient.IsRateLimitBody(string(resp.body))) {
		return resilient.RateLimited
	}
	return resilient.Failed
}

// stageClip round-trips the clip through a temp file and checks that the
// bytes are playable MP3. The file is removed in all cases.
func (c *SoundClient) stageClip(data []byte) ([]byte, error) {
	path := filepath.Join(c.tempDir, fmt.Sprintf("temp_audio_%s.mp3", ksuid.New().String()))
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temp audio", "path", path, "error", err.Error())
		}
	}()

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp audio: %w", err)
	}
	loaded, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load temp audio: %w", err)
	}
	if !isMP3(loaded) {
		return nil, fmt.Errorf("audio conversion error: response is not mp3")
	}
	return loaded, nil
}

// isMP3 accepts an ID3v2 tag or an MPEG audio frame sync.
func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[:3]) == "ID3" {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
