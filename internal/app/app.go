// Package app wires configuration, storage and clients into a runnable
// story runtime shared by the binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/easeaico/project-iyagi/internal/agent"
	"github.com/easeaico/project-iyagi/internal/config"
	"github.com/easeaico/project-iyagi/internal/gamestate"
	"github.com/easeaico/project-iyagi/internal/handler"
	"github.com/easeaico/project-iyagi/internal/memory"
	"github.com/easeaico/project-iyagi/internal/models"
	"github.com/easeaico/project-iyagi/internal/playback"
	"github.com/easeaico/project-iyagi/internal/prompt"
	"github.com/easeaico/project-iyagi/internal/storage"
	"github.com/easeaico/project-iyagi/internal/types"
)

// SetupLogger installs a charmbracelet/log handler on stderr as the slog
// default.
func SetupLogger(level string) *slog.Logger {
	return SetupLoggerTo(os.Stderr, level)
}

// SetupLoggerTo is SetupLogger writing to w.
func SetupLoggerTo(w io.Writer, level string) *slog.Logger {
	lvl, err := charmlog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = charmlog.InfoLevel
	}
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// App holds the assembled runtime.
type App struct {
	Config      config.Config
	Store       *storage.Store
	Storyteller *agent.Storyteller
	Controller  *playback.Controller
	Tracker     *gamestate.Tracker
	// ChapterLog follows the chapter currently in playback.
	ChapterLog *gamestate.ChapterLog
	// Chapters and Images are nil when no Gemini key is configured.
	Chapters *agent.ChapterManager
	Images   *models.ImageGenerator

	selectHooks []func(playback.Selection)
}

// New builds the runtime. Without DATABASE_URL the context, game state and
// chapter cache stay in memory.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if missing := cfg.Validate(config.FeatureStory); len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	a := &App{Config: cfg, ChapterLog: gamestate.NewChapterLog()}

	var (
		turns   memory.TurnRepo
		states  gamestate.SnapshotRepo
		backing agent.ChapterCache
	)
	if cfg.DatabaseURL != "" {
		store, err := storage.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.Store = store
		turns, states, backing = store.Turns, store.States, store.Chapters
	} else {
		slog.Warn("DATABASE_URL not set, keeping story state in memory")
	}

	client, err := models.NewStoryClientFor(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.StoryOptions(cfg.Retry.Policy("story")))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create story client: %w", err)
	}

	history := memory.NewAccumulator(cfg.ContextHistory, turns, cfg.SessionID)
	if err := history.Load(ctx); err != nil {
		slog.Warn("failed to restore story context", "error", err.Error())
	}
	a.Storyteller = agent.NewStoryteller(client, prompt.NewBuilder(cfg.LLM.Resources()), history,
		agent.WithContextTokens(cfg.ContextTokens))

	project := cfg.Project.Project()
	a.Tracker = gamestate.NewTracker(gamestate.NewSnapshot(project), states, cfg.SessionID)
	if err := a.Tracker.Load(ctx); err != nil {
		slog.Warn("failed to restore game state", "error", err.Error())
	}

	if len(cfg.Validate(config.FeatureChapters)) == 0 {
		chapters, err := a.buildChapters(ctx, project, backing)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Chapters = chapters
	}

	a.Controller = playback.NewController(a.Storyteller, playback.ControllerOptions{
		Timeout:  cfg.GenerationTimeout,
		Policy:   playback.Linear,
		OnSelect: a.onSelect,
		Clearer:  a.Storyteller,
	})
	slog.Info("story runtime ready",
		"provider", client.Provider(),
		"model", client.Model(),
		"chapters", a.Chapters != nil,
		"persistent", a.Store != nil,
	)
	return a, nil
}

func (a *App) buildChapters(ctx context.Context, project types.Project, backing agent.ChapterCache) (*agent.ChapterManager, error) {
	cfg := a.Config
	text, err := models.NewGeminiTextClient(ctx, cfg.GoogleAPIKey, cfg.TextModel, cfg.Retry.Policy("text"))
	if err != nil {
		return nil, fmt.Errorf("failed to create text client: %w", err)
	}
	images, err := models.NewGeminiImageGenerator(ctx, cfg.GoogleAPIKey, cfg.ImageModel, cfg.AspectRatio, cfg.Retry.Policy("image"))
	if err != nil {
		return nil, fmt.Errorf("failed to create image generator: %w", err)
	}
	a.Images = images

	opts := []agent.ChapterOption{
		agent.WithImageGenerator(images),
		agent.WithSummarizer(memory.NewChapterSummarizer(text)),
	}
	if len(cfg.Validate(config.FeatureSound)) == 0 {
		sounds, err := models.NewElevenLabsClient(cfg.ElevenLabsAPIKey, cfg.Retry.Policy("sound"), models.WithSoundTempDir(cfg.AudioDirOrTemp()))
		if err != nil {
			return nil, fmt.Errorf("failed to create sound client: %w", err)
		}
		opts = append(opts, agent.WithSoundGenerator(sounds))
	}
	return agent.NewChapterManager(text, storage.NewMemoryChapterCache(backing), project, opts...), nil
}

// OnSelect registers an extra choice hook.
func (a *App) OnSelect(hook func(playback.Selection)) {
	a.selectHooks = append(a.selectHooks, hook)
}

func (a *App) onSelect(sel playback.Selection) {
	a.Tracker.OnSelect(sel)
	a.ChapterLog.Record(sel)
	for _, hook := range a.selectHooks {
		hook(sel)
	}
}

// Router builds the HTTP API over the runtime.
func (a *App) Router() *gin.Engine {
	var service handler.ChapterService
	if a.Chapters != nil {
		service = a.Chapters
	}
	var images handler.ImageService
	if a.Images != nil {
		images = a.Images
	}
	return handler.NewRouter(
		handler.NewStoryHandler(a.Controller, a.ChapterLog),
		handler.NewChapterHandler(a.Controller, service, a.Tracker, a.ChapterLog),
		handler.NewCGHandler(a.Controller, images, a.Tracker),
	)
}

// Close releases the database handle.
func (a *App) Close() {
	if a == nil || a.Store == nil {
		return
	}
	a.Store.Close()
}
