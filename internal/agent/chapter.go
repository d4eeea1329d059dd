// Package agent orchestrates story and chapter generation.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/easeaico/project-iyagi/internal/gamestate"
	"github.com/easeaico/project-iyagi/internal/mapper"
	"github.com/easeaico/project-iyagi/internal/memory"
	"github.com/easeaico/project-iyagi/internal/models"
	"github.com/easeaico/project-iyagi/internal/prompt"
	"github.com/easeaico/project-iyagi/internal/record"
	"github.com/easeaico/project-iyagi/internal/resilient"
	"github.com/easeaico/project-iyagi/internal/types"
)

// ScenesPerChapter is the number of scene prompts per chapter.
const ScenesPerChapter = 3

// ErrEmptyChapter means every scene of a chapter failed.
var ErrEmptyChapter = errors.New("chapter has no dialogue")

// TextGenerator produces text from a single prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator renders a prompt into an image data URL.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SoundGenerator produces background music and sound effects.
type SoundGenerator interface {
	GenerateBGM(ctx context.Context, description string, seconds float64) (*models.SoundClip, error)
	GenerateSFX(ctx context.Context, description string, seconds float64) (*models.SoundClip, error)
}

// CachedChapter is a generated chapter stored under its cache key.
type CachedChapter struct {
	Key         string
	ProjectGUID string
	Chapter     int
	Prompt      string
	Records     record.Sequence
	State       gamestate.Snapshot
	CreatedAt   time.Time
}

// ChapterCache stores generated chapters.
type ChapterCache interface {
	// GetChapter returns nil without error on a miss.
	GetChapter(ctx context.Context, key string) (*CachedChapter, error)
	PutChapter(ctx context.Context, chapter CachedChapter) error
}

// GeneratedCG is a rendered CG still.
type GeneratedCG struct {
	ID      string
	Title   string
	DataURL string
}

// ChapterResult is the outcome of GenerateOrLoad.
type ChapterResult struct {
	Key       string
	Chapter   int
	Records   record.Sequence
	FromCache bool
	CGs       []GeneratedCG
	Sounds    []*models.SoundClip
}

// ChapterManager generates chapters scene by scene and caches them by
// game state. It is not safe for concurrent use.
type ChapterManager struct {
	text       TextGenerator
	cache      ChapterCache
	project    types.Project
	scenes     int
	images     ImageGenerator
	sounds     SoundGenerator
	summarizer *memory.ChapterSummarizer
	// 已生成过的音频名称，避免重复请求
	voiced map[string]bool
}

// ChapterOption configures a ChapterManager.
type ChapterOption func(*ChapterManager)

// WithImageGenerator renders the CG lines of freshly generated chapters.
func WithImageGenerator(images ImageGenerator) ChapterOption {
	return func(m *ChapterManager) {
		m.images = images
	}
}

// WithSoundGenerator produces the BGM and SFX named by freshly generated
// chapters.
func WithSoundGenerator(sounds SoundGenerator) ChapterOption {
	return func(m *ChapterManager) {
		m.sounds = sounds
	}
}

// WithSummarizer enables Summarize.
func WithSummarizer(summarizer *memory.ChapterSummarizer) ChapterOption {
	return func(m *ChapterManager) {
		m.summarizer = summarizer
	}
}

// WithScenes overrides ScenesPerChapter.
func WithScenes(n int) ChapterOption {
	return func(m *ChapterManager) {
		if n > 0 {
			m.scenes = n
		}
	}
}

// NewChapterManager creates a ChapterManager. A project without a GUID gets
// a fresh one.
func NewChapterManager(text TextGenerator, cache ChapterCache, project types.Project, opts ...ChapterOption) *ChapterManager {
	if strings.TrimSpace(project.GUID) == "" {
		project.GUID = ksuid.New().String()
	}
	m := &ChapterManager{
		text:    text,
		cache:   cache,
		project: project,
		scenes:  ScenesPerChapter,
		voiced:  map[string]bool{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Project returns the project the manager generates for.
func (m *ChapterManager) Project() types.Project {
	return m.project
}

// CacheKey returns {guid}_Ch{chapter}_{state hash}.
func (m *ChapterManager) CacheKey(chapter int, state gamestate.Snapshot) string {
	return fmt.Sprintf("%s_Ch%d_%s", m.project.GUID, chapter, state.CacheHash())
}

// GenerateOrLoad returns the cached chapter for state, or generates it.
func (m *ChapterManager) GenerateOrLoad(ctx context.Context, chapter int, state gamestate.Snapshot) (*ChapterResult, error) {
	if m == nil || m.text == nil {
		return nil, fmt.Errorf("chapter manager not configured")
	}
	if chapter <= 0 {
		return nil, fmt.Errorf("invalid chapter %d", chapter)
	}

	key := m.CacheKey(chapter, state)
	if m.cache != nil {
		cached, err := m.cache.GetChapter(ctx, key)
		if err != nil {
			slog.Warn("chapter cache lookup failed", "key", key, "error", err.Error())
		} else if cached != nil && len(cached.Records) > 0 {
			slog.Info("loaded cached chapter", "key", key, "records", len(cached.Records))
			return &ChapterResult{Key: key, Chapter: chapter, Records: cached.Records, FromCache: true}, nil
		}
	}

	records, prompts := m.generateScenes(ctx, chapter, state)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: chapter %d", ErrEmptyChapter, chapter)
	}

	if m.cache != nil {
		entry := CachedChapter{
			Key:         key,
			ProjectGUID: m.project.GUID,
			Chapter:     chapter,
			Prompt:      strings.Join(prompts, "\n\n"),
			Records:     records,
			State:       state.Clone(),
			CreatedAt:   time.Now(),
		}
		if err := m.cache.PutChapter(ctx, entry); err != nil {
			slog.Warn("failed to cache chapter", "key", key, "error", err.Error())
		}
	}

	result := &ChapterResult{Key: key, Chapter: chapter, Records: records}
	result.CGs = m.renderCGs(ctx, records)
	result.Sounds = m.produceSounds(ctx, records)
	return result, nil
}

func (m *ChapterManager) generateScenes(ctx context.Context, chapter int, state gamestate.Snapshot) (record.Sequence, []string) {
	var (
		records  record.Sequence
		prompts  []string
		previous strings.Builder
		seqNum   int
	)
	for scene := 1; scene <= m.scenes; scene++ {
		if ctx.Err() != nil {
			break
		}
		scenePrompt, err := prompt.ScenePrompt(prompt.SceneInput{
			Project:        m.project,
			Chapter:        chapter,
			Scene:          scene,
			TotalScenes:    m.scenes,
			State:          state.ToPromptString(),
			PreviousScenes: previous.String(),
		})
		if err != nil {
			slog.Error("failed to build scene prompt", "chapter", chapter, "scene", scene, "error", err.Error())
			continue
		}
		prompts = append(prompts, scenePrompt)

		raw, err := m.text.Generate(ctx, scenePrompt)
		if err != nil {
			slog.Warn("scene generation failed, continuing", "chapter", chapter, "scene", scene, "error", err.Error())
			continue
		}
		sceneRecords, next, err := mapper.BuildChapter(raw, chapter, seqNum)
		if err != nil || len(sceneRecords) == 0 {
			slog.Warn("scene produced no records, continuing", "chapter", chapter, "scene", scene)
			continue
		}
		seqNum = next
		records = append(records, sceneRecords...)
		writeSceneContext(&previous, scene, sceneRecords)
		slog.Info("generated scene", "chapter", chapter, "scene", scene, "records", len(sceneRecords))
	}
	return records, prompts
}

func writeSceneContext(sb *strings.Builder, scene int, seq record.Sequence) {
	fmt.Fprintf(sb, "\n=== Scene %d ===\n", scene)
	for _, rec := range seq {
		fmt.Fprintf(sb, "%s: %s\n", rec.Speaker(), rec.Get(record.FieldParsedLineENG))
	}
}

func (m *ChapterManager) renderCGs(ctx context.Context, seq record.Sequence) []GeneratedCG {
	if m.images == nil {
		return nil
	}
	var out []GeneratedCG
	seen := map[string]bool{}
	for _, rec := range seq {
		id := rec.Get(record.FieldCGID)
		if !rec.HasCG() || id == "" || seen[id] {
			continue
		}
		seen[id] = true

		cgPrompt, err := CGPromptFor(rec)
		if err != nil {
			slog.Warn("skipping cg", "cg_id", id, "error", err.Error())
			continue
		}
		title := rec.Get(record.FieldCGTitle)
		resilient.Callback(ctx, func(ctx context.Context) (string, error) {
			return m.images.Generate(ctx, cgPrompt)
		}, func(dataURL string) {
			out = append(out, GeneratedCG{ID: id, Title: title, DataURL: dataURL})
		}, func(msg string) {
			slog.Error("cg generation failed", "cg_id", id, "error", msg)
		})
	}
	return out
}

// CGPromptFor builds the image prompt from a record's CG fields.
func CGPromptFor(rec *record.FieldRecord) (string, error) {
	if rec == nil || !rec.HasCG() {
		return "", fmt.Errorf("record has no cg")
	}
	return prompt.CGPrompt(prompt.CGInput{
		Description: rec.Get(record.FieldCGDescription),
		Lighting:    rec.Get(record.FieldCGLighting),
		Mood:        rec.Get(record.FieldCGMood),
		Camera:      rec.Get(record.FieldCGCamera),
		Characters:  splitList(rec.Get(record.FieldCGCharacters)),
	})
}

func (m *ChapterManager) produceSounds(ctx context.Context, seq record.Sequence) []*models.SoundClip {
	if m.sounds == nil {
		return nil
	}
	var out []*models.SoundClip
	collect := func(clip *models.SoundClip) {
		out = append(out, clip)
	}
	for _, rec := range seq {
		if name := rec.Get(record.FieldBGM); name != "" && !m.voiced["bgm:"+name] {
			m.voiced["bgm:"+name] = true
			resilient.Callback(ctx, func(ctx context.Context) (*models.SoundClip, error) {
				return m.sounds.GenerateBGM(ctx, name, 0)
			}, collect, func(msg string) {
				slog.Error("bgm generation failed", "name", name, "error", msg)
			})
		}
		if name := rec.Get(record.FieldSFX); name != "" && !m.voiced["sfx:"+name] {
			m.voiced["sfx:"+name] = true
			resilient.Callback(ctx, func(ctx context.Context) (*models.SoundClip, error) {
				return m.sounds.GenerateSFX(ctx, name, 0)
			}, collect, func(msg string) {
				slog.Error("sfx generation failed", "name", name, "error", msg)
			})
		}
	}
	return out
}

// Summarize condenses a played chapter for the next chapter prompts.
func (m *ChapterManager) Summarize(ctx context.Context, chapter int, seq record.Sequence, choices []string) (string, error) {
	if m == nil || m.summarizer == nil {
		return "", fmt.Errorf("chapter summarizer not configured")
	}
	return m.summarizer.Summarize(ctx, chapter, seq, choices)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
