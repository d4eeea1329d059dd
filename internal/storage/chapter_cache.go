package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/easeaico/project-iyagi/internal/agent"
	"github.com/easeaico/project-iyagi/internal/gamestate"
	"github.com/easeaico/project-iyagi/internal/record"
)

// chapterCacheModel maps to the chapter_caches table.
type chapterCacheModel struct {
	ID          int
	CacheKey    string `gorm:"uniqueIndex"`
	ProjectGUID string `gorm:"index"`
	Chapter     int
	Prompt      string
	Records     json.RawMessage `gorm:"type:jsonb"`
	State       json.RawMessage `gorm:"type:jsonb"`
	CreatedAt   time.Time
}

func (chapterCacheModel) TableName() string {
	return "chapter_caches"
}

// ChapterCacheRepo stores generated chapters by cache key.
type ChapterCacheRepo struct {
	db *gorm.DB
}

var _ agent.ChapterCache = (*ChapterCacheRepo)(nil)

// NewChapterCacheRepo returns a ChapterCacheRepo.
func NewChapterCacheRepo(db *gorm.DB) *ChapterCacheRepo {
	return &ChapterCacheRepo{db: db}
}

func (r *ChapterCacheRepo) GetChapter(ctx context.Context, key string) (*agent.CachedChapter, error) {
	var model chapterCacheModel
	err := r.db.WithContext(ctx).Where("cache_key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached chapter: %w", err)
	}
	return chapterFromModel(model)
}

func (r *ChapterCacheRepo) PutChapter(ctx context.Context, chapter agent.CachedChapter) error {
	model, err := chapterToModel(chapter)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"prompt", "records", "state", "created_at"}),
	}).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to store cached chapter: %w", err)
	}
	return nil
}

func chapterToModel(chapter agent.CachedChapter) (chapterCacheModel, error) {
	records, err := json.Marshal(chapter.Records)
	if err != nil {
		return chapterCacheModel{}, fmt.Errorf("failed to encode chapter records: %w", err)
	}
	state, err := json.Marshal(chapter.State)
	if err != nil {
		return chapterCacheModel{}, fmt.Errorf("failed to encode chapter state: %w", err)
	}
	return chapterCacheModel{
		CacheKey:    chapter.Key,
		ProjectGUID: chapter.ProjectGUID,
		Chapter:     chapter.Chapter,
		Prompt:      chapter.Prompt,
		Records:     records,
		State:       state,
		CreatedAt:   chapter.CreatedAt,
	}, nil
}

func chapterFromModel(model chapterCacheModel) (*agent.CachedChapter, error) {
	var records record.Sequence
	if err := json.Unmarshal(model.Records, &records); err != nil {
		return nil, fmt.Errorf("failed to decode chapter records: %w", err)
	}
	var state gamestate.Snapshot
	if len(model.State) > 0 {
		if err := json.Unmarshal(model.State, &state); err != nil {
			return nil, fmt.Errorf("failed to decode chapter state: %w", err)
		}
	}
	return &agent.CachedChapter{
		Key:         model.CacheKey,
		ProjectGUID: model.ProjectGUID,
		Chapter:     model.Chapter,
		Prompt:      model.Prompt,
		Records:     records,
		State:       state,
		CreatedAt:   model.CreatedAt,
	}, nil
}

// MemoryChapterCache keeps chapters in memory in front of an optional
// backing cache.
type MemoryChapterCache struct {
	mu      sync.RWMutex
	entries map[string]agent.CachedChapter
	backing agent.ChapterCache
}

var _ agent.ChapterCache = (*MemoryChapterCache)(nil)

// NewMemoryChapterCache returns a cache backed by backing, which may be nil.
func NewMemoryChapterCache(backing agent.ChapterCache) *MemoryChapterCache {
	return &MemoryChapterCache{entries: map[string]agent.CachedChapter{}, backing: backing}
}

func (c *MemoryChapterCache) GetChapter(ctx context.Context, key string) (*agent.CachedChapter, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return &entry, nil
	}
	if c.backing == nil {
		return nil, nil
	}

	found, err := c.backing.GetChapter(ctx, key)
	if err != nil || found == nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = *found
	c.mu.Unlock()
	return found, nil
}

func (c *MemoryChapterCache) PutChapter(ctx context.Context, chapter agent.CachedChapter) error {
	c.mu.Lock()
	c.entries[chapter.Key] = chapter
	c.mu.Unlock()
	if c.backing == nil {
		return nil
	}
	return c.backing.PutChapter(ctx, chapter)
}

// Len returns the number of chapters held in memory.
func (c *MemoryChapterCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
