// Package storage persists story context, chapter caches and game state
// in PostgreSQL through gorm.
package storage

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store holds the DB handle and repositories.
type Store struct {
	db       *gorm.DB
	Turns    *ContextTurnRepo
	Chapters *ChapterCacheRepo
	States   *GameStateRepo
}

// NewStore opens and pings the PostgreSQL database.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return newStore(db), nil
}

func newStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Turns:    NewContextTurnRepo(db),
		Chapters: NewChapterCacheRepo(db),
		States:   NewGameStateRepo(db),
	}
}

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&contextTurnModel{}, &chapterCacheModel{}, &gameStateModel{}}
}

// TableNames returns the table names of Models.
func TableNames() []string {
	return []string{
		contextTurnModel{}.TableName(),
		chapterCacheModel{}.TableName(),
		gameStateModel{}.TableName(),
	}
}

// AutoMigrate creates or updates the tables.
func (s *Store) AutoMigrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not configured")
	}
	if err := s.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}
