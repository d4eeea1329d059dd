package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/easeaico/project-iyagi/internal/gamestate"
)

// gameStateModel maps to the game_states table.
type gameStateModel struct {
	SessionID string          `gorm:"primaryKey"`
	State     json.RawMessage `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (gameStateModel) TableName() string {
	return "game_states"
}

// GameStateRepo implements gamestate.SnapshotRepo.
type GameStateRepo struct {
	db *gorm.DB
}

var _ gamestate.SnapshotRepo = (*GameStateRepo)(nil)

// NewGameStateRepo returns a GameStateRepo.
func NewGameStateRepo(db *gorm.DB) *GameStateRepo {
	return &GameStateRepo{db: db}
}

func (r *GameStateRepo) LoadSnapshot(ctx context.Context, sessionID string) (*gamestate.Snapshot, error) {
	var model gameStateModel
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game state: %w", err)
	}
	return decodeSnapshot(model.State)
}

func (r *GameStateRepo) SaveSnapshot(ctx context.Context, sessionID string, snap gamestate.Snapshot) error {
	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode game state: %w", err)
	}
	model := gameStateModel{SessionID: sessionID, State: state, UpdatedAt: time.Now()}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save game state: %w", err)
	}
	return nil
}

func decodeSnapshot(raw json.RawMessage) (*gamestate.Snapshot, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var snap gamestate.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode game state: %w", err)
	}
	return &snap, nil
}
