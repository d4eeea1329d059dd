package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/easeaico/project-iyagi/internal/memory"
)

// contextTurnModel maps to the context_turns table.
type contextTurnModel struct {
	ID        int
	SessionID string `gorm:"index"`
	Prompt    string
	Content   string
	CreatedAt time.Time
}

func (contextTurnModel) TableName() string {
	return "context_turns"
}

// ContextTurnRepo implements memory.TurnRepo.
type ContextTurnRepo struct {
	db *gorm.DB
}

var _ memory.TurnRepo = (*ContextTurnRepo)(nil)

// NewContextTurnRepo returns a ContextTurnRepo.
func NewContextTurnRepo(db *gorm.DB) *ContextTurnRepo {
	return &ContextTurnRepo{db: db}
}

func (r *ContextTurnRepo) AppendTurn(ctx context.Context, sessionID string, turn memory.Turn) error {
	record := contextTurnToModel(sessionID, turn)
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert context turn: %w", err)
	}
	return nil
}

func (r *ContextTurnRepo) ListTurns(ctx context.Context, sessionID string, limit int) ([]memory.Turn, error) {
	query := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []contextTurnModel
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query context turns: %w", err)
	}
	return contextTurnsFromModels(records), nil
}

func (r *ContextTurnRepo) DeleteTurns(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&contextTurnModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete context turns: %w", err)
	}
	return nil
}

func contextTurnToModel(sessionID string, turn memory.Turn) contextTurnModel {
	return contextTurnModel{
		SessionID: sessionID,
		Prompt:    turn.Prompt,
		Content:   turn.Text,
		CreatedAt: turn.CreatedAt,
	}
}

// contextTurnsFromModels converts newest-first rows to oldest-first turns.
func contextTurnsFromModels(records []contextTurnModel) []memory.Turn {
	results := make([]memory.Turn, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		results = append(results, memory.Turn{
			Prompt:    records[i].Prompt,
			Text:      records[i].Content,
			CreatedAt: records[i].CreatedAt,
		})
	}
	return results
}
