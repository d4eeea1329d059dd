// Package memory keeps the story context that is fed back into generation.
package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/easeaico/project-iyagi/internal/record"
)

// DefaultHistoryLimit is how many turns Render includes.
const DefaultHistoryLimit = 5

// Turn is one rendered generation round.
type Turn struct {
	Prompt    string
	Text      string
	CreatedAt time.Time
}

// TurnRepo persists turns for a session.
type TurnRepo interface {
	AppendTurn(ctx context.Context, sessionID string, turn Turn) error
	ListTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	DeleteTurns(ctx context.Context, sessionID string) error
}

// Accumulator folds generated sequences into a bounded text context.
type Accumulator struct {
	mu        sync.Mutex
	turns     []Turn
	limit     int
	repo      TurnRepo
	sessionID string
	nowFunc   func() time.Time
}

// NewAccumulator creates an Accumulator. limit <= 0 means DefaultHistoryLimit;
// repo may be nil for an in-memory context.
func NewAccumulator(limit int, repo TurnRepo, sessionID string) *Accumulator {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Accumulator{
		limit:     limit,
		repo:      repo,
		sessionID: sessionID,
		nowFunc:   time.Now,
	}
}

// Limit returns the number of trailing turns rendered.
func (a *Accumulator) Limit() int {
	return a.limit
}

// FormatTurn renders one prompt and its records.
func FormatTurn(prompt string, seq record.Sequence) string {
	var sb strings.Builder
	sb.WriteString("User: ")
	sb.WriteString(prompt)
	sb.WriteString("\nGenerated dialogues:\n")
	for _, rec := range seq {
		speaker := rec.Speaker()
		line := rec.Get(record.FieldLineENG)
		if speaker == "" || line == "" {
			continue
		}
		sb.WriteString(speaker)
		sb.WriteString(": ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Add appends a turn for prompt and seq. Persistence failures are logged.
func (a *Accumulator) Add(ctx context.Context, prompt string, seq record.Sequence) Turn {
	turn := Turn{
		Prompt:    prompt,
		Text:      FormatTurn(prompt, seq),
		CreatedAt: a.nowFunc(),
	}

	a.mu.Lock()
	a.turns = append(a.turns, turn)
	// Older turns never render again.
	if len(a.turns) > a.limit {
		a.turns = append([]Turn(nil), a.turns[len(a.turns)-a.limit:]...)
	}
	a.mu.Unlock()

	if a.repo != nil {
		if err := a.repo.AppendTurn(ctx, a.sessionID, turn); err != nil {
			slog.Warn("failed to persist context turn", "session_id", a.sessionID, "error", err.Error())
		}
	}
	return turn
}

// Render returns the last turns prefixed with a header, or "" when empty.
func (a *Accumulator) Render() string {
	return a.RenderWithin(0, nil)
}

// RenderWithin is Render, dropping the oldest turns until count reports at
// most budget tokens. A budget <= 0 or a nil count disables trimming.
func (a *Accumulator) RenderWithin(budget int, count func(string) int) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.turns) == 0 {
		return ""
	}
	start := 0
	if len(a.turns) > a.limit {
		start = len(a.turns) - a.limit
	}

	for ; start < len(a.turns); start++ {
		text := renderTurns(a.turns[start:])
		if budget <= 0 || count == nil || count(text) <= budget {
			return text
		}
	}
	slog.Warn("story context exceeds token budget, dropping it", "budget", budget)
	return ""
}

func renderTurns(turns []Turn) string {
	var sb strings.Builder
	sb.WriteString("Previous story segments:\n")
	for _, turn := range turns {
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Clear drops all turns, including persisted ones.
func (a *Accumulator) Clear(ctx context.Context) error {
	a.mu.Lock()
	a.turns = nil
	a.mu.Unlock()

	if a.repo == nil {
		return nil
	}
	return a.repo.DeleteTurns(ctx, a.sessionID)
}

// Load replaces the in-memory turns with the persisted ones.
func (a *Accumulator) Load(ctx context.Context) error {
	if a.repo == nil {
		return nil
	}
	turns, err := a.repo.ListTurns(ctx, a.sessionID, a.limit)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.turns = turns
	a.mu.Unlock()
	slog.Info("context turns loaded", "session_id", a.sessionID, "count", len(turns))
	return nil
}

// Turns returns a copy of the retained turns, oldest first.
func (a *Accumulator) Turns() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Turn, len(a.turns))
	copy(out, a.turns)
	return out
}
