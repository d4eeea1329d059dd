package gamestate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/easeaico/project-iyagi/internal/playback"
)

// SnapshotRepo persists the state of a play session.
type SnapshotRepo interface {
	// LoadSnapshot returns nil without error when nothing was saved yet.
	LoadSnapshot(ctx context.Context, sessionID string) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, sessionID string, snap Snapshot) error
}

// Tracker owns the live state of one session.
type Tracker struct {
	mu        sync.Mutex
	state     Snapshot
	repo      SnapshotRepo
	sessionID string
}

// NewTracker returns a tracker starting at initial. repo may be nil.
func NewTracker(initial Snapshot, repo SnapshotRepo, sessionID string) *Tracker {
	return &Tracker{state: initial.Clone(), repo: repo, sessionID: sessionID}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Load replaces the state with the saved one, if any.
func (t *Tracker) Load(ctx context.Context) error {
	if t == nil {
		return fmt.Errorf("state tracker not configured")
	}
	if t.repo == nil {
		return nil
	}
	saved, err := t.repo.LoadSnapshot(ctx, t.sessionID)
	if err != nil {
		return fmt.Errorf("failed to load game state: %w", err)
	}
	if saved == nil {
		return nil
	}
	t.mu.Lock()
	t.state = saved.Clone()
	t.mu.Unlock()
	return nil
}

// Apply folds a selected choice into the state, raises the flags the
// choice sets and saves it.
func (t *Tracker) Apply(ctx context.Context, sel playback.Selection) error {
	if err := t.update(ctx, func(s *Snapshot) {
		*s = Apply(*s, sel)
	}); err != nil {
		return err
	}
	for _, flag := range sel.Choice.Flags {
		if err := t.SetFlag(ctx, flag, true); err != nil {
			return err
		}
	}
	return nil
}

// OnSelect adapts Apply to playback.ControllerOptions.OnSelect.
func (t *Tracker) OnSelect(sel playback.Selection) {
	if err := t.Apply(context.Background(), sel); err != nil {
		slog.Error("failed to apply choice", "error", err.Error())
	}
}

// UnlockCG records an unlocked CG.
func (t *Tracker) UnlockCG(ctx context.Context, id string) error {
	return t.update(ctx, func(s *Snapshot) {
		s.UnlockCG(id)
	})
}

// CompleteChapter stores the chapter summary and moves to the next chapter.
func (t *Tracker) CompleteChapter(ctx context.Context, chapter int, summary string) error {
	return t.update(ctx, func(s *Snapshot) {
		if summary != "" {
			if s.ChapterSummaries == nil {
				s.ChapterSummaries = map[int]string{}
			}
			s.ChapterSummaries[chapter] = summary
		}
		if chapter >= s.CurrentChapter {
			s.CurrentChapter = chapter + 1
		}
	})
}

// SetFlag sets a named story flag.
func (t *Tracker) SetFlag(ctx context.Context, name string, value bool) error {
	return t.update(ctx, func(s *Snapshot) {
		if s.Flags == nil {
			s.Flags = map[string]bool{}
		}
		s.Flags[name] = value
	})
}

func (t *Tracker) update(ctx context.Context, fn func(*Snapshot)) error {
	if t == nil {
		return fmt.Errorf("state tracker not configured")
	}
	t.mu.Lock()
	fn(&t.state)
	snap := t.state.Clone()
	t.mu.Unlock()

	if t.repo == nil {
		return nil
	}
	if err := t.repo.SaveSnapshot(ctx, t.sessionID, snap); err != nil {
		return fmt.Errorf("failed to save game state: %w", err)
	}
	return nil
}
