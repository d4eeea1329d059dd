package gamestate

import (
	"slices"
	"sync"

	"github.com/easeaico/project-iyagi/internal/playback"
	"github.com/easeaico/project-iyagi/internal/record"
)

// ChapterLog remembers which chapter is in playback and the choices made
// in it. A nil log ignores every call.
type ChapterLog struct {
	mu      sync.Mutex
	chapter int
	seq     record.Sequence
	choices []string
}

// NewChapterLog returns an empty log.
func NewChapterLog() *ChapterLog {
	return &ChapterLog{}
}

// Start begins logging a freshly loaded chapter.
func (l *ChapterLog) Start(chapter int, seq record.Sequence) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chapter, l.seq, l.choices = chapter, seq, nil
}

// Clear forgets the chapter, e.g. once a free-form story replaces it.
func (l *ChapterLog) Clear() {
	l.Start(0, nil)
}

// Record keeps the choice when it was made on a line of the logged chapter.
// It fits playback.ControllerOptions.OnSelect.
func (l *ChapterLog) Record(sel playback.Selection) {
	if l == nil || sel.Record == nil || sel.Choice.Text == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chapter == 0 || !slices.Contains(l.seq, sel.Record) {
		return
	}
	l.choices = append(l.choices, sel.Choice.Text)
}

// Current returns the logged chapter (0 when none), its records and a copy
// of the choices made so far.
func (l *ChapterLog) Current() (int, record.Sequence, []string) {
	if l == nil {
		return 0, nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chapter, l.seq, slices.Clone(l.choices)
}
