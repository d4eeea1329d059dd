package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/easeaico/project-iyagi/internal/mapper"
	"github.com/easeaico/project-iyagi/internal/memory"
	"github.com/easeaico/project-iyagi/internal/prompt"
	"github.com/easeaico/project-iyagi/internal/record"
)

// StoryGenerator completes a system and user prompt pair.
type StoryGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Storyteller turns free-form prompts into dialogue sequences, carrying the
// recent segments as context.
type Storyteller struct {
	client  StoryGenerator
	prompts *prompt.Builder
	history *memory.Accumulator
	tokens  *prompt.TokenCounter
	// contextTokens caps the rendered context; 0 keeps every turn.
	contextTokens int

	// mu guards the mapper counter against a late call that outlived its
	// timeout.
	mu     sync.Mutex
	mapper *mapper.Mapper
}

// StorytellerOption configures a Storyteller.
type StorytellerOption func(*Storyteller)

// WithContextTokens trims the story context to at most n tokens, oldest
// turns first.
func WithContextTokens(n int) StorytellerOption {
	return func(s *Storyteller) {
		s.contextTokens = n
	}
}

// NewStoryteller creates a Storyteller. history may be nil.
func NewStoryteller(client StoryGenerator, prompts *prompt.Builder, history *memory.Accumulator, opts ...StorytellerOption) *Storyteller {
	s := &Storyteller{
		client:  client,
		prompts: prompts,
		history: history,
		tokens:  prompt.NewTokenCounter(),
		mapper:  mapper.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate requests one story segment for userPrompt.
func (s *Storyteller) Generate(ctx context.Context, userPrompt string) (record.Sequence, error) {
	if s == nil || s.client == nil || s.prompts == nil {
		return nil, fmt.Errorf("storyteller not configured")
	}

	systemPrompt, err := s.prompts.SystemPrompt()
	if err != nil {
		return nil, err
	}
	var previous string
	if s.history != nil {
		previous = s.history.RenderWithin(s.contextTokens, s.tokens.Count)
	}
	fullPrompt, err := s.prompts.UserPrompt(userPrompt, previous)
	if err != nil {
		return nil, err
	}
	slog.Info("requesting story segment",
		"prompt_tokens", s.tokens.Count(systemPrompt)+s.tokens.Count(fullPrompt),
		"context_tokens", s.tokens.Count(previous),
	)

	raw, err := s.client.Generate(ctx, systemPrompt, fullPrompt)
	if err != nil {
		return nil, err
	}
	slog.Debug("story response received", "length", len(raw))

	s.mu.Lock()
	seq, err := s.mapper.BuildStory(raw)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to build dialogue: %w", err)
	}
	return seq, nil
}

// Commit adds an accepted segment to the context.
func (s *Storyteller) Commit(ctx context.Context, userPrompt string, seq record.Sequence) {
	if s == nil || s.history == nil {
		return
	}
	s.history.Add(ctx, userPrompt, seq)
}

// Clear forgets the accumulated context.
func (s *Storyteller) Clear(ctx context.Context) error {
	if s == nil || s.history == nil {
		return nil
	}
	return s.history.Clear(ctx)
}
