package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/easeaico/project-iyagi/internal/record"
)

const (
	// DefaultTimeout bounds how long the controller waits for a generation.
	DefaultTimeout = 30 * time.Second

	StatusReady        = "Enter a story prompt to begin..."
	StatusEmptyPrompt  = "Please enter a story prompt!"
	StatusGenerating   = "Generating story with LLM..."
	StatusBuildFailed  = "Failed to build dialogue from LLM response."
	StatusTimedOut     = "Story generation timed out or failed."
	StatusSegmentEnded = "Story segment ended. Enter a new prompt to continue..."
	StatusCleared      = "Context cleared. Starting fresh..."
)

// Generator turns a prompt into a dialogue sequence.
type Generator interface {
	Generate(ctx context.Context, prompt string) (record.Sequence, error)
}

// Committer is implemented by generators that fold accepted sequences into
// their context. Commit is only called for results the controller keeps.
type Committer interface {
	Commit(ctx context.Context, prompt string, seq record.Sequence)
}

// ContextClearer forgets the accumulated story context.
type ContextClearer interface {
	Clear(ctx context.Context) error
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Timeout  time.Duration
	Policy   SelectPolicy
	Observer Observer
	// OnSelect receives every accepted choice, e.g. to apply impacts.
	OnSelect func(Selection)
	Clearer  ContextClearer
}

// Controller drives a Machine with a remote generator and keeps a
// human-readable status line.
type Controller struct {
	mu        sync.Mutex
	machine   *Machine
	generator Generator
	opts      ControllerOptions
	status    string
	// generation identifies the in-flight call so that late results of an
	// abandoned or reset call are dropped.
	generation uint64
}

// NewController creates an Idle controller.
func NewController(generator Generator, opts ControllerOptions) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Controller{
		machine:   NewMachine(opts.Policy, opts.Observer),
		generator: generator,
		opts:      opts,
		status:    StatusReady,
	}
}

type generateResult struct {
	seq record.Sequence
	err error
}

// Generate requests a new segment for prompt and starts playing it. Every
// failure is reported through the status line and leaves the machine Idle.
func (c *Controller) Generate(ctx context.Context, prompt string) error {
	c.mu.Lock()
	if strings.TrimSpace(prompt) == "" {
		c.setStatus(StatusEmptyPrompt)
		c.mu.Unlock()
		return ErrEmptyPrompt
	}
	if err := c.machine.StartGenerating(prompt); err != nil {
		c.mu.Unlock()
		return err
	}
	c.generation++
	gen := c.generation
	c.machine.SetPolicy(c.opts.Policy)
	c.setStatus(StatusGenerating)
	c.mu.Unlock()

	if c.generator == nil {
		return c.finish(ctx, gen, generateResult{err: fmt.Errorf("story generator not configured")}, prompt)
	}

	// The remote call is not cancelled on timeout; its late result is ignored.
	results := make(chan generateResult, 1)
	callCtx := context.WithoutCancel(ctx)
	go func() {
		seq, err := c.generator.Generate(callCtx, prompt)
		results <- generateResult{seq: seq, err: err}
	}()

	timer := time.NewTimer(c.opts.Timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return c.finish(ctx, gen, res, prompt)
	case <-timer.C:
		slog.Warn("story generation timed out", "timeout", c.opts.Timeout.String())
		return c.finish(ctx, gen, generateResult{err: ErrTimeout}, prompt)
	case <-ctx.Done():
		return c.finish(ctx, gen, generateResult{err: ErrTimeout}, prompt)
	}
}

func (c *Controller) finish(ctx context.Context, gen uint64, res generateResult, prompt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.machine.State() != Generating {
		slog.Info("dropping stale generation result", "generation", gen)
		return ErrTimeout
	}

	switch {
	case errors.Is(res.err, ErrTimeout):
		c.machine.Fail()
		c.setStatus(StatusTimedOut)
		return ErrTimeout
	case res.err != nil:
		c.machine.Fail()
		c.setStatus("Error: " + res.err.Error())
		return res.err
	}

	if err := c.machine.Load(res.seq); err != nil {
		c.setStatus(StatusBuildFailed)
		return err
	}
	if committer, ok := c.generator.(Committer); ok {
		committer.Commit(ctx, prompt, res.seq)
	}
	c.setStatus(fmt.Sprintf("Story generated! %d dialogue entries created.", len(res.seq)))
	return nil
}

// Advance moves past the current line.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.machine.Advance(); err != nil {
		return err
	}
	c.noteEnded()
	return nil
}

// PresentationDone reports that the current line finished displaying.
func (c *Controller) PresentationDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.machine.PresentationDone()
}

// Select picks choice i (0-based) and forwards it to OnSelect.
func (c *Controller) Select(i int) (Selection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sel, err := c.machine.Select(i)
	if err != nil {
		return Selection{}, err
	}
	slog.Info("choice selected", "choice", i+1, "text", sel.Choice.Text, "record_id", sel.Record.ID())
	if c.opts.OnSelect != nil {
		c.opts.OnSelect(sel)
	}
	c.noteEnded()
	return sel, nil
}

// ClearContext forgets the accumulated story context.
func (c *Controller) ClearContext(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.Clearer != nil {
		if err := c.opts.Clearer.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear context: %w", err)
		}
	}
	c.setStatus(StatusCleared)
	return nil
}

// ResetStory drops the current segment. An in-flight generation is
// abandoned and its result ignored.
func (c *Controller) ResetStory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.machine.Reset()
	c.setStatus(StatusReady)
}

// LoadSequence plays an already built sequence, e.g. a cached chapter.
func (c *Controller) LoadSequence(seq record.Sequence, policy SelectPolicy, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.machine.StartGenerating("load"); err != nil {
		return err
	}
	c.generation++
	c.machine.SetPolicy(policy)
	if err := c.machine.Load(seq); err != nil {
		c.setStatus(StatusBuildFailed)
		return err
	}
	c.setStatus(status)
	return nil
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State   State
	Index   int
	Total   int
	Status  string
	Current *record.FieldRecord
}

// Snapshot returns the current state, status and record.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:   c.machine.State(),
		Index:   c.machine.Index(),
		Total:   len(c.machine.Sequence()),
		Status:  c.status,
		Current: c.machine.Current(),
	}
}

// Status returns the last status message.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) noteEnded() {
	if c.machine.State() == Ended {
		c.setStatus(StatusSegmentEnded)
	}
}

func (c *Controller) setStatus(msg string) {
	c.status = msg
	slog.Info("playback status", "status", msg, "state", c.machine.State().String())
}
