// Package playback sequences generated dialogue records for presentation.
package playback

import (
	"errors"
	"fmt"
	"strings"

	"github.com/easeaico/project-iyagi/internal/record"
)

var (
	ErrEmptyPrompt   = errors.New("prompt is empty")
	ErrBusy          = errors.New("generation already in progress")
	ErrEmptySequence = errors.New("no dialogue records")
	ErrChoicePending = errors.New("a choice must be selected")
	ErrInvalidChoice = errors.New("invalid choice")
	ErrTimeout       = errors.New("generation timed out")
	ErrNotPlaying    = errors.New("no story is playing")
	ErrNotGenerating = errors.New("no generation in progress")
)

// State is a playback state.
type State int

const (
	Idle State = iota
	Generating
	Playing
	AwaitingChoice
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Generating:
		return "Generating"
	case Playing:
		return "Playing"
	case AwaitingChoice:
		return "AwaitingChoice"
	case Ended:
		return "Ended"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Transition is one observed state change. Index is the record position
// after the change.
type Transition struct {
	From  State
	To    State
	Index int
}

// String renders the target state, with the index for Playing.
func (t Transition) String() string {
	if t.To == Playing {
		return fmt.Sprintf("Playing(%d)", t.Index)
	}
	return t.To.String()
}

// Observer receives every transition.
type Observer func(Transition)

// SelectPolicy decides where a choice leads.
type SelectPolicy int

const (
	// Linear advances to the next record whatever was picked.
	Linear SelectPolicy = iota
	// BranchByNextID jumps to the record named by the choice's Next field,
	// falling back to Linear when it is not in the sequence.
	BranchByNextID
)

// Selection describes a picked choice for game-state collaborators.
type Selection struct {
	Record *record.FieldRecord
	Choice record.ChoiceSlot
}

// Machine is the pure playback state machine. It is not safe for concurrent
// use; Controller serializes access.
type Machine struct {
	state    State
	seq      record.Sequence
	index    int
	policy   SelectPolicy
	observer Observer
}

// NewMachine returns an Idle machine.
func NewMachine(policy SelectPolicy, observer Observer) *Machine {
	return &Machine{state: Idle, policy: policy, observer: observer}
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Index() int {
	return m.index
}

// Sequence returns the loaded records.
func (m *Machine) Sequence() record.Sequence {
	return m.seq
}

// Policy returns the choice policy.
func (m *Machine) Policy() SelectPolicy {
	return m.policy
}

// SetPolicy changes how later selections branch.
func (m *Machine) SetPolicy(policy SelectPolicy) {
	m.policy = policy
}

// Current returns the displayed record, or nil outside Playing/AwaitingChoice.
func (m *Machine) Current() *record.FieldRecord {
	if m.state != Playing && m.state != AwaitingChoice {
		return nil
	}
	if m.index < 0 || m.index >= len(m.seq) {
		return nil
	}
	return m.seq[m.index]
}

func (m *Machine) moveTo(to State, index int) {
	from := m.state
	m.state = to
	m.index = index
	if m.observer != nil {
		m.observer(Transition{From: from, To: to, Index: index})
	}
}

// StartGenerating enters Generating. A new prompt replaces whatever is
// playing; only an in-flight generation rejects it.
func (m *Machine) StartGenerating(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	if m.state == Generating {
		return ErrBusy
	}
	m.moveTo(Generating, m.index)
	return nil
}

// Load hands a generated sequence over and starts playing at index 0.
// An empty sequence returns to Idle.
func (m *Machine) Load(seq record.Sequence) error {
	if m.state != Generating {
		return ErrNotGenerating
	}
	if len(seq) == 0 {
		m.moveTo(Idle, 0)
		return ErrEmptySequence
	}
	m.seq = seq
	m.moveTo(Playing, 0)
	return nil
}

// Fail abandons the generation and returns to Idle. The prior sequence is
// not shown again.
func (m *Machine) Fail() {
	if m.state != Generating {
		return
	}
	m.seq = nil
	m.moveTo(Idle, 0)
}

// PresentationDone signals that the current line finished displaying.
// Lines with choices then wait for a selection.
func (m *Machine) PresentationDone() {
	if m.state != Playing {
		return
	}
	if rec := m.Current(); rec != nil && rec.HasChoices() {
		m.moveTo(AwaitingChoice, m.index)
	}
}

// Advance moves to the next record, or to Ended after the last one. A line
// with choices cannot be skipped.
func (m *Machine) Advance() error {
	switch m.state {
	case AwaitingChoice:
		return ErrChoicePending
	case Playing:
	default:
		return ErrNotPlaying
	}
	if rec := m.Current(); rec != nil && rec.HasChoices() {
		m.moveTo(AwaitingChoice, m.index)
		return ErrChoicePending
	}
	m.step(m.index + 1)
	return nil
}

func (m *Machine) step(next int) {
	if next >= len(m.seq) {
		m.moveTo(Ended, len(m.seq))
		return
	}
	m.moveTo(Playing, next)
}

// Select picks choice i (0-based) of the current record.
func (m *Machine) Select(i int) (Selection, error) {
	if m.state != AwaitingChoice {
		return Selection{}, ErrNotPlaying
	}
	if i < 0 || i >= record.MaxChoices {
		return Selection{}, fmt.Errorf("%w: %d", ErrInvalidChoice, i+1)
	}
	rec := m.Current()
	choice := rec.Choice(i + 1)
	if choice.Text == "" && choice.TextKR == "" {
		return Selection{}, fmt.Errorf("%w: %d", ErrInvalidChoice, i+1)
	}

	next := m.index + 1
	if m.policy == BranchByNextID && choice.Next >= 0 {
		if target := m.seq.IndexOfID(choice.Next); target >= 0 {
			next = target
		}
	}
	m.step(next)
	return Selection{Record: rec, Choice: choice}, nil
}

// Reset returns to Idle and drops the sequence.
func (m *Machine) Reset() {
	m.seq = nil
	m.moveTo(Idle, 0)
}
