package playback

import (
	"errors"
	"reflect"
	"testing"

	"github.com/easeaico/project-iyagi/internal/record"
)

func line(id int, choices ...string) *record.FieldRecord {
	b := record.NewBuilder().SetInt(record.FieldID, id).Set(record.FieldNameTag, "Hans")
	for n := 1; n <= 3; n++ {
		text := ""
		if n <= len(choices) {
			text = choices[n-1]
		}
		b.Set(record.ChoiceField(n, record.LangEnglish), text)
	}
	return b.Finalize()
}

func chapterLine(id int, choices map[int]int) *record.FieldRecord {
	b := record.NewBuilder().SetInt(record.FieldID, id)
	for n := 1; n <= 4; n++ {
		next, ok := choices[n]
		if !ok {
			b.Set(record.ChapterChoiceField(n), "")
			b.Set(record.NextField(n), "")
			continue
		}
		b.Set(record.ChapterChoiceField(n), "option")
		b.SetInt(record.NextField(n), next)
	}
	return b.Finalize()
}

func TestMachineTrace(t *testing.T) {
	var trace []string
	m := NewMachine(Linear, func(tr Transition) {
		trace = append(trace, tr.String())
	})
	if err := m.StartGenerating("a walk"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	trace = nil

	seq := record.Sequence{line(10000), line(10001, "Agree", "Refuse"), line(10002)}
	if err := m.Load(seq); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := m.Advance(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	m.PresentationDone()
	if err := m.Advance(); !errors.Is(err, ErrChoicePending) {
		t.Fatalf("expected ErrChoicePending, got %v", err)
	}
	sel, err := m.Select(1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sel.Choice.Text != "Refuse" || sel.Record.ID() != 10001 {
		t.Fatalf("unexpected selection: %+v", sel.Choice)
	}
	if err := m.Advance(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []string{"Playing(0)", "Playing(1)", "AwaitingChoice", "Playing(2)", "Ended"}
	if !reflect.DeepEqual(trace, want) {
		t.Fatalf("expected trace %v, got %v", want, trace)
	}
	if m.Current() != nil {
		t.Fatalf("expected no current record after end")
	}
}

func TestMachineRejectsEmptyPrompt(t *testing.T) {
	m := NewMachine(Linear, nil)
	if err := m.StartGenerating("   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if m.State() != Idle {
		t.Fatalf("expected Idle, got %s", m.State())
	}
	if err := m.StartGenerating("go"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := m.StartGenerating("again"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestMachineEmptySequenceReturnsToIdle(t *testing.T) {
	m := NewMachine(Linear, nil)
	_ = m.StartGenerating("go")
	if err := m.Load(nil); !errors.Is(err, ErrEmptySequence) {
		t.Fatalf("expected ErrEmptySequence, got %v", err)
	}
	if m.State() != Idle {
		t.Fatalf("expected Idle, got %s", m.State())
	}
}

func TestMachineFailDropsSequence(t *testing.T) {
	m := NewMachine(Linear, nil)
	_ = m.StartGenerating("first")
	_ = m.Load(record.Sequence{line(1)})
	_ = m.StartGenerating("second")
	m.Fail()
	if m.State() != Idle || len(m.Sequence()) != 0 {
		t.Fatalf("expected Idle without sequence, got %s with %d records", m.State(), len(m.Sequence()))
	}
}

func TestMachineAdvanceOnChoiceLineEntersAwaitingChoice(t *testing.T) {
	m := NewMachine(Linear, nil)
	_ = m.StartGenerating("go")
	_ = m.Load(record.Sequence{line(1, "Only option")})
	if err := m.Advance(); !errors.Is(err, ErrChoicePending) {
		t.Fatalf("expected ErrChoicePending, got %v", err)
	}
	if m.State() != AwaitingChoice {
		t.Fatalf("expected AwaitingChoice, got %s", m.State())
	}
	if _, err := m.Select(2); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice for empty choice, got %v", err)
	}
	if _, err := m.Select(0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if m.State() != Ended {
		t.Fatalf("expected Ended, got %s", m.State())
	}
}

func TestMachineBranchByNextID(t *testing.T) {
	seq := record.Sequence{
		chapterLine(1000, map[int]int{1: 1003, 2: 1001, 3: 4242}),
		chapterLine(1001, nil),
		chapterLine(1002, nil),
		chapterLine(1003, nil),
	}

	cases := []struct {
		choice int
		want   int
	}{
		{choice: 0, want: 3},
		{choice: 1, want: 1},
		{choice: 2, want: 1},
	}
	for _, tc := range cases {
		m := NewMachine(BranchByNextID, nil)
		_ = m.StartGenerating("chapter")
		_ = m.Load(seq)
		m.PresentationDone()
		if _, err := m.Select(tc.choice); err != nil {
			t.Fatalf("choice %d: expected no error, got %v", tc.choice, err)
		}
		if m.Index() != tc.want {
			t.Fatalf("choice %d: expected index %d, got %d", tc.choice, tc.want, m.Index())
		}
	}
}

func TestMachineLinearIgnoresNextID(t *testing.T) {
	m := NewMachine(Linear, nil)
	_ = m.StartGenerating("chapter")
	_ = m.Load(record.Sequence{chapterLine(1000, map[int]int{1: 1002}), chapterLine(1001, nil), chapterLine(1002, nil)})
	m.PresentationDone()
	if _, err := m.Select(0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if m.Index() != 1 {
		t.Fatalf("expected linear advance to 1, got %d", m.Index())
	}
}

func TestMachineReset(t *testing.T) {
	m := NewMachine(Linear, nil)
	_ = m.StartGenerating("go")
	_ = m.Load(record.Sequence{line(1), line(2)})
	m.Reset()
	if m.State() != Idle || m.Current() != nil {
		t.Fatalf("expected Idle after reset")
	}
	if err := m.Advance(); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("expected ErrNotPlaying, got %v", err)
	}
}
