package record

import (
	"encoding/json"
	"testing"
)

func TestBuilderFinalizeDerivesIDAndIndex(t *testing.T) {
	rec := NewBuilder().
		SetInt(FieldID, 10003).
		Set(FieldScene, "1").
		SetInt(FieldIndex, 4).
		Set(FieldNameTag, "Hans").
		Finalize()

	if rec.ID() != 10003 {
		t.Fatalf("expected id 10003, got %d", rec.ID())
	}
	if rec.Index() != 4 {
		t.Fatalf("expected index 4, got %d", rec.Index())
	}
	if got := rec.Get("Missing"); got != "" {
		t.Fatalf("expected empty string for absent field, got %q", got)
	}
	if rec.Has("Missing") {
		t.Fatalf("expected Has to be false for absent field")
	}
}

func TestBuilderKeepsInsertionOrder(t *testing.T) {
	rec := NewBuilder().
		Set("B", "1").
		Set("A", "2").
		Set("B", "3").
		Finalize()

	keys := rec.Keys()
	if len(keys) != 2 || keys[0] != "B" || keys[1] != "A" {
		t.Fatalf("unexpected key order: %v", keys)
	}
	if rec.Get("B") != "3" {
		t.Fatalf("expected overwrite in place, got %q", rec.Get("B"))
	}
}

func TestBuilderSetAfterFinalizePanics(t *testing.T) {
	b := NewBuilder().Set(FieldID, "1")
	b.Finalize()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on set after finalize")
		}
	}()
	b.Set(FieldID, "2")
}

func TestChoiceReadsBothLayouts(t *testing.T) {
	free := NewBuilder().
		Set(ChoiceField(1, LangEnglish), "Go left").
		Set(ChoiceField(1, LangKorean), "왼쪽").
		SetInt(NextField(1), 10002).
		Finalize()
	chapter := NewBuilder().
		Set(ChapterChoiceField(2), "Stay").
		SetInt(NextField(2), 1050).
		Set(ImpactField(2, ImpactValue, "Courage"), "10").
		Set(ImpactField(2, ImpactAffection, "Heilner"), "-5").
		Set(ImpactField(2, ImpactSkill, "Insight"), "oops").
		Set(FlagsField(2), "stayed, ,met_heilner").
		Finalize()

	c := free.Choice(1)
	if c.Text != "Go left" || c.TextKR != "왼쪽" || c.Next != 10002 {
		t.Fatalf("unexpected free-form choice: %+v", c)
	}
	if free.ChoiceText(1, LangKorean) != "왼쪽" {
		t.Fatalf("expected korean choice text")
	}

	c = chapter.Choice(2)
	if c.Text != "Stay" || c.Next != 1050 {
		t.Fatalf("unexpected chapter choice: %+v", c)
	}
	if len(c.Impacts) != 2 {
		t.Fatalf("expected 2 parsable impacts, got %+v", c.Impacts)
	}
	if c.Impacts[0] != (Impact{Kind: ImpactValue, Target: "Courage", Delta: 10}) {
		t.Fatalf("unexpected first impact: %+v", c.Impacts[0])
	}
	if c.Impacts[1] != (Impact{Kind: ImpactAffection, Target: "Heilner", Delta: -5}) {
		t.Fatalf("unexpected second impact: %+v", c.Impacts[1])
	}
	if len(c.Flags) != 2 || c.Flags[0] != "stayed" || c.Flags[1] != "met_heilner" {
		t.Fatalf("unexpected flags %v", c.Flags)
	}
	if len(free.Choice(1).Flags) != 0 {
		t.Fatalf("expected no flags on a free-form choice")
	}
	if !chapter.HasChoices() || len(chapter.Choices()) != 1 {
		t.Fatalf("expected exactly one choice, got %+v", chapter.Choices())
	}
}

func TestHasChoicesFalseForEmptyChoiceText(t *testing.T) {
	rec := NewBuilder().
		Set(ChoiceField(1, LangEnglish), "").
		Set(NextField(1), "").
		Finalize()
	if rec.HasChoices() {
		t.Fatalf("expected no choices")
	}
	if rec.Choice(1).Next != -1 {
		t.Fatalf("expected unset next to be -1")
	}
}

func TestJSONRoundTripPreservesOrder(t *testing.T) {
	rec := NewBuilder().
		SetInt(FieldID, 2001).
		Set(FieldNameTag, "Narrator").
		Set(FieldAuto, True).
		SetInt(FieldIndex, 1).
		Finalize()

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"ID":"2001","NameTag":"Narrator","Auto":"TRUE","Index":"1"}`
	if string(raw) != want {
		t.Fatalf("expected %s, got %s", want, raw)
	}

	var decoded FieldRecord
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.ID() != 2001 || decoded.Index() != 1 || !decoded.Auto() {
		t.Fatalf("unexpected decoded record: id=%d index=%d auto=%v", decoded.ID(), decoded.Index(), decoded.Auto())
	}
	keys := decoded.Keys()
	if keys[0] != FieldID || keys[3] != FieldIndex {
		t.Fatalf("unexpected decoded order: %v", keys)
	}
}

func TestSequenceIndexOfID(t *testing.T) {
	seq := Sequence{
		NewBuilder().SetInt(FieldID, 1000).Finalize(),
		NewBuilder().SetInt(FieldID, 1001).Finalize(),
	}
	if seq.IndexOfID(1001) != 1 {
		t.Fatalf("expected index 1")
	}
	if seq.IndexOfID(42) != -1 {
		t.Fatalf("expected -1 for missing id")
	}
}
