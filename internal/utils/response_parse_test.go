package utils

import "testing"

func TestRepairJSONArrayDropsTruncatedTail(t *testing.T) {
	input := `[{"a":1},{"b":2},{"c":`
	got := RepairJSONArray(input)
	want := `[{"a":1},{"b":2}]`
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if CountObjects(got) != 2 {
		t.Fatalf("expected 2 objects, got %d", CountObjects(got))
	}
}

func TestRepairJSONArrayGarbageAfterLastObject(t *testing.T) {
	input := `{"a":1},{"b":2}EXTRA_GARBAGE`
	got := RepairJSONArray(input)
	want := `[{"a":1},{"b":2}]`
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestRepairJSONArrayNoCompleteObject(t *testing.T) {
	cases := []string{"", "[", `[{"a":`, "no json here"}
	for _, input := range cases {
		if got := RepairJSONArray(input); got != "[]" {
			t.Fatalf("input %q: expected [], got %s", input, got)
		}
	}
}

func TestRepairJSONArrayKeepsClosedArray(t *testing.T) {
	input := `[{"a":1}]`
	if got := RepairJSONArray(input); got != input {
		t.Fatalf("expected unchanged input, got %s", got)
	}
}

func TestRepairJSONArrayIsDeterministic(t *testing.T) {
	input := `[{"nameTag":"Hans"},{"nameTag":"Heil`
	first := RepairJSONArray(input)
	for i := 0; i < 5; i++ {
		if got := RepairJSONArray(input); got != first {
			t.Fatalf("expected deterministic output, got %s then %s", first, got)
		}
	}
}

func TestRepairPreservesCompleteObjectCount(t *testing.T) {
	inputs := []string{
		`[{"a":{"x":1}},{"b":"}"},{"c`,
		`[{"a":1}`,
		`[{"a":[1,2]},{"b":2},{"c":3},`,
	}
	for _, input := range inputs {
		got := RepairJSONArray(input)
		if got[0] != '[' || got[len(got)-1] != ']' {
			t.Fatalf("input %q: output not closed: %s", input, got)
		}
		if CountObjects(got) != CountObjects(input) {
			t.Fatalf("input %q: expected %d objects, got %d", input, CountObjects(input), CountObjects(got))
		}
	}
}

func TestExtractJSONArray(t *testing.T) {
	got, ok := ExtractJSONArray("Sure! Here you go:\n[{\"a\":1}]\nEnjoy")
	if !ok || got != `[{"a":1}]` {
		t.Fatalf("unexpected extraction: %q %v", got, ok)
	}

	got, ok = ExtractJSONArray(`prefix [{"a":1},{"b":`)
	if !ok || got != `[{"a":1},{"b":` {
		t.Fatalf("expected unterminated suffix, got %q %v", got, ok)
	}

	if _, ok := ExtractJSONArray(`{"a":1}`); ok {
		t.Fatalf("expected no array")
	}
}
