package record

import (
	"strconv"
	"strings"
)

// CharacterSlot is one standing-sprite column group (Char{N}*).
type CharacterSlot struct {
	Name string
	Look string
	Pos  string
	Size string
}

// Character reads the Char{slot}* fields.
func (r *FieldRecord) Character(slot int) CharacterSlot {
	return CharacterSlot{
		Name: r.Get(CharField(slot, "Name")),
		Look: r.Get(CharField(slot, "Look")),
		Pos:  r.Get(CharField(slot, "Pos")),
		Size: r.Get(CharField(slot, "Size")),
	}
}

// Impact is a named integer delta attached to a choice.
type Impact struct {
	Kind   ImpactKind
	Target string
	Delta  int
}

// ChoiceSlot is one choice column group. Next is -1 when unset.
type ChoiceSlot struct {
	Number  int
	Text    string
	TextKR  string
	Next    int
	Impacts []Impact
	Flags   []string
}

// Choice reads choice n (1-based) across both dialect layouts.
func (r *FieldRecord) Choice(n int) ChoiceSlot {
	slot := ChoiceSlot{Number: n, Next: -1}
	slot.Text = firstNonEmpty(
		r.Get(ChoiceField(n, LangEnglish)),
		r.Get(ChapterChoiceField(n)),
		r.Get(ChoiceShortField(n, LangEnglish)),
	)
	slot.TextKR = firstNonEmpty(
		r.Get(ChoiceField(n, LangKorean)),
		r.Get(ChoiceShortField(n, LangKorean)),
	)
	if next, ok := r.Int(NextField(n)); ok {
		slot.Next = next
	}
	slot.Impacts = r.Impacts(n)
	for _, flag := range strings.Split(r.Get(FlagsField(n)), ",") {
		if flag = strings.TrimSpace(flag); flag != "" {
			slot.Flags = append(slot.Flags, flag)
		}
	}
	return slot
}

// ChoiceText returns the text of choice n in lang, falling back to English.
func (r *FieldRecord) ChoiceText(n int, lang Lang) string {
	slot := r.Choice(n)
	if lang == LangKorean && slot.TextKR != "" {
		return slot.TextKR
	}
	return slot.Text
}

// Choices returns the non-empty choices in order.
func (r *FieldRecord) Choices() []ChoiceSlot {
	var out []ChoiceSlot
	for n := 1; n <= MaxChoices; n++ {
		slot := r.Choice(n)
		if slot.Text == "" && slot.TextKR == "" {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// HasChoices reports whether any choice carries text.
func (r *FieldRecord) HasChoices() bool {
	for n := 1; n <= MaxChoices; n++ {
		slot := r.Choice(n)
		if slot.Text != "" || slot.TextKR != "" {
			return true
		}
	}
	return false
}

// Impacts parses the Choice{n}_<Kind>_<Target> fields of choice n.
// Fields with a non-integer value are ignored.
func (r *FieldRecord) Impacts(n int) []Impact {
	if r == nil {
		return nil
	}
	prefix := "Choice" + strconv.Itoa(n) + "_"
	var out []Impact
	for _, key := range r.keys {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		for _, kind := range impactKinds {
			target, ok := strings.CutPrefix(rest, string(kind)+"_")
			if !ok || target == "" {
				continue
			}
			delta, ok := r.Int(key)
			if !ok {
				break
			}
			out = append(out, Impact{Kind: kind, Target: target, Delta: delta})
			break
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
