package record

import (
	"fmt"
	"strconv"
)

// Field names shared with the authored-content format. They are a
// compatibility contract with the renderer and must not be renamed.
const (
	FieldID            = "ID"
	FieldScene         = "Scene"
	FieldIndex         = "Index"
	FieldNameTag       = "NameTag"
	FieldLineENG       = "Line_ENG"
	FieldLineKR        = "Line_KR"
	FieldParsedLineENG = "ParsedLine_ENG"
	FieldParsedLineKOR = "ParsedLine_KOR"
	FieldBG            = "BG"
	FieldBGM           = "BGM"
	FieldSFX           = "SFX"
	FieldAuto          = "Auto"
	FieldTrigger       = "Trigger"
	FieldParam1        = "Param1"
	FieldParam2        = "Param2"

	FieldCGID          = "CG_ID"
	FieldCGTitle       = "CG_Title"
	FieldIsCGLine      = "IsCGLine"
	FieldCGDescription = "CG_Description"
	FieldCGLighting    = "CG_Lighting"
	FieldCGMood        = "CG_Mood"
	FieldCGCamera      = "CG_Camera"
	FieldCGCharacters  = "CG_Characters"
)

const (
	True  = "TRUE"
	False = "FALSE"
)

// MaxChoices is the widest choice fan-out of any dialect.
const MaxChoices = 4

// Lang selects a localized text column.
type Lang string

const (
	LangEnglish Lang = "ENG"
	LangKorean  Lang = "KR"
)

// ImpactKind is the middle segment of a Choice{N}_<Kind>_<Target> key.
type ImpactKind string

const (
	ImpactValue     ImpactKind = "ValueImpact"
	ImpactSkill     ImpactKind = "SkillImpact"
	ImpactAffection ImpactKind = "Affection"
)

var impactKinds = []ImpactKind{ImpactValue, ImpactSkill, ImpactAffection}

// CharField returns Char{slot}{part}, e.g. Char1Look.
func CharField(slot int, part string) string {
	return fmt.Sprintf("Char%d%s", slot, part)
}

// NextField returns Next{n}.
func NextField(n int) string {
	return "Next" + strconv.Itoa(n)
}

// ChoiceField returns the free-form choice column Choice{n}ENG or Choice{n}KR.
func ChoiceField(n int, lang Lang) string {
	return fmt.Sprintf("Choice%d%s", n, lang)
}

// ChoiceShortField returns the C{n}_ENG / C{n}_KOR mirror columns.
func ChoiceShortField(n int, lang Lang) string {
	if lang == LangKorean {
		return fmt.Sprintf("C%d_KOR", n)
	}
	return fmt.Sprintf("C%d_ENG", n)
}

// ChapterChoiceField returns the chapter-dialect choice column Choice{n}_ENG.
func ChapterChoiceField(n int) string {
	return fmt.Sprintf("Choice%d_ENG", n)
}

// ImpactField returns Choice{n}_<kind>_<target>.
func ImpactField(n int, kind ImpactKind, target string) string {
	return fmt.Sprintf("Choice%d_%s_%s", n, kind, target)
}

// FlagsField returns Choice{n}_Flags, the comma-joined story flags a
// choice sets.
func FlagsField(n int) string {
	return fmt.Sprintf("Choice%d_Flags", n)
}

// FormatBool renders the TRUE/FALSE flags used by the content format.
func FormatBool(v bool) string {
	if v {
		return True
	}
	return False
}
