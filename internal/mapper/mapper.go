// Package mapper converts parsed LLM dialogue entries into field records.
package mapper

import (
	"strconv"
	"strings"

	"github.com/easeaico/project-iyagi/internal/record"
	"github.com/easeaico/project-iyagi/internal/types"
)

const (
	// FirstGeneratedID marks generated lines apart from authored content.
	FirstGeneratedID = 10000

	chapterIDScale    = 1000
	maxStoryChoices   = 3
	maxChapterChoices = 4

	defaultLook = "Normal_Normal"
	defaultSize = "Medium"
)

// Mapper owns the identifier counter of the free-form dialect.
// It is not safe for concurrent use.
type Mapper struct {
	nextID int
}

// New returns a Mapper whose counter starts at FirstGeneratedID.
func New() *Mapper {
	return NewWithStart(FirstGeneratedID)
}

// NewWithStart returns a Mapper whose counter starts at id.
func NewWithStart(id int) *Mapper {
	return &Mapper{nextID: id}
}

// NextID returns the identifier the next free-form record will get.
func (m *Mapper) NextID() int {
	return m.nextID
}

// Reset moves the counter to id.
func (m *Mapper) Reset(id int) {
	m.nextID = id
}

// MapStory maps one free-form entry. next is the following record's ID or -1.
func MapStory(entry types.StoryEntry, id, next int) *record.FieldRecord {
	b := record.NewBuilder()
	b.SetInt(record.FieldID, id)
	b.Set(record.FieldScene, "1")
	b.SetInt(record.FieldIndex, id-FirstGeneratedID+1)

	setStoryCharacter(b, 1, entry.Char1Name, entry.Char1Look, entry.Char1Pos, entry.Char1Size, "Center")
	setStoryCharacter(b, 2, entry.Char2Name, entry.Char2Look, entry.Char2Pos, entry.Char2Size, "Right")

	b.Set(record.FieldBG, entry.BG)
	b.Set(record.FieldNameTag, entry.NameTag)
	b.Set(record.FieldLineENG, entry.LineEng)
	b.Set(record.FieldLineKR, entry.LineKr)
	b.Set(record.FieldParsedLineENG, entry.LineEng)
	b.Set(record.FieldParsedLineKOR, entry.LineKr)

	// Free-form lines wait for the player even without choices.
	b.Set(record.FieldAuto, record.False)

	for n := 1; n <= maxStoryChoices; n++ {
		var textEng, textKr, nextField string
		if n <= len(entry.Choices) {
			choice := entry.Choices[n-1]
			textEng, textKr = choice.TextEng, choice.TextKr
			// Every choice continues linearly; per-choice branching is not generated.
			if next > 0 {
				nextField = strconv.Itoa(next)
			}
		}
		b.Set(record.ChoiceField(n, record.LangEnglish), textEng)
		b.Set(record.ChoiceField(n, record.LangKorean), textKr)
		b.Set(record.ChoiceShortField(n, record.LangEnglish), textEng)
		b.Set(record.ChoiceShortField(n, record.LangKorean), textKr)
		b.Set(record.NextField(n), nextField)
	}

	b.Set(record.FieldSFX, "")
	b.Set(record.FieldTrigger, "")
	b.Set(record.FieldParam1, "")
	b.Set(record.FieldParam2, "")
	return b.Finalize()
}

func setStoryCharacter(b *record.Builder, slot int, name, look, pos, size, defaultPos string) {
	if name == "" {
		look, pos, size = "", "", ""
	} else {
		look = orDefault(look, defaultLook)
		pos = orDefault(pos, defaultPos)
		size = orDefault(size, defaultSize)
	}
	b.Set(record.CharField(slot, "Name"), name)
	b.Set(record.CharField(slot, "Look"), look)
	b.Set(record.CharField(slot, "Pos"), pos)
	b.Set(record.CharField(slot, "Size"), size)
}

// MapChapter maps one chapter-dialect entry at in-chapter sequence seq.
func MapChapter(entry types.ChapterEntry, chapter, seq int) *record.FieldRecord {
	b := record.NewBuilder()
	b.SetInt(record.FieldID, chapter*chapterIDScale+seq)
	b.SetInt(record.FieldScene, chapter)
	b.SetInt(record.FieldIndex, seq)

	b.Set(record.FieldNameTag, entry.Speaker)
	b.Set(record.FieldParsedLineENG, entry.Text)
	b.Set(record.FieldLineENG, entry.Text)

	b.Set(record.FieldBG, entry.BGName)
	b.Set(record.FieldBGM, entry.BGMName)
	b.Set(record.FieldSFX, entry.SFXName)

	setChapterCharacter(b, 1, entry.Character1Name, entry.Character1Expression, entry.Character1Pose, entry.Character1Position, "Center")
	setChapterCharacter(b, 2, entry.Character2Name, entry.Character2Expression, entry.Character2Pose, entry.Character2Position, "Left")

	for n := 1; n <= maxChapterChoices; n++ {
		if n > len(entry.Choices) {
			b.Set(record.ChapterChoiceField(n), "")
			b.Set(record.NextField(n), "")
			continue
		}
		choice := entry.Choices[n-1]
		b.Set(record.ChapterChoiceField(n), choice.Text)
		b.SetInt(record.NextField(n), choice.NextID)
		for _, impact := range choice.ValueImpact {
			if impact.ValueName == "" {
				continue
			}
			b.SetInt(record.ImpactField(n, record.ImpactValue, impact.ValueName), impact.Change)
		}
		for _, impact := range choice.SkillImpact {
			if impact.SkillName == "" {
				continue
			}
			b.SetInt(record.ImpactField(n, record.ImpactSkill, impact.SkillName), impact.Change)
		}
		for _, impact := range choice.AffectionImpact {
			if impact.CharacterName == "" {
				continue
			}
			b.SetInt(record.ImpactField(n, record.ImpactAffection, impact.CharacterName), impact.Change)
		}
		if len(choice.SetFlags) > 0 {
			b.Set(record.FlagsField(n), strings.Join(choice.SetFlags, ","))
		}
	}
	b.Set(record.FieldAuto, record.FormatBool(len(entry.Choices) == 0))

	isCG := ""
	if entry.CGID != "" {
		isCG = record.True
	}
	b.Set(record.FieldCGID, entry.CGID)
	b.Set(record.FieldCGTitle, entry.CGTitle)
	b.Set(record.FieldIsCGLine, isCG)
	b.Set(record.FieldCGDescription, entry.CGSceneDescription)
	b.Set(record.FieldCGLighting, entry.CGLighting)
	b.Set(record.FieldCGMood, entry.CGMood)
	b.Set(record.FieldCGCamera, entry.CGCameraAngle)
	b.Set(record.FieldCGCharacters, strings.Join(entry.CGCharacters, ","))
	return b.Finalize()
}

func setChapterCharacter(b *record.Builder, slot int, name, expression, pose, pos, defaultPos string) {
	look, size := "", ""
	if name == "" {
		pos = ""
	} else {
		look = expression + "_" + pose
		pos = orDefault(pos, defaultPos)
		size = defaultSize
	}
	b.Set(record.CharField(slot, "Name"), name)
	b.Set(record.CharField(slot, "Look"), look)
	b.Set(record.CharField(slot, "Pos"), pos)
	b.Set(record.CharField(slot, "Size"), size)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
