// Package gamestate tracks the player's progress between generated chapters.
package gamestate

import (
	"fmt"
	"hash/fnv"
	"maps"
	"slices"
	"strings"

	"github.com/easeaico/project-iyagi/internal/types"
)

// DefaultAffection is the starting affection of every NPC.
const DefaultAffection = 50

// emptyHash is the cache hash of a state without values or affections.
const emptyHash = "00000000"

// Snapshot is the game progress handed to chapter generation and saved
// alongside cached chapters.
type Snapshot struct {
	CurrentChapter   int             `json:"current_chapter"`
	CurrentLineID    int             `json:"current_line_id"`
	CoreValues       map[string]int  `json:"core_values"`
	Skills           map[string]int  `json:"skills"`
	Affections       map[string]int  `json:"affections"`
	PreviousChoices  []string        `json:"previous_choices"`
	ChapterSummaries map[int]string  `json:"chapter_summaries"`
	UnlockedCGs      []string        `json:"unlocked_cgs"`
	Flags            map[string]bool `json:"flags"`
}

// NewSnapshot returns the chapter 1 state of a project: every core value at
// zero and every NPC at DefaultAffection.
func NewSnapshot(project types.Project) Snapshot {
	snap := Snapshot{
		CurrentChapter:   1,
		CoreValues:       make(map[string]int, len(project.CoreValues)),
		Skills:           map[string]int{},
		Affections:       make(map[string]int, len(project.NPCs)),
		ChapterSummaries: map[int]string{},
		Flags:            map[string]bool{},
	}
	for _, value := range project.CoreValues {
		snap.CoreValues[value] = 0
	}
	for _, npc := range project.NPCs {
		snap.Affections[npc] = DefaultAffection
	}
	return snap
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.CoreValues = maps.Clone(s.CoreValues)
	out.Skills = maps.Clone(s.Skills)
	out.Affections = maps.Clone(s.Affections)
	out.ChapterSummaries = maps.Clone(s.ChapterSummaries)
	out.Flags = maps.Clone(s.Flags)
	out.PreviousChoices = slices.Clone(s.PreviousChoices)
	out.UnlockedCGs = slices.Clone(s.UnlockedCGs)
	return out
}

// ToPromptString renders the state for a chapter prompt. Map entries are
// sorted by key so that equal states render equally.
func (s Snapshot) ToPromptString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current Chapter: %d\n", s.CurrentChapter)
	writeScores(&sb, "Core Values", s.CoreValues)
	writeScores(&sb, "Skills", s.Skills)
	writeScores(&sb, "Character Affections", s.Affections)
	if len(s.PreviousChoices) > 0 {
		fmt.Fprintf(&sb, "Previous Choices: %s\n", strings.Join(s.PreviousChoices, ", "))
	}
	var flags []string
	for _, name := range slices.Sorted(maps.Keys(s.Flags)) {
		if s.Flags[name] {
			flags = append(flags, name)
		}
	}
	if len(flags) > 0 {
		fmt.Fprintf(&sb, "Story Flags: %s\n", strings.Join(flags, ", "))
	}
	if len(s.ChapterSummaries) > 0 {
		sb.WriteString("\nPrevious Chapters:\n")
		for _, chapter := range slices.Sorted(maps.Keys(s.ChapterSummaries)) {
			fmt.Fprintf(&sb, "  Chapter %d: %s\n", chapter, s.ChapterSummaries[chapter])
		}
	}
	return sb.String()
}

func writeScores(sb *strings.Builder, label string, scores map[string]int) {
	if len(scores) == 0 {
		return
	}
	parts := make([]string, 0, len(scores))
	for _, key := range slices.Sorted(maps.Keys(scores)) {
		parts = append(parts, fmt.Sprintf("%s=%d", key, scores[key]))
	}
	fmt.Fprintf(sb, "%s: %s\n", label, strings.Join(parts, ", "))
}

// CacheHash keys chapter caches. Core values and affections are rounded
// down to tens so that nearby states share a chapter.
func (s Snapshot) CacheHash() string {
	var parts []string
	for _, key := range slices.Sorted(maps.Keys(s.CoreValues)) {
		parts = append(parts, fmt.Sprintf("CV:%s:%d", key, roundScore(s.CoreValues[key])))
	}
	for _, key := range slices.Sorted(maps.Keys(s.Affections)) {
		parts = append(parts, fmt.Sprintf("AF:%s:%d", key, roundScore(s.Affections[key])))
	}
	if len(parts) == 0 {
		return emptyHash
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.Join(parts, ",")))
	return fmt.Sprintf("%08X", h.Sum32())
}

func roundScore(v int) int {
	return (v / 10) * 10
}

// UnlockCG records a CG id once.
func (s *Snapshot) UnlockCG(id string) bool {
	if id == "" || slices.Contains(s.UnlockedCGs, id) {
		return false
	}
	s.UnlockedCGs = append(s.UnlockedCGs, id)
	return true
}

// ClampAffection bounds affection to 0-100.
func ClampAffection(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
