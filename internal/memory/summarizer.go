package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/easeaico/project-iyagi/internal/record"
)

// chapterSummaryInstruction asks for a JSON object only.
const chapterSummaryInstruction = `You are a professional visual novel story summarizer.
Your task is to compress one played chapter into a short summary that a writer can use to continue the story.

Extract and retain:
1. Key events and important decisions
2. Relationship shifts between the characters
3. Choices the player made and their consequences

Output requirements:
- Use third-person narration
- Organize chronologically
- Keep the summary within 2-3 sentences
- Return a valid JSON object: {"summary": "..."}
- Do not include any extra keys or text outside the JSON object

Chapter transcript:
`

// TextGenerator produces text from a single prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChapterSummarizer condenses played chapters for later prompts.
type ChapterSummarizer struct {
	generator TextGenerator
}

// NewChapterSummarizer creates a summarizer backed by generator.
func NewChapterSummarizer(generator TextGenerator) *ChapterSummarizer {
	return &ChapterSummarizer{generator: generator}
}

// Summarize returns a short summary of a chapter's records and the choices
// taken in it.
func (s *ChapterSummarizer) Summarize(ctx context.Context, chapter int, seq record.Sequence, choices []string) (string, error) {
	if s == nil || s.generator == nil {
		return "", fmt.Errorf("chapter summarizer not configured")
	}
	transcript := buildTranscript(seq, choices)
	if transcript == "" {
		return "", fmt.Errorf("chapter %d has no dialogue", chapter)
	}

	raw, err := s.generator.Generate(ctx, chapterSummaryInstruction+transcript)
	if err != nil {
		return "", fmt.Errorf("failed to summarize chapter %d: %w", chapter, err)
	}
	summary, err := parseSummaryJSON(raw)
	if err != nil {
		slog.Warn("summary was not json, using raw text", "chapter", chapter, "error", err.Error())
		summary = strings.TrimSpace(raw)
	}
	if summary == "" {
		return "", fmt.Errorf("empty summary response")
	}
	return summary, nil
}

func buildTranscript(seq record.Sequence, choices []string) string {
	var sb strings.Builder
	for _, rec := range seq {
		line := rec.Line(record.LangEnglish)
		if line == "" {
			continue
		}
		if speaker := rec.Speaker(); speaker != "" {
			sb.WriteString(speaker)
			sb.WriteString(": ")
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return ""
	}
	if len(choices) > 0 {
		sb.WriteString("\nPlayer choices: ")
		sb.WriteString(strings.Join(choices, "; "))
		sb.WriteString("\n")
	}
	return sb.String()
}

// parseSummaryJSON 从模型输出中提取 JSON 并解码。
func parseSummaryJSON(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	var out struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return "", fmt.Errorf("failed to parse summary json: %w", err)
	}
	return strings.TrimSpace(out.Summary), nil
}
