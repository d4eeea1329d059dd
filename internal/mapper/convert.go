package mapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/easeaico/project-iyagi/internal/record"
	"github.com/easeaico/project-iyagi/internal/types"
	"github.com/easeaico/project-iyagi/internal/utils"
)

// ErrUnusableResponse means no JSON array could be recovered from a response.
var ErrUnusableResponse = errors.New("unusable response")

// BuildStory converts a raw free-form response into records, assigning IDs
// from the mapper counter. Malformed entries are skipped and do not consume
// an ID. An empty sequence with a nil error means nothing usable was found.
func (m *Mapper) BuildStory(raw string) (record.Sequence, error) {
	items, err := decodeArray(raw)
	if err != nil {
		return nil, err
	}

	entries := make([]types.StoryEntry, 0, len(items))
	for i, item := range items {
		var entry types.StoryEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			slog.Warn("skipping malformed story entry", "position", i, "error", err.Error())
			continue
		}
		entries = append(entries, entry)
	}

	seq := make(record.Sequence, 0, len(entries))
	for i, entry := range entries {
		id := m.nextID
		m.nextID++
		next := -1
		if i < len(entries)-1 {
			next = m.nextID
		}
		seq = append(seq, MapStory(entry, id, next))
	}
	slog.Debug("built story records", "count", len(seq), "next_id", m.nextID)
	return seq, nil
}

// BuildChapter converts a raw chapter-dialect response. Sequence numbers start
// at startSeq and the next free one is returned so that several scenes of the
// same chapter never share an ID.
func BuildChapter(raw string, chapter, startSeq int) (record.Sequence, int, error) {
	items, err := decodeArray(raw)
	if err != nil {
		return nil, startSeq, err
	}

	seqNum := startSeq
	seq := make(record.Sequence, 0, len(items))
	for i, item := range items {
		var entry types.ChapterEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			slog.Warn("skipping malformed chapter entry", "chapter", chapter, "position", i, "error", err.Error())
			continue
		}
		seq = append(seq, MapChapter(entry, chapter, seqNum))
		seqNum++
	}
	return seq, seqNum, nil
}

// decodeArray locates the array in raw, repairing it when it does not decode
// as is, and splits it into elements.
func decodeArray(raw string) ([]json.RawMessage, error) {
	text, ok := utils.ExtractJSONArray(raw)
	if !ok {
		text = raw
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items, nil
	}

	repaired := utils.RepairJSONArray(text)
	slog.Warn("response json needed repair",
		"original_length", len(text),
		"repaired_length", len(repaired),
		"salvaged_objects", utils.CountObjects(repaired),
	)
	if err := json.Unmarshal([]byte(repaired), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusableResponse, err)
	}
	return items, nil
}
