package utils

import (
	"log/slog"
	"strings"
)

// ExtractJSONArray locates the JSON array inside an LLM response blob: from the
// first '[' to the last ']'. When the closing bracket never arrived the suffix
// starting at '[' is returned so RepairJSONArray can close it.
func ExtractJSONArray(text string) (string, bool) {
	start := strings.Index(text, "[")
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(text, "]")
	if end <= start {
		return text[start:], true
	}
	return text[start : end+1], true
}

// RepairJSONArray closes a truncated JSON array by cutting after the last
// complete '}' and re-balancing the outer brackets. The result always starts
// with '[' and ends with ']' but is not guaranteed to be valid JSON.
// A string without any '}' yields "[]".
func RepairJSONArray(s string) string {
	slog.Debug("repairing json array",
		"open_brackets", strings.Count(s, "["),
		"close_brackets", strings.Count(s, "]"),
		"open_braces", strings.Count(s, "{"),
		"close_braces", strings.Count(s, "}"),
	)

	last := strings.LastIndex(s, "}")
	if last < 0 {
		return "[]"
	}

	// A partial trailing object is dropped, not salvaged.
	repaired := s[:last+1]
	if !strings.HasSuffix(repaired, "]") {
		repaired += "]"
	}
	if !strings.HasPrefix(repaired, "[") {
		repaired = "[" + repaired
	}
	return repaired
}

// CountObjects counts complete top-level {...} objects, ignoring braces that
// appear inside string literals.
func CountObjects(s string) int {
	depth := 0
	count := 0
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				count++
			}
		}
	}
	return count
}
