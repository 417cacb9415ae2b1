package llm

import (
	"errors"
	"strings"
)

// ErrMalformedOutput is returned when no well-formed JSON object can be
// recovered from a model response. Callers treat it as transient and
// re-queue the originating observation.
var ErrMalformedOutput = errors.New("no valid JSON object in model output")

// FirstJSONObject recovers the first balanced {...} span from a model
// response. Models wrap JSON in prose or markdown fences often enough that
// a strict unmarshal of the raw body is not workable.
func FirstJSONObject(s string) (string, error) {
	s = stripFences(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrMalformedOutput
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrMalformedOutput
}

// stripFences removes markdown code fence markers if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	return strings.TrimSpace(s)
}
