package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when a reply carries no complete JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in response")

var (
	// reasoning models prefix replies with <think>...</think>; some leave
	// the block unterminated when they hit the token limit
	thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?(</think>|$)`)

	codeFencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\n?(.*?)```")
)

// ExtractJSONObject returns the first complete JSON object in an LLM reply.
// Think blocks are dropped, and the body of a fenced block is preferred
// over surrounding prose. Each '{' is tried in turn, so stray braces in
// prose ahead of the payload are skipped.
func ExtractJSONObject(response string) (string, error) {
	cleaned := thinkBlockPattern.ReplaceAllString(response, "")

	candidates := []string{cleaned}
	for _, m := range codeFencePattern.FindAllStringSubmatch(cleaned, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			candidates = append([]string{body}, candidates...)
		}
	}

	for _, c := range candidates {
		if obj, ok := firstObject(c); ok {
			return obj, nil
		}
	}
	return "", ErrNoJSONObject
}

// firstObject scans s for a balanced {...} span that is valid JSON.
func firstObject(s string) (string, bool) {
	for offset := 0; offset < len(s); {
		start := strings.IndexByte(s[offset:], '{')
		if start < 0 {
			return "", false
		}
		start += offset

		if end, ok := matchBrace(s, start); ok {
			if span := s[start : end+1]; json.Valid([]byte(span)) {
				return span, true
			}
		}
		offset = start + 1
	}
	return "", false
}

// matchBrace returns the index of the '}' closing the '{' at start,
// ignoring braces inside JSON strings.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false

	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
