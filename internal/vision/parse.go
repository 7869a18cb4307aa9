package vision

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

// ParseError means a vision response could not be reduced to the expected
// JSON contract. It matches shield.ErrUpstreamService under errors.Is.
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unusable vision response: %s: %v", e.Reason, e.Err)
	}
	return "unusable vision response: " + e.Reason
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{shield.ErrUpstreamService, e.Err}
	}
	return []error{shield.ErrUpstreamService}
}

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\n?(.*?)```")

// ParseStructuredResponse decodes the JSON object in text into v. Models
// often wrap the object in prose or a markdown fence, so the candidates are
// tried in order: the whole text, the first fenced block, then the first
// balanced {...} literal.
func ParseStructuredResponse(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &ParseError{Reason: "empty response", Raw: text}
	}

	candidates := []string{trimmed}
	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if obj, ok := firstObject(trimmed); ok {
		candidates = append(candidates, obj)
	}

	for _, c := range candidates {
		if !strings.HasPrefix(c, "{") || !json.Valid([]byte(c)) {
			continue
		}
		if err := json.Unmarshal([]byte(c), v); err != nil {
			return &ParseError{Reason: "object does not match schema", Raw: text, Err: err}
		}
		return nil
	}
	return &ParseError{Reason: "no JSON object found", Raw: text}
}

// firstObject returns the first balanced {...} substring of s. Braces inside
// string literals are ignored.
func firstObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
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
				return i, true
			}
		}
	}
	return 0, false
}
