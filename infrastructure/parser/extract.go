package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Reasoning spans some local models emit before the answer.
var reasoningSpans = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<think>.*?</think>`),
	regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
	regexp.MustCompile(`(?is)<reasoning>.*?</reasoning>`),
	regexp.MustCompile(`(?is)<\|channel\|>analysis.*?<\|end\|>`),
}

// unterminated handles output where the opening tag was part of the prompt
// template and only the closing tag appears.
var unterminated = []string{"</think>", "</thinking>", "</reasoning>"}

// StripReasoning removes delimited reasoning segments from model output.
func StripReasoning(text string) string {
	for _, re := range reasoningSpans {
		text = re.ReplaceAllString(text, "")
	}
	lower := strings.ToLower(text)
	for _, tag := range unterminated {
		if i := strings.LastIndex(lower, tag); i >= 0 {
			text = text[i+len(tag):]
			lower = lower[i+len(tag):]
		}
	}
	return strings.TrimSpace(text)
}

// ExtractJSON returns the first balanced JSON array or object in text, after
// reasoning spans are removed. Brackets inside string literals are ignored.
//
// Prose such as "here are [5] pairs" can itself be a balanced span, so spans
// that decode and contain an object win over bare scalar arrays, and any span
// that decodes wins over one that does not. It reports false when no opening
// bracket has a matching close. A span that balances but fails to decode is
// never searched for nested items, so a malformed batch surfaces as a decode
// error instead of a partial batch. Nested salvage only applies when the outer
// bracket is never closed.
func ExtractJSON(text string) (string, bool) {
	text = StripReasoning(text)

	var firstBalanced, firstValid string
	for start := 0; start < len(text); start++ {
		c := text[start]
		if c != '[' && c != '{' {
			continue
		}
		end, ok := matchClose(text, start)
		if !ok {
			continue
		}
		span := text[start : end+1]
		if !json.Valid([]byte(span)) {
			if firstBalanced == "" {
				firstBalanced = span
			}
			start = end
			continue
		}
		if strings.Contains(span, "{") {
			return span, true
		}
		if firstValid == "" {
			firstValid = span
		}
		start = end
	}

	switch {
	case firstValid != "":
		return firstValid, true
	case firstBalanced != "":
		return firstBalanced, true
	default:
		return "", false
	}
}

// matchClose scans from the opening bracket at start and returns the index of
// its matching close.
func matchClose(text string, start int) (int, bool) {
	var stack []byte
	inString := false
	escapeNext := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escapeNext = true
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[', '{':
			stack = append(stack, c)
		case ']', '}':
			if len(stack) == 0 {
				return 0, false
			}
			open := stack[len(stack)-1]
			if (open == '[' && c != ']') || (open == '{' && c != '}') {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
