package parser

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/go-lessonforge/internal/domain"
)

var quoteReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"＿", domain.BlankMarker,
)

var blankRun = regexp.MustCompile(`_{2,}`)

// NormalizeText cleans one string field: HTML entities are unescaped, the
// text is NFC-normalized, typographic quotes become ASCII, runs of
// underscores collapse to a single blank marker and whitespace collapses to
// single spaces.
func NormalizeText(s string) string {
	s = html.UnescapeString(s)
	s = norm.NFC.String(s)
	s = quoteReplacer.Replace(s)
	s = blankRun.ReplaceAllString(s, domain.BlankMarker)
	return strings.Join(strings.Fields(s), " ")
}

// normalizeValue applies NormalizeText to every string in a decoded JSON
// value.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return NormalizeText(t)
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeValue(val)
		}
		return t
	default:
		return v
	}
}
