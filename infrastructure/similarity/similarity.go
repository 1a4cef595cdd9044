// Package similarity rejects candidates that repeat content already accepted
// for the same language, level and topic.
package similarity

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-lessonforge/infrastructure/prompt"
	"github.com/ahrav/go-lessonforge/internal/domain"
)

// Defaults.
const (
	DefaultThreshold = 0.6

	// NearExactSimilarity is the normalized edit-distance similarity at or
	// above which two texts count as the same exercise regardless of word
	// overlap.
	NearExactSimilarity = 0.9
)

var foldCaser = cases.Fold()

// Filter compares candidates against a sample of existing exercises.
// It is immutable and safe for concurrent use.
type Filter struct {
	threshold float64
}

// NewFilter creates a Filter. A threshold outside (0, 1] takes the default.
func NewFilter(threshold float64) *Filter {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Filter{threshold: threshold}
}

// Threshold returns the Jaccard overlap that triggers rejection.
func (f *Filter) Threshold() float64 { return f.threshold }

// IsTooSimilar reports whether c duplicates any exercise in existing and, if
// so, why. Only exercises of the same type are compared.
func (f *Filter) IsTooSimilar(c domain.Candidate, existing []domain.Candidate) (bool, string) {
	text := normalize(c.PrimaryText())
	words := wordSet(text)

	for _, other := range existing {
		if other == nil || other.Type() != c.Type() {
			continue
		}
		otherText := normalize(other.PrimaryText())
		quoted := fmt.Sprintf("%q", prompt.Truncate(other.PrimaryText(), 60))

		if text == otherText {
			return true, "exact match with existing exercise " + quoted
		}
		if sim := editSimilarity(text, otherText); sim >= NearExactSimilarity {
			return true, fmt.Sprintf("near-exact match (edit similarity %.2f) with existing exercise %s", sim, quoted)
		}
		if overlap := Jaccard(words, wordSet(otherText)); overlap >= f.threshold {
			return true, fmt.Sprintf("word overlap %.2f >= %.2f with existing exercise %s", overlap, f.threshold, quoted)
		}
	}
	return false, ""
}

func normalize(s string) string {
	return strings.Join(strings.Fields(foldCaser.String(s)), " ")
}

// wordSet splits on anything that is not a letter or digit, so "l'eau"
// yields "l" and "eau".
func wordSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets have overlap 0 so that
// blank text never matches.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// editSimilarity is 1 - levenshtein/maxRunes.
func editSimilarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return max(1-float64(d)/float64(maxLen), 0)
}

// Overlap is Jaccard on two raw texts, exposed for reporting.
func Overlap(a, b string) float64 {
	return Jaccard(wordSet(normalize(a)), wordSet(normalize(b)))
}
