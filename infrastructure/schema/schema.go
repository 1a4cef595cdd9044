// Package schema builds the JSON Schemas that constrain exercise generation
// and checks decoded model output against them.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ahrav/go-lessonforge/internal/domain"
)

// EnglishKey is the JSON key holding the English side of pairs and
// translations. The other side is keyed by the target language name.
const EnglishKey = "English"

// Batch bounds for one generation call, per exercise type.
type Bounds struct {
	MinItems int
	MaxItems int
}

var batchBounds = map[domain.ExerciseType]Bounds{
	domain.ExerciseConversation: {MinItems: 1, MaxItems: 3},
	domain.ExercisePairs:        {MinItems: 5, MaxItems: 7},
	domain.ExerciseTranslation:  {MinItems: 1, MaxItems: 5},
	domain.ExerciseFillInBlank:  {MinItems: 1, MaxItems: 5},
}

// Schema is a JSON Schema for one (exercise type, target language) pair.
// It is immutable after Build and safe for concurrent use.
type Schema struct {
	Name        string
	Description string
	Type        domain.ExerciseType
	Language    string
	Bounds      Bounds
	Definition  map[string]any

	raw      json.RawMessage
	compiled *gojsonschema.Schema
}

// Build returns the schema for exercise type t in the given target language.
func Build(t domain.ExerciseType, language string) (*Schema, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		return nil, fmt.Errorf("target language is required")
	}
	if strings.EqualFold(language, EnglishKey) {
		return nil, fmt.Errorf("target language must differ from %s", EnglishKey)
	}

	bounds, ok := batchBounds[t]
	if !ok {
		return nil, fmt.Errorf("unsupported exercise type %q", t)
	}

	var item map[string]any
	var desc string
	switch t {
	case domain.ExerciseConversation:
		item, desc = conversationItem(language), "Short dialogues in "+language+" with an English summary"
	case domain.ExercisePairs:
		item, desc = bilingualItem(language, 10), "Related English/"+language+" word or phrase pairs"
	case domain.ExerciseTranslation:
		item, desc = bilingualItem(language, 0), "Full English sentences with their "+language+" translation"
	case domain.ExerciseFillInBlank:
		item, desc = fillInBlankItem(language), language+" sentences with one blank and three answer options"
	}

	def := map[string]any{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"type":        "array",
		"minItems":    bounds.MinItems,
		"maxItems":    bounds.MaxItems,
		"items":       item,
		"description": desc,
	}
	if t == domain.ExercisePairs {
		def["uniqueItems"] = true
	}

	raw, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("marshal %s schema: %w", t, err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", t, err)
	}

	return &Schema{
		Name:        fmt.Sprintf("%s_%s", t, keySlug(language)),
		Description: desc,
		Type:        t,
		Language:    language,
		Bounds:      bounds,
		Definition:  def,
		raw:         raw,
		compiled:    compiled,
	}, nil
}

// JSON returns the schema document.
func (s *Schema) JSON() json.RawMessage { return s.raw }

// TargetKey returns the JSON key that holds target-language text.
func (s *Schema) TargetKey() string { return s.Language }

// ValidationError lists every structural problem found in a document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "schema violation: " + strings.Join(e.Problems, "; ")
}

// ValidateJSON checks doc against the schema.
func (s *Schema) ValidateJSON(doc []byte) error {
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validate against %s: %w", s.Name, err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{}
	for _, re := range result.Errors() {
		verr.Problems = append(verr.Problems, re.String())
	}
	return verr
}

func conversationItem(language string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"conversation": map[string]any{
				"type":     "array",
				"minItems": 2,
				"maxItems": 8,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"speaker": nonEmptyString("Name of the speaker"),
						"message": nonEmptyString("What the speaker says, in " + language),
					},
					"required": []any{"speaker", "message"},
				},
			},
			"conversation_summary": nonEmptyString("One English sentence describing the conversation"),
		},
		"required": []any{"conversation", "conversation_summary"},
	}
}

// bilingualItem describes an {English, <language>} object. maxWords > 0
// adds a word-count hint; JSON Schema cannot count words, so the limit is
// enforced after decoding.
func bilingualItem(language string, maxWords int) map[string]any {
	en := nonEmptyString("English text")
	tl := nonEmptyString(language + " text")
	if maxWords > 0 {
		en["description"] = fmt.Sprintf("English word or phrase, at most %d words", maxWords)
		tl["description"] = fmt.Sprintf("%s word or phrase, at most %d words", language, maxWords)
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			EnglishKey: en,
			language:   tl,
		},
		"required": []any{EnglishKey, language},
	}
}

func fillInBlankItem(language string) map[string]any {
	option := func(desc string) map[string]any {
		s := nonEmptyString(desc + ", at most 3 words")
		s["pattern"] = `^[^_]*$`
		return s
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sentence": map[string]any{
				"type":        "string",
				"minLength":   3,
				"pattern":     `^[^_]*_+[^_]*$`,
				"description": "A " + language + " sentence with exactly one blank written as _",
			},
			"correct_answer": option("The word that fills the blank"),
			"incorrect_1":    option("A plausible but wrong option"),
			"incorrect_2":    option("Another plausible but wrong option"),
			"blank_position": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"description": "Zero-based word index of the blank in the sentence",
			},
			"translation": map[string]any{
				"type":        "string",
				"minLength":   1,
				"pattern":     `^[^_]*$`,
				"description": "English translation of the complete sentence, with no blank",
			},
		},
		"required": []any{"sentence", "correct_answer", "incorrect_1", "incorrect_2", "blank_position", "translation"},
	}
}

func nonEmptyString(desc string) map[string]any {
	return map[string]any{"type": "string", "minLength": 1, "description": desc}
}

func keySlug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// BoundsFor returns the batch bounds for t.
func BoundsFor(t domain.ExerciseType) (Bounds, bool) {
	b, ok := batchBounds[t]
	return b, ok
}
