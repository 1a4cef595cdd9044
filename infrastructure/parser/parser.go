// Package parser turns raw generation output into typed exercise candidates.
//
// Parsing never judges content quality. It only guarantees that every
// returned candidate has the shape its schema describes.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ahrav/go-lessonforge/infrastructure/schema"
	"github.com/ahrav/go-lessonforge/internal/domain"
)

// Parse extracts, normalizes and decodes the candidates in raw for combo.
//
// Output with no JSON span yields a generation StageError wrapping
// domain.ErrNoJSON. Malformed JSON or a schema violation yields a parse
// StageError carrying the extracted text.
func Parse(raw string, combo domain.Combination, s *schema.Schema) ([]domain.Candidate, error) {
	if s == nil {
		return nil, domain.NewParseError(raw, fmt.Errorf("no schema for %s", combo.Key()))
	}

	span, ok := ExtractJSON(raw)
	if !ok {
		return nil, domain.NewGenerationError(domain.ErrNoJSON)
	}

	var doc any
	if err := json.Unmarshal([]byte(span), &doc); err != nil {
		return nil, domain.NewParseError(span, fmt.Errorf("decode: %w", err))
	}

	items := asItems(doc)
	for i, item := range items {
		items[i] = canonicalKeys(normalizeValue(item), s)
	}

	normalized, err := json.Marshal(items)
	if err != nil {
		return nil, domain.NewParseError(span, fmt.Errorf("re-encode: %w", err))
	}
	if err := s.ValidateJSON(normalized); err != nil {
		return nil, domain.NewParseError(span, err)
	}

	cands, err := toCandidates(items, combo.ExerciseType, s)
	if err != nil {
		return nil, domain.NewParseError(span, err)
	}
	return cands, nil
}

// asItems accepts a bare array, a single item object, or an object wrapping
// the array under one key such as {"pairs": [...]}.
func asItems(doc any) []any {
	switch t := doc.(type) {
	case []any:
		return t
	case map[string]any:
		if len(t) == 1 {
			for _, v := range t {
				if arr, ok := v.([]any); ok {
					return arr
				}
			}
		}
		return []any{t}
	default:
		return []any{t}
	}
}

// canonicalKeys rewrites case variants of the English and target-language
// keys ("english", "FRENCH") to the exact keys the schema requires.
func canonicalKeys(item any, s *schema.Schema) any {
	obj, ok := item.(map[string]any)
	if !ok {
		return item
	}
	if s.Type != domain.ExercisePairs && s.Type != domain.ExerciseTranslation {
		return obj
	}
	for _, want := range []string{schema.EnglishKey, s.TargetKey()} {
		if _, ok := obj[want]; ok {
			continue
		}
		for k, v := range obj {
			if strings.EqualFold(k, want) {
				obj[want] = v
				delete(obj, k)
				break
			}
		}
	}
	return obj
}

func toCandidates(items []any, t domain.ExerciseType, s *schema.Schema) ([]domain.Candidate, error) {
	switch t {
	case domain.ExercisePairs:
		batch := &domain.PairBatch{Pairs: make([]domain.Pair, 0, len(items))}
		for _, item := range items {
			en, tl := bilingual(item, s)
			batch.Pairs = append(batch.Pairs, domain.Pair{English: en, Target: tl})
		}
		return []domain.Candidate{batch}, nil

	case domain.ExerciseTranslation:
		out := make([]domain.Candidate, 0, len(items))
		for _, item := range items {
			en, tl := bilingual(item, s)
			out = append(out, &domain.Translation{English: en, Target: tl})
		}
		return out, nil

	case domain.ExerciseConversation:
		return decodeEach[domain.Conversation](items)

	case domain.ExerciseFillInBlank:
		cands, err := decodeEach[domain.FillInBlank](items)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			fixBlankPosition(c.(*domain.FillInBlank))
		}
		return cands, nil

	default:
		return nil, fmt.Errorf("unsupported exercise type %q", t)
	}
}

func bilingual(item any, s *schema.Schema) (string, string) {
	obj, _ := item.(map[string]any)
	en, _ := obj[schema.EnglishKey].(string)
	tl, _ := obj[s.TargetKey()].(string)
	return en, tl
}

// decodeEach round-trips every item through encoding/json into T, whose
// field tags match the schema property names.
func decodeEach[T any, PT interface {
	*T
	domain.Candidate
}](items []any) ([]domain.Candidate, error) {
	out := make([]domain.Candidate, 0, len(items))
	for i, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, PT(&v))
	}
	return out, nil
}

// fixBlankPosition points BlankPosition at the word holding the blank marker.
// Models often count from one or include punctuation; the sentence is the
// source of truth.
func fixBlankPosition(f *domain.FillInBlank) {
	for i, w := range strings.Fields(f.Sentence) {
		if strings.Contains(w, domain.BlankMarker) {
			f.BlankPosition = i
			return
		}
	}
}
