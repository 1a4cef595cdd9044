package domain

import (
	"fmt"
	"strings"
)

// ExerciseType enumerates the exercise shapes the pipeline can generate.
type ExerciseType string

// Supported exercise types. The string values are persisted in
// exercises_info.exercise_type and appear in configuration files.
const (
	ExerciseConversation ExerciseType = "conversation"
	ExercisePairs        ExerciseType = "pairs"
	ExerciseTranslation  ExerciseType = "translation"
	ExerciseFillInBlank  ExerciseType = "fill_in_blank"
)

// AllExerciseTypes lists every supported exercise type in a stable order.
var AllExerciseTypes = []ExerciseType{
	ExerciseConversation,
	ExercisePairs,
	ExerciseTranslation,
	ExerciseFillInBlank,
}

// ParseExerciseType converts a user-supplied name into an ExerciseType.
// It accepts a few common aliases ("pair", "fill-in-blank").
func ParseExerciseType(s string) (ExerciseType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	switch norm {
	case "conversation", "conversations":
		return ExerciseConversation, nil
	case "pairs", "pair":
		return ExercisePairs, nil
	case "translation", "translations":
		return ExerciseTranslation, nil
	case "fill_in_blank", "fill_in_the_blank", "fillinblank":
		return ExerciseFillInBlank, nil
	default:
		return "", fmt.Errorf("unknown exercise type %q", s)
	}
}

// Valid reports whether t is one of the supported exercise types.
func (t ExerciseType) Valid() bool {
	for _, known := range AllExerciseTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Combination identifies one generation target. It is built once by the
// scheduler from configuration and never mutated afterwards.
type Combination struct {
	Language     string       `json:"language"`
	Level        string       `json:"level"`
	Topic        string       `json:"topic"`
	ExerciseType ExerciseType `json:"exercise_type"`
}

// Key returns a stable string form usable as a map key or log field.
func (c Combination) Key() string {
	return strings.Join([]string{c.Language, c.Level, c.Topic, string(c.ExerciseType)}, "/")
}

// String implements fmt.Stringer.
func (c Combination) String() string { return c.Key() }
