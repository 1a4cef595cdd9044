package application

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-lessonforge/infrastructure/ledger"
	"github.com/ahrav/go-lessonforge/internal/domain"
)

// Filters restricts a run to a subset of the configured dimensions. An
// empty slice means "no restriction".
type Filters struct {
	Languages     []string
	Levels        []string
	Topics        []string
	ExerciseTypes []domain.ExerciseType
}

// LessonRequest asks for Lessons lesson instances of one combination.
type LessonRequest struct {
	Combination domain.Combination
	Lessons     int
}

// Plan builds the cross product of the configured dimensions, narrowed by
// f, in configuration order. Filter values are matched case-insensitively
// and must name configured entries.
func Plan(cfg *Config, f Filters) ([]domain.Combination, error) {
	verr := domain.NewValidationError("filters")

	languages := narrow("language", cfg.Languages, f.Languages, verr)
	levels := narrow("level", cfg.Levels, f.Levels, verr)
	topics := narrow("topic", cfg.Topics, f.Topics, verr)

	typeNames := make([]string, len(f.ExerciseTypes))
	for i, t := range f.ExerciseTypes {
		typeNames[i] = string(t)
	}
	configured := make([]string, 0, len(cfg.ExerciseTypes))
	for _, t := range cfg.Types() {
		configured = append(configured, string(t))
	}
	types := narrow("exercise type", configured, typeNames, verr)

	if verr.HasErrors() {
		return nil, verr
	}

	combos := make([]domain.Combination, 0, len(languages)*len(levels)*len(topics)*len(types))
	for _, lang := range languages {
		for _, level := range levels {
			for _, topic := range topics {
				for _, t := range types {
					combos = append(combos, domain.Combination{
						Language:     lang,
						Level:        level,
						Topic:        topic,
						ExerciseType: domain.ExerciseType(t),
					})
				}
			}
		}
	}
	return combos, nil
}

func narrow(field string, configured, wanted []string, verr *domain.ValidationError) []string {
	if len(wanted) == 0 {
		return configured
	}

	byKey := make(map[string]string, len(configured))
	for _, c := range configured {
		byKey[strings.ToLower(strings.TrimSpace(c))] = c
	}

	selected := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		c, ok := byKey[strings.ToLower(strings.TrimSpace(w))]
		if !ok {
			verr.AddError(fmt.Sprintf("%s %q is not configured", field, w))
			continue
		}
		selected[c] = true
	}

	out := make([]string, 0, len(selected))
	for _, c := range configured {
		if selected[c] {
			out = append(out, c)
		}
	}
	return out
}

// Requests asks for n lesson instances of every combination.
func Requests(combos []domain.Combination, n int) []LessonRequest {
	reqs := make([]LessonRequest, len(combos))
	for i, c := range combos {
		reqs[i] = LessonRequest{Combination: c, Lessons: n}
	}
	return reqs
}

// FailureRequests re-derives work from ledger records: one request per
// unique combination, asking for as many lessons as failed.
func FailureRequests(records []domain.FailureRecord) []LessonRequest {
	grouped := ledger.Combinations(records)
	reqs := make([]LessonRequest, len(grouped))
	for i, g := range grouped {
		reqs[i] = LessonRequest{Combination: g.Combination, Lessons: g.Lessons}
	}
	return reqs
}

// Matches reports whether combo passes f. Retry-from-failures uses it to
// apply CLI filters to ledger-derived requests.
func (f Filters) Matches(combo domain.Combination) bool {
	return matchAny(f.Languages, combo.Language) &&
		matchAny(f.Levels, combo.Level) &&
		matchAny(f.Topics, combo.Topic) &&
		matchType(f.ExerciseTypes, combo.ExerciseType)
}

func matchAny(wanted []string, v string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if strings.EqualFold(strings.TrimSpace(w), v) {
			return true
		}
	}
	return false
}

func matchType(wanted []domain.ExerciseType, t domain.ExerciseType) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if w == t {
			return true
		}
	}
	return false
}
