package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ahrav/go-lessonforge/infrastructure/parser"
)

// ErrNoVerdict indicates that the validation model's reply held no JSON object.
var ErrNoVerdict = errors.New("no verdict object in validation response")

// verdict is the coerced form of the model's reply.
type verdict struct {
	Axes     map[string]bool
	RawScore int `validate:"min=1,max=10"`
	Issues   []string
}

// parseVerdict decodes the validation model's reply, coercing loose encodings
// ("yes", "1", null, "8/10") to the canonical form. Axes the model omitted
// read as false.
func parseVerdict(response string, axes []string) (verdict, error) {
	span, ok := parser.ExtractJSON(response)
	if !ok {
		return verdict{}, ErrNoVerdict
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	obj = lowerKeys(obj)

	v := verdict{Axes: make(map[string]bool, len(axes))}
	for _, axis := range axes {
		v.Axes[axis] = coerceBool(obj[axis])
	}

	raw, present := obj["overall_quality_score"]
	if !present {
		raw, present = obj["score"]
	}
	if !present {
		return verdict{}, errors.New("verdict has no overall_quality_score")
	}
	score, ok := coerceScore(raw)
	if !ok {
		return verdict{}, fmt.Errorf("verdict score %v is not a number", raw)
	}
	v.RawScore = score
	v.Issues = coerceIssues(obj["issues"])

	if err := validate.Struct(v); err != nil {
		return verdict{}, fmt.Errorf("verdict score %d outside 1-10", score)
	}
	return v, nil
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "pass", "passed":
			return true
		}
	}
	return false
}

// coerceScore accepts 7, 7.4, "7", "7/10" and rounds to the nearest integer.
func coerceScore(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(math.Round(t)), true
	case string:
		s := strings.TrimSpace(t)
		if i := strings.Index(s, "/"); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return int(math.Round(f)), true
	}
	return 0, false
}

func coerceIssues(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" && item != nil {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" && !strings.EqualFold(s, "none") {
			return []string{s}
		}
	}
	return nil
}
