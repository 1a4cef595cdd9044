package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-lessonforge/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("maxwords", validateMaxWords); err != nil {
		panic(fmt.Sprintf("register maxwords validator: %v", err))
	}
	return v
}

// validateMaxWords implements the maxwords=N tag for string fields.
func validateMaxWords(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return domain.CountWords(fl.Field().String()) <= limit
}

// PreCheck applies the deterministic checks that need no model call. A
// non-nil error wraps domain.ErrPreValidation and names the first problem.
func PreCheck(c domain.Candidate) error {
	if c == nil {
		return fmt.Errorf("%w: nil candidate", domain.ErrPreValidation)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrPreValidation, describeFieldErrors(err))
	}

	var problem string
	switch v := c.(type) {
	case *domain.FillInBlank:
		problem = checkFillInBlank(v)
	case *domain.PairBatch:
		problem = checkPairs(v)
	case *domain.Conversation:
		problem = checkConversation(v)
	case *domain.Translation:
		if strings.EqualFold(v.English, v.Target) {
			problem = "translation is identical to the English sentence"
		}
	}
	if problem != "" {
		return fmt.Errorf("%w: %s", domain.ErrPreValidation, problem)
	}
	return nil
}

func checkFillInBlank(f *domain.FillInBlank) string {
	if n := strings.Count(f.Sentence, domain.BlankMarker); n != 1 {
		return fmt.Sprintf("sentence has %d blank markers, want exactly 1", n)
	}
	if strings.Contains(f.Translation, domain.BlankMarker) {
		return "translation contains a blank marker"
	}

	opts := f.Options()
	for i := range opts {
		for j := i + 1; j < len(opts); j++ {
			if strings.EqualFold(strings.TrimSpace(opts[i]), strings.TrimSpace(opts[j])) {
				return fmt.Sprintf("answer options are not distinct: %q repeats", opts[j])
			}
		}
	}
	return ""
}

// checkPairs rejects batches where either side repeats, since a matching
// exercise cannot present the same word twice.
func checkPairs(p *domain.PairBatch) string {
	seenEN := make(map[string]bool, len(p.Pairs))
	seenTL := make(map[string]bool, len(p.Pairs))
	for _, pair := range p.Pairs {
		en := strings.ToLower(strings.TrimSpace(pair.English))
		tl := strings.ToLower(strings.TrimSpace(pair.Target))
		if seenEN[en] {
			return fmt.Sprintf("duplicate English entry %q", pair.English)
		}
		if seenTL[tl] {
			return fmt.Sprintf("duplicate target entry %q", pair.Target)
		}
		seenEN[en], seenTL[tl] = true, true
	}
	return ""
}

func checkConversation(c *domain.Conversation) string {
	speakers := make(map[string]bool)
	for _, turn := range c.Turns {
		speakers[strings.ToLower(strings.TrimSpace(turn.Speaker))] = true
	}
	if len(speakers) < 2 {
		return "conversation has a single speaker"
	}
	return ""
}

func describeFieldErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, ", ")
}
