package validation

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/ahrav/go-lessonforge/infrastructure/prompt"
	"github.com/ahrav/go-lessonforge/internal/domain"
)

// axisQuestions phrases each quality axis as a yes/no question.
var axisQuestions = map[string]string{
	domain.AxisLanguageCorrect:       "Is all {{.Language}} text genuine, idiomatic {{.Language}}?",
	domain.AxisGrammarCorrect:        "Is the grammar and spelling correct in both languages?",
	domain.AxisCulturallyAppropriate: "Is the content culturally appropriate and free of offensive material?",
	domain.AxisEducationalQuality:    "Would this help a {{.Level}} learner make progress?",
	domain.AxisNaturalFlow:           "Does the dialogue flow the way real speakers talk?",
	domain.AxisSummaryAccurate:       "Does the English summary describe the dialogue accurately?",
	domain.AxisTranslationsAccurate:  "Is every pair an accurate translation?",
	domain.AxisLevelAppropriate:      "Is the vocabulary suitable for a {{.Level}} learner?",
	domain.AxisTranslationAccurate:   "Does the translation convey exactly the meaning of the English sentence?",
	domain.AxisIsUnambiguous:         "Is the correct answer the ONLY option that fits the blank grammatically and semantically?",
	domain.AxisDistractorsPlausible:  "Are the wrong options plausible but clearly wrong?",
}

const rubricText = `You are a strict reviewer of {{.Language}} exercises for {{.Level}} learners.
Topic: {{.Topic}}
Exercise type: {{.Type}}

Exercise:
{{.Exercise}}

Answer each question with true or false:
{{range .Axes}}- "{{.Name}}": {{.Question}}
{{end}}
Then give "overall_quality_score", an integer from 1 (unusable) to 10 (excellent),
and "issues", a list of short strings naming any problems (empty if none).
{{- if .Strict}}
If more than one option could fill the blank, "is_unambiguous" must be false.
{{- end}}

Respond with a single JSON object only, for example:
{{.Example}}
`

var rubricTemplate = prompt.MustParse("rubric", rubricText)

type axisPrompt struct {
	Name     string
	Question string
}

type rubricData struct {
	Language string
	Level    string
	Topic    string
	Type     domain.ExerciseType
	Exercise string
	Axes     []axisPrompt
	Strict   bool
	Example  string
}

// axesFor returns every axis requested for exercise type t.
func axesFor(t domain.ExerciseType) []string {
	return append(append([]string{}, domain.CommonAxes...), domain.TypeAxes(t)...)
}

// RubricPrompt renders the validation prompt for candidate c.
func RubricPrompt(c domain.Candidate, combo domain.Combination, strict bool) (string, error) {
	axes := axesFor(c.Type())
	prompts := make([]axisPrompt, 0, len(axes))
	example := make([]string, 0, len(axes)+2)
	for _, name := range axes {
		q, err := renderQuestion(name, combo)
		if err != nil {
			return "", err
		}
		prompts = append(prompts, axisPrompt{Name: name, Question: q})
		example = append(example, fmt.Sprintf("%q: true", name))
	}
	example = append(example, `"overall_quality_score": 8`, `"issues": []`)

	return prompt.Render(rubricTemplate, rubricData{
		Language: combo.Language,
		Level:    combo.Level,
		Topic:    combo.Topic,
		Type:     c.Type(),
		Exercise: Describe(c, combo.Language),
		Axes:     prompts,
		Strict:   strict && c.Type() == domain.ExerciseFillInBlank,
		Example:  "{" + strings.Join(example, ", ") + "}",
	})
}

var questionTemplates = func() map[string]*template.Template {
	m := make(map[string]*template.Template, len(axisQuestions))
	for name, text := range axisQuestions {
		m[name] = prompt.MustParse(name, text)
	}
	return m
}()

func renderQuestion(axis string, combo domain.Combination) (string, error) {
	tmpl, ok := questionTemplates[axis]
	if !ok {
		return "", fmt.Errorf("no question for axis %q", axis)
	}
	return prompt.Render(tmpl, combo)
}

// Describe renders a candidate as plain text for a reviewer.
func Describe(c domain.Candidate, language string) string {
	var b strings.Builder
	switch v := c.(type) {
	case *domain.Conversation:
		for _, turn := range v.Turns {
			fmt.Fprintf(&b, "%s: %s\n", turn.Speaker, turn.Message)
		}
		fmt.Fprintf(&b, "Summary (English): %s", v.Summary)
	case *domain.PairBatch:
		for i, p := range v.Pairs {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%d. English: %q / %s: %q", i+1, p.English, language, p.Target)
		}
	case *domain.Translation:
		fmt.Fprintf(&b, "English: %q\n%s: %q", v.English, language, v.Target)
	case *domain.FillInBlank:
		fmt.Fprintf(&b, "Sentence: %q\n", v.Sentence)
		fmt.Fprintf(&b, "Correct answer: %q\n", v.CorrectAnswer)
		fmt.Fprintf(&b, "Wrong options: %q, %q\n", v.Incorrect1, v.Incorrect2)
		fmt.Fprintf(&b, "English translation: %q", v.Translation)
	}
	return b.String()
}
