package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-lessonforge/infrastructure/llm"
	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/platform/logger"
	"github.com/ahrav/go-lessonforge/internal/ports"
	"github.com/ahrav/go-lessonforge/internal/testutils"
)

func newGate() *Gate {
	return NewGate(Config{RequireUnambiguous: true, Temperature: DefaultTemperature}, logger.NewNop())
}

func TestGate_DuplicateOptionRejectedWithoutModelCall(t *testing.T) {
	client := testutils.NewScriptedLLMClient("judge")
	cand := &domain.FillInBlank{
		Sentence:      "Je mange une _ rouge",
		CorrectAnswer: "pomme",
		Incorrect1:    "pomme",
		Incorrect2:    "voiture",
		BlankPosition: 3,
		Translation:   "I eat a red apple",
	}

	passed, _, err := newGate().Validate(context.Background(), client, cand, testutils.Combo(domain.ExerciseFillInBlank))
	assert.False(t, passed)
	assert.ErrorIs(t, err, domain.ErrPreValidation)
	assert.Zero(t, client.CallCount())
}

func TestGate_AmbiguousFillInBlankIsCapped(t *testing.T) {
	client := testutils.NewScriptedLLMClient("judge")
	client.EnqueueText(testutils.Verdict(domain.ExerciseFillInBlank, 8, nil, domain.AxisIsUnambiguous))

	passed, result, err := newGate().Validate(context.Background(), client, validFillInBlank(), testutils.Combo(domain.ExerciseFillInBlank))
	require.NoError(t, err)
	assert.False(t, passed)
	assert.Equal(t, 8, result.RawScore)
	assert.LessOrEqual(t, result.OverallQualityScore, AmbiguousScoreCap)
	assert.False(t, result.Axis(domain.AxisIsUnambiguous))
	assert.Contains(t, result.Issues, "more than one option fits the blank")
}

func TestGate_AmbiguityNotEnforcedWhenDisabled(t *testing.T) {
	client := testutils.NewScriptedLLMClient("judge")
	client.EnqueueText(testutils.Verdict(domain.ExerciseFillInBlank, 8, nil, domain.AxisIsUnambiguous))

	g := NewGate(Config{RequireUnambiguous: false}, logger.NewNop())
	passed, result, err := g.Validate(context.Background(), client, validFillInBlank(), testutils.Combo(domain.ExerciseFillInBlank))
	require.NoError(t, err)
	assert.True(t, passed)
	assert.Equal(t, 8, result.OverallQualityScore)
}

func TestGate_Threshold(t *testing.T) {
	tests := []struct {
		name       string
		score      int
		wantPassed bool
	}{
		{name: "at threshold", score: 6, wantPassed: true},
		{name: "above threshold", score: 9, wantPassed: true},
		{name: "below threshold", score: 5, wantPassed: false},
		{name: "minimum", score: 1, wantPassed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testutils.NewScriptedLLMClient("judge")
			client.EnqueueText(testutils.Verdict(domain.ExercisePairs, tt.score, []string{"minor"}))

			passed, result, err := newGate().Validate(context.Background(), client, validPairs(), testutils.Combo(domain.ExercisePairs))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPassed, passed)
			assert.Equal(t, tt.score, result.OverallQualityScore)
			assert.Equal(t, []string{"minor"}, result.Issues)
			for _, axis := range axesFor(domain.ExercisePairs) {
				assert.True(t, result.Axis(axis), axis)
			}
		})
	}
}

func TestGate_FailuresNeverPass(t *testing.T) {
	tests := []struct {
		name  string
		reply testutils.Reply
	}{
		{name: "transport error", reply: testutils.Reply{Err: ports.ErrTimeout}},
		{name: "prose reply", reply: testutils.Reply{Response: "Looks great to me!"}},
		{name: "missing score", reply: testutils.Reply{Response: `{"language_correct": true}`}},
		{name: "score out of range", reply: testutils.Reply{Response: `{"overall_quality_score": 85}`}},
		{name: "score not numeric", reply: testutils.Reply{Response: `{"overall_quality_score": "great"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testutils.NewScriptedLLMClient("judge", tt.reply)
			passed, _, err := newGate().Validate(context.Background(), client, validPairs(), testutils.Combo(domain.ExercisePairs))
			assert.Error(t, err)
			assert.False(t, passed)
		})
	}
}

func TestGate_RequestOptions(t *testing.T) {
	client := testutils.NewScriptedLLMClient("judge")
	client.EnqueueText(testutils.Verdict(domain.ExerciseTranslation, 7, nil))

	cand := &domain.Translation{English: "Good morning", Target: "Bonjour"}
	_, _, err := newGate().Validate(context.Background(), client, cand, testutils.Combo(domain.ExerciseTranslation))
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, DefaultTemperature, calls[0].Options[llm.OptTemperature])
	assert.Equal(t, DefaultMaxTokens, calls[0].Options[llm.OptMaxTokens])
	assert.Contains(t, calls[0].Prompt, `English: "Good morning"`)
	assert.Contains(t, calls[0].Prompt, `French: "Bonjour"`)
	assert.Contains(t, calls[0].Prompt, domain.AxisTranslationAccurate)
}

func TestParseVerdict_Coercion(t *testing.T) {
	axes := axesFor(domain.ExerciseFillInBlank)

	tests := []struct {
		name       string
		response   string
		wantScore  int
		wantAxes   map[string]bool
		wantIssues []string
	}{
		{
			name: "loose encodings",
			response: `<think>checking</think>{"Language_Correct": "yes", "grammar_correct": 1,
				"culturally_appropriate": null, "educational_quality": "TRUE",
				"is_unambiguous": "no", "overall_quality_score": "7/10", "issues": "Distractor too easy"}`,
			wantScore: 7,
			wantAxes: map[string]bool{
				domain.AxisLanguageCorrect:       true,
				domain.AxisGrammarCorrect:        true,
				domain.AxisCulturallyAppropriate: false,
				domain.AxisEducationalQuality:    true,
				domain.AxisIsUnambiguous:         false,
				domain.AxisDistractorsPlausible:  false,
			},
			wantIssues: []string{"Distractor too easy"},
		},
		{
			name:      "fractional score and score alias",
			response:  `{"score": 6.6, "issues": ["a", null, ""]}`,
			wantScore: 7,
			wantAxes: map[string]bool{
				domain.AxisLanguageCorrect: false,
			},
			wantIssues: []string{"a"},
		},
		{
			name:      "issues none",
			response:  `{"overall_quality_score": 9, "issues": "none"}`,
			wantScore: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := parseVerdict(tt.response, axes)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, v.RawScore)
			assert.Len(t, v.Axes, len(axes))
			for axis, want := range tt.wantAxes {
				assert.Equal(t, want, v.Axes[axis], axis)
			}
			assert.Equal(t, tt.wantIssues, v.Issues)
		})
	}
}

func TestRubricPrompt(t *testing.T) {
	combo := testutils.Combo(domain.ExerciseFillInBlank)
	p, err := RubricPrompt(validFillInBlank(), combo, true)
	require.NoError(t, err)

	for _, axis := range axesFor(domain.ExerciseFillInBlank) {
		assert.Contains(t, p, `"`+axis+`"`)
	}
	assert.Contains(t, p, "Is all French text genuine")
	assert.Contains(t, p, `Sentence: "Je mange une _ rouge"`)
	assert.Contains(t, p, `"is_unambiguous" must be false`)

	lenient, err := RubricPrompt(validFillInBlank(), combo, false)
	require.NoError(t, err)
	assert.NotContains(t, lenient, `"is_unambiguous" must be false`)
}

func TestDescribe(t *testing.T) {
	conv := &domain.Conversation{
		Turns:   []domain.Turn{{Speaker: "A", Message: "Salut"}, {Speaker: "B", Message: "Bonjour"}},
		Summary: "A greeting",
	}
	assert.Equal(t, "A: Salut\nB: Bonjour\nSummary (English): A greeting", Describe(conv, "French"))

	pairs := &domain.PairBatch{Pairs: []domain.Pair{{English: "apple", Target: "pomme"}}}
	assert.Equal(t, `1. English: "apple" / French: "pomme"`, Describe(pairs, "French"))
}
