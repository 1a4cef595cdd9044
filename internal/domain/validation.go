package domain

// Quality axes shared by every exercise type.
const (
	AxisLanguageCorrect       = "language_correct"
	AxisGrammarCorrect        = "grammar_correct"
	AxisCulturallyAppropriate = "culturally_appropriate"
	AxisEducationalQuality    = "educational_quality"
)

// Type-specific quality axes.
const (
	AxisNaturalFlow          = "natural_flow"
	AxisSummaryAccurate      = "summary_accurate"
	AxisTranslationsAccurate = "translations_accurate"
	AxisLevelAppropriate     = "level_appropriate"
	AxisTranslationAccurate  = "translation_accurate"
	AxisIsUnambiguous        = "is_unambiguous"
	AxisDistractorsPlausible = "distractors_plausible"
)

// CommonAxes are requested from the validation model for every exercise type.
var CommonAxes = []string{
	AxisLanguageCorrect,
	AxisGrammarCorrect,
	AxisCulturallyAppropriate,
	AxisEducationalQuality,
}

// TypeAxes returns the extra axes requested for an exercise type.
func TypeAxes(t ExerciseType) []string {
	switch t {
	case ExerciseConversation:
		return []string{AxisNaturalFlow, AxisSummaryAccurate}
	case ExercisePairs:
		return []string{AxisTranslationsAccurate, AxisLevelAppropriate}
	case ExerciseTranslation:
		return []string{AxisTranslationAccurate, AxisLevelAppropriate}
	case ExerciseFillInBlank:
		return []string{AxisIsUnambiguous, AxisDistractorsPlausible}
	default:
		return nil
	}
}

// Score bounds for ValidationResult.OverallQualityScore.
const (
	MinQualityScore = 1
	MaxQualityScore = 10
)

// ValidationResult is the quality verdict for one candidate. It is produced
// once by the validation gate and only read afterwards.
type ValidationResult struct {
	// Axes holds every boolean quality axis keyed by its canonical name.
	// Axes the model omitted or answered with null are stored as false.
	Axes map[string]bool `json:"axes"`

	// OverallQualityScore is the 1-10 score after hard vetoes were applied.
	OverallQualityScore int `json:"overall_quality_score"`

	// RawScore is the score the model reported before vetoes.
	RawScore int `json:"raw_score"`

	Issues []string `json:"issues,omitempty"`
}

// Axis reports the value of a quality axis; unknown axes read as false.
func (r ValidationResult) Axis(name string) bool { return r.Axes[name] }

// Passes reports whether the result meets the acceptance threshold.
func (r ValidationResult) Passes(threshold int) bool {
	return r.OverallQualityScore >= threshold
}
