// Package validation implements the quality gate every candidate passes
// before similarity checks and persistence.
package validation

import (
	"context"
	"time"

	"github.com/ahrav/go-lessonforge/infrastructure/llm"
	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/platform/logger"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

// Defaults for Config fields left at zero.
const (
	DefaultThreshold   = 6
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 1024

	// AmbiguousScoreCap is the highest score an ambiguous fill-in-blank
	// exercise can keep.
	AmbiguousScoreCap = 5
)

// Config controls the acceptance decision.
type Config struct {
	Threshold          int
	RequireUnambiguous bool
	Temperature        float64
	MaxTokens          int
}

// Gate validates candidates against a rubric using a validation model.
// It holds no per-call state and is safe for concurrent use.
type Gate struct {
	cfg    Config
	logger *logger.Logger
}

// NewGate creates a Gate. A zero Threshold or MaxTokens takes the default.
func NewGate(cfg Config, log *logger.Logger) *Gate {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Gate{cfg: cfg, logger: log.With("component", "validation_gate")}
}

// Threshold returns the minimum accepted score.
func (g *Gate) Threshold() int { return g.cfg.Threshold }

// Validate decides whether c may proceed. A non-nil error means no verdict
// could be obtained (pre-check failure, transport failure, unreadable reply)
// and is always paired with passed == false. A verdict below the threshold
// returns passed == false with a nil error.
func (g *Gate) Validate(
	ctx context.Context,
	client ports.LLMClient,
	c domain.Candidate,
	combo domain.Combination,
) (bool, domain.ValidationResult, error) {
	if err := PreCheck(c); err != nil {
		return false, domain.ValidationResult{}, err
	}

	text, err := RubricPrompt(c, combo, g.cfg.RequireUnambiguous)
	if err != nil {
		return false, domain.ValidationResult{}, err
	}

	start := time.Now()
	resp, err := client.Complete(ctx, text, map[string]any{
		llm.OptTemperature: g.cfg.Temperature,
		llm.OptMaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return false, domain.ValidationResult{}, ports.NewLLMError(client.GetModel(), "validate", err)
	}

	v, err := parseVerdict(resp, axesFor(c.Type()))
	if err != nil {
		return false, domain.ValidationResult{}, err
	}

	result := g.decide(c.Type(), v)
	passed := result.Passes(g.cfg.Threshold)

	g.logger.Debug("validation verdict",
		"combination", combo.Key(),
		"type", c.Type(),
		"raw_score", result.RawScore,
		"score", result.OverallQualityScore,
		"passed", passed,
		"issues", result.Issues,
		"duration", time.Since(start),
	)
	return passed, result, nil
}

// decide applies the hard vetoes to a coerced verdict.
func (g *Gate) decide(t domain.ExerciseType, v verdict) domain.ValidationResult {
	score := v.RawScore
	issues := v.Issues

	if t == domain.ExerciseFillInBlank && g.cfg.RequireUnambiguous && !v.Axes[domain.AxisIsUnambiguous] {
		if score > AmbiguousScoreCap {
			score = AmbiguousScoreCap
		}
		issues = append(issues, "more than one option fits the blank")
	}

	return domain.ValidationResult{
		Axes:                v.Axes,
		OverallQualityScore: score,
		RawScore:            v.RawScore,
		Issues:              issues,
	}
}
