// Package generator issues one schema-constrained generation call per lesson
// attempt and returns the raw model text for the parser.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-lessonforge/infrastructure/llm"
	"github.com/ahrav/go-lessonforge/infrastructure/prompt"
	"github.com/ahrav/go-lessonforge/infrastructure/schema"
	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/platform/logger"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

// ErrEmptyResponse is returned when the model answered with nothing but
// whitespace.
var ErrEmptyResponse = errors.New("empty generation response")

// DefaultMaxTokens leaves room for the largest batches (three conversations).
const DefaultMaxTokens = 4096

// Config controls sampling for generation calls.
type Config struct {
	// Temperatures per exercise type. Lower values trade lexical variety
	// for schema conformance; types missing here use DefaultTemperature.
	Temperatures map[domain.ExerciseType]float64

	MaxTokens int

	// NativeSchema passes the schema through the json_schema option so
	// servers with structured output enforce it. The schema is always
	// embedded in the prompt text as well.
	NativeSchema bool
}

// DefaultTemperature applies to exercise types without an override.
const DefaultTemperature = 0.6

// DefaultTemperatures returns the per-type defaults.
func DefaultTemperatures() map[domain.ExerciseType]float64 {
	return map[domain.ExerciseType]float64{
		domain.ExerciseConversation: 0.8,
		domain.ExercisePairs:        0.4,
		domain.ExerciseTranslation:  0.6,
		domain.ExerciseFillInBlank:  0.5,
	}
}

// Result is the outcome of one generation call.
type Result struct {
	Prompt string
	Raw    string
	Schema *schema.Schema
}

// Generator is safe for concurrent use; schemas are built once per
// (exercise type, language) and shared.
type Generator struct {
	cfg    Config
	logger *logger.Logger

	mu      sync.RWMutex
	schemas map[string]*schema.Schema
}

// New creates a Generator.
func New(cfg Config, log *logger.Logger) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperatures == nil {
		cfg.Temperatures = DefaultTemperatures()
	}
	return &Generator{
		cfg:     cfg,
		logger:  log.With("component", "generator"),
		schemas: make(map[string]*schema.Schema),
	}
}

// Temperature returns the sampling temperature used for t.
func (g *Generator) Temperature(t domain.ExerciseType) float64 {
	if temp, ok := g.cfg.Temperatures[t]; ok {
		return temp
	}
	return DefaultTemperature
}

// Schema returns the cached schema for (t, language).
func (g *Generator) Schema(t domain.ExerciseType, language string) (*schema.Schema, error) {
	key := string(t) + "|" + language

	g.mu.RLock()
	s, ok := g.schemas[key]
	g.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := schema.Build(t, language)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.schemas[key]; ok {
		return existing, nil
	}
	g.schemas[key] = s
	return s, nil
}

// Prompt renders the generation prompt for combo.
func (g *Generator) Prompt(combo domain.Combination, s *schema.Schema) (string, error) {
	tmpl, ok := templates[combo.ExerciseType]
	if !ok {
		return "", fmt.Errorf("no prompt template for exercise type %q", combo.ExerciseType)
	}
	return prompt.Render(tmpl, promptData{
		Language:  combo.Language,
		Level:     combo.Level,
		Topic:     combo.Topic,
		TargetKey: s.TargetKey(),
		MinItems:  s.Bounds.MinItems,
		MaxItems:  s.Bounds.MaxItems,
		Schema:    string(s.JSON()),
	})
}

// Generate makes one constrained call for combo. Any failure, including an
// empty response, is returned as a generation StageError. The Result is
// returned alongside errors raised after the prompt was built so callers can
// dump it in debug mode.
func (g *Generator) Generate(ctx context.Context, client ports.LLMClient, combo domain.Combination) (*Result, error) {
	s, err := g.Schema(combo.ExerciseType, combo.Language)
	if err != nil {
		return nil, domain.NewGenerationError(err)
	}

	text, err := g.Prompt(combo, s)
	if err != nil {
		return nil, domain.NewGenerationError(err)
	}
	res := &Result{Prompt: text, Schema: s}

	opts := map[string]any{
		llm.OptTemperature: g.Temperature(combo.ExerciseType),
		llm.OptMaxTokens:   g.cfg.MaxTokens,
	}
	if g.cfg.NativeSchema {
		opts[llm.OptJSONSchema] = s.JSON()
		opts[llm.OptSchemaName] = s.Name
	}

	start := time.Now()
	raw, err := client.Complete(ctx, text, opts)
	if err != nil {
		return res, domain.NewGenerationError(ports.NewLLMError(client.GetModel(), "generate", err))
	}
	res.Raw = raw

	g.logger.Debug("generation completed",
		"combination", combo.Key(),
		"model", client.GetModel(),
		"duration", time.Since(start),
		"response_chars", len(raw),
	)

	if strings.TrimSpace(raw) == "" {
		return res, domain.NewGenerationError(ErrEmptyResponse)
	}
	return res, nil
}
