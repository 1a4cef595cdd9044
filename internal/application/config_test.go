package application

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

const validConfigYAML = `
languages: [French, Spanish]
levels: [beginner, intermediate]
topics: [food, travel]
exercise_types: [pairs, fill-in-blank]
llm_servers:
  generation:
    base_url: http://localhost:8080/v1
    model: qwen2.5-14b-instruct
    native_schema: true
    requests_per_second: 2
  validation:
    provider: anthropic
    model: claude-haiku
    api_key_env: VALIDATION_API_KEY
    timeout_seconds: 30
generation_settings:
  lessons_per_combination: 3
  validation_threshold: 7
  require_unambiguous_fill_in_blank: false
  temperatures:
    pairs: 0.2
storage:
  database: data/lessons.db
  failures_file: data/failures.jsonl
workers: 8
`

func loadConfig(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	loader, err := NewConfigLoader()
	require.NoError(t, err)
	return loader.LoadFromReader(strings.NewReader(yaml))
}

func TestConfigLoader_Valid(t *testing.T) {
	cfg, err := loadConfig(t, validConfigYAML)
	require.NoError(t, err)

	assert.Equal(t, []string{"French", "Spanish"}, cfg.Languages)
	assert.Equal(t, []domain.ExerciseType{domain.ExercisePairs, domain.ExerciseFillInBlank}, cfg.Types())
	assert.Equal(t, 8, cfg.Workers)

	gen := cfg.LLMServers.Generation
	assert.Equal(t, DefaultProvider, gen.Provider)
	assert.Equal(t, time.Duration(DefaultTimeoutSeconds)*time.Second, gen.Timeout())
	assert.True(t, gen.NativeSchema)
	assert.Equal(t, "anthropic", cfg.LLMServers.Validation.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLMServers.Validation.Timeout())

	g := cfg.GenerationSettings
	assert.Equal(t, 3, g.LessonsPerCombination)
	assert.Equal(t, DefaultMaxRetries, g.MaxRetries)
	assert.False(t, g.RequireUnambiguous())
	assert.InDelta(t, 0.6, g.SimilarityThreshold, 1e-9)
	assert.Equal(t, DefaultSimilaritySampleSize, g.SimilaritySampleSize)

	genCfg := cfg.GeneratorConfig()
	assert.InDelta(t, 0.2, genCfg.Temperatures[domain.ExercisePairs], 1e-9)
	assert.InDelta(t, 0.8, genCfg.Temperatures[domain.ExerciseConversation], 1e-9)
	assert.True(t, genCfg.NativeSchema)

	gate := cfg.GateConfig()
	assert.Equal(t, 7, gate.Threshold)
	assert.False(t, gate.RequireUnambiguous)
	assert.InDelta(t, 0.1, gate.Temperature, 1e-9)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := testConfig(domain.ExercisePairs)

	g := cfg.GenerationSettings
	assert.Equal(t, 1, g.LessonsPerCombination)
	assert.Equal(t, 5, g.MaxRetries)
	assert.Equal(t, 6, g.ValidationThreshold)
	assert.True(t, g.RequireUnambiguous())
	assert.InDelta(t, 0.1, g.ValidationTemperature, 1e-9)
	assert.Equal(t, DefaultDatabase, cfg.Storage.Database)
	assert.Equal(t, DefaultFailuresFile, cfg.Storage.FailuresFile)
	assert.Equal(t, 120*time.Second, cfg.LLMServers.Generation.Timeout())
}

func TestConfigLoader_Invalid(t *testing.T) {
	base := validConfigYAML

	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "unknown field",
			yaml:   base + "\nverbose: true\n",
			errMsg: "field verbose not found",
		},
		{
			name:   "unknown exercise type",
			yaml:   strings.Replace(base, "[pairs, fill-in-blank]", "[pairs, crossword]", 1),
			errMsg: "exercisetype",
		},
		{
			name:   "unknown provider",
			yaml:   strings.Replace(base, "provider: anthropic", "provider: llamafile", 1),
			errMsg: "provider",
		},
		{
			name:   "missing model",
			yaml:   strings.Replace(base, "model: claude-haiku", "", 1),
			errMsg: "Model",
		},
		{
			name:   "threshold out of range",
			yaml:   strings.Replace(base, "validation_threshold: 7", "validation_threshold: 11", 1),
			errMsg: "ValidationThreshold",
		},
		{
			name:   "bad temperature key",
			yaml:   strings.Replace(base, "pairs: 0.2", "essay: 0.2", 1),
			errMsg: "exercisetype",
		},
		{
			name:   "English as target",
			yaml:   strings.Replace(base, "[French, Spanish]", "[French, english]", 1),
			errMsg: "English is the source language",
		},
		{
			name:   "duplicate topic",
			yaml:   strings.Replace(base, "[food, travel]", "[food, Food]", 1),
			errMsg: `duplicate entry "Food"`,
		},
		{
			name:   "duplicate type alias",
			yaml:   strings.Replace(base, "[pairs, fill-in-blank]", "[pairs, pair]", 1),
			errMsg: "duplicate entry",
		},
		{
			name:   "empty languages",
			yaml:   strings.Replace(base, "[French, Spanish]", "[]", 1),
			errMsg: "Languages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(t, tt.yaml)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigLoader_ValidationErrorsAreInvalidConfiguration(t *testing.T) {
	_, err := loadConfig(t, strings.Replace(validConfigYAML, "workers: 8", "workers: 500", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestConfig_ResolveSecrets(t *testing.T) {
	cfg, err := loadConfig(t, validConfigYAML)
	require.NoError(t, err)

	env := map[string]string{"VALIDATION_API_KEY": " sk-test "}
	require.NoError(t, cfg.ResolveSecrets(func(k string) string { return env[k] }))
	assert.Equal(t, "sk-test", cfg.LLMServers.Validation.APIKey)
	assert.Empty(t, cfg.LLMServers.Generation.APIKey)

	err = cfg.ResolveSecrets(func(string) string { return "" })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VALIDATION_API_KEY is not set")
}

func TestConfigLoader_LoadFromFile(t *testing.T) {
	loader, err := NewConfigLoader()
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validConfigYAML), 0o600))

	cfg, err := loader.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data/lessons.db", cfg.Storage.Database)

	_, err = loader.LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ports.ErrConfigNotFound)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("workers: 0\n"), 0o600))
	_, err = loader.LoadFromFile(bad)
	var cerr *ports.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, bad, cerr.ConfigKey)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
