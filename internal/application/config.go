package application

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ahrav/go-lessonforge/infrastructure/generator"
	"github.com/ahrav/go-lessonforge/infrastructure/similarity"
	"github.com/ahrav/go-lessonforge/infrastructure/validation"
	"github.com/ahrav/go-lessonforge/internal/domain"
)

// Defaults applied by ApplyDefaults to fields left empty in the YAML file.
const (
	DefaultLessonsPerCombination = 1
	DefaultMaxRetries            = 5
	DefaultWorkers               = 5
	DefaultSimilaritySampleSize  = 25
	DefaultTimeoutSeconds        = 120
	DefaultProvider              = "openai"
	DefaultDatabase              = "lessons.db"
	DefaultFailuresFile          = "failures.jsonl"
)

// Config is the complete pipeline configuration. It is loaded once, passed
// explicitly into the scheduler and never mutated after validation.
type Config struct {
	// Languages are the target languages; English is always the source.
	Languages []string `yaml:"languages" validate:"required,min=1,dive,required"`
	// Levels are free-text proficiency levels such as "beginner".
	Levels []string `yaml:"levels" validate:"required,min=1,dive,required"`
	// Topics are free-text lesson topics such as "food".
	Topics []string `yaml:"topics" validate:"required,min=1,dive,required"`
	// ExerciseTypes accepts the names understood by domain.ParseExerciseType.
	ExerciseTypes []string `yaml:"exercise_types" validate:"required,min=1,dive,exercisetype"`

	LLMServers LLMServers `yaml:"llm_servers" validate:"required"`

	GenerationSettings GenerationSettings `yaml:"generation_settings"`

	Storage StorageConfig `yaml:"storage"`

	// Workers bounds how many combinations are processed concurrently.
	Workers int `yaml:"workers" validate:"min=1,max=64"`
}

// LLMServers holds one model endpoint per pipeline role.
type LLMServers struct {
	Generation ServerConfig `yaml:"generation" validate:"required"`
	Validation ServerConfig `yaml:"validation" validate:"required"`
}

// ServerConfig describes a chat-completion endpoint.
type ServerConfig struct {
	Provider string `yaml:"provider" validate:"required,provider"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	Model    string `yaml:"model" validate:"required"`
	// APIKeyEnv names the environment variable holding the key. Keys are
	// never read from the YAML file itself.
	APIKeyEnv         string  `yaml:"api_key_env"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" validate:"min=1,max=600"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	// MaxRetries bounds transient-error retries inside one model call.
	MaxRetries int `yaml:"max_retries" validate:"min=0,max=10"`
	// NativeSchema sends the JSON schema as a structured-output constraint
	// in addition to embedding it in the prompt.
	NativeSchema bool `yaml:"native_schema"`

	APIKey string `yaml:"-"`
}

// Timeout returns the per-call deadline.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// GenerationSettings tunes the lesson pipeline.
type GenerationSettings struct {
	LessonsPerCombination int `yaml:"lessons_per_combination" validate:"min=1,max=1000"`
	// MaxRetries is the number of attempts per lesson instance.
	MaxRetries          int `yaml:"max_retries" validate:"min=1,max=50"`
	ValidationThreshold int `yaml:"validation_threshold" validate:"min=1,max=10"`
	// RequireUnambiguousFillInBlank defaults to true when omitted.
	RequireUnambiguousFillInBlank *bool `yaml:"require_unambiguous_fill_in_blank"`

	SimilarityThreshold  float64 `yaml:"similarity_threshold" validate:"gt=0,lte=1"`
	SimilaritySampleSize int     `yaml:"similarity_sample_size" validate:"min=0,max=1000"`

	// Temperatures overrides the generation temperature per exercise type.
	Temperatures          map[string]float64 `yaml:"temperatures" validate:"dive,keys,exercisetype,endkeys,min=0,max=2"`
	ValidationTemperature float64            `yaml:"validation_temperature" validate:"min=0,max=2"`
	MaxTokens             int                `yaml:"max_tokens" validate:"min=1,max=65536"`
	ValidationMaxTokens   int                `yaml:"validation_max_tokens" validate:"min=1,max=65536"`
}

// RequireUnambiguous reports the effective fill-in-blank ambiguity veto.
func (g GenerationSettings) RequireUnambiguous() bool {
	return g.RequireUnambiguousFillInBlank == nil || *g.RequireUnambiguousFillInBlank
}

// StorageConfig locates the exercise database and the failure ledger.
type StorageConfig struct {
	Database     string `yaml:"database" validate:"required"`
	FailuresFile string `yaml:"failures_file" validate:"required"`
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	c.LLMServers.Generation.applyDefaults()
	c.LLMServers.Validation.applyDefaults()

	g := &c.GenerationSettings
	if g.LessonsPerCombination == 0 {
		g.LessonsPerCombination = DefaultLessonsPerCombination
	}
	if g.MaxRetries == 0 {
		g.MaxRetries = DefaultMaxRetries
	}
	if g.ValidationThreshold == 0 {
		g.ValidationThreshold = validation.DefaultThreshold
	}
	if g.RequireUnambiguousFillInBlank == nil {
		v := true
		g.RequireUnambiguousFillInBlank = &v
	}
	if g.SimilarityThreshold == 0 {
		g.SimilarityThreshold = similarity.DefaultThreshold
	}
	if g.SimilaritySampleSize == 0 {
		g.SimilaritySampleSize = DefaultSimilaritySampleSize
	}
	if g.ValidationTemperature == 0 {
		g.ValidationTemperature = validation.DefaultTemperature
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = generator.DefaultMaxTokens
	}
	if g.ValidationMaxTokens == 0 {
		g.ValidationMaxTokens = validation.DefaultMaxTokens
	}

	if c.Storage.Database == "" {
		c.Storage.Database = DefaultDatabase
	}
	if c.Storage.FailuresFile == "" {
		c.Storage.FailuresFile = DefaultFailuresFile
	}
}

func (s *ServerConfig) applyDefaults() {
	if s.Provider == "" {
		s.Provider = DefaultProvider
	}
	if s.TimeoutSeconds == 0 {
		s.TimeoutSeconds = DefaultTimeoutSeconds
	}
}

// ResolveSecrets reads API keys from the variables named by api_key_env.
// A named variable that is unset is an error; an empty api_key_env is
// allowed for local servers that do not check keys.
func (c *Config) ResolveSecrets(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	verr := domain.NewValidationError("llm_servers")
	for role, s := range map[string]*ServerConfig{
		"generation": &c.LLMServers.Generation,
		"validation": &c.LLMServers.Validation,
	} {
		if s.APIKeyEnv == "" {
			continue
		}
		s.APIKey = strings.TrimSpace(getenv(s.APIKeyEnv))
		if s.APIKey == "" {
			verr.AddError(fmt.Sprintf("%s: environment variable %s is not set", role, s.APIKeyEnv))
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Types returns the configured exercise types in canonical form.
// Config validation guarantees every entry parses.
func (c *Config) Types() []domain.ExerciseType {
	out := make([]domain.ExerciseType, 0, len(c.ExerciseTypes))
	for _, s := range c.ExerciseTypes {
		if t, err := domain.ParseExerciseType(s); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// GeneratorConfig derives the generator settings.
func (c *Config) GeneratorConfig() generator.Config {
	temps := generator.DefaultTemperatures()
	for name, v := range c.GenerationSettings.Temperatures {
		if t, err := domain.ParseExerciseType(name); err == nil {
			temps[t] = v
		}
	}
	return generator.Config{
		Temperatures: temps,
		MaxTokens:    c.GenerationSettings.MaxTokens,
		NativeSchema: c.LLMServers.Generation.NativeSchema,
	}
}

// GateConfig derives the validation gate settings.
func (c *Config) GateConfig() validation.Config {
	g := c.GenerationSettings
	return validation.Config{
		Threshold:          g.ValidationThreshold,
		RequireUnambiguous: g.RequireUnambiguous(),
		Temperature:        g.ValidationTemperature,
		MaxTokens:          g.ValidationMaxTokens,
	}
}
