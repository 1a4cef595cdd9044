package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-lessonforge/infrastructure/schema"
	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

// ConfigLoader parses and validates pipeline configuration files.
type ConfigLoader struct {
	validator *validator.Validate
}

// NewConfigLoader creates a loader with the pipeline's custom validation
// tags registered.
func NewConfigLoader() (*ConfigLoader, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterPipelineValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return &ConfigLoader{validator: v}, nil
}

// LoadFromFile reads, defaults and validates the YAML file at path.
func (cl *ConfigLoader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ports.NewConfigError(path, ports.ErrConfigNotFound)
	}
	if err != nil {
		return nil, ports.NewConfigError(path, err)
	}
	cfg, err := cl.load(data)
	if err != nil {
		return nil, ports.NewConfigError(path, err)
	}
	return cfg, nil
}

// LoadFromReader is LoadFromFile for any io.Reader.
func (cl *ConfigLoader) LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return cl.load(data)
}

func (cl *ConfigLoader) load(data []byte) (*Config, error) {
	cfg, err := cl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cl.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseYAML decodes strictly so a misspelled key fails instead of being
// silently ignored.
func (cl *ConfigLoader) parseYAML(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags and then the rules tags cannot express.
// Callers that build a Config in code must call ApplyDefaults first.
func (cl *ConfigLoader) Validate(cfg *Config) error {
	if err := cl.validator.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			verr := domain.NewValidationError("config")
			for _, fe := range fieldErrs {
				verr.AddError(describeFieldError(fe))
			}
			return verr
		}
		return fmt.Errorf("struct validation failed: %w", err)
	}
	return validateSemantics(cfg)
}

func describeFieldError(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
}

// validateSemantics rejects duplicate list entries and English as a target
// language.
func validateSemantics(cfg *Config) error {
	verr := domain.NewValidationError("config")

	checkUnique := func(field string, values []string, canon func(string) string) {
		seen := make(map[string]struct{}, len(values))
		for _, v := range values {
			key := canon(v)
			if _, dup := seen[key]; dup {
				verr.AddError(fmt.Sprintf("%s: duplicate entry %q", field, v))
			}
			seen[key] = struct{}{}
		}
	}
	fold := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

	checkUnique("languages", cfg.Languages, fold)
	checkUnique("levels", cfg.Levels, fold)
	checkUnique("topics", cfg.Topics, fold)
	checkUnique("exercise_types", cfg.ExerciseTypes, func(s string) string {
		t, _ := domain.ParseExerciseType(s)
		return string(t)
	})

	for _, lang := range cfg.Languages {
		if strings.EqualFold(strings.TrimSpace(lang), schema.EnglishKey) {
			verr.AddError("languages: English is the source language and cannot be a target")
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
