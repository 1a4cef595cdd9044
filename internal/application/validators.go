package application

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-lessonforge/infrastructure/llm"
	"github.com/ahrav/go-lessonforge/internal/domain"
)

// RegisterPipelineValidators adds the exercisetype and provider tags to v.
func RegisterPipelineValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("exercisetype", validateExerciseType); err != nil {
		return fmt.Errorf("failed to register exercisetype validator: %w", err)
	}
	if err := v.RegisterValidation("provider", validateProvider); err != nil {
		return fmt.Errorf("failed to register provider validator: %w", err)
	}
	return nil
}

// validateExerciseType accepts any name domain.ParseExerciseType understands,
// including aliases such as "fill-in-blank".
func validateExerciseType(fl validator.FieldLevel) bool {
	_, err := domain.ParseExerciseType(fl.Field().String())
	return err == nil
}

// validateProvider accepts providers registered with the llm package.
func validateProvider(fl validator.FieldLevel) bool {
	return llm.KnownProvider(fl.Field().String())
}
