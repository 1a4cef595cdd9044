package domain

import (
	"errors"
	"fmt"
)

// Common domain errors raised while moving a candidate through the pipeline.
var (
	// ErrNoJSON indicates that model output contained no JSON array or object.
	ErrNoJSON = errors.New("no JSON array or object found in model output")

	// ErrPreValidation indicates that a candidate failed a deterministic check
	// before any validation model call was made.
	ErrPreValidation = errors.New("candidate failed pre-validation")

	// ErrBelowThreshold indicates that the validation score was below the
	// configured acceptance threshold.
	ErrBelowThreshold = errors.New("quality score below threshold")

	// ErrTooSimilar indicates that a candidate duplicates existing content.
	ErrTooSimilar = errors.New("candidate too similar to existing exercises")

	// ErrNothingInserted indicates that persistence found nothing novel to store.
	ErrNothingInserted = errors.New("no novel rows to insert")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Stage names one step of the lesson state machine.
type Stage string

// Pipeline stages in their fixed order.
const (
	StageGenerating      Stage = "generating"
	StageParsing         Stage = "parsing"
	StageValidating      Stage = "validating"
	StageSimilarityCheck Stage = "similarity_check"
	StagePersisting      Stage = "persisting"
)

// Kind maps a stage onto the failure kind written to the ledger.
func (s Stage) Kind() FailureKind {
	switch s {
	case StageGenerating:
		return FailureGeneration
	case StageParsing:
		return FailureParse
	case StageValidating:
		return FailureValidation
	case StageSimilarityCheck:
		return FailureSimilarity
	case StagePersisting:
		return FailurePersistence
	default:
		return FailureGeneration
	}
}

// StageError is a recoverable failure of one pipeline stage. Every stage
// error sends the lesson instance back to generation until the retry budget
// is exhausted.
type StageError struct {
	// Stage is where the failure happened.
	Stage Stage

	// Raw optionally carries the model output that triggered the failure.
	Raw string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for StageError.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage.Kind(), e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

// FailureKind returns the ledger error_type for this failure.
func (e *StageError) FailureKind() FailureKind { return e.Stage.Kind() }

// NewStageError creates a StageError for the given stage.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// NewGenerationError wraps a generation-model or transport failure.
func NewGenerationError(err error) *StageError { return NewStageError(StageGenerating, err) }

// NewParseError wraps a decode failure, keeping the offending text.
func NewParseError(raw string, err error) *StageError {
	return &StageError{Stage: StageParsing, Raw: raw, Err: err}
}

// NewValidationFailure wraps a rejected or unverifiable candidate.
func NewValidationFailure(err error) *StageError { return NewStageError(StageValidating, err) }

// NewSimilarityRejection wraps a near-duplicate rejection with its reason.
func NewSimilarityRejection(reason string) *StageError {
	return NewStageError(StageSimilarityCheck, fmt.Errorf("%w: %s", ErrTooSimilar, reason))
}

// NewPersistenceError wraps a store write failure.
func NewPersistenceError(err error) *StageError { return NewStageError(StagePersisting, err) }

// KindOf extracts the failure kind from err, defaulting to generation_failed
// for errors that did not come from a known stage.
func KindOf(err error) FailureKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.FailureKind()
	}
	return FailureGeneration
}

// ValidationError collects configuration or input problems.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match ErrInvalidConfiguration with errors.Is.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
