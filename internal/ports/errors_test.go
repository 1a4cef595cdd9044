package ports

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestLLMError tests the functionality of the LLMError error type.
// It covers error creation, message formatting, and retryable logic.
func TestLLMError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := NewLLMError("gpt-4", "Complete", ErrTokenLimitExceeded)

		assert.Equal(t, "LLM error: model=gpt-4, operation=Complete, err=token limit exceeded", err.Error())
		assert.Equal(t, "gpt-4", err.Model)
		assert.Equal(t, "Complete", err.Operation)
		assert.True(t, errors.Is(err, ErrTokenLimitExceeded))
	})

	t.Run("with tokens used", func(t *testing.T) {
		err := &LLMError{
			Model:      "claude-3",
			Operation:  "Complete",
			Err:        ErrTokenLimitExceeded,
			TokensUsed: 8192,
		}

		assert.Contains(t, err.Error(), "tokens_used=8192")
	})

	t.Run("with retry after", func(t *testing.T) {
		retryAfter := 30 * time.Second
		err := &LLMError{
			Model:      "gpt-3.5",
			Operation:  "Complete",
			Err:        ErrRateLimited,
			RetryAfter: &retryAfter,
		}

		assert.Contains(t, err.Error(), "retry_after=30s")
	})

	t.Run("retryable errors", func(t *testing.T) {
		retryableErrors := []error{
			ErrRateLimited,
			ErrServiceUnavailable,
			ErrTimeout,
		}

		for _, baseErr := range retryableErrors {
			err := NewLLMError("test-model", "Test", baseErr)
			assert.True(t, err.IsRetryable(), "%v should be retryable", baseErr)
		}

		nonRetryableErrors := []error{
			ErrTokenLimitExceeded,
			ErrInvalidResponse,
			ErrAuthenticationFailed,
		}

		for _, baseErr := range nonRetryableErrors {
			err := NewLLMError("test-model", "Test", baseErr)
			assert.False(t, err.IsRetryable(), "%v should not be retryable", baseErr)
		}
	})
}

// TestStoreError verifies message formatting with and without a table.
func TestStoreError(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		err       error
		wantMsg   string
	}{
		{
			name:      "with table",
			operation: "Insert",
			table:     "pair_exercises",
			err:       errors.New("database is locked"),
			wantMsg:   "store error: operation=Insert, table=pair_exercises, err=database is locked",
		},
		{
			name:      "without table",
			operation: "Close",
			err:       ErrStoreClosed,
			wantMsg:   "store error: operation=Close, err=store closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStoreError(tt.operation, tt.table, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.operation, err.Operation)
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}

// TestConfigError tests the functionality of the ConfigError error type.
// It verifies that the error message is formatted correctly and contains the relevant configuration key.
func TestConfigError(t *testing.T) {
	err := NewConfigError("llm_servers.generation.base_url", ErrConfigNotFound)

	assert.Equal(t, "config error: key=llm_servers.generation.base_url, err=configuration not found", err.Error())
	assert.Equal(t, "llm_servers.generation.base_url", err.ConfigKey)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

// TestCommonInfrastructureErrors tests that the common infrastructure errors are defined.
// It checks that each error has the expected error message.
func TestCommonInfrastructureErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrTokenLimitExceeded, "token limit exceeded"},
		{ErrRateLimited, "rate limited"},
		{ErrServiceUnavailable, "service unavailable"},
		{ErrTimeout, "operation timed out"},
		{ErrInvalidResponse, "invalid response"},
		{ErrAuthenticationFailed, "authentication failed"},
		{ErrStoreClosed, "store closed"},
		{ErrConfigNotFound, "configuration not found"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
		})
	}
}

// TestErrorUnwrapping tests that all custom error types in the package support unwrapping.
// It ensures that the underlying error can be extracted correctly using errors.Is and Unwrap.
func TestErrorUnwrapping(t *testing.T) {
	baseErr := errors.New("underlying error")

	errorList := []interface {
		error
		Unwrap() error
	}{
		NewLLMError("model", "op", baseErr),
		NewStoreError("op", "table", baseErr),
		NewConfigError("key", baseErr),
	}

	for _, err := range errorList {
		unwrapped := err.Unwrap()
		assert.Equal(t, baseErr, unwrapped, "%T should unwrap to base error", err)
		assert.True(t, errors.Is(err, baseErr), "%T should match base error with Is", err)
	}
}
