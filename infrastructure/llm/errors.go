package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ahrav/go-lessonforge/internal/ports"
)

var (
	// ErrEmptyAPIKey is returned by hosted providers built without a key.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse means the provider answered without a message body.
	ErrEmptyResponse = fmt.Errorf("empty response from API: %w", ports.ErrInvalidResponse)
	// ErrNoResponseChoice means an OpenAI-compatible server returned no choices.
	ErrNoResponseChoice = fmt.Errorf("no response choices returned: %w", ports.ErrInvalidResponse)
)

// ErrorType is the provider-neutral class of a failed model call. The retry
// middleware and the ports sentinels are keyed on it.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	// ErrorTypeBadRequest covers every 4xx the server will reject again.
	ErrorTypeBadRequest
	ErrorTypeServerError
	// ErrorTypeContentPolicy is a safety refusal reported by the provider.
	ErrorTypeContentPolicy
	ErrorTypeNetwork
	ErrorTypeTimeout
	ErrorTypeCanceled
)

var errorTypeNames = [...]string{
	ErrorTypeUnknown:        "",
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
	ErrorTypeCanceled:       "canceled",
}

func (t ErrorType) String() string {
	if int(t) < len(errorTypeNames) {
		return errorTypeNames[t]
	}
	return ""
}

// ProviderError is a classified failure from one provider SDK.
type ProviderError struct {
	Type       ErrorType
	Provider   string
	StatusCode int
	Message    string
	// WrappedError is the SDK error, kept for errors.As.
	WrappedError error
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// Error renders as "<provider> error (HTTP n) [type]: message: cause",
// omitting empty parts.
func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" error")
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if name := e.Type.String(); name != "" {
		fmt.Fprintf(&b, " [%s]", name)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.WrappedError != nil {
		fmt.Fprintf(&b, ": %v", e.WrappedError)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.WrappedError }

// Is maps the error type onto the provider-neutral sentinels in ports, so
// callers can test errors.Is(err, ports.ErrRateLimited) without knowing
// which provider failed.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ports.ErrAuthenticationFailed:
		return e.Type == ErrorTypeAuthentication
	case ports.ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ports.ErrServiceUnavailable:
		return e.Type == ErrorTypeServerError || e.Type == ErrorTypeNetwork
	case ports.ErrTimeout:
		return e.Type == ErrorTypeTimeout
	}
	return false
}

// IsRetryable reports whether the same request might succeed later.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	}
	return false
}

// ErrorClassifier turns SDK failures into ProviderErrors for one provider.
type ErrorClassifier struct {
	Provider string
}

// ClassifyHTTPError classifies by status code. Auth and rate-limit failures
// get a fixed message; everything else keeps the server's.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	t := statusType(statusCode)
	switch t {
	case ErrorTypeAuthentication:
		message = ec.Provider + " authentication failed"
	case ErrorTypeRateLimit:
		message = ec.Provider + " rate limit exceeded"
	}
	return NewProviderError(ec.Provider, t, statusCode, message, err)
}

func statusType(code int) ErrorType {
	switch {
	case code == 401 || code == 403:
		return ErrorTypeAuthentication
	case code == 429:
		return ErrorTypeRateLimit
	case code >= 500:
		return ErrorTypeServerError
	case code >= 400:
		return ErrorTypeBadRequest
	}
	return ErrorTypeUnknown
}

// ClassifyContextError classifies a deadline or cancellation seen by an SDK.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeCanceled, 0, "request canceled", err)
	}
	return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
}

// IsRetryable reports whether err is worth another attempt. Classified
// provider errors decide for themselves. An open circuit or a canceled
// request never is, nor is a completion cut off by max_tokens. Anything
// unclassified is retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) || errors.Is(err, ports.ErrTokenLimitExceeded) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return true
}
