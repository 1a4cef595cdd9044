// Package llm provides a unified client for the chat-completion models that
// generate and validate exercises.
//
// Providers (OpenAI-compatible servers, Anthropic, Google) sit behind the
// CoreLLM interface. Cross-cutting behavior such as retries, per-call
// deadlines, rate limiting, circuit breaking, metrics and tracing is layered
// on with Middleware, so the pipeline only ever sees ports.LLMClient.
//
// Basic usage against a locally hosted OpenAI-compatible server:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    BaseURL: "http://localhost:8080/v1",
//	    Model:   "qwen2.5-14b-instruct",
//	    Middleware: []llm.Middleware{
//	        llm.TimeoutMiddleware(2 * time.Minute),
//	        llm.RetryMiddleware(2, time.Second, 10*time.Second),
//	    },
//	})
//	raw, err := client.Complete(ctx, prompt, map[string]any{
//	    llm.OptTemperature: 0.4,
//	    llm.OptJSONSchema:  schemaJSON,
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-lessonforge/internal/ports"
)

// CoreLLM defines the minimal interface that LLM providers must implement.
// Middleware wraps any conforming implementation.
type CoreLLM interface {
	// DoRequest sends a prompt to the provider and returns the response text
	// together with input and output token counts.
	DoRequest(
		ctx context.Context,
		prompt string,
		opts map[string]any,
	) (
		response string,
		tokensIn, tokensOut int,
		err error,
	)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model to use for subsequent requests.
	SetModel(model string)
}

// TokenEstimator provides pluggable token estimation strategies.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// ClientConfig holds all configuration options for creating an LLM client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider. It may be empty for
	// OpenAI-compatible servers reached through BaseURL that do not check keys.
	APIKey string

	// Model specifies which model to use for requests.
	Model string

	// BaseURL overrides the default API endpoint for the provider.
	BaseURL string

	// Timeout bounds the underlying HTTP exchange. Zero means no
	// transport-level timeout; TimeoutMiddleware is the usual per-call bound.
	Timeout time.Duration

	// TokenEstimator provides custom token counting logic.
	// If nil, a simple character-based estimator is used.
	TokenEstimator TokenEstimator

	// Middleware is applied in the order given; the first entry is outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting functionality.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient on top of a middleware-wrapped CoreLLM.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

// NewClient creates a new LLM client for the named provider and assembles its
// middleware chain.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" && config.BaseURL == "" {
		return nil, fmt.Errorf("API key is required when no base URL is configured")
	}

	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return newClientFromCore(core, config), nil
}

func newClientFromCore(core CoreLLM, config ClientConfig) *Client {
	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = &SimpleTokenEstimator{}
	}

	return &Client{core: core, estimator: estimator}
}

// Complete sends a prompt to the LLM and returns the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt to the LLM and also reports token usage.
func (c *Client) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens returns an approximate token count for the given text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the currently configured model name from the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

var _ ports.LLMClient = (*Client)(nil)

// SimpleTokenEstimator assumes roughly four characters per token.
type SimpleTokenEstimator struct{}

func (e *SimpleTokenEstimator) EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// providerFactories is populated from init functions only.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider under the given name.
// It must be called during package initialization.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

// KnownProvider reports whether a provider with the given name is registered.
func KnownProvider(providerType string) bool {
	_, ok := providerFactories[providerType]
	return ok
}
