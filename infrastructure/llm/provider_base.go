package llm

import (
	"encoding/json"
	"sync"
)

// BaseProvider guards the model name shared by every provider.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the provider-neutral form of the options map passed to
// DoRequest.
type RequestOptions struct {
	MaxTokens int
	Model     string

	// Temperature and TopP are nil when the provider default applies.
	Temperature *float64
	TopP        *float64

	System string

	// JSONSchema, when set, constrains the response structurally.
	JSONSchema json.RawMessage
	SchemaName string

	// Extra holds provider-specific options that are not part of the
	// standardized set.
	Extra map[string]any
}

// ParseRequestOptions extracts and validates request parameters from opts,
// using defaults for anything missing or out of range. Unrecognized options
// are collected into Extra.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens:  ExtractOptionalInt(opts, OptMaxTokens, DefaultMaxTokens, IsPositiveInt),
		Model:      ExtractOptionalString(opts, OptModel, defaultModel, IsNonEmptyString),
		System:     ExtractOptionalString(opts, OptSystem, "", nil),
		SchemaName: ExtractOptionalString(opts, OptSchemaName, "response", IsNonEmptyString),
		Extra:      make(map[string]any),
	}

	if raw := ExtractOptionalBytes(opts, OptJSONSchema); len(raw) > 0 && json.Valid(raw) {
		options.JSONSchema = json.RawMessage(raw)
	}

	if temp := ExtractOptionalFloat64(opts, OptTemperature, -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	if topP := ExtractOptionalFloat64(opts, OptTopP, -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case OptMaxTokens, OptModel, OptSystem, OptTemperature, OptTopP, OptJSONSchema, OptSchemaName:
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// schemaInstruction is appended to the system prompt for providers without
// native JSON-schema enforcement.
func schemaInstruction(schema json.RawMessage) string {
	return "Respond with JSON only, with no surrounding prose. The JSON must validate against this schema:\n" +
		string(schema)
}

// joinSystem appends extra to system, separated by a blank line.
func joinSystem(system, extra string) string {
	if system == "" {
		return extra
	}
	return system + "\n\n" + extra
}

// TokenCounter estimates token counts when a provider omits usage data.
type TokenCounter struct {
	CharactersPerToken float64
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// GetTokenCount prefers a positive reported count and estimates otherwise.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
