package ports

import (
	"context"
	"time"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "json_schema": json.RawMessage, constrains output structurally
	//     where the provider supports it
	//   - "schema_name": string, name reported alongside json_schema
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// ModelRole names the job a model performs in the pipeline.
type ModelRole string

// Model roles. Generation and validation may point at different servers.
const (
	RoleGeneration ModelRole = "generation"
	RoleValidation ModelRole = "validation"
)

// ModelProvider hands out model clients scoped to one worker.
// Clients are not shared across workers; each worker lazily receives its own
// lightweight client per role on first use and keeps it for the run.
type ModelProvider interface {
	ForWorker(workerID int, role ModelRole) (LLMClient, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
