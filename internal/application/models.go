package application

import (
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-lessonforge/infrastructure/llm"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

// Circuit breaker settings shared by both roles.
const (
	breakerMaxFailures = 5
	breakerCooldown    = 30 * time.Second
	// defaultCircuitWait spaces a lesson's calls while a breaker is open.
	defaultCircuitWait = breakerCooldown / 6

	retryBaseDelay = time.Second
	retryMaxDelay  = 20 * time.Second
)

// ModelSpecs turns the configured servers into per-role client specs. Each
// role's middleware values are built once here, so its rate limiter and
// circuit breaker are shared by the clients of every worker.
//
// Chain, outermost first: tracing, metrics, circuit breaker, retry, rate
// limit, per-call timeout. Metrics therefore count one request per model
// call the pipeline makes, and each retry waits for its own token.
func ModelSpecs(servers LLMServers, metrics ports.MetricsCollector) map[ports.ModelRole]llm.ModelSpec {
	return map[ports.ModelRole]llm.ModelSpec{
		ports.RoleGeneration: modelSpec(servers.Generation, ports.RoleGeneration, metrics),
		ports.RoleValidation: modelSpec(servers.Validation, ports.RoleValidation, metrics),
	}
}

func modelSpec(s ServerConfig, role ports.ModelRole, metrics ports.MetricsCollector) llm.ModelSpec {
	mws := []llm.Middleware{
		llm.TracingMiddleware(string(role)),
		llm.MetricsMiddleware(metrics, s.Provider, string(role)),
		llm.CircuitBreakerMiddleware(breakerMaxFailures, breakerCooldown),
	}
	if s.MaxRetries > 0 {
		mws = append(mws, llm.RetryMiddleware(s.MaxRetries, retryBaseDelay, retryMaxDelay))
	}
	if s.RequestsPerSecond > 0 {
		burst := int(math.Max(1, math.Ceil(s.RequestsPerSecond)))
		mws = append(mws, llm.RateLimitMiddleware(rate.Limit(s.RequestsPerSecond), burst))
	}
	mws = append(mws, llm.TimeoutMiddleware(s.Timeout()))

	return llm.ModelSpec{
		Provider: s.Provider,
		Config: llm.ClientConfig{
			APIKey:     s.APIKey,
			Model:      s.Model,
			BaseURL:    s.BaseURL,
			Middleware: mws,
		},
	}
}

// NewModelProvider builds the per-worker model provider for cfg.
func NewModelProvider(cfg *Config, metrics ports.MetricsCollector, opts ...llm.WorkerModelsOption) (*llm.WorkerModels, error) {
	return llm.NewWorkerModels(ModelSpecs(cfg.LLMServers, metrics), opts...)
}
