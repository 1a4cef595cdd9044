package llm

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-lessonforge/internal/ports"
)

// ModelSpec describes how to build the client for one pipeline role.
type ModelSpec struct {
	Provider string
	Config   ClientConfig
}

// ClientBuilder constructs a client from a provider name and configuration.
type ClientBuilder func(provider string, config ClientConfig) (ports.LLMClient, error)

func defaultClientBuilder(provider string, config ClientConfig) (ports.LLMClient, error) {
	c, err := NewClient(provider, config)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type workerKey struct {
	worker int
	role   ports.ModelRole
}

// WorkerModels implements ports.ModelProvider. Each (worker, role) pair
// lazily gets its own lightweight client the first time it asks, and keeps
// it for the life of the run. Middleware values in a spec are shared, so
// rate limiters and circuit breakers still act per role across all workers.
type WorkerModels struct {
	specs map[ports.ModelRole]ModelSpec
	build ClientBuilder

	mu      sync.RWMutex
	clients map[workerKey]ports.LLMClient
	group   singleflight.Group
}

// WorkerModelsOption configures WorkerModels.
type WorkerModelsOption func(*WorkerModels)

// WithClientBuilder replaces client construction, typically in tests.
func WithClientBuilder(b ClientBuilder) WorkerModelsOption {
	return func(w *WorkerModels) { w.build = b }
}

// NewWorkerModels validates specs up front so a misconfigured role fails at
// startup rather than inside a worker.
func NewWorkerModels(specs map[ports.ModelRole]ModelSpec, opts ...WorkerModelsOption) (*WorkerModels, error) {
	w := &WorkerModels{
		specs:   make(map[ports.ModelRole]ModelSpec, len(specs)),
		build:   defaultClientBuilder,
		clients: make(map[workerKey]ports.LLMClient),
	}
	for _, opt := range opts {
		opt(w)
	}

	for role, spec := range specs {
		if spec.Config.Model == "" {
			return nil, fmt.Errorf("%s model: model is required", role)
		}
		if w.build == nil {
			return nil, fmt.Errorf("client builder cannot be nil")
		}
		w.specs[role] = spec
	}
	return w, nil
}

// ForWorker returns the client owned by workerID for role.
func (w *WorkerModels) ForWorker(workerID int, role ports.ModelRole) (ports.LLMClient, error) {
	key := workerKey{worker: workerID, role: role}

	w.mu.RLock()
	if c, ok := w.clients[key]; ok {
		w.mu.RUnlock()
		return c, nil
	}
	w.mu.RUnlock()

	spec, ok := w.specs[role]
	if !ok {
		return nil, fmt.Errorf("no model configured for role %q", role)
	}

	v, err, _ := w.group.Do(fmt.Sprintf("%s#%d", role, workerID), func() (any, error) {
		w.mu.RLock()
		c, ok := w.clients[key]
		w.mu.RUnlock()
		if ok {
			return c, nil
		}

		c, err := w.build(spec.Provider, spec.Config)
		if err != nil {
			return nil, fmt.Errorf("build %s client for worker %d: %w", role, workerID, err)
		}

		w.mu.Lock()
		w.clients[key] = c
		w.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(ports.LLMClient), nil
}

// Size reports how many clients have been built so far.
func (w *WorkerModels) Size() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.clients)
}

var _ ports.ModelProvider = (*WorkerModels)(nil)
