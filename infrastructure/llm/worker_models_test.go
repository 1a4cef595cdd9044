package llm

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-lessonforge/internal/ports"
)

func countingBuilder(builds *atomic.Int32) ClientBuilder {
	return func(provider string, config ClientConfig) (ports.LLMClient, error) {
		builds.Add(1)
		mock := NewMockCoreLLM()
		mock.Model = config.Model
		return newClientFromCore(mock, config), nil
	}
}

func testSpecs() map[ports.ModelRole]ModelSpec {
	return map[ports.ModelRole]ModelSpec{
		ports.RoleGeneration: {Provider: "openai", Config: ClientConfig{Model: "gen-model"}},
		ports.RoleValidation: {Provider: "openai", Config: ClientConfig{Model: "val-model"}},
	}
}

func TestWorkerModels_ClientPerWorkerAndRole(t *testing.T) {
	var builds atomic.Int32
	wm, err := NewWorkerModels(testSpecs(), WithClientBuilder(countingBuilder(&builds)))
	require.NoError(t, err)

	g1, err := wm.ForWorker(1, ports.RoleGeneration)
	require.NoError(t, err)
	g1again, err := wm.ForWorker(1, ports.RoleGeneration)
	require.NoError(t, err)
	g2, err := wm.ForWorker(2, ports.RoleGeneration)
	require.NoError(t, err)
	v1, err := wm.ForWorker(1, ports.RoleValidation)
	require.NoError(t, err)

	assert.Same(t, g1, g1again)
	assert.NotSame(t, g1, g2)
	assert.Equal(t, "gen-model", g1.GetModel())
	assert.Equal(t, "val-model", v1.GetModel())
	assert.Equal(t, int32(3), builds.Load())
	assert.Equal(t, 3, wm.Size())
}

func TestWorkerModels_ConcurrentFirstUseBuildsOnce(t *testing.T) {
	var builds atomic.Int32
	wm, err := NewWorkerModels(testSpecs(), WithClientBuilder(countingBuilder(&builds)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := wm.ForWorker(7, ports.RoleGeneration)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
}

func TestWorkerModels_Errors(t *testing.T) {
	_, err := NewWorkerModels(map[ports.ModelRole]ModelSpec{
		ports.RoleGeneration: {Provider: "openai"},
	})
	require.Error(t, err)

	wm, err := NewWorkerModels(map[ports.ModelRole]ModelSpec{
		ports.RoleGeneration: {Provider: "openai", Config: ClientConfig{Model: "m"}},
	}, WithClientBuilder(func(string, ClientConfig) (ports.LLMClient, error) {
		return nil, errors.New("server unreachable")
	}))
	require.NoError(t, err)

	_, err = wm.ForWorker(1, ports.RoleValidation)
	assert.ErrorContains(t, err, "no model configured")

	_, err = wm.ForWorker(1, ports.RoleGeneration)
	assert.ErrorContains(t, err, "server unreachable")
	assert.Equal(t, 0, wm.Size())
}
