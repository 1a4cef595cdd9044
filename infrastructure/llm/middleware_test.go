package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"
)

func TestRetryMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		failUntil int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "recovers from transient failures",
			failUntil: 2,
			err:       NewProviderError("openai", ErrorTypeServerError, 503, "busy", nil),
			wantCalls: 3,
		},
		{
			name:      "gives up after max retries",
			failUntil: 10,
			err:       NewProviderError("openai", ErrorTypeRateLimit, 429, "slow down", nil),
			wantCalls: 4,
			wantErr:   true,
		},
		{
			name:      "does not retry permanent failures",
			failUntil: 10,
			err:       NewProviderError("openai", ErrorTypeAuthentication, 401, "bad key", nil),
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCoreLLM()
			mock.FailUntilAttempt = tt.failUntil
			mock.Error = tt.err

			wrapped := RetryMiddleware(3, time.Millisecond, 5*time.Millisecond)(mock)
			resp, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

			assert.Equal(t, tt.wantCalls, mock.GetCallCount())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "test response", resp)
		})
	}
}

func TestRetryMiddleware_StopsOnCancel(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.FailUntilAttempt = 100
	mock.Error = NewProviderError("openai", ErrorTypeServerError, 500, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	wrapped := RetryMiddleware(50, 20*time.Millisecond, 20*time.Millisecond)(mock)

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, _, _, err := wrapped.DoRequest(ctx, "p", nil)
	require.Error(t, err)
	assert.Less(t, mock.GetCallCount(), 50)
}

func TestTimeoutMiddleware(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.ResponseDelay = 200 * time.Millisecond

	wrapped := TimeoutMiddleware(20 * time.Millisecond)(mock)
	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	fast := NewMockCoreLLM()
	resp, _, _, err := TimeoutMiddleware(time.Second)(fast).DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "test response", resp)
}

func TestRateLimitMiddleware_SharedAcrossClients(t *testing.T) {
	mw := RateLimitMiddleware(rate.Limit(1), 1)
	a := mw(NewMockCoreLLM())
	b := mw(NewMockCoreLLM())

	_, _, _, err := a.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)

	// The single token is spent; b must wait and the short deadline fails it.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, _, err = b.DoRequest(ctx, "p", nil)
	assert.Error(t, err)
}

func TestCircuitBreaker_StateTransitions(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	fail := errors.New("boom")

	assert.ErrorIs(t, cb.Call(func() error { return fail }), fail)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Call(func() error { return fail }), fail)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open circuit must not reach the service")

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(1, time.Second)
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errors.New("x") })
	require.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Second)
	_ = cb.Call(func() error { return errors.New("still down") })
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_DoesNotSerializeCalls(t *testing.T) {
	cb := NewCircuitBreaker(5, time.Second)
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)

	var done sync.WaitGroup
	for range 2 {
		done.Add(1)
		go func() {
			defer done.Done()
			_ = cb.Call(func() error {
				started.Done()
				<-release
				return nil
			})
		}()
	}

	waitCh := make(chan struct{})
	go func() { started.Wait(); close(waitCh) }()

	select {
	case <-waitCh:
	case <-time.After(time.Second):
		t.Fatal("calls through a closed breaker should run concurrently")
	}
	close(release)
	done.Wait()
}

type recordingCollector struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
	labels     []map[string]string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{counters: map[string]float64{}, histograms: map[string][]float64{}}
}

func (r *recordingCollector) RecordLatency(string, time.Duration, map[string]string) {}
func (r *recordingCollector) RecordGauge(string, float64, map[string]string)         {}
func (r *recordingCollector) RecordCounter(metric string, v float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] += v
	r.labels = append(r.labels, labels)
}
func (r *recordingCollector) RecordHistogram(metric string, v float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric] = append(r.histograms[metric], v)
}

func TestMetricsMiddleware(t *testing.T) {
	collector := newRecordingCollector()
	wrapped := MetricsMiddleware(collector, "openai", "generation")(NewMockCoreLLM())

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)

	assert.Equal(t, float64(1), collector.counters["llm_requests_total"])
	assert.Equal(t, float64(30), collector.counters["llm_tokens_total"])
	assert.Len(t, collector.histograms["llm_latency_seconds"], 1)
	assert.Equal(t, "generation", collector.labels[0]["role"])
	assert.Equal(t, "success", collector.labels[0]["status"])

	failing := NewMockCoreLLM()
	failing.Error = ErrCircuitOpen
	_, _, _, err = MetricsMiddleware(collector, "openai", "validation")(failing).DoRequest(context.Background(), "p", nil)
	require.Error(t, err)
	last := collector.labels[len(collector.labels)-1]
	assert.Equal(t, "circuit_open", last["status"])
}

func TestTracingMiddleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	mw := TracingMiddlewareWithTracer(tp.Tracer("test"), "validation")

	_, _, _, err := mw(NewMockCoreLLM()).DoRequest(context.Background(), "p", map[string]any{OptJSONSchema: "{}"})
	require.NoError(t, err)

	failing := NewMockCoreLLM()
	failing.Error = errors.New("service error")
	_, _, _, err = mw(failing).DoRequest(context.Background(), "p", nil)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "llm.request", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "service error", spans[1].Status().Description)
}

func TestMiddleware_PassThroughModel(t *testing.T) {
	mws := map[string]Middleware{
		"retry":   RetryMiddleware(1, time.Millisecond, time.Millisecond),
		"timeout": TimeoutMiddleware(time.Second),
		"rate":    RateLimitMiddleware(rate.Inf, 1),
		"breaker": CircuitBreakerMiddleware(3, time.Second),
		"metrics": MetricsMiddleware(nil, "openai", "generation"),
		"tracing": TracingMiddleware("generation"),
	}
	for name, mw := range mws {
		t.Run(name, func(t *testing.T) {
			mock := NewMockCoreLLM()
			wrapped := mw(mock)
			assert.Equal(t, "test-model", wrapped.GetModel())
			wrapped.SetModel("other")
			assert.Equal(t, "other", mock.GetModel())
		})
	}
}
