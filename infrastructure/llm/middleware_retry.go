package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// retryLLM retries transient provider failures with exponential backoff.
// It runs beneath the pipeline's lesson-level retry budget.
type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries requests that fail with a retryable error up to
// maxRetries additional times.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryable(err) || attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		case <-time.After(r.calculateDelay(attempt)):
		}
	}

	return "", 0, 0, fmt.Errorf("request failed after retries: %w", lastErr)
}

func (r *retryLLM) calculateDelay(attempt int) time.Duration {
	attempt = ClampInt(attempt, 0, 30)
	delay := r.baseDelay * time.Duration(1<<uint(attempt)) // #nosec G115 - attempt is bounded

	// ±25% jitter.
	// #nosec G404 - weak RNG is fine for jitter
	delay = delay - delay/4 + time.Duration(rand.Float64()*float64(delay)/2)

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

func (r *retryLLM) GetModel() string  { return r.next.GetModel() }
func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
