package testutils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-lessonforge/internal/ports"
)

// ErrScriptExhausted is returned when a ScriptedLLMClient has no queued reply
// and no pattern matches the prompt.
var ErrScriptExhausted = errors.New("scripted client: no response configured for prompt")

// Reply is one queued model answer. A non-nil Err is returned instead of
// Response.
type Reply struct {
	Response string
	Err      error
}

// MockResponse is a fallback answer for prompts containing Pattern
// (case-insensitive). An empty Pattern matches everything.
type MockResponse struct {
	Pattern  string
	Response string
}

// Call records one Complete invocation.
type Call struct {
	Prompt  string
	Options map[string]any
}

// ScriptedLLMClient implements ports.LLMClient with deterministic answers.
// Queued replies are consumed first, in order; after that the first matching
// pattern answers. It is safe for concurrent use.
type ScriptedLLMClient struct {
	mu        sync.Mutex
	model     string
	queue     []Reply
	responses []MockResponse
	calls     []Call
}

// NewScriptedLLMClient creates a client that answers with replies in order.
func NewScriptedLLMClient(model string, replies ...Reply) *ScriptedLLMClient {
	return &ScriptedLLMClient{model: model, queue: replies}
}

// Enqueue appends replies to the script.
func (m *ScriptedLLMClient) Enqueue(replies ...Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, replies...)
}

// EnqueueText is Enqueue for plain successful responses.
func (m *ScriptedLLMClient) EnqueueText(responses ...string) {
	for _, r := range responses {
		m.Enqueue(Reply{Response: r})
	}
}

// AddResponse registers a pattern fallback. Patterns are checked in the order
// they were added.
func (m *ScriptedLLMClient) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
}

// Complete implements ports.LLMClient.
func (m *ScriptedLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	opts := make(map[string]any, len(options))
	for k, v := range options {
		opts[k] = v
	}
	m.calls = append(m.calls, Call{Prompt: prompt, Options: opts})

	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next.Response, next.Err
	}

	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if r.Pattern == "" || strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Response, nil
		}
	}
	return "", ErrScriptExhausted
}

// EstimateTokens approximates four characters per token.
func (m *ScriptedLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return max(len(text)/4, 1), nil
}

// GetModel implements ports.LLMClient.
func (m *ScriptedLLMClient) GetModel() string { return m.model }

// Calls returns a copy of every recorded call.
func (m *ScriptedLLMClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many times Complete was called.
func (m *ScriptedLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Pending returns the number of queued replies not yet consumed.
func (m *ScriptedLLMClient) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

var _ ports.LLMClient = (*ScriptedLLMClient)(nil)
