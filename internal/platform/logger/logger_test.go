package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want []any
	}{
		{
			name: "plain fields pass through",
			in:   []any{"combination", "French/beginner/food/pairs", "attempt", 2},
			want: []any{"combination", "French/beginner/food/pairs", "attempt", 2},
		},
		{
			name: "api key redacted",
			in:   []any{"api_key", "sk-123", "model", "qwen"},
			want: []any{"api_key", "[REDACTED]", "model", "qwen"},
		},
		{
			name: "token counts are not secrets",
			in:   []any{"input_tokens", 120, "auth_token", "abc"},
			want: []any{"input_tokens", 120, "auth_token", "[REDACTED]"},
		},
		{
			name: "odd trailing value kept",
			in:   []any{"worker", 1, "dangling"},
			want: []any{"worker", 1, "dangling"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeKVs(tt.in))
		})
	}
}

func TestLogger_WithAndRedaction(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewFromZap(zap.New(core)).With("component", "scheduler")

	l.Info("llm configured", "api_key", "sk-secret", "base_url", "http://localhost:8080/v1")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "scheduler", fields["component"])
	assert.Equal(t, "[REDACTED]", fields["api_key"])
	assert.Equal(t, "http://localhost:8080/v1", fields["base_url"])
}

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod"} {
		l, err := New(mode)
		require.NoError(t, err)
		require.NotNil(t, l)
	}
	NewNop().Info("discarded")
}
