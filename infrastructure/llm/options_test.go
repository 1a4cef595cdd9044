package llm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestOptions(t *testing.T) {
	schema := json.RawMessage(`{"type":"array","items":{"type":"object"}}`)

	t.Run("defaults", func(t *testing.T) {
		opts := ParseRequestOptions(nil, "base-model")
		assert.Equal(t, DefaultMaxTokens, opts.MaxTokens)
		assert.Equal(t, "base-model", opts.Model)
		assert.Equal(t, "response", opts.SchemaName)
		assert.Nil(t, opts.Temperature)
		assert.Nil(t, opts.JSONSchema)
		assert.Empty(t, opts.Extra)
	})

	t.Run("standard options", func(t *testing.T) {
		opts := ParseRequestOptions(map[string]any{
			OptTemperature:    0.4,
			OptMaxTokens:      512,
			OptSystem:         "be terse",
			OptJSONSchema:     schema,
			OptSchemaName:     "pairs",
			"presence_penalty": 0.5,
		}, "m")

		require.NotNil(t, opts.Temperature)
		assert.InDelta(t, 0.4, *opts.Temperature, 1e-9)
		assert.Equal(t, 512, opts.MaxTokens)
		assert.Equal(t, "be terse", opts.System)
		assert.JSONEq(t, string(schema), string(opts.JSONSchema))
		assert.Equal(t, "pairs", opts.SchemaName)
		assert.Equal(t, map[string]any{"presence_penalty": 0.5}, opts.Extra)
	})

	t.Run("invalid values fall back", func(t *testing.T) {
		opts := ParseRequestOptions(map[string]any{
			OptTemperature: 7.0,
			OptMaxTokens:   -3,
			OptJSONSchema:  "{not json",
		}, "m")

		assert.Nil(t, opts.Temperature)
		assert.Equal(t, DefaultMaxTokens, opts.MaxTokens)
		assert.Nil(t, opts.JSONSchema)
	})

	t.Run("numeric widening", func(t *testing.T) {
		opts := ParseRequestOptions(map[string]any{
			OptTemperature: float32(0.5),
			OptMaxTokens:   float64(100),
		}, "m")

		require.NotNil(t, opts.Temperature)
		assert.InDelta(t, 0.5, *opts.Temperature, 1e-6)
		assert.Equal(t, 100, opts.MaxTokens)
	})
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"", false},
		{"http://localhost:8080/v1", false},
		{"https://api.openai.com/v1", false},
		{"localhost:8080", true},
		{"ftp://host", true},
		{"http://", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ValidateBaseURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), ValidateTimeout(0))
	assert.Equal(t, MinTimeout, ValidateTimeout(time.Millisecond))
	assert.Equal(t, MaxTimeout, ValidateTimeout(time.Hour))
	assert.Equal(t, 2*time.Minute, ValidateTimeout(2*time.Minute))
}
