package generator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-lessonforge/infrastructure/llm"
	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/platform/logger"
	"github.com/ahrav/go-lessonforge/internal/ports"
	"github.com/ahrav/go-lessonforge/internal/testutils"
)

func TestGenerator_Prompt(t *testing.T) {
	g := New(Config{}, logger.NewNop())

	for _, typ := range domain.AllExerciseTypes {
		t.Run(string(typ), func(t *testing.T) {
			combo := testutils.Combo(typ)
			s, err := g.Schema(typ, combo.Language)
			require.NoError(t, err)

			p, err := g.Prompt(combo, s)
			require.NoError(t, err)
			assert.Contains(t, p, "French")
			assert.Contains(t, p, "Topic: food")
			assert.Contains(t, p, "Learner level: beginner")
			assert.Contains(t, p, string(s.JSON()), "schema block is embedded")
		})
	}
}

func TestGenerator_Temperature(t *testing.T) {
	g := New(Config{}, logger.NewNop())
	assert.Less(t, g.Temperature(domain.ExercisePairs), g.Temperature(domain.ExerciseConversation))

	custom := New(Config{Temperatures: map[domain.ExerciseType]float64{domain.ExercisePairs: 0.2}}, logger.NewNop())
	assert.Equal(t, 0.2, custom.Temperature(domain.ExercisePairs))
	assert.Equal(t, DefaultTemperature, custom.Temperature(domain.ExerciseConversation))
}

func TestGenerator_SchemaIsCached(t *testing.T) {
	g := New(Config{}, logger.NewNop())
	a, err := g.Schema(domain.ExercisePairs, "French")
	require.NoError(t, err)
	b, err := g.Schema(domain.ExercisePairs, "French")
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := g.Schema(domain.ExercisePairs, "German")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestGenerator_Generate(t *testing.T) {
	tests := []struct {
		name         string
		native       bool
		reply        testutils.Reply
		wantErr      error
		wantRaw      string
		wantSchemaOp bool
	}{
		{
			name:         "native schema",
			native:       true,
			reply:        testutils.Reply{Response: testutils.FrenchFoodPairs},
			wantRaw:      testutils.FrenchFoodPairs,
			wantSchemaOp: true,
		},
		{
			name:    "prompt only",
			reply:   testutils.Reply{Response: testutils.FrenchFoodPairs},
			wantRaw: testutils.FrenchFoodPairs,
		},
		{
			name:    "empty response",
			reply:   testutils.Reply{Response: "  \n"},
			wantErr: ErrEmptyResponse,
			wantRaw: "  \n",
		},
		{
			name:    "transport failure",
			reply:   testutils.Reply{Err: ports.ErrServiceUnavailable},
			wantErr: ports.ErrServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testutils.NewScriptedLLMClient("gen-model", tt.reply)
			g := New(Config{NativeSchema: tt.native}, logger.NewNop())

			res, err := g.Generate(context.Background(), client, testutils.Combo(domain.ExercisePairs))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, domain.FailureGeneration, domain.KindOf(err))
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, res)
			assert.Equal(t, tt.wantRaw, res.Raw)
			assert.NotEmpty(t, res.Prompt)

			calls := client.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, 0.4, calls[0].Options[llm.OptTemperature])
			assert.Equal(t, DefaultMaxTokens, calls[0].Options[llm.OptMaxTokens])

			raw, ok := calls[0].Options[llm.OptJSONSchema]
			assert.Equal(t, tt.wantSchemaOp, ok)
			if ok {
				assert.True(t, json.Valid(raw.(json.RawMessage)))
				assert.Equal(t, "pairs_french", calls[0].Options[llm.OptSchemaName])
			}
		})
	}
}

func TestGenerator_Generate_BadLanguage(t *testing.T) {
	client := testutils.NewScriptedLLMClient("gen-model")
	g := New(Config{}, logger.NewNop())

	combo := testutils.Combo(domain.ExercisePairs)
	combo.Language = "English"
	res, err := g.Generate(context.Background(), client, combo)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Zero(t, client.CallCount())

	var se *domain.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, domain.StageGenerating, se.Stage)
}
