package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/testutils"
)

func TestInspector_WaitsForEnter(t *testing.T) {
	var out bytes.Buffer
	pr, pw := io.Pipe()
	defer pw.Close()

	insp := NewInspector(&out, pr)
	done := make(chan struct{})
	go func() {
		defer close(done)
		insp.Inspect(context.Background(), Inspection{
			Combination: testutils.Combo(domain.ExercisePairs),
			Lesson:      2,
			Attempt:     3,
			Stage:       domain.StageValidating,
			Prompt:      "the prompt",
			Raw:         "the response",
			Err:         errors.New("score 4 < 6"),
		})
	}()

	select {
	case <-done:
		t.Fatal("Inspect returned before the operator pressed Enter")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := pw.Write([]byte("\n"))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Inspect did not resume")
	}
}

func TestInspector_ContextEndsPause(t *testing.T) {
	var out bytes.Buffer
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	NewInspector(&out, pr).Inspect(ctx, Inspection{
		Combination: testutils.Combo(domain.ExercisePairs),
		Stage:       domain.StageParsing,
		Err:         errors.New("bad json"),
	})
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	assert.Contains(t, out.String(), "press Enter to continue")
}
