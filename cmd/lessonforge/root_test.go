package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-lessonforge/infrastructure/ledger"
	"github.com/ahrav/go-lessonforge/internal/application"
	"github.com/ahrav/go-lessonforge/internal/domain"
)

func TestGenerateFlags(t *testing.T) {
	cmd := newGenerateCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--language", "French", "--language", "Spanish",
		"--type", "fill-in-blank",
		"--generation-model", "qwen2.5-7b",
		"--workers", "3",
		"--incremental",
		"--failures-file", "out/failures.jsonl",
	}))

	incremental, err := cmd.Flags().GetBool("incremental")
	require.NoError(t, err)
	assert.True(t, incremental)

	langs, err := cmd.Flags().GetStringArray("language")
	require.NoError(t, err)
	assert.Equal(t, []string{"French", "Spanish"}, langs)
}

func TestRunFlags_Apply(t *testing.T) {
	cfg := &application.Config{
		LLMServers: application.LLMServers{
			Generation: application.ServerConfig{Model: "gen"},
			Validation: application.ServerConfig{Model: "val"},
		},
		Workers: 5,
		Storage: application.StorageConfig{Database: "lessons.db", FailuresFile: "failures.jsonl"},
	}

	(&runFlags{}).apply(cfg)
	assert.Equal(t, "gen", cfg.LLMServers.Generation.Model, "unset flags change nothing")
	assert.Equal(t, 5, cfg.Workers)

	(&runFlags{
		generationModel: "g2",
		validationModel: "v2",
		workers:         2,
		database:        "other.db",
		failuresFile:    "f.jsonl",
	}).apply(cfg)
	assert.Equal(t, "g2", cfg.LLMServers.Generation.Model)
	assert.Equal(t, "v2", cfg.LLMServers.Validation.Model)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "other.db", cfg.Storage.Database)
	assert.Equal(t, "f.jsonl", cfg.Storage.FailuresFile)
}

func TestRunFlags_Filters(t *testing.T) {
	f, err := (&runFlags{topics: []string{"food"}, types: []string{"Pairs", "fill_in_the_blank"}}).filters()
	require.NoError(t, err)
	assert.Equal(t, []string{"food"}, f.Topics)
	assert.Equal(t, []domain.ExerciseType{domain.ExercisePairs, domain.ExerciseFillInBlank}, f.ExerciseTypes)

	_, err = (&runFlags{types: []string{"essay"}}).filters()
	assert.ErrorContains(t, err, "--type")
}

func TestSplitRecords(t *testing.T) {
	food := domain.Combination{Language: "French", Level: "beginner", Topic: "food", ExerciseType: domain.ExercisePairs}
	travel := food
	travel.Topic = "travel"

	records := []domain.FailureRecord{
		{Combination: food, LessonNumber: 1},
		{Combination: travel, LessonNumber: 1},
		{Combination: food, LessonNumber: 2},
	}

	retry, keep := splitRecords(records, application.Filters{Topics: []string{"food"}})
	assert.Len(t, retry, 2)
	require.Len(t, keep, 1)
	assert.Equal(t, travel, keep[0].Combination)

	retry, keep = splitRecords(records, application.Filters{})
	assert.Len(t, retry, 3)
	assert.Empty(t, keep)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, domain.Stats{Combinations: 2, LessonsCompleted: 1, Inserted: 3, Failed: 1}, "failures.jsonl", false)
	out := buf.String()
	assert.Contains(t, out, "inserted:            3")
	assert.Contains(t, out, "failures.jsonl")

	buf.Reset()
	printSummary(&buf, domain.Stats{LessonsCompleted: 1}, "failures.jsonl", true)
	assert.Contains(t, buf.String(), "(dry run)")
	assert.NotContains(t, buf.String(), "retry-failures")
	assert.NotContains(t, buf.String(), "ledger write errors")

	buf.Reset()
	printSummary(&buf, domain.Stats{Failed: 2, LedgerErrors: 1}, "failures.jsonl", false)
	assert.Contains(t, buf.String(), "ledger write errors: 1")
}

func writeFailures(t *testing.T, path string, records ...domain.FailureRecord) []byte {
	t.Helper()
	l, err := ledger.Open(path)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, l.Append(rec))
	}
	require.NoError(t, l.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestPrepareRetryLedger_DryRunLeavesFailuresFile(t *testing.T) {
	food := domain.Combination{Language: "French", Level: "beginner", Topic: "food", ExerciseType: domain.ExercisePairs}
	path := filepath.Join(t.TempDir(), "failures.jsonl")
	before := writeFailures(t, path,
		domain.FailureRecord{Combination: food, LessonNumber: 1},
		domain.FailureRecord{Combination: food, LessonNumber: 2},
	)

	l, retired, err := prepareRetryLedger(path, nil, true, time.Now())
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(filepath.Dir(l.Path())) })
	assert.Empty(t, retired)
	assert.NotEqual(t, path, l.Path())

	require.NoError(t, l.Append(domain.FailureRecord{Combination: food, LessonNumber: 3}))
	require.NoError(t, l.Close())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	matches, err := filepath.Glob(path + retiredSuffix + "*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestPrepareRetryLedger_RotatesWithoutOverwriting(t *testing.T) {
	food := domain.Combination{Language: "French", Level: "beginner", Topic: "food", ExerciseType: domain.ExercisePairs}
	travel := food
	travel.Topic = "travel"
	path := filepath.Join(t.TempDir(), "failures.jsonl")
	first := writeFailures(t, path,
		domain.FailureRecord{Combination: food, LessonNumber: 1},
		domain.FailureRecord{Combination: travel, LessonNumber: 1},
	)

	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	l, retired, err := prepareRetryLedger(path, []domain.FailureRecord{{Combination: travel, LessonNumber: 1}}, false, now)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.Equal(t, path, l.Path())

	moved, err := os.ReadFile(retired)
	require.NoError(t, err)
	assert.Equal(t, first, moved)

	kept, err := ledger.ReadAll(path)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, travel, kept[0].Combination)

	l, second, err := prepareRetryLedger(path, nil, false, now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.NotEqual(t, retired, second)

	moved, err = os.ReadFile(retired)
	require.NoError(t, err)
	assert.Equal(t, first, moved, "earlier retired batch survives")

	_, _, err = prepareRetryLedger(path, nil, false, now.Add(time.Minute))
	assert.ErrorContains(t, err, "already exists")
}
