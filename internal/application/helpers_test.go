package application

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-lessonforge/infrastructure/generator"
	"github.com/ahrav/go-lessonforge/infrastructure/ledger"
	"github.com/ahrav/go-lessonforge/infrastructure/similarity"
	"github.com/ahrav/go-lessonforge/infrastructure/store"
	"github.com/ahrav/go-lessonforge/infrastructure/validation"
	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/platform/logger"
	"github.com/ahrav/go-lessonforge/internal/ports"
	"github.com/ahrav/go-lessonforge/internal/testutils"
)

// staticModels hands every worker the same scripted client per role.
type staticModels struct {
	gen ports.LLMClient
	val ports.LLMClient
}

func (m staticModels) ForWorker(_ int, role ports.ModelRole) (ports.LLMClient, error) {
	if role == ports.RoleGeneration {
		return m.gen, nil
	}
	return m.val, nil
}

func testConfig(types ...domain.ExerciseType) *Config {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	cfg := &Config{
		Languages:     []string{"French"},
		Levels:        []string{"beginner"},
		Topics:        []string{"food"},
		ExerciseTypes: names,
		LLMServers: LLMServers{
			Generation: ServerConfig{Model: "gen-model"},
			Validation: ServerConfig{Model: "val-model"},
		},
		Workers: 1,
	}
	cfg.ApplyDefaults()
	return cfg
}

type testEnv struct {
	dbPath string
	store  *store.SQLiteStore
	stores ports.StoreFactory
	ledger *ledger.FileLedger
	gen    *testutils.ScriptedLLMClient
	val    *testutils.ScriptedLLMClient
}

// newTestEnv opens a migrated database and a ledger under t.TempDir. The
// validation client approves everything with a score of 8 unless a test
// queues something else.
func newTestEnv(t *testing.T, t0 domain.ExerciseType) *testEnv {
	t.Helper()
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "lessons.db")
	s, err := store.Open(dbPath, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	l, err := ledger.Open(filepath.Join(dir, "failures.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	val := testutils.NewScriptedLLMClient("val-model")
	val.AddResponse(testutils.MockResponse{Response: testutils.Verdict(t0, 8, nil)})

	return &testEnv{
		dbPath: dbPath,
		store:  s,
		stores: store.NewFactory(dbPath, logger.NewNop()),
		ledger: l,
		gen:    testutils.NewScriptedLLMClient("gen-model"),
		val:    val,
	}
}

func (e *testEnv) models() staticModels { return staticModels{gen: e.gen, val: e.val} }

func (e *testEnv) worker(t *testing.T) *Worker {
	t.Helper()
	w := NewWorker(1, e.models(), e.stores)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func (e *testEnv) deps() Dependencies {
	return Dependencies{
		Models: e.models(),
		Stores: e.stores,
		Ledger: e.ledger,
		Logger: logger.NewNop(),
	}
}

func (e *testEnv) failures(t *testing.T) []domain.FailureRecord {
	t.Helper()
	recs, err := ledger.ReadAll(e.ledger.Path())
	require.NoError(t, err)
	return recs
}

func newTestRunner(cfg *Config, dryRun bool) *LessonRunner {
	log := logger.NewNop()
	return NewLessonRunner(RunnerConfig{
		MaxRetries: cfg.GenerationSettings.MaxRetries,
		SampleSize: cfg.GenerationSettings.SimilaritySampleSize,
		DryRun:     dryRun,
	}, Stages{
		Generator: generator.New(cfg.GeneratorConfig(), log),
		Gate:      validation.NewGate(cfg.GateConfig(), log),
		Filter:    similarity.NewFilter(cfg.GenerationSettings.SimilarityThreshold),
	}, nil, log)
}
