package application

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-lessonforge/infrastructure/generator"
	"github.com/ahrav/go-lessonforge/infrastructure/similarity"
	"github.com/ahrav/go-lessonforge/infrastructure/validation"
	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/platform/logger"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

// Options are per-run switches that do not belong in the config file.
type Options struct {
	// Incremental requests only the lessons a combination is still missing.
	Incremental bool
	// DryRun runs every gate but skips persistence.
	DryRun bool
}

// Dependencies are the collaborators a scheduler needs. Metrics, Ledger and
// Inspector are optional.
type Dependencies struct {
	Models    ports.ModelProvider
	Stores    ports.StoreFactory
	Ledger    ports.FailureLedger
	Metrics   ports.MetricsCollector
	Inspector *Inspector
	Logger    *logger.Logger
}

// Scheduler fans lesson requests out over a bounded pool of workers. Each
// request is one task; its lesson instances run sequentially on the worker
// that picked it up.
type Scheduler struct {
	cfg    *Config
	opts   Options
	deps   Dependencies
	runner *LessonRunner
	logger *logger.Logger
}

// NewScheduler wires the pipeline stages from cfg.
func NewScheduler(cfg *Config, opts Options, deps Dependencies) (*Scheduler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Models == nil {
		return nil, fmt.Errorf("model provider is required")
	}
	if deps.Stores == nil {
		return nil, fmt.Errorf("store factory is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	stages := Stages{
		Generator: generator.New(cfg.GeneratorConfig(), deps.Logger),
		Gate:      validation.NewGate(cfg.GateConfig(), deps.Logger),
		Filter:    similarity.NewFilter(cfg.GenerationSettings.SimilarityThreshold),
	}
	runner := NewLessonRunner(RunnerConfig{
		MaxRetries: cfg.GenerationSettings.MaxRetries,
		SampleSize: cfg.GenerationSettings.SimilaritySampleSize,
		DryRun:     opts.DryRun,
	}, stages, deps.Metrics, deps.Logger)
	if deps.Inspector != nil {
		runner.SetInspector(deps.Inspector)
	}

	return &Scheduler{
		cfg:    cfg,
		opts:   opts,
		deps:   deps,
		runner: runner,
		logger: deps.Logger.With("component", "scheduler"),
	}, nil
}

// Run plans every configured combination that passes f and asks for
// lessons_per_combination lessons of each.
func (s *Scheduler) Run(ctx context.Context, f Filters) (domain.Stats, error) {
	combos, err := Plan(s.cfg, f)
	if err != nil {
		return domain.Stats{}, err
	}
	return s.RunRequests(ctx, Requests(combos, s.cfg.GenerationSettings.LessonsPerCombination))
}

// RunRequests processes reqs on the worker pool. Lesson failures are
// recorded, never returned; the only error is ctx's once it ends.
func (s *Scheduler) RunRequests(ctx context.Context, reqs []LessonRequest) (domain.Stats, error) {
	start := time.Now()
	progress := NewProgress(s.deps.Ledger, s.deps.Metrics, s.deps.Logger)

	size := min(s.cfg.Workers, len(reqs))
	if size < 1 {
		size = 1
	}
	pool := make(chan *Worker, size)
	for id := 1; id <= size; id++ {
		pool <- NewWorker(id, s.deps.Models, s.deps.Stores)
	}

	s.logger.Info("run started",
		"requests", len(reqs),
		"workers", size,
		"incremental", s.opts.Incremental,
		"dry_run", s.opts.DryRun,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(size)
	for _, req := range reqs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			w := <-pool
			defer func() { pool <- w }()
			s.process(gctx, w, req, progress)
			return nil
		})
	}
	_ = g.Wait()

	close(pool)
	for w := range pool {
		if err := w.Close(); err != nil {
			s.logger.Warn("failed to close worker store", "worker", w.ID, "error", err)
		}
	}

	stats := progress.Stats()
	fields := []any{
		"duration", time.Since(start),
		"combinations", stats.Combinations,
		"lessons_requested", stats.LessonsRequested,
		"lessons_completed", stats.LessonsCompleted,
		"attempts", stats.Attempts,
		"generated", stats.Generated,
		"validated", stats.Validated,
		"similarity_rejected", stats.SimilarityRejected,
		"inserted", stats.Inserted,
		"failed", stats.Failed,
	}
	if s.deps.Ledger != nil {
		fields = append(fields, "failures_file", s.deps.Ledger.Path())
	}
	s.logger.Info("run finished", fields...)

	return stats, ctx.Err()
}

// process runs the lessons of one request sequentially on w.
func (s *Scheduler) process(ctx context.Context, w *Worker, req LessonRequest, progress *Progress) {
	combo := req.Combination
	log := s.logger.With("worker", w.ID, "combination", combo.Key())

	first, lessons := 1, req.Lessons
	progress.Plan(lessons)

	if s.opts.Incremental {
		existing, err := s.existingLessons(ctx, w, combo)
		switch {
		case err != nil:
			log.Warn("could not count stored lessons; generating the full request", "error", err)
		case existing >= lessons:
			progress.Skip(lessons)
			log.Info("combination already satisfied", "stored", existing, "requested", lessons)
			return
		default:
			progress.Skip(existing)
			first, lessons = existing+1, lessons-existing
		}
	}

	for n := first; n < first+lessons; n++ {
		if ctx.Err() != nil {
			return
		}
		// Record logs and counts ledger write errors; the run carries on.
		_ = progress.Record(s.runner.Run(ctx, w, combo, n))
	}
}

func (s *Scheduler) existingLessons(ctx context.Context, w *Worker, combo domain.Combination) (int, error) {
	store, err := w.Store(ctx)
	if err != nil {
		return 0, err
	}
	return store.CountLessons(ctx, combo)
}
