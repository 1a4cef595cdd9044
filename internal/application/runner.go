package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ahrav/go-lessonforge/infrastructure/generator"
	"github.com/ahrav/go-lessonforge/infrastructure/llm"
	"github.com/ahrav/go-lessonforge/infrastructure/middleware"
	"github.com/ahrav/go-lessonforge/infrastructure/parser"
	"github.com/ahrav/go-lessonforge/infrastructure/similarity"
	"github.com/ahrav/go-lessonforge/infrastructure/validation"
	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/platform/logger"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

var errNoCandidates = errors.New("model returned no candidates")

// RunnerConfig bounds the per-lesson retry loop.
type RunnerConfig struct {
	// MaxRetries is the number of attempts before a lesson is recorded as
	// failed.
	MaxRetries int
	// SampleSize is how many stored exercises the similarity filter sees.
	SampleSize int
	// DryRun runs every gate but never writes to the store.
	DryRun bool
	// CircuitWait is how long a lesson pauses when a model's circuit breaker
	// rejects a call. Rejected calls do not spend an attempt.
	CircuitWait time.Duration
}

// Stages groups the pipeline components a runner drives.
type Stages struct {
	Generator *generator.Generator
	Gate      *validation.Gate
	Filter    *similarity.Filter
}

// LessonOutcome is the result of one lesson instance.
type LessonOutcome struct {
	Combination  domain.Combination
	LessonNumber int
	// LessonID is the lesson_id shared by the persisted exercises of the
	// successful attempt.
	LessonID    string
	Attempts    int
	ExerciseIDs []int64
	Stats       domain.Stats
	// Failure is set once the retry budget is exhausted.
	Failure *domain.FailureRecord
	// Err is set only when ctx ended mid-lesson. Such lessons are neither
	// completed nor failed and produce no ledger record.
	Err error
}

// Succeeded reports whether the lesson reached Done.
func (o LessonOutcome) Succeeded() bool { return o.Failure == nil && o.Err == nil }

// LessonRunner drives one lesson instance through
// Generating, Parsing, Validating, SimilarityCheck and Persisting, looping
// back to Generating on any stage failure until MaxRetries attempts are
// spent.
type LessonRunner struct {
	cfg       RunnerConfig
	stages    Stages
	observer  *middleware.StageObserver
	metrics   ports.MetricsCollector
	inspector *Inspector
	logger    *logger.Logger

	newLessonID func() string
}

// NewLessonRunner creates a runner. metrics may be nil.
func NewLessonRunner(cfg RunnerConfig, stages Stages, metrics ports.MetricsCollector, log *logger.Logger) *LessonRunner {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.SampleSize < 0 {
		cfg.SampleSize = 0
	}
	if cfg.CircuitWait <= 0 {
		cfg.CircuitWait = defaultCircuitWait
	}
	return &LessonRunner{
		cfg:         cfg,
		stages:      stages,
		observer:    middleware.NewStageObserver(metrics),
		metrics:     metrics,
		logger:      log.With("component", "lesson_runner"),
		newLessonID: uuid.NewString,
	}
}

// SetInspector enables debug dumps on parse and validation failures.
func (r *LessonRunner) SetInspector(i *Inspector) { r.inspector = i }

// Run processes one lesson instance on w.
func (r *LessonRunner) Run(ctx context.Context, w *Worker, combo domain.Combination, lessonNumber int) LessonOutcome {
	out := LessonOutcome{Combination: combo, LessonNumber: lessonNumber}
	log := r.logger.With("worker", w.ID, "combination", combo.Key(), "lesson", lessonNumber)

	var lastErr error
	var lastRaw string
	for attempt := 1; attempt <= r.cfg.MaxRetries; {
		if err := ctx.Err(); err != nil {
			out.Err = err
			return out
		}

		lessonID := r.newLessonID()
		var tries domain.Stats
		ids, raw, err := r.attempt(ctx, w, combo, lessonNumber, attempt, lessonID, &tries)
		if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
			out.Err = ctxErr
			return out
		}
		if errors.Is(err, llm.ErrCircuitOpen) {
			log.Debug("model circuit open, waiting", "attempt", r.attemptLabel(attempt), "wait", r.cfg.CircuitWait)
			if err := sleepCtx(ctx, r.cfg.CircuitWait); err != nil {
				out.Err = err
				return out
			}
			continue
		}

		out.Attempts = attempt
		tries.Attempts++
		out.Stats.Add(tries)
		if err == nil {
			out.LessonID = lessonID
			out.ExerciseIDs = ids
			out.Stats.LessonsCompleted = 1
			r.countLesson(combo, "completed")
			log.Info("lesson completed", "attempt", attempt, "lesson_id", lessonID, "exercises", len(ids))
			return out
		}

		lastErr, lastRaw = err, raw
		log.Warn("attempt failed", "attempt", r.attemptLabel(attempt), "error_type", domain.KindOf(err), "error", err)
		attempt++
	}

	out.Stats.Failed = 1
	out.Failure = &domain.FailureRecord{
		Combination:  combo,
		LessonNumber: lessonNumber,
		Attempt:      out.Attempts,
		ErrorType:    domain.KindOf(lastErr),
		Detail:       lastErr.Error(),
		RawCandidate: lastRaw,
	}
	r.countLesson(combo, "failed")
	log.Error("lesson failed", "attempts", out.Attempts, "error_type", out.Failure.ErrorType, "error", lastErr)
	return out
}

// attempt runs every stage once. raw is the model output, returned even on
// failure so it can be written to the ledger.
func (r *LessonRunner) attempt(
	ctx context.Context,
	w *Worker,
	combo domain.Combination,
	lesson, attempt int,
	lessonID string,
	st *domain.Stats,
) ([]int64, string, error) {
	res, err := r.generate(ctx, w, combo, attempt)
	if err != nil {
		if res != nil {
			return nil, res.Raw, err
		}
		return nil, "", err
	}

	inspection := Inspection{Combination: combo, Lesson: lesson, Attempt: attempt, Prompt: res.Prompt, Raw: res.Raw}

	candidates, err := r.parse(ctx, res, combo, attempt)
	if err != nil {
		r.inspect(ctx, inspection, domain.StageParsing, err)
		return nil, res.Raw, err
	}
	st.Generated += len(candidates)

	approved, err := r.validate(ctx, w, candidates, combo, attempt)
	st.Validated += len(approved)
	if err != nil {
		r.inspect(ctx, inspection, domain.StageValidating, err)
		return nil, res.Raw, err
	}

	novel, rejected, err := r.screen(ctx, w, approved, combo, attempt)
	st.SimilarityRejected += rejected
	if err != nil {
		return nil, res.Raw, err
	}

	ids, err := r.persist(ctx, w, novel, combo, lessonID, attempt)
	st.Inserted += len(ids)
	if err != nil {
		return nil, res.Raw, err
	}
	return ids, res.Raw, nil
}

func (r *LessonRunner) generate(
	ctx context.Context,
	w *Worker,
	combo domain.Combination,
	attempt int,
) (res *generator.Result, err error) {
	ctx, span := r.observer.Begin(ctx, domain.StageGenerating, combo, attempt)
	defer func() { span.End(err) }()

	client, err := w.Generation()
	if err != nil {
		return nil, domain.NewGenerationError(err)
	}
	return r.stages.Generator.Generate(ctx, client, combo)
}

func (r *LessonRunner) parse(
	ctx context.Context,
	res *generator.Result,
	combo domain.Combination,
	attempt int,
) (candidates []domain.Candidate, err error) {
	_, span := r.observer.Begin(ctx, domain.StageParsing, combo, attempt)
	defer func() { span.End(err) }()

	candidates, err = parser.Parse(res.Raw, combo, res.Schema)
	if err != nil {
		return nil, err
	}
	span.Annotate(attribute.Int("lesson.candidates", len(candidates)))
	return candidates, nil
}

// validate keeps the candidates the gate approves. The stage fails only
// when none pass.
func (r *LessonRunner) validate(
	ctx context.Context,
	w *Worker,
	candidates []domain.Candidate,
	combo domain.Combination,
	attempt int,
) (approved []domain.Candidate, err error) {
	ctx, span := r.observer.Begin(ctx, domain.StageValidating, combo, attempt)
	defer func() { span.End(err) }()

	client, err := w.Validation()
	if err != nil {
		return nil, domain.NewValidationFailure(err)
	}

	lastErr := errNoCandidates
	for _, c := range candidates {
		passed, result, verr := r.stages.Gate.Validate(ctx, client, c, combo)
		switch {
		case verr != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, domain.NewValidationFailure(ctxErr)
			}
			lastErr = verr
		case !passed:
			r.observeScore(combo, result.OverallQualityScore)
			lastErr = belowThreshold(result, r.stages.Gate.Threshold())
		default:
			r.observeScore(combo, result.OverallQualityScore)
			approved = append(approved, c)
		}
	}

	span.Annotate(attribute.Int("lesson.approved", len(approved)))
	if len(approved) == 0 {
		return nil, domain.NewValidationFailure(lastErr)
	}
	return approved, nil
}

func belowThreshold(result domain.ValidationResult, threshold int) error {
	msg := fmt.Sprintf("score %d < %d", result.OverallQualityScore, threshold)
	if len(result.Issues) > 0 {
		msg += ": " + strings.Join(result.Issues, "; ")
	}
	return fmt.Errorf("%w: %s", domain.ErrBelowThreshold, msg)
}

// screen drops near-duplicates of stored exercises and of candidates
// already kept from this attempt.
func (r *LessonRunner) screen(
	ctx context.Context,
	w *Worker,
	candidates []domain.Candidate,
	combo domain.Combination,
	attempt int,
) (novel []domain.Candidate, rejected int, err error) {
	ctx, span := r.observer.Begin(ctx, domain.StageSimilarityCheck, combo, attempt)
	defer func() { span.End(err) }()

	store, err := w.Store(ctx)
	if err != nil {
		return nil, 0, domain.NewStageError(domain.StageSimilarityCheck, err)
	}
	existing, err := store.SampleExisting(ctx, combo, r.cfg.SampleSize)
	if err != nil {
		return nil, 0, domain.NewStageError(domain.StageSimilarityCheck, err)
	}

	var reason string
	for _, c := range candidates {
		if tooSimilar, why := r.stages.Filter.IsTooSimilar(c, existing); tooSimilar {
			rejected++
			reason = why
			span.Event("similarity.rejected", attribute.String("reason", why))
			continue
		}
		novel = append(novel, c)
		existing = append(existing, c)
	}

	if len(novel) == 0 {
		return nil, rejected, domain.NewSimilarityRejection(reason)
	}
	return novel, rejected, nil
}

// persist inserts every candidate under lessonID. The stage fails only when
// nothing novel was stored.
func (r *LessonRunner) persist(
	ctx context.Context,
	w *Worker,
	candidates []domain.Candidate,
	combo domain.Combination,
	lessonID string,
	attempt int,
) (ids []int64, err error) {
	ctx, span := r.observer.Begin(ctx, domain.StagePersisting, combo, attempt)
	defer func() { span.End(err) }()

	if r.cfg.DryRun {
		span.Annotate(attribute.Bool("lesson.dry_run", true))
		return nil, nil
	}

	store, err := w.Store(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}

	var lastErr error
	for _, c := range candidates {
		id, ierr := store.Insert(ctx, c, combo, lessonID)
		if ierr != nil {
			lastErr = ierr
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, domain.NewPersistenceError(lastErr)
	}
	span.Annotate(attribute.String("lesson.id", lessonID), attribute.Int("lesson.exercises", len(ids)))
	return ids, nil
}

func (r *LessonRunner) inspect(ctx context.Context, x Inspection, stage domain.Stage, err error) {
	if r.inspector == nil {
		return
	}
	x.Stage = stage
	var se *domain.StageError
	if errors.As(err, &se) {
		x.Stage = se.Stage
	}
	x.Err = err
	r.inspector.Inspect(ctx, x)
}

func (r *LessonRunner) observeScore(combo domain.Combination, score int) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordHistogram(middleware.MetricQualityScore, float64(score),
		map[string]string{"exercise_type": string(combo.ExerciseType)})
}

func (r *LessonRunner) countLesson(combo domain.Combination, status string) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordCounter(middleware.MetricLessons, 1, map[string]string{
		"exercise_type": string(combo.ExerciseType),
		"status":        status,
	})
}

// sleepCtx waits for d or until ctx ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attemptLabel is used in log fields that want a compact "n/max" form.
func (r *LessonRunner) attemptLabel(attempt int) string {
	return strconv.Itoa(attempt) + "/" + strconv.Itoa(r.cfg.MaxRetries)
}
