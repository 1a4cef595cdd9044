package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

const tracerName = "github.com/ahrav/go-lessonforge/pipeline"

// Outcome label used for stages that completed without error.
const OutcomeOK = "ok"

// StageObserver wraps lesson pipeline stages in OpenTelemetry spans and
// reports their duration and outcome to a metrics collector. A nil
// collector disables metrics; spans are always recorded.
type StageObserver struct {
	tracer  trace.Tracer
	metrics ports.MetricsCollector
}

// NewStageObserver uses the global tracer provider.
func NewStageObserver(metrics ports.MetricsCollector) *StageObserver {
	return NewStageObserverWithTracer(otel.Tracer(tracerName), metrics)
}

// NewStageObserverWithTracer is NewStageObserver with an explicit tracer.
func NewStageObserverWithTracer(tracer trace.Tracer, metrics ports.MetricsCollector) *StageObserver {
	return &StageObserver{tracer: tracer, metrics: metrics}
}

// StageSpan is one in-flight stage. End must be called exactly once.
type StageSpan struct {
	span    trace.Span
	stage   domain.Stage
	combo   domain.Combination
	start   time.Time
	metrics ports.MetricsCollector
}

// Begin starts a span named after the stage, tagged with the combination
// and the attempt number.
func (o *StageObserver) Begin(
	ctx context.Context,
	stage domain.Stage,
	combo domain.Combination,
	attempt int,
) (context.Context, *StageSpan) {
	ctx, span := o.tracer.Start(ctx, "lesson."+string(stage),
		trace.WithAttributes(
			attribute.String("lesson.language", combo.Language),
			attribute.String("lesson.level", combo.Level),
			attribute.String("lesson.topic", combo.Topic),
			attribute.String("lesson.exercise_type", string(combo.ExerciseType)),
			attribute.Int("lesson.attempt", attempt),
		),
	)
	return ctx, &StageSpan{
		span:    span,
		stage:   stage,
		combo:   combo,
		start:   time.Now(),
		metrics: o.metrics,
	}
}

// Annotate adds attributes to the stage span.
func (s *StageSpan) Annotate(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// Event records a named span event, e.g. a similarity rejection reason.
func (s *StageSpan) Event(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End closes the span. A non-nil err marks the span as failed and is
// counted under its ledger error type.
func (s *StageSpan) End(err error) {
	defer s.span.End()

	outcome := OutcomeOK
	if err != nil {
		outcome = string(domain.KindOf(err))
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}

	if s.metrics == nil {
		return
	}
	labels := map[string]string{
		"stage":         string(s.stage),
		"exercise_type": string(s.combo.ExerciseType),
	}
	s.metrics.RecordLatency(string(s.stage), time.Since(s.start), labels)
	labels["outcome"] = outcome
	s.metrics.RecordCounter(MetricStageOutcomes, 1, labels)
}
