package application

import (
	"sync"

	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/platform/logger"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

// Progress is the only state workers share. Counters and ledger appends sit
// behind one mutex, so the ledger never interleaves records and the running
// totals always match what was written.
type Progress struct {
	mu      sync.Mutex
	stats   domain.Stats
	planned int
	done    int

	ledger  ports.FailureLedger
	metrics ports.MetricsCollector
	logger  *logger.Logger
}

// NewProgress creates a reporter. ledger and metrics may be nil.
func NewProgress(ledger ports.FailureLedger, metrics ports.MetricsCollector, log *logger.Logger) *Progress {
	return &Progress{ledger: ledger, metrics: metrics, logger: log.With("component", "progress")}
}

// Plan adds lessons to the expected total for one combination.
func (p *Progress) Plan(lessons int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Combinations++
	p.stats.LessonsRequested += lessons
	p.planned += lessons
	p.gauge()
}

// Skip removes lessons from the expected total, e.g. when incremental mode
// finds them already stored.
func (p *Progress) Skip(lessons int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.LessonsRequested -= lessons
	p.planned -= lessons
	p.gauge()
}

// Record folds one finished lesson into the totals and appends its failure
// record, if any. A ledger write error is logged and returned but never
// stops the run.
func (p *Progress) Record(o LessonOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Add(o.Stats)
	if o.Err != nil {
		return nil
	}
	p.done++
	p.gauge()

	p.logger.Info("lesson finished",
		"progress", p.done,
		"planned", p.planned,
		"combination", o.Combination.Key(),
		"lesson", o.LessonNumber,
		"succeeded", o.Succeeded(),
		"attempts", o.Attempts,
		"inserted", p.stats.Inserted,
		"failed", p.stats.Failed,
	)

	if o.Failure == nil || p.ledger == nil {
		return nil
	}
	if err := p.ledger.Append(*o.Failure); err != nil {
		p.stats.LedgerErrors++
		p.logger.Error("failed to append failure record",
			"path", p.ledger.Path(),
			"combination", o.Combination.Key(),
			"error", err,
		)
		return err
	}
	return nil
}

// Stats returns a snapshot of the running totals.
func (p *Progress) Stats() domain.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Done reports finished and planned lesson counts.
func (p *Progress) Done() (done, planned int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.planned
}

func (p *Progress) gauge() {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordGauge("lessons_pending", float64(p.planned-p.done), nil)
}
