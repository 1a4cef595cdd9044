package ports

import (
	"context"

	"github.com/ahrav/go-lessonforge/internal/domain"
)

// ExerciseStore is the persistence boundary of the pipeline. It is the only
// component permitted to mutate persisted exercises.
//
// A store handle is owned by exactly one worker and must not be used from
// more than one goroutine at a time.
type ExerciseStore interface {
	// Insert persists an accepted candidate under lessonID inside a single
	// transaction and returns the new exercise id. Implementations return an
	// error wrapping domain.ErrNothingInserted when every row was a duplicate.
	Insert(ctx context.Context, c domain.Candidate, combo domain.Combination, lessonID string) (int64, error)

	// SampleExisting returns up to limit previously accepted exercises for the
	// same language, level and topic, and the same exercise type.
	SampleExisting(ctx context.Context, combo domain.Combination, limit int) ([]domain.Candidate, error)

	// CountLessons returns the number of distinct lesson ids stored for combo.
	CountLessons(ctx context.Context, combo domain.Combination) (int, error)

	// Close releases the underlying connection.
	Close() error
}

// StoreFactory opens a dedicated store handle for one worker.
type StoreFactory func(ctx context.Context, workerID int) (ExerciseStore, error)

// FailureLedger is the append-only log of lesson instances that exhausted
// their retry budget. Implementations must be safe for concurrent use.
type FailureLedger interface {
	Append(rec domain.FailureRecord) error

	// Path reports where records are written, for the run summary.
	Path() string
}
