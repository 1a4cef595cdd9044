package domain

import "time"

// FailureKind is the error_type recorded in the failure ledger.
type FailureKind string

// Failure kinds, one per pipeline stage that can exhaust a retry budget.
const (
	FailureGeneration  FailureKind = "generation_failed"
	FailureParse       FailureKind = "parse_failed"
	FailureValidation  FailureKind = "validation_failed"
	FailureSimilarity  FailureKind = "similarity_rejected"
	FailurePersistence FailureKind = "persistence_failed"
)

// FailureRecord describes one lesson instance that exhausted its retries.
// Records are append-only; nothing edits them after they are written.
type FailureRecord struct {
	Combination  Combination `json:"combination"`
	LessonNumber int         `json:"lesson_number"`
	Attempt      int         `json:"attempt"`
	ErrorType    FailureKind `json:"error_type"`
	Detail       string      `json:"detail"`
	RawCandidate string      `json:"raw_candidate,omitempty"`
	RecordedAt   time.Time   `json:"recorded_at"`
}
