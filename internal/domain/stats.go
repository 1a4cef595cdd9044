package domain

// Stats summarizes one scheduler run.
type Stats struct {
	Combinations       int `json:"combinations"`
	LessonsRequested   int `json:"lessons_requested"`
	LessonsCompleted   int `json:"lessons_completed"`
	Attempts           int `json:"attempts"`
	Generated          int `json:"generated"`
	Validated          int `json:"validated"`
	SimilarityRejected int `json:"similarity_rejected"`
	Inserted           int `json:"inserted"`
	Failed             int `json:"failed"`
	// LedgerErrors counts failure records that could not be written.
	LedgerErrors int `json:"ledger_errors"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Combinations += other.Combinations
	s.LessonsRequested += other.LessonsRequested
	s.LessonsCompleted += other.LessonsCompleted
	s.Attempts += other.Attempts
	s.Generated += other.Generated
	s.Validated += other.Validated
	s.SimilarityRejected += other.SimilarityRejected
	s.Inserted += other.Inserted
	s.Failed += other.Failed
	s.LedgerErrors += other.LedgerErrors
}
