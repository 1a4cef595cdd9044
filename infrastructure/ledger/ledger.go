// Package ledger is the append-only JSON Lines log of lesson instances that
// exhausted their retry budget.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

var _ ports.FailureLedger = (*FileLedger)(nil)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("failure ledger closed")

// FileLedger appends one JSON object per line. Appends are serialized by a
// mutex and synced to disk before returning.
type FileLedger struct {
	mu   sync.Mutex
	f    *os.File
	path string
	now  func() time.Time
}

// Open opens path for appending, creating the file and its directory.
func Open(path string) (*FileLedger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open failure ledger: %w", err)
	}
	return &FileLedger{f: f, path: path, now: time.Now}, nil
}

// Path implements ports.FailureLedger.
func (l *FileLedger) Path() string { return l.path }

// Append implements ports.FailureLedger. A zero RecordedAt is stamped with
// the current time.
func (l *FileLedger) Append(rec domain.FailureRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return ErrClosed
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = l.now().UTC()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode failure record: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("write failure record: %w", err)
	}
	return l.f.Sync()
}

// Close closes the file. Further appends fail with ErrClosed.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// ReadAll loads every record in path. A final line without a newline that
// does not decode is treated as an interrupted write and skipped; any other
// malformed line is an error.
func ReadAll(path string) ([]domain.FailureRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read failure ledger: %w", err)
	}

	lines := bytes.Split(data, []byte{'\n'})
	var records []domain.FailureRecord
	for i, raw := range lines {
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		var rec domain.FailureRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			if i == len(lines)-1 {
				break
			}
			return nil, fmt.Errorf("failure ledger line %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Request asks for Lessons more lesson instances of Combination.
type Request struct {
	Combination domain.Combination
	Lessons     int
}

// Combinations folds records into one request per unique combination, with
// one lesson per failed record, in first-seen order.
func Combinations(records []domain.FailureRecord) []Request {
	index := make(map[string]int)
	var out []Request
	for _, rec := range records {
		key := rec.Combination.Key()
		if i, ok := index[key]; ok {
			out[i].Lessons++
			continue
		}
		index[key] = len(out)
		out = append(out, Request{Combination: rec.Combination, Lessons: 1})
	}
	return out
}
