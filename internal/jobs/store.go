// Package jobs tracks asynchronously executed transcription batches: an
// in-memory store of job records and the orchestrator that runs one worker
// goroutine per submitted job.
package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"transcriptor/internal/pipeline"
)

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")
	// ErrNotCancellable is returned when a job cannot be cancelled in its
	// current state.
	ErrNotCancellable = errors.New("job is not cancellable in its current state")
	// ErrNotRetryable is returned when retrying a job that has not failed.
	ErrNotRetryable = errors.New("only failed jobs can be retried")
	// ErrNotFinished is returned when results are requested before the job
	// reaches a terminal state.
	ErrNotFinished = errors.New("job is not finished")
)

// Store holds job records addressable by id. The map guard covers only
// insert and lookup; per-record consistency comes from each record's own
// guard, so unrelated jobs never contend.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Create inserts a fresh pending record and returns it. Ids never collide
// across concurrent calls.
func (s *Store) Create(req pipeline.Request) *Record {
	rec := &Record{
		id:      uuid.New().String(),
		request: req,
		created: time.Now(),
		status:  StatusPending,
	}
	s.mu.Lock()
	s.records[rec.id] = rec
	s.mu.Unlock()
	return rec
}

// Get returns a consistent snapshot of the job.
func (s *Store) Get(id string) (Snapshot, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return rec.Snapshot(), nil
}

// Result returns the snapshot of a terminal job. Non-terminal jobs yield
// ErrNotFinished rather than partial data.
func (s *Store) Result(id string) (Snapshot, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	snap := rec.Snapshot()
	if !snap.Status.Terminal() {
		return Snapshot{}, ErrNotFinished
	}
	return snap, nil
}

// RequestCancel marks the job for cooperative cancellation. It succeeds on
// cancellable states, is a no-op success when already cancelling/cancelled,
// and returns ErrNotCancellable on completed/failed jobs.
func (s *Store) RequestCancel(id string) error {
	rec, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}
	return rec.requestCancel()
}

func (s *Store) lookup(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}
