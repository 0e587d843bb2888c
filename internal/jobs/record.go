package jobs

import (
	"sync"
	"sync/atomic"
	"time"

	"transcriptor/internal/pipeline"
)

// Record is one tracked job. All fields behind mu are mutated only by the
// single worker owning the job; the cancel flag is the one field any caller
// may set concurrently, which is why it is atomic rather than guarded.
type Record struct {
	id      string
	request pipeline.Request // original request, never mutated; retries read it verbatim
	created time.Time

	cancel atomic.Bool

	mu         sync.Mutex
	status     Status
	outputDir  string
	files      []string
	errMsg     string
	processed  int
	failedURLs []string
}

// Snapshot is an internally consistent copy of a record's state, safe to
// hand to concurrent readers.
type Snapshot struct {
	ID         string           `json:"id"`
	Status     Status           `json:"status"`
	Request    pipeline.Request `json:"request"`
	OutputDir  string           `json:"output_dir,omitempty"`
	Files      []string         `json:"files"`
	Error      string           `json:"error,omitempty"`
	Processed  int              `json:"processed_count"`
	FailedURLs []string         `json:"failed_urls,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ID returns the job id.
func (r *Record) ID() string { return r.id }

// Request returns the original immutable request.
func (r *Record) Request() pipeline.Request { return r.request }

// CancelRequested reports whether any caller asked for cancellation.
func (r *Record) CancelRequested() bool { return r.cancel.Load() }

// Snapshot copies the record under its guard so no torn reads cross a
// transition.
func (r *Record) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ID:         r.id,
		Status:     r.status,
		Request:    r.request,
		OutputDir:  r.outputDir,
		Files:      append([]string{}, r.files...),
		Error:      r.errMsg,
		Processed:  r.processed,
		FailedURLs: append([]string(nil), r.failedURLs...),
		CreatedAt:  r.created,
	}
}

// Status returns the current lifecycle state.
func (r *Record) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// SetOutputDir records where the job writes its files. Worker-only.
func (r *Record) SetOutputDir(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	r.outputDir = dir
}

// ObservePhase applies a pipeline progress phase as a status transition,
// honoring the cancellation and terminal-state rules: a pending cancel
// request turns any non-cancelled update into the cancelled state, and
// updates against a terminal record are dropped.
func (r *Record) ObservePhase(phase string) {
	next := phaseStatus(phase)
	if next == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	if r.cancel.Load() {
		r.status = StatusCancelled
		return
	}
	r.status = next
}

// Fail moves the record to failed with an error message. Worker-only; no-op
// once terminal. An accepted cancel request settles the record as cancelled
// instead, so the failed outcome never overwrites a cancelling state.
func (r *Record) Fail(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	if r.cancel.Load() {
		r.status = StatusCancelled
		return
	}
	r.status = StatusFailed
	r.errMsg = msg
}

// FailWithResult moves the record to failed while preserving the partial
// outcome: the processed count, the failing URLs, and files produced by the
// successful URLs. An accepted cancel request settles the record as cancelled
// instead, keeping the produced files.
func (r *Record) FailWithResult(msg string, processed int, failedURLs, files []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	if r.cancel.Load() {
		r.status = StatusCancelled
		r.files = append([]string(nil), files...)
		return
	}
	r.status = StatusFailed
	r.errMsg = msg
	r.processed = processed
	r.failedURLs = append([]string(nil), failedURLs...)
	r.files = append([]string(nil), files...)
}

// Complete moves the record to completed with its results. Worker-only;
// no-op once terminal. An accepted cancel request settles the record as
// cancelled instead, keeping the produced files.
func (r *Record) Complete(processed int, files []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	if r.cancel.Load() {
		r.status = StatusCancelled
		r.files = append([]string(nil), files...)
		return
	}
	r.status = StatusCompleted
	r.processed = processed
	r.files = append([]string(nil), files...)
}

// FinishCancelled settles the record as cancelled, recording whatever files
// exist so far. The sink may already have moved the record to cancelled; in
// that case only the file list is filled in, exactly once. Completed and
// failed records are left untouched.
func (r *Record) FinishCancelled(files []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.status == StatusCancelled:
		if r.files == nil {
			r.files = append([]string(nil), files...)
		}
	case r.status.Terminal():
		// completed/failed: never resurrect
	default:
		r.status = StatusCancelled
		r.files = append([]string(nil), files...)
	}
}

// requestCancel is the store-side half of RequestCancel, performed under the
// record guard so the flag and the cancelling state appear together.
func (r *Record) requestCancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.status == StatusCancelling || r.status == StatusCancelled:
		return nil // already cancelling/cancelled
	case r.status.Cancellable():
		r.cancel.Store(true)
		r.status = StatusCancelling
		return nil
	default:
		return ErrNotCancellable
	}
}
