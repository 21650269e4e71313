package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/twieland/mailpilot/internal/gmail"
	"github.com/twieland/mailpilot/internal/llm"
)

// Status is the lifecycle stage of a triage run.
type Status string

const (
	StatusPending     Status = "pending"
	StatusFetching    Status = "fetching"
	StatusClassifying Status = "classifying"
	StatusReady       Status = "ready"
	StatusFailed      Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// ThreadError records a failure local to one thread. Such failures never
// abort the run.
type ThreadError struct {
	ThreadID string
	Err      error
}

func (e ThreadError) Error() string {
	return fmt.Sprintf("thread %s: %v", e.ThreadID, e.Err)
}

func (e ThreadError) Unwrap() error { return e.Err }

// Run is the mutable state of one triage run. It is created by the
// Orchestrator, mutated only by it, and safe to snapshot concurrently.
type Run struct {
	mu sync.RWMutex

	id        string
	query     string
	status    Status
	startedAt time.Time
	endedAt   time.Time

	processed map[string]struct{}
	threads   []gmail.Thread
	results   []llm.Classification
	errors    []ThreadError
	fatal     error
}

func newRun(id, query string) *Run {
	return &Run{
		id:        id,
		query:     query,
		status:    StatusPending,
		startedAt: time.Now(),
		processed: make(map[string]struct{}),
	}
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Status returns the current lifecycle stage.
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Snapshot is an immutable view of a run for rendering and status queries.
type Snapshot struct {
	ID        string
	Query     string
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
	Threads   []gmail.Thread
	Results   []llm.Classification
	Errors    []ThreadError
	Fatal     error
}

// Snapshot returns a copy of the run state safe to read without locking.
func (r *Run) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Snapshot{
		ID:        r.id,
		Query:     r.query,
		Status:    r.status,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
		Threads:   append([]gmail.Thread(nil), r.threads...),
		Results:   append([]llm.Classification(nil), r.results...),
		Errors:    append([]ThreadError(nil), r.errors...),
		Fatal:     r.fatal,
	}
}

// Thread returns the fetched snapshot for a thread id, if the run saw it.
func (r *Run) Thread(threadID string) (gmail.Thread, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.threads {
		if t.ID == threadID {
			return t, true
		}
	}
	return gmail.Thread{}, false
}

// Result returns the classification for a thread id, if one was produced.
func (r *Run) Result(threadID string) (llm.Classification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.results {
		if c.ThreadID == threadID {
			return c, true
		}
	}
	return llm.Classification{}, false
}

func (r *Run) setStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
	if s.Terminal() {
		r.endedAt = time.Now()
	}
}

// addThread records a fetched thread unless its id was already seen.
// It reports whether the thread was new.
func (r *Run) addThread(t gmail.Thread) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.processed[t.ID]; dup {
		return false
	}
	r.processed[t.ID] = struct{}{}
	r.threads = append(r.threads, t)
	return true
}

func (r *Run) setResults(results []llm.Classification, errs []ThreadError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = results
	r.errors = errs
}

func (r *Run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = err
	r.status = StatusFailed
	r.endedAt = time.Now()
}

// discardResults drops classification output from a cancelled run so its
// snapshot never presents results the user did not wait for.
func (r *Run) discardResults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = nil
	r.errors = nil
}
