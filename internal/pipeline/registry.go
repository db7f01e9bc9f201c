// Package pipeline drives the two-stage market-intelligence workflow per
// keyword: ad scraping, then traffic enrichment, with run state tracked in an
// in-memory registry and progress fanned out over the event bus.
package pipeline

import (
	"sync"
	"time"
)

// Status is the lifecycle of one keyword's run.
type Status string

// Run statuses. Completed and Failed are terminal.
const (
	StatusNotStarted    Status = "not_started"
	StatusRunningStep1  Status = "running_step1"
	StatusStep1Complete Status = "step1_complete"
	StatusRunningStep2  Status = "running_step2"
	StatusStep2Complete Status = "step2_complete"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// Active reports whether a run in this status is still in flight.
func (s Status) Active() bool {
	return s == StatusRunningStep1 || s == StatusRunningStep2
}

// Run is the snapshot of one keyword's pipeline execution.
type Run struct {
	Keyword         string     `json:"keyword"`
	Status          Status     `json:"status"`
	Step1Products   int        `json:"step1_products"`
	Step2Enriched   int        `json:"step2_enriched"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	Errors          []string   `json:"errors"`
}

// Registry maps keywords to their current run. All mutation happens through
// Update under the registry lock; reads hand out copies so callers never see
// a torn snapshot.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*Run
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

// Get returns a copy of the keyword's run, if resident.
func (r *Registry) Get(keyword string) (Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[keyword]
	if !ok {
		return Run{}, false
	}
	return copyRun(run), true
}

// Put stores the run, replacing any resident entry.
func (r *Registry) Put(run Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := copyRun(&run)
	r.runs[run.Keyword] = &cp
}

// BeginRun registers a fresh run for the keyword unless one is already
// active, in which case the active snapshot is returned with started=false.
// The new entry is handed back already marked running_step1, so a racing
// duplicate submission observes "already running".
func (r *Registry) BeginRun(keyword string) (Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.runs[keyword]; ok && existing.Status.Active() {
		return copyRun(existing), false
	}
	run := &Run{
		Keyword: keyword,
		Status:  StatusRunningStep1,
		Errors:  []string{},
	}
	r.runs[keyword] = run
	return copyRun(run), true
}

// Update applies fn to the resident run under the lock.
func (r *Registry) Update(keyword string, fn func(*Run)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[keyword]; ok {
		fn(run)
	}
}

// Delete removes the keyword's entry.
func (r *Registry) Delete(keyword string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, keyword)
}

// ActiveCount reports how many resident runs are still in flight.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, run := range r.runs {
		if run.Status.Active() {
			n++
		}
	}
	return n
}

func copyRun(run *Run) Run {
	cp := *run
	cp.Errors = append([]string(nil), run.Errors...)
	return cp
}
