package gmail

import (
	"sync"
	"time"
)

// Phase is the lifecycle of a long-running mailbox operation.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseDone    Phase = "done"
	PhaseError   Phase = "error"
)

// Progress is a snapshot of a tracker.
type Progress struct {
	Phase     Phase      `json:"phase"`
	Processed int        `json:"processed"`
	Total     int        `json:"total"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at,omitempty"`
	Result    *ScanResult `json:"result,omitempty"`
}

// Tracker records the progress of a background scan so the API can report
// it. It satisfies the Reset contract of the auth package: when the last
// account signs out, the tracker forgets everything it learned about that
// mailbox.
type Tracker struct {
	mu        sync.Mutex
	phase     Phase
	processed int
	total     int
	errMsg    string
	startedAt time.Time
	result    *ScanResult
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{phase: PhaseIdle}
}

// TryStart transitions the tracker to running. It reports false when a run
// is already in progress, so concurrent scan requests do not double-run.
func (t *Tracker) TryStart(total int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase == PhaseRunning {
		return false
	}
	t.phase = PhaseRunning
	t.processed = 0
	t.total = total
	t.errMsg = ""
	t.startedAt = time.Now()
	t.result = nil
	return true
}

// SetTotal updates the expected item count mid-run.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	t.total = total
	t.mu.Unlock()
}

// Advance increments the processed count.
func (t *Tracker) Advance() {
	t.mu.Lock()
	t.processed++
	t.mu.Unlock()
}

// Finish records the result and marks the run done.
func (t *Tracker) Finish(result *ScanResult) {
	t.mu.Lock()
	t.phase = PhaseDone
	t.result = result
	t.mu.Unlock()
}

// Fail marks the run failed.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	t.phase = PhaseError
	if err != nil {
		t.errMsg = err.Error()
	}
	t.mu.Unlock()
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Progress{
		Phase:     t.phase,
		Processed: t.processed,
		Total:     t.total,
		Error:     t.errMsg,
		StartedAt: t.startedAt,
		Result:    t.result,
	}
}

// Reset returns the tracker to its initial state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.phase = PhaseIdle
	t.processed = 0
	t.total = 0
	t.errMsg = ""
	t.startedAt = time.Time{}
	t.result = nil
	t.mu.Unlock()
}
