package telemetry

import (
	"sort"
	"sync"
	"time"
)

// HealthTracker records heartbeats of background loops. A loop is unhealthy once it misses
// its deadline.
type HealthTracker struct {
	mu    sync.Mutex
	loops map[string]*Heartbeat
	now   func() time.Time
}

// Heartbeat is the handle a loop uses to report liveness.
type Heartbeat struct {
	tracker *HealthTracker
	name    string
	timeout time.Duration
	last    time.Time
	err     string
}

// HealthReport is served by /healthz.
type HealthReport struct {
	Status   string       `json:"status"`
	Endpoint string       `json:"endpoint,omitempty"`
	Checks   []LoopHealth `json:"checks,omitempty"`
}

// LoopHealth is the state of one registered loop.
type LoopHealth struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	LastBeat  time.Time `json:"lastBeat,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		loops: make(map[string]*Heartbeat),
		now:   time.Now,
	}
}

// Register adds a loop that must beat at least every timeout.
func (t *HealthTracker) Register(name string, timeout time.Duration) *Heartbeat {
	t.mu.Lock()
	defer t.mu.Unlock()
	beat := &Heartbeat{tracker: t, name: name, timeout: timeout}
	t.loops[name] = beat
	return beat
}

// Beat marks the loop alive and clears its last error.
func (b *Heartbeat) Beat() {
	b.tracker.mu.Lock()
	b.last = b.tracker.now()
	b.err = ""
	b.tracker.mu.Unlock()
}

// Fail marks the loop alive but records the error of its last iteration.
func (b *Heartbeat) Fail(err error) {
	b.tracker.mu.Lock()
	b.last = b.tracker.now()
	if err != nil {
		b.err = err.Error()
	}
	b.tracker.mu.Unlock()
}

// Report evaluates every loop. Any stale loop makes the whole report unhealthy; a loop whose
// last iteration failed is reported as degraded without failing the report.
func (t *HealthTracker) Report() HealthReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	report := HealthReport{Status: "ok"}
	for _, beat := range t.loops {
		check := LoopHealth{Name: beat.name, Status: "ok", LastBeat: beat.last, LastError: beat.err}
		switch {
		case beat.last.IsZero() || now.Sub(beat.last) > beat.timeout:
			check.Status = "stale"
			report.Status = "unhealthy"
		case beat.err != "":
			check.Status = "degraded"
		}
		report.Checks = append(report.Checks, check)
	}
	sort.Slice(report.Checks, func(i, j int) bool { return report.Checks[i].Name < report.Checks[j].Name })
	return report
}
