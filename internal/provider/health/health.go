// Package health tracks per-provider failure streaks and gates provider
// availability for the resolver's fallback cascade.
package health

import (
	"sync"
	"time"
)

// DefaultThreshold is how many consecutive failures mark a provider
// unavailable. A single success resets the streak.
const DefaultThreshold = 3

// State is a read-only snapshot of one provider's health.
type State struct {
	Name                string    `json:"name"`
	Available           bool      `json:"available"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastFailure         time.Time `json:"last_failure,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
}

// Tracker holds one mutable record per provider. Records are created lazily
// on first use and never deleted; an explicit Reset is the only way back to
// healthy besides a recorded success. Each record carries its own mutex so
// that updates for unrelated providers never serialize against each other.
type Tracker struct {
	threshold int

	mu      sync.RWMutex
	records map[string]*record
	order   []string
}

type record struct {
	mu          sync.Mutex
	failures    int
	lastSuccess time.Time
	lastFailure time.Time
	lastErr     string
}

func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{threshold: threshold, records: make(map[string]*record)}
}

func (t *Tracker) get(name string) *record {
	t.mu.RLock()
	r, ok := t.records[name]
	t.mu.RUnlock()
	if ok {
		return r
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok = t.records[name]; ok {
		return r
	}
	r = &record{}
	t.records[name] = r
	t.order = append(t.order, name)
	return r
}

func (t *Tracker) RecordSuccess(name string) {
	r := t.get(name)
	r.mu.Lock()
	r.failures = 0
	r.lastSuccess = time.Now()
	r.lastErr = ""
	r.mu.Unlock()
}

func (t *Tracker) RecordFailure(name string, err error) {
	r := t.get(name)
	r.mu.Lock()
	r.failures++
	r.lastFailure = time.Now()
	if err != nil {
		r.lastErr = err.Error()
	}
	r.mu.Unlock()
}

// Available reports whether the provider's failure streak is below the
// threshold. Unknown providers are available.
func (t *Tracker) Available(name string) bool {
	t.mu.RLock()
	r, ok := t.records[name]
	t.mu.RUnlock()
	if !ok {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures < t.threshold
}

// Reset clears the failure streak for one provider (admin action).
func (t *Tracker) Reset(name string) {
	r := t.get(name)
	r.mu.Lock()
	r.failures = 0
	r.lastErr = ""
	r.mu.Unlock()
}

// ResetAll clears every tracked provider.
func (t *Tracker) ResetAll() {
	t.mu.RLock()
	names := make([]string, len(t.order))
	copy(names, t.order)
	t.mu.RUnlock()
	for _, n := range names {
		t.Reset(n)
	}
}

// Snapshot returns per-provider states in first-use order, for the admin and
// observability surfaces. It never exposes the internal records.
func (t *Tracker) Snapshot() []State {
	t.mu.RLock()
	names := make([]string, len(t.order))
	copy(names, t.order)
	t.mu.RUnlock()

	out := make([]State, 0, len(names))
	for _, n := range names {
		r := t.get(n)
		r.mu.Lock()
		out = append(out, State{
			Name:                n,
			Available:           r.failures < t.threshold,
			ConsecutiveFailures: r.failures,
			LastSuccess:         r.lastSuccess,
			LastFailure:         r.lastFailure,
			LastError:           r.lastErr,
		})
		r.mu.Unlock()
	}
	return out
}
