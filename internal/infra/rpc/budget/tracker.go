// Package budget tracks how the gateway spends its call budget: settled
// calls per method and outcome, and the rolling hourly rate.
package budget

import (
	"sort"
	"sync"
	"time"
)

// UsageStats holds call usage statistics.
type UsageStats struct {
	TotalCalls    int
	CallsThisHour int
	Retries       int
	ByMethod      map[string]int
	ByOutcome     map[string]int
	HourStartedAt time.Time
}

// Tracker records settled calls and retries.
type Tracker struct {
	mu            sync.RWMutex
	totalCalls    int
	callsThisHour int
	hourStartTime time.Time
	retries       int
	methodCalls   map[string]int
	outcomeCalls  map[string]int

	now func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	t := &Tracker{
		methodCalls:  make(map[string]int),
		outcomeCalls: make(map[string]int),
		now:          time.Now,
	}
	t.hourStartTime = t.now()
	return t
}

// RecordCall records one settled call.
func (t *Tracker) RecordCall(method, outcome string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollLocked()
	t.totalCalls++
	t.callsThisHour++
	t.methodCalls[method]++
	t.outcomeCalls[outcome]++
}

// RecordRetry records one retry attempt.
func (t *Tracker) RecordRetry() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retries++
}

func (t *Tracker) rollLocked() {
	if t.now().Sub(t.hourStartTime) >= time.Hour {
		t.callsThisHour = 0
		t.hourStartTime = t.now()
	}
}

// GetUsage returns a snapshot.
func (t *Tracker) GetUsage() UsageStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollLocked()
	stats := UsageStats{
		TotalCalls:    t.totalCalls,
		CallsThisHour: t.callsThisHour,
		Retries:       t.retries,
		ByMethod:      make(map[string]int, len(t.methodCalls)),
		ByOutcome:     make(map[string]int, len(t.outcomeCalls)),
		HourStartedAt: t.hourStartTime,
	}
	for k, v := range t.methodCalls {
		stats.ByMethod[k] = v
	}
	for k, v := range t.outcomeCalls {
		stats.ByOutcome[k] = v
	}
	return stats
}

// Reset clears all counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalCalls = 0
	t.callsThisHour = 0
	t.retries = 0
	t.hourStartTime = t.now()
	t.methodCalls = make(map[string]int)
	t.outcomeCalls = make(map[string]int)
}

// SortedKeys returns the keys of m in order, for stable output.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
