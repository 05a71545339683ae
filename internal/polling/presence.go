package polling

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Tracker is the stock EnvironmentProbe. The embedding surface feeds it
// activity, visibility and dialog signals.
type Tracker struct {
	mu           sync.RWMutex
	lastActivity time.Time
	foreground   bool
	dialogOpen   bool
	listeners    []func(foreground bool)

	activity *rate.Sometimes
	now      func() time.Time
}

// NewTracker creates a tracker that starts in the foreground with fresh
// activity. Activity updates closer together than throttle are dropped.
func NewTracker(throttle time.Duration) *Tracker {
	return &Tracker{
		lastActivity: time.Now(),
		foreground:   true,
		activity:     &rate.Sometimes{Interval: throttle},
		now:          time.Now,
	}
}

// RecordActivity notes user input.
func (t *Tracker) RecordActivity() {
	t.activity.Do(func() {
		t.mu.Lock()
		t.lastActivity = t.now()
		t.mu.Unlock()
	})
}

// SetForeground records a visibility change. Listeners run only when the
// state actually changes.
func (t *Tracker) SetForeground(foreground bool) {
	t.mu.Lock()
	if t.foreground == foreground {
		t.mu.Unlock()
		return
	}
	t.foreground = foreground
	listeners := append([]func(bool){}, t.listeners...)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(foreground)
	}
}

// SetDialogOpen records whether an editing dialog is shown.
func (t *Tracker) SetDialogOpen(open bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialogOpen = open
}

// OnVisibilityChange registers fn to run after every visibility change.
func (t *Tracker) OnVisibilityChange(fn func(foreground bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Tracker) IsForeground() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.foreground
}

func (t *Tracker) TimeSinceLastActivity() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.now().Sub(t.lastActivity)
}

func (t *Tracker) IsDialogOpen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dialogOpen
}
