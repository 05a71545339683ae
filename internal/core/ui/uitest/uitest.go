// Package uitest provides recording fakes of the ui collaborators.
package uitest

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/crmgate/internal/core/ui"
)

// Notice is one recorded notification.
type Notice struct {
	Message  string
	Severity ui.Severity
	Duration time.Duration
}

// Notifier records every notice.
type Notifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *Notifier) Notify(message string, severity ui.Severity, duration time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, Notice{Message: message, Severity: severity, Duration: duration})
}

// Notices returns a copy of the recorded notices.
func (n *Notifier) Notices() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

// Count returns how many notices had the given severity.
func (n *Notifier) Count(severity ui.Severity) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, x := range n.notices {
		if x.Severity == severity {
			c++
		}
	}
	return c
}

// Navigation is one recorded NavigateTo call.
type Navigation struct {
	Route  string
	Params map[string]string
}

// Navigator records navigations and reloads.
type Navigator struct {
	mu          sync.Mutex
	Current     string
	Err         error
	navigations []Navigation
	reloads     int
}

func (n *Navigator) NavigateTo(ctx context.Context, route string, params map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.navigations = append(n.navigations, Navigation{Route: route, Params: params})
	return n.Err
}

func (n *Navigator) CurrentRoute() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Current
}

func (n *Navigator) Reload() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reloads++
}

// Navigations returns a copy of the recorded navigations.
func (n *Navigator) Navigations() []Navigation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Navigation(nil), n.navigations...)
}

// Reloads returns how many times Reload was called.
func (n *Navigator) Reloads() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reloads
}

// StaleSignal records the stale indicator state.
type StaleSignal struct {
	mu      sync.Mutex
	shown   bool
	toggles []bool
}

func (s *StaleSignal) ShowStale(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = show
	s.toggles = append(s.toggles, show)
}

// Shown reports the current indicator state.
func (s *StaleSignal) Shown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown
}

// Toggles returns every ShowStale argument in order.
func (s *StaleSignal) Toggles() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.toggles...)
}
