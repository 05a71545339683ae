// Package console provides log-backed presentation collaborators for
// running the gateway without a user interface.
package console

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/crmgate/internal/core/ui"
)

// Notifier writes notices to the log.
type Notifier struct {
	log *slog.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{log: logger.With("component", "notice")}
}

func (n *Notifier) Notify(message string, severity ui.Severity, duration time.Duration) {
	attrs := []any{"severity", string(severity)}
	if duration > 0 {
		attrs = append(attrs, "duration", duration)
	}

	switch severity {
	case ui.SeverityError:
		n.log.Error(message, attrs...)
	case ui.SeverityWarning:
		n.log.Warn(message, attrs...)
	default:
		n.log.Info(message, attrs...)
	}
}

// Navigator tracks the current route in memory and logs every move.
type Navigator struct {
	log *slog.Logger

	mu      sync.RWMutex
	current string
	reloads int
}

// NewNavigator creates a navigator positioned at route.
func NewNavigator(route string, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{current: route, log: logger.With("component", "navigator")}
}

func (n *Navigator) NavigateTo(ctx context.Context, route string, params map[string]string) error {
	n.mu.Lock()
	n.current = route + encodeParams(params)
	current := n.current
	n.mu.Unlock()

	n.log.Info("Navigated", "route", current)
	return nil
}

func (n *Navigator) CurrentRoute() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current
}

func (n *Navigator) Reload() {
	n.mu.Lock()
	n.reloads++
	n.mu.Unlock()
	n.log.Info("Reloaded current view", "route", n.CurrentRoute())
}

// Reloads returns how many times Reload ran.
func (n *Navigator) Reloads() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.reloads
}

// StaleNotifier logs changes of the stale-data indicator.
type StaleNotifier struct {
	log *slog.Logger
}

// NewStaleNotifier creates a stale indicator.
func NewStaleNotifier(logger *slog.Logger) *StaleNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaleNotifier{log: logger.With("component", "stale")}
}

func (s *StaleNotifier) ShowStale(show bool) {
	if show {
		s.log.Warn("Newer data is available, refresh to load it")
		return
	}
	s.log.Debug("Stale indicator cleared")
}
