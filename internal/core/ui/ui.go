// Package ui declares the presentation-side collaborators the gateway
// calls into. The gateway never renders anything itself.
package ui

import (
	"context"
	"time"
)

// Severity of a user-visible notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier shows a transient notice. Fire-and-forget; duration 0 means
// the surface's default.
type Notifier interface {
	Notify(message string, severity Severity, duration time.Duration)
}

// Navigator moves the user between routes.
type Navigator interface {
	// NavigateTo resolves route with params and loads it.
	NavigateTo(ctx context.Context, route string, params map[string]string) error

	// CurrentRoute returns the active route including its query, e.g. "companies?page=2".
	CurrentRoute() string

	// Reload performs a full reload of the current view.
	Reload()
}

// StaleNotifier toggles the "newer data available" indicator.
type StaleNotifier interface {
	ShowStale(show bool)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(message string, severity Severity, duration time.Duration)

func (f NotifyFunc) Notify(message string, severity Severity, duration time.Duration) {
	f(message, severity, duration)
}
