package control

import (
	"log/slog"
	"time"

	"github.com/vietddude/crmgate/internal/core/ui"
)

// DefaultPages are the views a headless deployment registers.
var DefaultPages = []string{
	"dashboard",
	"companies",
	"company-details",
	"contacts",
	"opportunities",
	"opportunity-details",
	"interactions",
	"weekly-business",
	"weekly-detail",
	"events",
	"announcements",
}

// Options holds the presentation collaborators and process-level knobs.
// Nil collaborators fall back to the console implementations.
type Options struct {
	Notifier  ui.Notifier
	Navigator ui.Navigator
	Stale     ui.StaleNotifier
	Pages     []string
	Logger    *slog.Logger

	// StartRoute is the initial route of the console navigator.
	StartRoute string

	// ReportInterval controls the periodic stats summary; 0 disables it.
	ReportInterval time.Duration
}
