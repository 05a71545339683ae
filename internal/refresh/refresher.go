// Package refresh reloads the current view after a write.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/vietddude/crmgate/internal/core/ui"
	"github.com/vietddude/crmgate/internal/metrics"
)

// DefaultRoute is used when the current route is empty.
const DefaultRoute = "dashboard"

// PollerHandle is the part of the poller a refresh resets.
type PollerHandle interface {
	Refreshed()
}

// Refresher invalidates list pages and re-resolves the current route.
type Refresher struct {
	registry  PageRegistry
	navigator ui.Navigator
	notifier  ui.Notifier
	poller    PollerHandle
	log       *slog.Logger
}

// NewRefresher creates a refresher. registry and poller may be nil.
func NewRefresher(
	registry PageRegistry,
	navigator ui.Navigator,
	notifier ui.Notifier,
	poller PollerHandle,
	logger *slog.Logger,
) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		registry:  registry,
		navigator: navigator,
		notifier:  notifier,
		poller:    poller,
		log:       logger.With("component", "refresh"),
	}
}

// SetPoller attaches the poller after construction.
func (r *Refresher) SetPoller(p PollerHandle) {
	r.poller = p
}

// RefreshCurrentView is the stock refresh hook. On navigation failure it
// notifies the user and leaves the stale signal as it was.
func (r *Refresher) RefreshCurrentView(ctx context.Context, message string) error {
	r.log.Debug("Refreshing current view", "reason", message)

	invalidated := 0
	if r.registry != nil {
		for _, page := range r.registry.Pages() {
			if IsListPage(page) {
				r.registry.MarkUnloaded(page)
				invalidated++
			}
		}
	}

	route, params := ParseRoute(r.navigator.CurrentRoute())
	if err := r.navigator.NavigateTo(ctx, route, params); err != nil {
		metrics.ViewRefreshesTotal.WithLabelValues("error").Inc()
		if r.notifier != nil {
			r.notifier.Notify("Refresh failed: "+err.Error(), ui.SeverityError, 0)
		}
		return fmt.Errorf("navigate to %s: %w", route, err)
	}

	if r.poller != nil {
		r.poller.Refreshed()
	}
	metrics.ViewRefreshesTotal.WithLabelValues("ok").Inc()
	r.log.Info("View refreshed", "route", route, "invalidated", invalidated)
	return nil
}

// ParseRoute splits "page?k=v" into the page id and its parameters. A
// leading "#" is ignored and an empty page becomes DefaultRoute.
func ParseRoute(raw string) (string, map[string]string) {
	raw = strings.TrimPrefix(raw, "#")
	page, query, _ := strings.Cut(raw, "?")
	if page == "" {
		page = DefaultRoute
	}

	params := map[string]string{}
	if query == "" {
		return page, params
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return page, params
	}
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[len(v)-1]
		}
	}
	return page, params
}
