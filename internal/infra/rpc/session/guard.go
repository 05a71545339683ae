// Package session centralises recovery from authentication failure.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/crmgate/internal/core/domain"
	"github.com/vietddude/crmgate/internal/core/ui"
	"github.com/vietddude/crmgate/internal/infra/storage"
)

// DefaultExpiredMessage is shown once when the session is invalidated.
const DefaultExpiredMessage = "Your session has expired or is invalid. Redirecting to the login page."

// Config controls the recovery side effects.
type Config struct {
	LoginRoute     string
	RedirectDelay  time.Duration
	NoticeDuration time.Duration
	Message        string
}

// Guard owns the one-shot "recovering" latch. The first authentication
// failure clears the credential, notifies the user and schedules a single
// redirect; every failure, first or not, yields domain.ErrUnauthorized.
type Guard struct {
	cfg       Config
	store     storage.CredentialStore
	notifier  ui.Notifier
	navigator ui.Navigator
	log       *slog.Logger

	recovering atomic.Bool

	mu       sync.Mutex
	redirect *time.Timer
	stopped  bool

	// OnRecover is called once, right after the latch flips.
	OnRecover func()
}

// NewGuard creates a guard.
func NewGuard(
	cfg Config,
	store storage.CredentialStore,
	notifier ui.Notifier,
	navigator ui.Navigator,
	logger *slog.Logger,
) *Guard {
	if cfg.LoginRoute == "" {
		cfg.LoginRoute = "/login.html"
	}
	if cfg.NoticeDuration == 0 {
		cfg.NoticeDuration = 3 * time.Second
	}
	if cfg.Message == "" {
		cfg.Message = DefaultExpiredMessage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		cfg:       cfg,
		store:     store,
		notifier:  notifier,
		navigator: navigator,
		log:       logger.With("component", "session"),
	}
}

// Recovering reports whether recovery has started. Once true it stays true
// until the process ends.
func (g *Guard) Recovering() bool {
	return g.recovering.Load()
}

// Token returns the current credential, or "" if none is stored or the
// session is being recovered.
func (g *Guard) Token(ctx context.Context) string {
	if g.store == nil || g.Recovering() {
		return ""
	}
	tok, err := g.store.Get(ctx)
	if err != nil {
		g.log.Warn("Failed to read credential", "error", err)
		return ""
	}
	return tok
}

// HandleAuthFailure records an authentication failure and returns the
// canonical domain.ErrUnauthorized.
func (g *Guard) HandleAuthFailure(ctx context.Context, statusCode int) error {
	if !g.recovering.CompareAndSwap(false, true) {
		return domain.ErrUnauthorized
	}

	g.log.Warn("Session rejected, starting recovery", "status", statusCode, "login_route", g.cfg.LoginRoute)

	if g.store != nil {
		if err := g.store.Clear(context.WithoutCancel(ctx)); err != nil {
			g.log.Error("Failed to clear credential", "error", err)
		}
	}
	if g.notifier != nil {
		g.notifier.Notify(g.cfg.Message, ui.SeverityError, g.cfg.NoticeDuration)
	}
	if g.OnRecover != nil {
		g.OnRecover()
	}

	g.mu.Lock()
	if !g.stopped {
		g.redirect = time.AfterFunc(g.cfg.RedirectDelay, g.navigateToLogin)
	}
	g.mu.Unlock()

	return domain.ErrUnauthorized
}

func (g *Guard) navigateToLogin() {
	if g.navigator == nil {
		return
	}
	if err := g.navigator.NavigateTo(context.Background(), g.cfg.LoginRoute, nil); err != nil {
		g.log.Error("Login redirect failed", "error", err)
	}
}

// Stop cancels a pending redirect. The latch is not reset.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	if g.redirect != nil {
		g.redirect.Stop()
	}
}
