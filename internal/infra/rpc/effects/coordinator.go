// Package effects reacts to call outcomes with user feedback and, after a
// successful write, a single refresh of the current view.
package effects

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/crmgate/internal/core/domain"
	"github.com/vietddude/crmgate/internal/core/ui"
)

const (
	DefaultDeleteMessage  = "Deleted successfully!"
	DefaultSuccessMessage = "Operation succeeded!"

	failurePrefix     = "Operation failed: "
	maxFailureMessage = 100
)

// RefreshHook invalidates loaded views and re-resolves the current route.
// message is the success notice that triggered it.
type RefreshHook func(ctx context.Context, message string) error

// Config controls notice timing.
type Config struct {
	RefreshDelay   time.Duration
	NoticeDuration time.Duration
	ReloadDelay    time.Duration
}

// Coordinator emits one notice per settled call that needs one and fires
// the refresh hook once per successful, non-opted-out write.
type Coordinator struct {
	cfg       Config
	notifier  ui.Notifier
	navigator ui.Navigator
	log       *slog.Logger

	mu   sync.RWMutex
	hook RefreshHook

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator creates a coordinator. navigator is only used for the
// full-reload fallback when no refresh hook is registered.
func NewCoordinator(cfg Config, notifier ui.Notifier, navigator ui.Navigator, logger *slog.Logger) *Coordinator {
	if cfg.NoticeDuration == 0 {
		cfg.NoticeDuration = 2 * time.Second
	}
	if cfg.ReloadDelay == 0 {
		cfg.ReloadDelay = 1500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:       cfg,
		notifier:  notifier,
		navigator: navigator,
		log:       logger.With("component", "effects"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetRefreshHook registers the hook; nil removes it.
func (c *Coordinator) SetRefreshHook(hook RefreshHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hook = hook
}

// AfterSuccess handles a 2xx response. It reports whether a refresh was scheduled.
func (c *Coordinator) AfterSuccess(op domain.Operation, env *domain.Envelope) bool {
	method := op.EffectiveMethod()
	if !method.IsMutating() || op.SkipRefresh {
		return false
	}

	msg := successMessage(method, env)
	c.notify(msg, ui.SeveritySuccess, c.cfg.NoticeDuration)

	c.mu.RLock()
	hook := c.hook
	c.mu.RUnlock()

	if hook == nil {
		c.schedule(c.cfg.ReloadDelay, func(ctx context.Context) {
			if c.navigator != nil {
				c.navigator.Reload()
			}
		})
		return true
	}

	c.schedule(c.cfg.RefreshDelay, func(ctx context.Context) {
		if err := hook(ctx, msg); err != nil {
			c.log.Error("Refresh after write failed", "op", op.String(), "error", err)
		}
	})
	return true
}

// AfterFailure emits the failure notice for err unless it is silenced: the
// call is a silent probe, the error is the canonical unauthorized signal,
// or session recovery is under way.
func (c *Coordinator) AfterFailure(op domain.Operation, err error, recovering bool) bool {
	if err == nil || op.Silent || recovering {
		return false
	}
	if errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrGatewayClosed) {
		return false
	}

	display := domain.Truncate(domain.DisplayMessage(err), maxFailureMessage)
	c.notify(failurePrefix+display, ui.SeverityError, 0)
	return true
}

func (c *Coordinator) notify(msg string, sev ui.Severity, d time.Duration) {
	if c.notifier != nil {
		c.notifier.Notify(msg, sev, d)
	}
}

func (c *Coordinator) schedule(delay time.Duration, fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-c.ctx.Done():
			return
		case <-timer.C:
		}
		fn(c.ctx)
	}()
}

// Close drops pending refreshes and waits for running ones.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

func successMessage(method domain.Method, env *domain.Envelope) string {
	if env != nil && env.Message != "" {
		return env.Message
	}
	if method == domain.MethodDelete {
		return DefaultDeleteMessage
	}
	return DefaultSuccessMessage
}
