package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/crmgate/internal/core/config"
	"github.com/vietddude/crmgate/internal/core/worker"
	"github.com/vietddude/crmgate/internal/health"
	"github.com/vietddude/crmgate/internal/infra/console"
	redisclient "github.com/vietddude/crmgate/internal/infra/redis"
	"github.com/vietddude/crmgate/internal/infra/rpc"
	"github.com/vietddude/crmgate/internal/infra/storage"
	"github.com/vietddude/crmgate/internal/polling"
	"github.com/vietddude/crmgate/internal/refresh"
)

// App wires the gateway, the view refresher, the poller and the health
// server, and owns their lifecycle.
type App struct {
	cfg          *config.AppConfig
	gateway      *rpc.Gateway
	registry     *refresh.MemoryRegistry
	refresher    *refresh.Refresher
	tracker      *polling.Tracker
	poller       *polling.Poller
	reporter     *worker.Reporter
	healthMon    *health.Monitor
	healthServer *health.Server
	redisClient  *redisclient.Client
	log          *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewApp creates an App with all dependencies initialized.
func NewApp(cfg *config.AppConfig, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{cfg: cfg, log: logger.With("component", "app")}

	// 1. Credential store
	var store storage.CredentialStore
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis, cfg.Session.TokenKey, cfg.Session.ExtraKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		if cfg.Server.Token != "" {
			if err := client.Set(context.Background(), cfg.Server.Token); err != nil {
				client.Close()
				return nil, fmt.Errorf("failed to seed credential: %w", err)
			}
		}
		a.redisClient = client
		store = client
		a.log.Info("Using Redis credential store")
	}

	// 2. Presentation collaborators
	notifier := opts.Notifier
	if notifier == nil {
		notifier = console.NewNotifier(logger)
	}
	navigator := opts.Navigator
	if navigator == nil {
		route := opts.StartRoute
		if route == "" {
			route = refresh.DefaultRoute
		}
		navigator = console.NewNavigator(route, logger)
	}
	stale := opts.Stale
	if stale == nil {
		stale = console.NewStaleNotifier(logger)
	}

	// 3. Gateway
	gw, err := rpc.NewGateway(cfg, rpc.Deps{
		Store:     store,
		Notifier:  notifier,
		Navigator: navigator,
		Logger:    logger,
	})
	if err != nil {
		a.closeRedis()
		return nil, err
	}
	a.gateway = gw

	// 4. Refresher and poller
	pages := opts.Pages
	if pages == nil {
		pages = DefaultPages
	}
	a.registry = refresh.NewMemoryRegistry(pages...)
	a.refresher = refresh.NewRefresher(a.registry, navigator, notifier, nil, logger)
	gw.SetRefreshHook(a.refresher.RefreshCurrentView)

	a.tracker = polling.NewTracker(cfg.Polling.ActivityThrottle)
	if cfg.Polling.IsEnabled() {
		a.poller = polling.NewPoller(
			polling.NewController(polling.FromAppConfig(cfg.Polling)),
			a.tracker,
			gw,
			stale,
			logger,
		)
		a.refresher.SetPoller(a.poller)
		a.tracker.OnVisibilityChange(func(bool) { a.poller.Restart() })
	}

	// 5. Health and reporting
	a.reporter = worker.NewReporter(gw, opts.ReportInterval, logger)
	if cfg.Server.HealthPort > 0 {
		var pollerState health.PollerState
		if a.poller != nil {
			pollerState = a.poller
		}
		a.healthMon = health.NewMonitor(gw, pollerState)
		a.healthServer = health.NewServer(a.healthMon, cfg.Server.HealthPort, a.tracker, a.Refresh)
	}

	return a, nil
}

// Gateway returns the application's gateway.
func (a *App) Gateway() *rpc.Gateway { return a.gateway }

// Tracker returns the presence tracker fed by the embedding surface.
func (a *App) Tracker() *polling.Tracker { return a.tracker }

// Registry returns the page registry.
func (a *App) Registry() *refresh.MemoryRegistry { return a.registry }

// Poller returns the poller, or nil when polling is disabled.
func (a *App) Poller() *polling.Poller { return a.poller }

// Refresh reloads the current view on explicit request.
func (a *App) Refresh(ctx context.Context) error {
	return a.refresher.RefreshCurrentView(ctx, "manual refresh")
}

// Start starts all components. It returns once they are launched.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.group != nil {
		return errors.New("app already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	a.cancel = cancel
	a.group = g

	if err := a.gateway.Start(gctx); err != nil {
		cancel()
		return err
	}

	if a.poller != nil {
		g.Go(func() error { return a.poller.Run(gctx) })
	}

	g.Go(func() error {
		a.reporter.Start(gctx)
		return nil
	})

	if a.healthServer != nil {
		addr, err := a.healthServer.Listen()
		if err != nil {
			cancel()
			return fmt.Errorf("health server: %w", err)
		}
		a.log.Info("Health server listening", "addr", addr.String())
		g.Go(func() error {
			if err := a.healthServer.Serve(); err != nil {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
	}

	a.log.Info("App started",
		"base_url", a.cfg.Server.BaseURL,
		"polling", a.poller != nil,
	)
	return nil
}

// Wait blocks until a component fails or the app is stopped.
func (a *App) Wait() error {
	a.mu.Lock()
	g := a.group
	a.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Stop tears components down in reverse start order.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping app...")

	var errs []error
	if a.healthServer != nil {
		if err := a.healthServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health server: %w", err))
		}
	}

	a.mu.Lock()
	cancel, g := a.cancel, a.group
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if g != nil {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}

	if err := a.gateway.Close(); err != nil {
		errs = append(errs, fmt.Errorf("gateway: %w", err))
	}
	if err := a.closeRedis(); err != nil {
		errs = append(errs, fmt.Errorf("redis: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) closeRedis() error {
	if a.redisClient == nil {
		return nil
	}
	return a.redisClient.Close()
}
