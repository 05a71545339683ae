package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/crmgate/internal/core/config"
	"github.com/vietddude/crmgate/internal/core/domain"
	"github.com/vietddude/crmgate/internal/core/ui"
	"github.com/vietddude/crmgate/internal/infra/rpc/budget"
	"github.com/vietddude/crmgate/internal/infra/rpc/dispatch"
	"github.com/vietddude/crmgate/internal/infra/rpc/effects"
	"github.com/vietddude/crmgate/internal/infra/rpc/provider"
	"github.com/vietddude/crmgate/internal/infra/rpc/routing"
	"github.com/vietddude/crmgate/internal/infra/rpc/session"
	"github.com/vietddude/crmgate/internal/infra/storage"
	"github.com/vietddude/crmgate/internal/infra/storage/memory"
	"github.com/vietddude/crmgate/internal/metrics"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("gateway already started")

// Deps are the gateway's collaborators. Nil fields get defaults: an HTTP
// transport for cfg.Server, an in-memory credential store seeded with
// cfg.Server.Token, and no-op notifier/navigator.
type Deps struct {
	Transport provider.Transport
	Store     storage.CredentialStore
	Notifier  ui.Notifier
	Navigator ui.Navigator
	Logger    *slog.Logger
}

// Stats is a point-in-time snapshot of the gateway.
type Stats struct {
	Transport  string
	QueueDepth int
	Recovering bool
	Status     provider.ProviderStatus
	Monitor    *provider.MonitorStats
	Usage      budget.UsageStats
}

// Gateway serializes, paces and retries calls to the API server and owns
// the session and write-effect side effects. Create one per process.
type Gateway struct {
	cfg       config.AppConfig
	transport provider.Transport
	monitor   *provider.ProviderMonitor
	queue     *dispatch.Queue
	retrier   *routing.Retrier
	guard     *session.Guard
	effects   *effects.Coordinator
	usage     *budget.Tracker
	log       *slog.Logger

	started   atomic.Bool
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewGateway builds a gateway. The rate-limit settings are copied and
// never change afterwards. Calls may be submitted before Start; they are
// dispatched once it runs.
func NewGateway(cfg *config.AppConfig, deps Deps) (*Gateway, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	c := *cfg
	c.RateLimit.ApplyDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := deps.Transport
	if transport == nil {
		if c.Server.BaseURL == "" {
			return nil, fmt.Errorf("server.base_url is required")
		}
		transport = provider.NewHTTPProvider("api", c.Server.BaseURL, c.Server.Timeout)
	}

	store := deps.Store
	if store == nil {
		store = memory.NewCredentialStore(c.Session.TokenKey, c.Server.Token)
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = ui.NotifyFunc(func(string, ui.Severity, time.Duration) {})
	}

	g := &Gateway{
		cfg:       c,
		transport: transport,
		usage:     budget.NewTracker(),
		log:       logger.With("component", "gateway"),
	}
	if hp, ok := transport.(*provider.HTTPProvider); ok {
		g.monitor = hp.Monitor
	}

	g.retrier = routing.NewRetrier(routing.RetryConfig{
		MaxRetries:      c.RateLimit.MaxRetries,
		BackoffBase:     c.RateLimit.BackoffBase,
		BackoffMultiple: 2.0,
	})
	g.retrier.OnRetry = g.onRetry

	g.guard = session.NewGuard(session.Config{
		LoginRoute:    c.Session.LoginRoute,
		RedirectDelay: c.Session.RedirectDelay,
	}, store, notifier, deps.Navigator, logger)
	g.guard.OnRecover = metrics.AuthRecoveriesTotal.Inc

	g.effects = effects.NewCoordinator(effects.Config{
		RefreshDelay:   c.Writes.RefreshDelay,
		NoticeDuration: c.Writes.NoticeDuration,
		ReloadDelay:    c.Writes.ReloadDelay,
	}, notifier, deps.Navigator, logger)

	g.queue = dispatch.NewQueue(dispatch.Config{
		MinInterval: c.RateLimit.MinInterval,
		Serial:      c.RateLimit.Serial,
	}, g.dispatch, logger)
	g.queue.OnDispatch = g.onDispatch

	return g, nil
}

// Start launches the dispatch worker. ctx bounds the gateway's lifetime.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	if err := g.queue.Start(runCtx); err != nil {
		cancel()
		return err
	}
	g.log.Info("Gateway started",
		"transport", g.transport.GetName(),
		"min_interval", g.cfg.RateLimit.MinInterval,
		"max_retries", g.cfg.RateLimit.MaxRetries,
		"serial", g.cfg.RateLimit.Serial,
	)
	return nil
}

// Close cancels in-flight backoff waits, settles queued calls with
// domain.ErrGatewayClosed and drops pending timers. Safe to call twice.
func (g *Gateway) Close() error {
	var err error
	g.closeOnce.Do(func() {
		if g.cancel != nil {
			g.cancel()
		}
		g.queue.Close()
		g.guard.Stop()
		g.effects.Close()
		err = g.transport.Close()
		g.log.Info("Gateway closed")
	})
	return err
}

// SetRefreshHook registers the hook run after each successful write.
func (g *Gateway) SetRefreshHook(hook effects.RefreshHook) {
	g.effects.SetRefreshHook(hook)
}

// Recovering reports whether session recovery has started.
func (g *Gateway) Recovering() bool {
	return g.guard.Recovering()
}

// Call submits op and waits for its result. If ctx ends first Call
// returns ctx.Err(); the call itself still runs to completion.
func (g *Gateway) Call(ctx context.Context, op Operation) (*domain.Envelope, error) {
	call := domain.NewQueuedCall(op)
	done := g.queue.Submit(call)
	metrics.QueueDepth.Set(float64(g.queue.Len()))

	select {
	case res := <-done:
		return res.Envelope, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Probe fetches the server's last-write timestamp. It never notifies the
// user and never triggers a refresh.
func (g *Gateway) Probe(ctx context.Context) (*domain.StatusEnvelope, error) {
	env, err := g.Call(ctx, Operation{
		Method:      domain.MethodGet,
		Path:        g.cfg.Polling.StatusPath,
		SkipRefresh: true,
		Silent:      true,
	})
	if err != nil {
		return nil, err
	}

	var status domain.StatusEnvelope
	if err := json.Unmarshal(env.Raw, &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// Stats returns a snapshot for health reporting.
func (g *Gateway) Stats() Stats {
	s := Stats{
		Transport:  g.transport.GetName(),
		QueueDepth: g.queue.Len(),
		Recovering: g.guard.Recovering(),
		Status:     provider.StatusHealthy,
		Usage:      g.usage.GetUsage(),
	}
	if g.monitor != nil {
		ms := g.monitor.GetStats()
		s.Monitor = &ms
		s.Status = ms.Status
	}
	if s.Recovering {
		s.Status = provider.StatusBlocked
	}
	return s
}

// Dashboard returns a formatted summary of Stats.
func (g *Gateway) Dashboard() string {
	s := g.Stats()
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\n=== Gateway Dashboard (%s) ===\n\n", s.Transport))
	sb.WriteString(fmt.Sprintf("Status:      %s\n", s.Status))
	sb.WriteString(fmt.Sprintf("Queue depth: %d\n", s.QueueDepth))
	sb.WriteString(fmt.Sprintf("Recovering:  %v\n", s.Recovering))

	if s.Monitor != nil {
		sb.WriteString("\nUpstream:\n")
		sb.WriteString(fmt.Sprintf("  Avg latency: %v\n", s.Monitor.AverageLatency))
		sb.WriteString(fmt.Sprintf("  Requests/h:  %d\n", s.Monitor.RequestsLast1Hour))
		sb.WriteString(fmt.Sprintf("  429s:        %d\n", s.Monitor.ThrottleCount429))
		sb.WriteString(fmt.Sprintf("  401s/403s:   %d/%d\n", s.Monitor.AuthFailures401, s.Monitor.AuthFailures403))
		if s.Monitor.RetryAfter > 0 {
			sb.WriteString(fmt.Sprintf("  Retry after: %v\n", s.Monitor.RetryAfter))
		}
	}

	sb.WriteString(fmt.Sprintf("\nCalls: %d total, %d this hour, %d retries\n",
		s.Usage.TotalCalls, s.Usage.CallsThisHour, s.Usage.Retries))
	for _, k := range budget.SortedKeys(s.Usage.ByOutcome) {
		sb.WriteString(fmt.Sprintf("  %-12s %d\n", k, s.Usage.ByOutcome[k]))
	}
	return sb.String()
}

func (g *Gateway) dispatch(ctx context.Context, call *domain.QueuedCall) {
	start := time.Now()
	op := call.Op
	method := string(op.EffectiveMethod())

	resp, outcome, err := g.retrier.Do(ctx, call, func(ctx context.Context) (*provider.Response, error) {
		return g.transport.Execute(ctx, withRequestID(op, call.ID), g.guard.Token(ctx))
	})

	res := g.settle(ctx, op, resp, outcome, err)
	label := outcomeLabel(outcome, res.Err)

	metrics.CallsTotal.WithLabelValues(method, label).Inc()
	metrics.CallLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	g.usage.RecordCall(method, label)

	if res.Err != nil {
		g.log.Debug("Call failed", "id", call.ID, "op", op.String(), "attempts", call.Attempt()+1, "error", res.Err)
	}
	call.Settle(res)
}

// settle turns the final attempt into the caller's result and fires the
// matching side effects.
func (g *Gateway) settle(
	ctx context.Context,
	op Operation,
	resp *provider.Response,
	outcome routing.Outcome,
	err error,
) domain.Result {
	var res domain.Result

	switch {
	case err != nil:
		if errors.Is(err, domain.ErrServerBusy) || errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			res.Err = err
		} else {
			res.Err = &domain.RequestError{Message: err.Error(), Err: err}
		}

	case outcome == routing.OutcomeAuthFailure:
		res.Err = g.guard.HandleAuthFailure(ctx, resp.StatusCode)

	default:
		env, decodeErr := decodeEnvelope(resp)
		switch {
		case decodeErr != nil:
			res.Err = decodeErr
		case outcome == routing.OutcomeSuccess:
			res.Envelope = env
			g.effects.AfterSuccess(op, env)
		default:
			res.Err = &domain.RequestError{
				StatusCode: resp.StatusCode,
				Message:    env.Cause(resp.StatusCode, resp.Status),
			}
		}
	}

	if res.Err != nil {
		g.effects.AfterFailure(op, res.Err, g.guard.Recovering())
	}
	return res
}

func decodeEnvelope(resp *provider.Response) (*domain.Envelope, error) {
	if !resp.IsJSON() || len(resp.Body) == 0 {
		return &domain.Envelope{Success: resp.OK(), Raw: resp.Body}, nil
	}

	if !json.Valid(resp.Body) {
		if !resp.OK() {
			return nil, &domain.RequestError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("request failed with status %d and the response is not valid JSON", resp.StatusCode),
			}
		}
		return nil, &domain.RequestError{
			StatusCode: resp.StatusCode,
			Message:    "request succeeded but the response JSON is invalid",
		}
	}

	var env domain.Envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		// Valid JSON that is not an object, e.g. a bare list.
		env = domain.Envelope{Success: resp.OK()}
	}
	env.Raw = resp.Body
	return &env, nil
}

func withRequestID(op Operation, id string) Operation {
	headers := make(map[string]string, len(op.Headers)+1)
	for k, v := range op.Headers {
		headers[k] = v
	}
	if _, ok := headers[provider.HeaderRequestID]; !ok {
		headers[provider.HeaderRequestID] = id
	}
	op.Headers = headers
	return op
}

func outcomeLabel(outcome routing.Outcome, err error) string {
	switch {
	case errors.Is(err, domain.ErrServerBusy):
		return "busy"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case err != nil && outcome == routing.OutcomeSuccess:
		return "malformed"
	case err != nil:
		return "failed"
	default:
		return outcome.String()
	}
}

func (g *Gateway) onRetry(call *domain.QueuedCall, attempt int, wait time.Duration) {
	metrics.RetriesTotal.WithLabelValues(string(call.Op.EffectiveMethod())).Inc()
	g.usage.RecordRetry()
	g.log.Warn("Server busy, retrying",
		"id", call.ID,
		"op", call.Op.String(),
		"attempt", attempt,
		"max_retries", g.cfg.RateLimit.MaxRetries,
		"backoff", wait,
	)
}

func (g *Gateway) onDispatch(call *domain.QueuedCall, waited time.Duration) {
	metrics.DispatchWait.Observe(waited.Seconds())
	metrics.QueueDepth.Set(float64(g.queue.Len()))
	g.log.Debug("Dispatching call", "id", call.ID, "op", call.Op.String(), "waited", waited)
}
