package polling

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/crmgate/internal/core/domain"
	"github.com/vietddude/crmgate/internal/core/ui"
	"github.com/vietddude/crmgate/internal/metrics"
)

// ErrAlreadyRunning is returned by a second Start or Run.
var ErrAlreadyRunning = errors.New("polling: poller is already running")

// Prober fetches the server's last-write timestamp without side effects.
type Prober interface {
	Probe(ctx context.Context) (*domain.StatusEnvelope, error)
}

// Poller is a self-re-arming timer loop that watches the server for writes
// made elsewhere and raises the stale-data signal. It never refreshes on
// its own.
type Poller struct {
	controller *Controller
	env        EnvironmentProbe
	prober     Prober
	stale      ui.StaleNotifier
	log        *slog.Logger

	mu          sync.Mutex
	lastKnownAt int64
	staleShown  bool

	running atomic.Bool
	restart chan struct{}
	done    chan struct{}

	// OnTick is called after every tick with the armed delay.
	OnTick func(delay time.Duration, probed bool)
}

// NewPoller creates a poller. stale may be nil.
func NewPoller(
	controller *Controller,
	env EnvironmentProbe,
	prober Prober,
	stale ui.StaleNotifier,
	logger *slog.Logger,
) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		controller: controller,
		env:        env,
		prober:     prober,
		stale:      stale,
		log:        logger.With("component", "poller"),
		restart:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start runs the loop in a new goroutine.
func (p *Poller) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go p.loop(ctx)
	return nil
}

// Run runs the loop until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	p.loop(ctx)
	return nil
}

// Done is closed when the loop exits.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Restart cancels the pending timer and ticks immediately. Repeated calls
// before the loop picks them up collapse into one.
func (p *Poller) Restart() {
	select {
	case p.restart <- struct{}{}:
	default:
	}
}

// Refreshed clears the stale signal and the seeded timestamp, then
// restarts the loop. Called after the current view has been reloaded.
func (p *Poller) Refreshed() {
	p.mu.Lock()
	p.lastKnownAt = 0
	p.staleShown = false
	p.mu.Unlock()

	if p.stale != nil {
		p.stale.ShowStale(false)
	}
	metrics.StaleData.Set(0)
	p.Restart()
}

// Stale reports whether the stale-data signal is raised.
func (p *Poller) Stale() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.staleShown
}

// LastKnownWriteAt returns the seeded server timestamp, 0 when unseeded.
func (p *Poller) LastKnownWriteAt() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastKnownAt
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)
	p.log.Info("Poller started")

	for {
		delay := p.tick(ctx)

		// Only one timer is alive at a time.
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.log.Info("Poller stopped")
			return
		case <-p.restart:
			timer.Stop()
			p.log.Debug("Poller restarted")
		case <-timer.C:
		}
	}
}

func (p *Poller) tick(ctx context.Context) time.Duration {
	delay, probe := p.controller.ComputeInterval(p.env)
	metrics.PollInterval.Set(delay.Seconds())

	if probe {
		p.check(ctx)
	} else {
		metrics.PollsTotal.WithLabelValues("skipped").Inc()
		p.log.Debug("Dialog open, skipping probe", "next", delay)
	}

	if p.OnTick != nil {
		p.OnTick(delay, probe)
	}
	return delay
}

func (p *Poller) check(ctx context.Context) {
	status, err := p.prober.Probe(ctx)
	if err != nil {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		if !errors.Is(err, domain.ErrUnauthorized) && ctx.Err() == nil {
			p.log.Debug("Status probe failed", "error", err)
		}
		return
	}
	if !status.Success || status.LastWriteTimestamp == 0 {
		metrics.PollsTotal.WithLabelValues("empty").Inc()
		return
	}

	serverAt := status.LastWriteTimestamp
	raise := false

	p.mu.Lock()
	switch {
	case p.lastKnownAt == 0:
		p.lastKnownAt = serverAt
		metrics.PollsTotal.WithLabelValues("seeded").Inc()
	case serverAt > p.lastKnownAt && !p.staleShown:
		p.staleShown = true
		raise = true
		metrics.PollsTotal.WithLabelValues("stale").Inc()
	default:
		metrics.PollsTotal.WithLabelValues("unchanged").Inc()
	}
	known := p.lastKnownAt
	p.mu.Unlock()

	if raise {
		p.log.Warn("Newer data on server", "server_write_at", serverAt, "known_write_at", known)
		metrics.StaleData.Set(1)
		if p.stale != nil {
			p.stale.ShowStale(true)
		}
	}
}
