package polling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vietddude/crmgate/internal/core/domain"
	"github.com/vietddude/crmgate/internal/core/ui/uitest"
)

// fakeEnv is a mutable EnvironmentProbe.
type fakeEnv struct {
	mu         sync.Mutex
	foreground bool
	idle       time.Duration
	dialog     bool
}

func (e *fakeEnv) IsForeground() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.foreground
}

func (e *fakeEnv) TimeSinceLastActivity() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idle
}

func (e *fakeEnv) IsDialogOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dialog
}

func (e *fakeEnv) setDialog(open bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dialog = open
}

// fakeProber replays timestamps; the last one repeats.
type fakeProber struct {
	mu     sync.Mutex
	stamps []int64
	err    error
	calls  int
}

func (p *fakeProber) Probe(ctx context.Context) (*domain.StatusEnvelope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	i := p.calls - 1
	if i >= len(p.stamps) {
		i = len(p.stamps) - 1
	}
	return &domain.StatusEnvelope{Success: true, LastWriteTimestamp: p.stamps[i]}, nil
}

func (p *fakeProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func fastConfig(active time.Duration) Config {
	cfg := DefaultConfig()
	cfg.ActiveInterval = active
	cfg.DialogInterval = active
	return cfg
}

type tickCounter struct {
	n      atomic.Int32
	probed atomic.Int32
}

func (c *tickCounter) hook(delay time.Duration, probed bool) {
	c.n.Add(1)
	if probed {
		c.probed.Add(1)
	}
}

func startPoller(t *testing.T, cfg Config, env EnvironmentProbe, prober Prober) (*Poller, *uitest.StaleSignal, *tickCounter) {
	t.Helper()

	stale := &uitest.StaleSignal{}
	p := NewPoller(NewController(cfg), env, prober, stale, nil)
	ticks := &tickCounter{}
	p.OnTick = ticks.hook

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() {
		cancel()
		<-p.Done()
	})
	return p, stale, ticks
}

func TestPoller_SeedThenStale(t *testing.T) {
	prober := &fakeProber{stamps: []int64{100, 200, 200, 200}}
	p, stale, ticks := startPoller(t, fastConfig(2*time.Millisecond), &fakeEnv{foreground: true}, prober)

	require.Eventually(t, func() bool { return ticks.n.Load() >= 4 }, time.Second, time.Millisecond)

	assert.Equal(t, int64(100), p.LastKnownWriteAt(), "seed is kept until an explicit refresh")
	assert.True(t, p.Stale())
	assert.Equal(t, []bool{true}, stale.Toggles(), "raised once, unchanged afterwards")
}

func TestPoller_UnchangedTimestampNeverRaises(t *testing.T) {
	prober := &fakeProber{stamps: []int64{100}}
	p, stale, ticks := startPoller(t, fastConfig(2*time.Millisecond), &fakeEnv{foreground: true}, prober)

	require.Eventually(t, func() bool { return ticks.n.Load() >= 3 }, time.Second, time.Millisecond)
	assert.False(t, p.Stale())
	assert.Empty(t, stale.Toggles())
}

func TestPoller_DialogSkipsProbe(t *testing.T) {
	env := &fakeEnv{foreground: true, dialog: true}
	prober := &fakeProber{stamps: []int64{100}}
	_, _, ticks := startPoller(t, fastConfig(2*time.Millisecond), env, prober)

	require.Eventually(t, func() bool { return ticks.n.Load() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, prober.Calls())
	assert.Equal(t, int32(0), ticks.probed.Load())

	env.setDialog(false)
	require.Eventually(t, func() bool { return prober.Calls() > 0 }, time.Second, time.Millisecond)
}

func TestPoller_ProbeErrorsAreIgnored(t *testing.T) {
	prober := &fakeProber{err: errors.New("connection refused")}
	p, stale, ticks := startPoller(t, fastConfig(2*time.Millisecond), &fakeEnv{foreground: true}, prober)

	require.Eventually(t, func() bool { return ticks.n.Load() >= 3 }, time.Second, time.Millisecond)
	assert.False(t, p.Stale())
	assert.Empty(t, stale.Toggles())
}

func TestPoller_RestartTicksImmediately(t *testing.T) {
	prober := &fakeProber{stamps: []int64{100}}
	p, _, ticks := startPoller(t, fastConfig(time.Hour), &fakeEnv{foreground: true}, prober)

	require.Eventually(t, func() bool { return ticks.n.Load() == 1 }, time.Second, time.Millisecond)
	p.Restart()
	require.Eventually(t, func() bool { return ticks.n.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 2, prober.Calls())
}

func TestPoller_RefreshedClearsSignalAndReseeds(t *testing.T) {
	prober := &fakeProber{stamps: []int64{100, 200, 300}}
	p, stale, ticks := startPoller(t, fastConfig(time.Hour), &fakeEnv{foreground: true}, prober)

	require.Eventually(t, func() bool { return ticks.n.Load() == 1 }, time.Second, time.Millisecond)
	p.Restart()
	require.Eventually(t, p.Stale, time.Second, time.Millisecond)

	p.Refreshed()
	require.Eventually(t, func() bool { return ticks.n.Load() == 3 }, time.Second, time.Millisecond)

	assert.False(t, p.Stale())
	assert.Equal(t, int64(300), p.LastKnownWriteAt(), "first probe after refresh seeds")
	assert.Equal(t, []bool{true, false}, stale.Toggles())
}

func TestPoller_VisibilityChangeRestarts(t *testing.T) {
	tracker := NewTracker(time.Millisecond)
	prober := &fakeProber{stamps: []int64{100}}
	p, _, ticks := startPoller(t, fastConfig(time.Hour), tracker, prober)
	tracker.OnVisibilityChange(func(bool) { p.Restart() })

	require.Eventually(t, func() bool { return ticks.n.Load() == 1 }, time.Second, time.Millisecond)

	tracker.SetForeground(false)
	require.Eventually(t, func() bool { return ticks.n.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 5*time.Minute, p.controller.GetCurrentInterval())

	tracker.SetDialogOpen(true)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(2), ticks.n.Load(), "dialog changes do not re-arm")
}

func TestPoller_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPoller(NewController(fastConfig(time.Millisecond)), &fakeEnv{foreground: true}, &fakeProber{stamps: []int64{1}}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))

	time.Sleep(5 * time.Millisecond)
	cancel()
	<-p.Done()
}

func TestPoller_StartTwice(t *testing.T) {
	p, _, _ := startPoller(t, fastConfig(time.Hour), &fakeEnv{foreground: true}, &fakeProber{stamps: []int64{1}})
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyRunning)
	assert.ErrorIs(t, p.Run(context.Background()), ErrAlreadyRunning)
}
