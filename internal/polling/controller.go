package polling

import (
	"sync"
	"time"
)

// EnvironmentProbe reports presence signals. It is read once per tick.
type EnvironmentProbe interface {
	IsForeground() bool
	TimeSinceLastActivity() time.Duration
	IsDialogOpen() bool
}

// Controller computes the delay until the next tick from presence signals.
type Controller struct {
	config Config

	mu              sync.Mutex
	currentInterval time.Duration
}

// NewController creates a controller.
func NewController(config Config) *Controller {
	return &Controller{
		config:          config,
		currentInterval: config.ActiveInterval,
	}
}

// ComputeInterval returns the next delay and whether this tick should
// probe the server.
//
// Algorithm, first match wins:
//   - dialog open: dialog interval, no probe (the user is editing)
//   - not in foreground: background interval
//   - idle longer than the threshold: idle interval
//   - otherwise: active interval
func (c *Controller) ComputeInterval(env EnvironmentProbe) (time.Duration, bool) {
	var (
		interval time.Duration
		probe    = true
	)

	switch {
	case env.IsDialogOpen():
		interval = c.config.DialogInterval
		probe = false

	case !env.IsForeground():
		interval = c.config.BackgroundInterval

	case env.TimeSinceLastActivity() > c.config.IdleThreshold:
		interval = c.config.IdleInterval

	default:
		interval = c.config.ActiveInterval
	}

	c.mu.Lock()
	c.currentInterval = interval
	c.mu.Unlock()
	return interval, probe
}

// GetCurrentInterval returns the last computed interval (for metrics).
func (c *Controller) GetCurrentInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentInterval
}
