package polling

import (
	"time"

	"github.com/vietddude/crmgate/internal/core/config"
)

// Config holds the poll cadence for each presence state.
type Config struct {
	ActiveInterval     time.Duration // User active in the foreground (default: 30s)
	IdleInterval       time.Duration // No activity for IdleThreshold (default: 2m)
	BackgroundInterval time.Duration // Surface not in the foreground (default: 5m)
	DialogInterval     time.Duration // Dialog open, probe skipped (default: 10s)
	IdleThreshold      time.Duration // Inactivity that counts as idle (default: 60s)
}

// DefaultConfig returns the standard cadence.
func DefaultConfig() Config {
	return Config{
		ActiveInterval:     30 * time.Second,
		IdleInterval:       2 * time.Minute,
		BackgroundInterval: 5 * time.Minute,
		DialogInterval:     10 * time.Second,
		IdleThreshold:      time.Minute,
	}
}

// FromAppConfig converts the polling section of the app config, keeping
// defaults for unset fields.
func FromAppConfig(p config.PollingConfig) Config {
	c := DefaultConfig()
	if p.ActiveInterval > 0 {
		c.ActiveInterval = p.ActiveInterval
	}
	if p.IdleInterval > 0 {
		c.IdleInterval = p.IdleInterval
	}
	if p.BackgroundInterval > 0 {
		c.BackgroundInterval = p.BackgroundInterval
	}
	if p.DialogInterval > 0 {
		c.DialogInterval = p.DialogInterval
	}
	if p.IdleThreshold > 0 {
		c.IdleThreshold = p.IdleThreshold
	}
	return c
}
