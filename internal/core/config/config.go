package config

import (
	"time"

	redisclient "github.com/vietddude/crmgate/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	RateLimit RateLimitConfig    `yaml:"rate_limit"`
	Session   SessionConfig      `yaml:"session"`
	Writes    WritesConfig       `yaml:"writes"`
	Polling   PollingConfig      `yaml:"polling"`
	Redis     redisclient.Config `yaml:"redis"`
	Logging   LoggingConfig      `yaml:"logging"`
}

// ServerConfig describes the API server the gateway talks to.
type ServerConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	HealthPort int           `yaml:"health_port"` // 0 = disabled
	Token      string        `yaml:"token"`       // initial credential, usually ${CRM_TOKEN}
}

// RateLimitConfig controls dispatch pacing and 429 backoff.
// It is read once at gateway construction and never mutated afterwards.
type RateLimitConfig struct {
	MaxCallsPerSecond int           `yaml:"max_calls_per_second"`
	MinInterval       time.Duration `yaml:"min_interval"` // derived from MaxCallsPerSecond when zero
	MaxRetries        int           `yaml:"max_retries"`
	BackoffBase       time.Duration `yaml:"backoff_base"`

	// Serial holds the queue until each call settles, backoff included.
	// The default lets a call in 429 backoff run beside later dispatches.
	Serial bool `yaml:"serial"`
}

// SessionConfig controls authentication-failure recovery.
type SessionConfig struct {
	LoginRoute    string        `yaml:"login_route"`
	RedirectDelay time.Duration `yaml:"redirect_delay"`
	TokenKey      string        `yaml:"token_key"`
	ExtraKeys     []string      `yaml:"extra_keys"` // cleared together with the token
}

// WritesConfig controls the feedback after successful mutating calls.
type WritesConfig struct {
	RefreshDelay   time.Duration `yaml:"refresh_delay"`
	NoticeDuration time.Duration `yaml:"notice_duration"`
	ReloadDelay    time.Duration `yaml:"reload_delay"` // used when no refresh hook is registered
}

// PollingConfig holds the adaptive poller cadence.
type PollingConfig struct {
	Enabled            *bool         `yaml:"enabled"`
	StatusPath         string        `yaml:"status_path"`
	ActiveInterval     time.Duration `yaml:"active_interval"`
	IdleInterval       time.Duration `yaml:"idle_interval"`
	BackgroundInterval time.Duration `yaml:"background_interval"`
	DialogInterval     time.Duration `yaml:"dialog_interval"`
	IdleThreshold      time.Duration `yaml:"idle_threshold"`
	ActivityThrottle   time.Duration `yaml:"activity_throttle"`
}

// IsEnabled reports whether the poller should run (default true).
func (p PollingConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
