package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default filled in.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	c.RateLimit.ApplyDefaults()

	if c.Session.LoginRoute == "" {
		c.Session.LoginRoute = "/login.html"
	}
	if c.Session.RedirectDelay == 0 {
		c.Session.RedirectDelay = 2 * time.Second
	}
	if c.Session.TokenKey == "" {
		c.Session.TokenKey = "crm-token"
	}
	if c.Session.ExtraKeys == nil {
		c.Session.ExtraKeys = []string{"crmToken", "crmCurrentUserName", "crmUserRole"}
	}

	if c.Writes.RefreshDelay == 0 {
		c.Writes.RefreshDelay = 100 * time.Millisecond
	}
	if c.Writes.NoticeDuration == 0 {
		c.Writes.NoticeDuration = 2 * time.Second
	}
	if c.Writes.ReloadDelay == 0 {
		c.Writes.ReloadDelay = 1500 * time.Millisecond
	}

	p := &c.Polling
	if p.StatusPath == "" {
		p.StatusPath = "/api/system/status"
	}
	if p.ActiveInterval == 0 {
		p.ActiveInterval = 30 * time.Second
	}
	if p.IdleInterval == 0 {
		p.IdleInterval = 2 * time.Minute
	}
	if p.BackgroundInterval == 0 {
		p.BackgroundInterval = 5 * time.Minute
	}
	if p.DialogInterval == 0 {
		p.DialogInterval = 10 * time.Second
	}
	if p.IdleThreshold == 0 {
		p.IdleThreshold = time.Minute
	}
	if p.ActivityThrottle == 0 {
		p.ActivityThrottle = time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// ApplyDefaults fills zero values; MinInterval follows MaxCallsPerSecond.
func (r *RateLimitConfig) ApplyDefaults() {
	if r.MaxCallsPerSecond <= 0 {
		r.MaxCallsPerSecond = 5
	}
	if r.MinInterval == 0 {
		r.MinInterval = time.Second / time.Duration(r.MaxCallsPerSecond)
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.BackoffBase == 0 {
		r.BackoffBase = time.Second
	}
}

// Validate rejects settings the gateway cannot run with. Zero values were
// already replaced by defaults, so only negatives are left to catch.
func (c *AppConfig) Validate() error {
	if c.RateLimit.MaxRetries < 0 {
		return fmt.Errorf("rate_limit.max_retries must not be negative (0 selects the default of 3), got %d",
			c.RateLimit.MaxRetries)
	}
	if c.Server.HealthPort < 0 || c.Server.HealthPort > 65535 {
		return fmt.Errorf("server.health_port out of range: %d", c.Server.HealthPort)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"server.timeout", c.Server.Timeout},
		{"rate_limit.min_interval", c.RateLimit.MinInterval},
		{"rate_limit.backoff_base", c.RateLimit.BackoffBase},
		{"session.redirect_delay", c.Session.RedirectDelay},
		{"writes.refresh_delay", c.Writes.RefreshDelay},
		{"writes.notice_duration", c.Writes.NoticeDuration},
		{"writes.reload_delay", c.Writes.ReloadDelay},
		{"polling.active_interval", c.Polling.ActiveInterval},
		{"polling.idle_interval", c.Polling.IdleInterval},
		{"polling.background_interval", c.Polling.BackgroundInterval},
		{"polling.dialog_interval", c.Polling.DialogInterval},
		{"polling.idle_threshold", c.Polling.IdleThreshold},
		{"polling.activity_throttle", c.Polling.ActivityThrottle},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("%s must not be negative, got %v", d.name, d.value)
		}
	}
	return nil
}
