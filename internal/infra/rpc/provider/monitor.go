package provider

import (
	"strconv"
	"sync"
	"time"
)

// ProviderStatus represents the health state of the API as seen by the gateway.
type ProviderStatus int

const (
	StatusHealthy   ProviderStatus = iota // API is working normally
	StatusDegraded                        // API is slow but working
	StatusThrottled                       // API is answering 429
	StatusBlocked                         // credential rejected (401/403) since the last success
)

func (s ProviderStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// MonitorStats holds monitoring statistics.
type MonitorStats struct {
	Status            ProviderStatus `json:"status"`
	AverageLatency    time.Duration  `json:"average_latency"`
	ThrottleCount429  int            `json:"throttle_count_429"`
	AuthFailures401   int            `json:"auth_failures_401"`
	AuthFailures403   int            `json:"auth_failures_403"`
	RequestsLast1Hour int            `json:"requests_last_1_hour"`
	RetryAfter        time.Duration  `json:"retry_after"`
}

// ProviderMonitor tracks latency, throttling and credential rejection.
type ProviderMonitor struct {
	mu sync.RWMutex

	// Response time tracking
	recentLatencies  []time.Duration
	maxLatencyWindow int

	// Error tracking
	status429Count     int
	status401Count     int
	status403Count     int
	lastThrottleTime   time.Time
	retryAfterDuration time.Duration
	authRejected       bool

	// Sliding window
	requestTimestamps []time.Time
	windowDuration    time.Duration

	// Thresholds
	slowResponseThreshold time.Duration
	throttleThreshold     int
}

// NewProviderMonitor creates a new monitor with default settings.
func NewProviderMonitor() *ProviderMonitor {
	return &ProviderMonitor{
		recentLatencies:       make([]time.Duration, 0, 100),
		maxLatencyWindow:      100,
		requestTimestamps:     make([]time.Time, 0),
		windowDuration:        time.Hour,
		slowResponseThreshold: 3 * time.Second,
		throttleThreshold:     3,
	}
}

// RecordRequest records a successful request with its latency.
func (pm *ProviderMonitor) RecordRequest(latency time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	now := time.Now()

	pm.recentLatencies = append(pm.recentLatencies, latency)
	if len(pm.recentLatencies) > pm.maxLatencyWindow {
		pm.recentLatencies = pm.recentLatencies[1:]
	}

	pm.requestTimestamps = append(pm.requestTimestamps, now)

	// Drop timestamps outside the window
	cutoff := now.Add(-pm.windowDuration)
	i := 0
	for i < len(pm.requestTimestamps) && !pm.requestTimestamps[i].After(cutoff) {
		i++
	}
	pm.requestTimestamps = pm.requestTimestamps[i:]

	pm.authRejected = false
}

// RecordThrottle records a 429 response. retryAfter is the raw Retry-After header.
func (pm *ProviderMonitor) RecordThrottle(retryAfter string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.lastThrottleTime = time.Now()
	pm.status429Count++
	pm.retryAfterDuration = time.Minute
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		pm.retryAfterDuration = time.Duration(secs) * time.Second
	}
}

// RecordAuthFailure records a 401 or 403 response.
func (pm *ProviderMonitor) RecordAuthFailure(statusCode int) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if statusCode == 401 {
		pm.status401Count++
	} else {
		pm.status403Count++
	}
	pm.authRejected = true
}

// CheckProviderStatus returns the current status.
func (pm *ProviderMonitor) CheckProviderStatus() ProviderStatus {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.statusLocked()
}

func (pm *ProviderMonitor) statusLocked() ProviderStatus {
	if pm.authRejected {
		return StatusBlocked
	}

	if pm.status429Count >= pm.throttleThreshold &&
		time.Since(pm.lastThrottleTime) < pm.retryAfterDuration {
		return StatusThrottled
	}

	if len(pm.recentLatencies) > 10 && pm.averageLocked() > pm.slowResponseThreshold {
		return StatusDegraded
	}

	return StatusHealthy
}

// GetRetryAfter returns remaining time before the server asked us to come back.
func (pm *ProviderMonitor) GetRetryAfter() time.Duration {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.retryAfterLocked()
}

func (pm *ProviderMonitor) retryAfterLocked() time.Duration {
	if pm.retryAfterDuration > 0 {
		remaining := pm.retryAfterDuration - time.Since(pm.lastThrottleTime)
		if remaining > 0 {
			return remaining
		}
	}
	return 0
}

// GetAverageLatency returns the average latency of recent requests.
func (pm *ProviderMonitor) GetAverageLatency() time.Duration {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.averageLocked()
}

func (pm *ProviderMonitor) averageLocked() time.Duration {
	if len(pm.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range pm.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(pm.recentLatencies))
}

// GetRequestCount returns number of successful requests in the given duration.
func (pm *ProviderMonitor) GetRequestCount(duration time.Duration) int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.countLocked(duration)
}

func (pm *ProviderMonitor) countLocked(duration time.Duration) int {
	cutoff := time.Now().Add(-duration)
	count := 0
	for _, t := range pm.requestTimestamps {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// GetStats returns current monitoring statistics.
func (pm *ProviderMonitor) GetStats() MonitorStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return MonitorStats{
		Status:            pm.statusLocked(),
		AverageLatency:    pm.averageLocked(),
		ThrottleCount429:  pm.status429Count,
		AuthFailures401:   pm.status401Count,
		AuthFailures403:   pm.status403Count,
		RequestsLast1Hour: pm.countLocked(time.Hour),
		RetryAfter:        pm.retryAfterLocked(),
	}
}
