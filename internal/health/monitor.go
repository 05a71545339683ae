package health

import (
	"sync"
	"time"

	"github.com/vietddude/crmgate/internal/infra/rpc"
)

// GatewayStats is the part of the gateway the monitor reads.
type GatewayStats interface {
	Stats() rpc.Stats
}

// PollerState is the part of the poller the monitor reads.
type PollerState interface {
	Stale() bool
	LastKnownWriteAt() int64
}

// Queue depth thresholds.
const (
	queueDegradedDepth = 50
	queueCriticalDepth = 500
)

// Monitor aggregates health status from the gateway and the poller.
type Monitor struct {
	gateway GatewayStats
	poller  PollerState
	ttl     time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a new health monitor. poller may be nil when polling is disabled.
func NewMonitor(gateway GatewayStats, poller PollerState) *Monitor {
	return &Monitor{
		gateway: gateway,
		poller:  poller,
		ttl:     time.Second,
	}
}

// CheckHealth builds a report, reusing the previous one for a short while.
func (m *Monitor) CheckHealth() HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.ttl {
		return *m.lastReport
	}

	stats := m.gateway.Stats()
	gw := GatewayHealth{
		Status:         StatusHealthy,
		UpstreamStatus: stats.Status.String(),
		QueueDepth:     stats.QueueDepth,
		Recovering:     stats.Recovering,
		TotalCalls:     stats.Usage.TotalCalls,
		CallsThisHour:  stats.Usage.CallsThisHour,
		Retries:        stats.Usage.Retries,
	}
	if stats.Monitor != nil {
		gw.Throttled429 = stats.Monitor.ThrottleCount429
		gw.AverageLatencyMs = stats.Monitor.AverageLatency.Milliseconds()
	}

	// Evaluate Status
	switch {
	case stats.Recovering || stats.Status == rpc.StatusBlocked || stats.QueueDepth > queueCriticalDepth:
		gw.Status = StatusCritical
	case stats.Status == rpc.StatusThrottled || stats.Status == rpc.StatusDegraded ||
		stats.QueueDepth > queueDegradedDepth:
		gw.Status = StatusDegraded
	}

	report := HealthReport{
		SystemStatus: gw.Status,
		Gateway:      gw,
	}
	if m.poller != nil {
		report.Poller = PollerHealth{
			Enabled:          true,
			Stale:            m.poller.Stale(),
			LastKnownWriteAt: m.poller.LastKnownWriteAt(),
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}
