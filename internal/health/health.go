// Package health provides gateway health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// GatewayHealth contains health metrics for the gateway and its upstream.
type GatewayHealth struct {
	Status           SystemStatus `json:"status"`
	UpstreamStatus   string       `json:"upstream_status"`
	QueueDepth       int          `json:"queue_depth"`
	Recovering       bool         `json:"recovering"`
	Throttled429     int          `json:"throttled_429"`
	AverageLatencyMs int64        `json:"average_latency_ms"`
	TotalCalls       int          `json:"total_calls"`
	CallsThisHour    int          `json:"calls_this_hour"`
	Retries          int          `json:"retries"`
}

// PollerHealth describes the background poller.
type PollerHealth struct {
	Enabled          bool  `json:"enabled"`
	Stale            bool  `json:"stale"`
	LastKnownWriteAt int64 `json:"last_known_write_at,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus  `json:"system_status"`
	Gateway      GatewayHealth `json:"gateway"`
	Poller       PollerHealth  `json:"poller"`
}
