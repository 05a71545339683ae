package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/crmgate/internal/infra/rpc"
	"github.com/vietddude/crmgate/internal/metrics"
)

// StatsSource provides gateway snapshots.
type StatsSource interface {
	Stats() rpc.Stats
}

// Reporter periodically publishes gateway gauges and logs a summary.
type Reporter struct {
	source   StatsSource
	interval time.Duration
	log      *slog.Logger

	last rpc.Stats
}

// NewReporter creates a reporter. A zero interval disables it.
func NewReporter(source StatsSource, interval time.Duration, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		source:   source,
		interval: interval,
		log:      logger.With("component", "reporter"),
	}
}

// Start runs the reporter loop until ctx is done.
func (r *Reporter) Start(ctx context.Context) {
	if r.interval <= 0 {
		return // Reporting disabled
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	s := r.source.Stats()
	metrics.QueueDepth.Set(float64(s.QueueDepth))

	// Only log when something moved.
	if s.Usage.TotalCalls == r.last.Usage.TotalCalls && s.Status == r.last.Status {
		return
	}
	r.last = s

	attrs := []any{
		"status", s.Status.String(),
		"queue_depth", s.QueueDepth,
		"calls_total", s.Usage.TotalCalls,
		"calls_hour", s.Usage.CallsThisHour,
		"retries", s.Usage.Retries,
	}
	if s.Monitor != nil {
		attrs = append(attrs, "avg_latency", s.Monitor.AverageLatency, "throttled_429", s.Monitor.ThrottleCount429)
	}
	r.log.Debug("Gateway stats", attrs...)
}
