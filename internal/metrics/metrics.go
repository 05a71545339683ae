package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsTotal tracks settled gateway calls per method and outcome
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmgate_calls_total",
			Help: "Total number of settled gateway calls",
		},
		[]string{"method", "outcome"},
	)

	// RetriesTotal tracks 429 retries per method
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmgate_retries_total",
			Help: "Total number of retries after transient overload",
		},
		[]string{"method"},
	)

	// AuthRecoveriesTotal counts session recoveries (at most one per process)
	AuthRecoveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crmgate_auth_recoveries_total",
			Help: "Total number of session recoveries started",
		},
	)

	// CallLatency tracks end-to-end call latency including queueing and retries
	CallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crmgate_call_latency_seconds",
			Help:    "Gateway call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// DispatchWait tracks time the worker spent pacing before a dispatch
	DispatchWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crmgate_dispatch_wait_seconds",
			Help:    "Time spent waiting for the minimum dispatch interval",
			Buckets: []float64{0, .01, .05, .1, .2, .5, 1},
		},
	)

	// QueueDepth tracks calls waiting for dispatch
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crmgate_queue_depth",
			Help: "Number of calls waiting for dispatch",
		},
	)

	// PollInterval tracks the delay chosen for the next status probe
	PollInterval = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crmgate_poll_interval_seconds",
			Help: "Delay before the next status probe",
		},
	)

	// PollsTotal tracks status probes by result
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmgate_polls_total",
			Help: "Total number of status probes",
		},
		[]string{"result"},
	)

	// StaleData is 1 while the stale-data signal is raised
	StaleData = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crmgate_stale_data",
			Help: "Whether newer server data is available (1) or not (0)",
		},
	)

	// ViewRefreshesTotal tracks refreshes after writes
	ViewRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmgate_view_refreshes_total",
			Help: "Total number of view refreshes after writes",
		},
		[]string{"result"},
	)
)
