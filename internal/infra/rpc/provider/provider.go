// Package provider implements the transport used by the gateway.
//
// This package contains:
//   - Transport interface: executes one attempt of an operation
//   - HTTPProvider: JSON over HTTP implementation with bearer credentials
//   - ProviderMonitor: latency, throttle and auth-failure tracking
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/vietddude/crmgate/internal/core/domain"
)

// HeaderRequestID carries the call ID so server logs can be correlated.
const HeaderRequestID = "X-Request-ID"

// Response is the raw outcome of one attempt.
type Response struct {
	StatusCode int
	Status     string // status text, e.g. "Bad Request"
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

// IsJSON reports whether the server declared a JSON body.
func (r *Response) IsJSON() bool {
	return isJSONContentType(r.Header.Get("Content-Type"))
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport executes a single attempt. It never retries and never
// interprets the status code beyond monitoring.
type Transport interface {
	// Execute sends op, attaching token as a bearer credential when non-empty.
	Execute(ctx context.Context, op domain.Operation, token string) (*Response, error)

	// GetName returns a transport identifier for logs and metrics.
	GetName() string

	// Close cleans up resources
	Close() error
}

// HealthStatus represents the health state of a transport.
type HealthStatus struct {
	Available     bool
	Latency       time.Duration
	ErrorRate     float64
	LastSuccessAt time.Time
	LastFailureAt time.Time
	MonitorStats  *MonitorStats `json:"monitor_stats,omitempty"`
}
