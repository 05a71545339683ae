// Package rpc provides the gateway every caller uses to reach the API server.
//
// The gateway offers:
//   - Paced, ordered dispatch (one worker, minimum spacing between calls)
//   - Bounded exponential backoff on 429
//   - One-shot session recovery on 401/403
//   - Success feedback and a single view refresh after writes
//   - A silent status probe for the background poller
//
// # Quick Start
//
//	import "github.com/vietddude/crmgate/internal/infra/rpc"
//
//	gw, err := rpc.NewGateway(cfg, rpc.Deps{Notifier: n, Navigator: nav})
//	if err != nil { ... }
//	gw.Start(ctx)
//	defer gw.Close()
//
//	env, err := gw.Call(ctx, rpc.Post("/api/companies", company))
//
// # Package Structure
//
//   - provider/ - Transport implementations and monitoring
//   - dispatch/ - Queue and throttler
//   - routing/  - Outcome classification and retry policy
//   - session/  - Authentication-failure latch
//   - effects/  - Write feedback and refresh scheduling
//   - budget/   - Call usage tracking
//
// Commonly used types are re-exported at the root level.
package rpc

import (
	"time"

	"github.com/vietddude/crmgate/internal/infra/rpc/effects"
	"github.com/vietddude/crmgate/internal/infra/rpc/provider"
	"github.com/vietddude/crmgate/internal/infra/rpc/routing"
)

// Transport executes one attempt of an operation.
type Transport = provider.Transport

// HTTPProvider implements Transport for JSON over HTTP.
type HTTPProvider = provider.HTTPProvider

// HeaderRequestID carries the call ID on every attempt.
const HeaderRequestID = provider.HeaderRequestID

// Response is the raw outcome of one attempt.
type Response = provider.Response

// ProviderStatus represents the health state of the upstream server.
type ProviderStatus = provider.ProviderStatus

// MonitorStats holds monitoring statistics for the upstream server.
type MonitorStats = provider.MonitorStats

// Provider status constants
const (
	StatusHealthy   = provider.StatusHealthy
	StatusDegraded  = provider.StatusDegraded
	StatusThrottled = provider.StatusThrottled
	StatusBlocked   = provider.StatusBlocked
)

// NewHTTPProvider creates a new HTTP transport.
func NewHTTPProvider(name, baseURL string, timeout time.Duration) *HTTPProvider {
	return provider.NewHTTPProvider(name, baseURL, timeout)
}

// Outcome is the classification of one attempt.
type Outcome = routing.Outcome

// Outcome constants
const (
	OutcomeSuccess     = routing.OutcomeSuccess
	OutcomeRetryable   = routing.OutcomeRetryable
	OutcomeAuthFailure = routing.OutcomeAuthFailure
	OutcomeFatal       = routing.OutcomeFatal
)

// RetryConfig defines retry behavior.
type RetryConfig = routing.RetryConfig

// RefreshHook is invoked once after each successful write.
type RefreshHook = effects.RefreshHook
