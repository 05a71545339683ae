package routing

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/vietddude/crmgate/internal/core/domain"
	"github.com/vietddude/crmgate/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior for transient overload (429).
type RetryConfig struct {
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig mirrors the server's documented rate limit.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:      3,
	BackoffBase:     1 * time.Second,
	BackoffMultiple: 2.0,
}

// Outcome is the classification of one attempt.
type Outcome int

const (
	OutcomeSuccess     Outcome = iota // 2xx
	OutcomeRetryable                  // 429, transient overload
	OutcomeAuthFailure                // 401 / 403
	OutcomeFatal                      // anything else, including transport errors
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeAuthFailure:
		return "auth_failure"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps a response onto an Outcome. A nil response is fatal.
func Classify(resp *provider.Response) Outcome {
	if resp == nil {
		return OutcomeFatal
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return OutcomeRetryable
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return OutcomeAuthFailure
	case resp.OK():
		return OutcomeSuccess
	default:
		return OutcomeFatal
	}
}

// Backoff returns the wait before retry number attempt+1.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	mult := c.BackoffMultiple
	if mult <= 0 {
		mult = 2.0
	}
	return time.Duration(float64(c.BackoffBase) * math.Pow(mult, float64(attempt)))
}

// AttemptFunc performs one attempt of a call.
type AttemptFunc func(ctx context.Context) (*provider.Response, error)

// Retrier re-invokes a call directly, without going back through the
// dispatch queue, so retried attempts are not paced by the queue.
type Retrier struct {
	config RetryConfig

	// OnRetry is called before each backoff wait.
	OnRetry func(call *domain.QueuedCall, attempt int, wait time.Duration)
}

// NewRetrier creates a retrier.
func NewRetrier(config RetryConfig) *Retrier {
	return &Retrier{config: config}
}

// Config returns the retry configuration.
func (r *Retrier) Config() RetryConfig {
	return r.config
}

// Do runs attempt until it yields a non-retryable outcome or the budget is
// spent. On exhaustion it returns the last response with domain.ErrServerBusy.
// Transport errors are returned as OutcomeFatal without retry.
func (r *Retrier) Do(
	ctx context.Context,
	call *domain.QueuedCall,
	attempt AttemptFunc,
) (*provider.Response, Outcome, error) {
	for {
		resp, err := attempt(ctx)
		if err != nil {
			return nil, OutcomeFatal, err
		}

		outcome := Classify(resp)
		if outcome != OutcomeRetryable {
			return resp, outcome, nil
		}

		n := call.Attempt()
		if n >= r.config.MaxRetries {
			return resp, OutcomeFatal, fmt.Errorf("%w (after %d retries)", domain.ErrServerBusy, n)
		}

		wait := r.config.Backoff(n)
		if r.OnRetry != nil {
			r.OnRetry(call, n+1, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, OutcomeFatal, ctx.Err()
		case <-timer.C:
		}

		call.MarkRetrying()
	}
}
