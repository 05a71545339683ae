// Package dispatch holds pending outbound calls and releases them one at a
// time, no closer together than a fixed minimum interval.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/crmgate/internal/core/domain"
)

// ErrAlreadyRunning is returned by a second Start.
var ErrAlreadyRunning = errors.New("dispatch: queue is already running")

// DispatchFunc runs a dispatched call until it settles.
type DispatchFunc func(ctx context.Context, call *domain.QueuedCall)

// Config controls pacing.
type Config struct {
	// MinInterval is the minimum spacing between two dispatches.
	MinInterval time.Duration

	// Serial makes the worker wait for each call to settle, including its
	// 429 backoff, before the next dispatch. When false, dispatched calls
	// run concurrently and a call in backoff does not hold up the queue.
	Serial bool
}

// Queue is an unbounded FIFO drained by a single worker goroutine.
type Queue struct {
	cfg      Config
	dispatch DispatchFunc
	log      *slog.Logger

	mu             sync.Mutex
	pending        []*domain.QueuedCall
	closed         bool
	lastDispatchAt time.Time

	running  atomic.Bool
	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	inflight sync.WaitGroup

	// OnDispatch is called from the worker right before a call is handed off.
	OnDispatch func(call *domain.QueuedCall, waited time.Duration)
}

// NewQueue creates a queue. Calls are accepted immediately; they are
// dispatched once Start runs.
func NewQueue(cfg Config, dispatch DispatchFunc, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		cfg:      cfg,
		dispatch: dispatch,
		log:      logger.With("component", "dispatch"),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Submit enqueues call and returns its result handle. It never blocks.
func (q *Queue) Submit(call *domain.QueuedCall) <-chan domain.Result {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		call.Settle(domain.Result{Err: domain.ErrGatewayClosed})
		return call.Done()
	}
	q.pending = append(q.pending, call)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return call.Done()
}

// Len returns the number of calls waiting for dispatch.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// LastDispatchAt returns when the most recent call was dispatched.
func (q *Queue) LastDispatchAt() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastDispatchAt
}

// Start launches the worker. ctx is passed to every dispatched call;
// cancelling it stops the worker and closes the queue as Close does.
func (q *Queue) Start(ctx context.Context) error {
	if !q.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go q.run(ctx)
	return nil
}

// Close stops the worker, waits for in-flight calls and settles every call
// still queued with domain.ErrGatewayClosed.
func (q *Queue) Close() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.stop)
	})

	if q.running.Load() {
		<-q.done
	}
	q.inflight.Wait()

	q.drain()
}

// drain marks the queue closed and settles everything still pending.
func (q *Queue) drain() {
	q.mu.Lock()
	q.closed = true
	rest := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, call := range rest {
		call.Settle(domain.Result{Err: domain.ErrGatewayClosed})
	}
	if len(rest) > 0 {
		q.log.Debug("Settled queued calls on close", "count", len(rest))
	}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	// Once the worker is gone nothing would ever dispatch what is left.
	defer q.drain()

	for {
		if !q.waitForWork(ctx) {
			return
		}

		// wait = max(0, minInterval - (now - lastDispatchAt))
		waited := time.Duration(0)
		for {
			wait := q.cfg.MinInterval - time.Since(q.LastDispatchAt())
			if wait <= 0 {
				break
			}
			if !q.sleep(ctx, wait) {
				return
			}
			waited += wait
		}

		call := q.pop()
		if call == nil {
			continue
		}

		call.MarkDispatched()
		if q.OnDispatch != nil {
			q.OnDispatch(call, waited)
		}

		if q.cfg.Serial {
			q.dispatch(ctx, call)
			continue
		}

		q.inflight.Add(1)
		go func() {
			defer q.inflight.Done()
			q.dispatch(ctx, call)
		}()
	}
}

func (q *Queue) waitForWork(ctx context.Context) bool {
	for {
		q.mu.Lock()
		n, closed := len(q.pending), q.closed
		q.mu.Unlock()

		if closed {
			return false
		}
		if n > 0 {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-q.stop:
			return false
		case <-q.wake:
		}
	}
}

func (q *Queue) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-q.stop:
		return false
	case <-timer.C:
		return true
	}
}

// pop removes the head and stamps the dispatch time in one step.
func (q *Queue) pop() *domain.QueuedCall {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}
	call := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.lastDispatchAt = time.Now()
	return call
}
