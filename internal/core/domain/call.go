package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// CallState is the lifecycle stage of a queued call.
//
//	Queued -> Dispatched -> (Retrying -> Retrying ...) -> Settled
//
// Retrying calls are re-invoked directly by the retry policy; they never
// go back to Queued.
type CallState int

const (
	StateQueued CallState = iota
	StateDispatched
	StateRetrying
	StateSettled
)

func (s CallState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateDispatched:
		return "dispatched"
	case StateRetrying:
		return "retrying"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Transition is one recorded state change of a call.
type Transition struct {
	State   CallState
	Attempt int
	At      time.Time
}

// Result is what a caller receives once its call settles.
type Result struct {
	Envelope *Envelope
	Err      error
}

// QueuedCall is a pending outbound call. The dispatch queue owns it until
// dispatch; after that only the retry policy touches it until it settles.
type QueuedCall struct {
	ID         string
	Op         Operation
	EnqueuedAt time.Time

	mu      sync.Mutex
	attempt int
	state   CallState
	history []Transition

	once sync.Once
	done chan Result
}

// NewQueuedCall creates a call in the Queued state.
func NewQueuedCall(op Operation) *QueuedCall {
	now := time.Now()
	return &QueuedCall{
		ID:         uuid.NewString(),
		Op:         op,
		EnqueuedAt: now,
		state:      StateQueued,
		history:    []Transition{{State: StateQueued, At: now}},
		done:       make(chan Result, 1),
	}
}

// Attempt returns the zero-based attempt counter.
func (c *QueuedCall) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// State returns the current lifecycle state.
func (c *QueuedCall) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns a copy of all recorded transitions.
func (c *QueuedCall) History() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transition, len(c.history))
	copy(out, c.history)
	return out
}

// MarkDispatched moves the call out of the queue.
func (c *QueuedCall) MarkDispatched() {
	c.transition(StateDispatched, false)
}

// MarkRetrying bumps the attempt counter and returns the new value.
func (c *QueuedCall) MarkRetrying() int {
	return c.transition(StateRetrying, true)
}

func (c *QueuedCall) transition(s CallState, bump bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSettled {
		return c.attempt
	}
	if bump {
		c.attempt++
	}
	c.state = s
	c.history = append(c.history, Transition{State: s, Attempt: c.attempt, At: time.Now()})
	return c.attempt
}

// Settle delivers the outcome. Only the first call has any effect.
func (c *QueuedCall) Settle(r Result) bool {
	settled := false
	c.once.Do(func() {
		c.transition(StateSettled, false)
		c.done <- r
		settled = true
	})
	return settled
}

// Done is the result handle; it yields exactly one Result.
func (c *QueuedCall) Done() <-chan Result {
	return c.done
}
