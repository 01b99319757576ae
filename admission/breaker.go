package admission

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the shared window backend is being skipped
// after repeated failures.
var ErrBreakerOpen = errors.New("window backend circuit open")

// breakerState is the state of a breaker.
type breakerState string

const (
	breakerClosed   breakerState = "closed"
	breakerOpen     breakerState = "open"
	breakerHalfOpen breakerState = "half_open"
)

// breaker stops calling a failing backend for a cooldown after maxFailures
// consecutive errors, then lets a single probe through.
type breaker struct {
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	probing  bool
}

func newBreaker(maxFailures int, cooldown time.Duration) *breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
		state:       breakerClosed,
	}
}

// allow reports whether a call may go to the backend.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrBreakerOpen
		}
		b.state = breakerHalfOpen
		b.probing = true
		return nil
	case breakerHalfOpen:
		if b.probing {
			return ErrBreakerOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// record feeds the outcome of an allowed call back and returns the previous
// and current state.
func (b *breaker) record(err error) (breakerState, breakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.state
	b.probing = false
	if err == nil {
		b.state = breakerClosed
		b.failures = 0
		return old, b.state
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.maxFailures {
		b.state = breakerOpen
		b.openedAt = b.now()
	}
	return old, b.state
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
