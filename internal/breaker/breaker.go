// Package breaker implements a circuit breaker that protects a downstream call
// path from retry floods. The breaker is a pure state machine guarded by a
// single mutex; retry policy lives in the caller.
package breaker

import (
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/firmvet/firmvet/internal/errors"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker wraps a risky call path. It opens after FailMax consecutive failures
// and allows a single probe call after ResetTimeout has elapsed.
type Breaker struct {
	name         string
	failMax      int
	resetTimeout time.Duration
	logger       *slog.Logger

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time

	// now is overridable in tests.
	now func() time.Time
}

// New creates a circuit breaker in the closed state.
func New(name string, failMax int, resetTimeout time.Duration, logger *slog.Logger) *Breaker {
	return &Breaker{
		name:         name,
		failMax:      failMax,
		resetTimeout: resetTimeout,
		logger:       logger,
		state:        StateClosed,
		now:          time.Now,
	}
}

// Call invokes fn through the breaker. While the breaker is open and the reset
// timeout has not elapsed, Call fails fast with ErrCircuitOpen without invoking
// fn. A success in any state closes the breaker and resets the failure count.
func (b *Breaker) Call(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn()
	b.after(err)
	return err
}

// State returns the current breaker state, accounting for open → half_open
// eligibility.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.lastFailureTime) > b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// FailureCount returns the current consecutive failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// before gates the call. It transitions open → half_open when the reset
// timeout has elapsed, and rejects the call while still open.
func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	if b.now().Sub(b.lastFailureTime) > b.resetTimeout {
		b.setState(StateHalfOpen)
		return nil
	}

	return apperrors.Wrap(apperrors.ErrCircuitOpen, b.name)
}

// after records the call outcome and applies the state transitions.
func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		// Any success resets the failure count and closes the breaker.
		b.failureCount = 0
		if b.state != StateClosed {
			b.setState(StateClosed)
		}
		return
	}

	b.failureCount++
	b.lastFailureTime = b.now()

	switch b.state {
	case StateHalfOpen:
		// The probe failed, back to open.
		b.setState(StateOpen)
	case StateClosed:
		if b.failureCount >= b.failMax {
			b.setState(StateOpen)
		}
	}
}

// setState transitions the breaker, caller must hold the mutex.
func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	old := b.state
	b.state = s
	if b.logger != nil {
		b.logger.Warn("circuit breaker state change",
			slog.String("breaker", b.name),
			slog.String("from", string(old)),
			slog.String("to", string(s)),
			slog.Int("failure_count", b.failureCount),
		)
	}
}
