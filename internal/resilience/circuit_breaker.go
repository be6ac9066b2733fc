package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Call while the breaker rejects requests
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed   CircuitState = iota // Normal operation
	StateOpen                         // Requests fail immediately
	StateHalfOpen                     // Probing whether the backend recovered
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerStats is a point-in-time view of a breaker
type BreakerStats struct {
	State       CircuitState
	Requests    int64
	Failures    int64
	Consecutive int // failures since the last success
	OpenedAt    time.Time
}

// FailureRate returns the share of failed requests as a percentage
func (s BreakerStats) FailureRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Requests) * 100.0
}

// CircuitBreaker stops calling a backend after maxFailures consecutive
// failures and lets a bounded number of probes through once resetTimeout
// has passed. Safe for concurrent use.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	probes       int // admitted in half-open, and successes needed to close

	mu          sync.Mutex
	state       CircuitState
	consecutive int
	openedAt    time.Time
	admitted    int
	succeeded   int
	requests    int64
	failures    int64
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		probes:       3,
	}
}

// Name returns the protected service name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call runs fn unless the circuit is open
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}

	err := fn()
	cb.record(err == nil)

	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.state = StateHalfOpen
		cb.admitted = 1
		cb.succeeded = 0
		return true

	case StateHalfOpen:
		if cb.admitted >= cb.probes {
			return false
		}
		cb.admitted++
		return true
	}

	return false
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requests++
	if success {
		cb.consecutive = 0
		if cb.state == StateHalfOpen {
			cb.succeeded++
			if cb.succeeded >= cb.probes {
				cb.state = StateClosed
			}
		}
		return
	}

	cb.failures++
	cb.consecutive++
	switch cb.state {
	case StateClosed:
		if cb.consecutive >= cb.maxFailures {
			cb.trip()
		}
	case StateHalfOpen:
		// A failed probe reopens immediately
		cb.trip()
	}
}

// trip opens the circuit; the caller holds mu
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.admitted = 0
	cb.succeeded = 0
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns counters accumulated since the breaker was created
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{
		State:       cb.state,
		Requests:    cb.requests,
		Failures:    cb.failures,
		Consecutive: cb.consecutive,
		OpenedAt:    cb.openedAt,
	}
}
