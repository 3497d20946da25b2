package resilience

import (
	"sync"
	"time"
)

// breakerState mirrors the closed/open states of the orchestrator's embedded
// breaker; CanExecute's recovery check stands in for an explicit half-open
// state rather than tracking a third value.
type breakerState string

const (
	stateClosed breakerState = "closed"
	stateOpen   breakerState = "open"
)

// CircuitBreaker trips after failureThreshold consecutive failures and
// rejects calls until recoveryTimeout has elapsed since the last failure.
// After that, calls are allowed through again (their number is not limited
// to one trial call) until RecordSuccess closes it or another failure
// restarts the timeout. One instance wraps one backend adapter's
// connection pool.
type CircuitBreaker struct {
	mu               sync.RWMutex
	failureThreshold int
	recoveryTimeout  time.Duration
	failureCount     int
	lastFailureTime  time.Time
	state            breakerState
}

// NewCircuitBreaker builds a breaker with the given failure threshold and
// recovery timeout, sourced from CIRCUIT_BREAKER_THRESHOLD and
// CIRCUIT_BREAKER_RECOVERY_SECONDS.
func NewCircuitBreaker(threshold int, recovery time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: threshold,
		recoveryTimeout:  recovery,
		state:            stateClosed,
	}
}

// CanExecute reports whether a call should be attempted. An open breaker
// allows calls through once the recovery timeout has elapsed.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.state == stateOpen {
		return time.Since(cb.lastFailureTime) > cb.recoveryTimeout
	}
	return true
}

// RecordSuccess closes the breaker if it had been open past its recovery
// window, and resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateOpen && time.Since(cb.lastFailureTime) > cb.recoveryTimeout {
		cb.state = stateClosed
	}
	cb.failureCount = 0
}

// RecordFailure increments the failure count and trips the breaker open once
// failureThreshold consecutive failures have been recorded.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	if cb.failureCount >= cb.failureThreshold {
		cb.state = stateOpen
	}
}

// State reports the current breaker state as a string, for health/metrics
// endpoints.
func (cb *CircuitBreaker) State() string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return string(cb.state)
}
