package sefaz

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // normal operation
	BreakerOpen                         // authority assumed down, fail fast
	BreakerHalfOpen                     // probing recovery
)

// CircuitBreaker shields the authority endpoint during brownouts.
// Repeated transport failures open the circuit; after the cooldown a
// half-open probe phase needs consecutive successes to close it again.
// An open circuit surfaces to callers as ErrCircuitOpen, which the
// orchestrator treats like a network failure, never like a rejection.
type CircuitBreaker struct {
	maxFailures      int
	failureThreshold float64
	cooldown         time.Duration
	successThreshold int

	mu            sync.RWMutex
	state         BreakerState
	failures      int
	successes     int
	totalRequests int
	lastChange    time.Time
}

func NewCircuitBreaker(maxFailures int, failureThreshold float64, cooldown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 10
	}
	if failureThreshold <= 0 || failureThreshold > 1 {
		failureThreshold = 0.5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	return &CircuitBreaker{
		maxFailures:      maxFailures,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		successThreshold: 3,
		state:            BreakerClosed,
	}
}

// Execute runs fn under breaker protection.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.RLock()
	state := cb.state
	lastChange := cb.lastChange
	cb.mu.RUnlock()

	if state == BreakerOpen {
		if time.Since(lastChange) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.mu.Lock()
		if cb.state == BreakerOpen && time.Since(cb.lastChange) >= cb.cooldown {
			cb.state = BreakerHalfOpen
			cb.successes = 0
			cb.lastChange = time.Now()
		}
		cb.mu.Unlock()
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	if err != nil {
		cb.failures++
		failureRate := float64(cb.failures) / float64(cb.totalRequests)
		switch {
		case cb.state == BreakerHalfOpen:
			// Any failure while probing reopens the circuit.
			cb.state = BreakerOpen
			cb.lastChange = time.Now()
		case cb.state == BreakerClosed && (cb.failures >= cb.maxFailures || failureRate >= cb.failureThreshold):
			cb.state = BreakerOpen
			cb.lastChange = time.Now()
		}
		return err
	}

	cb.successes++
	if cb.state == BreakerHalfOpen && cb.successes >= cb.successThreshold {
		cb.state = BreakerClosed
		cb.failures = 0
		cb.successes = 0
		cb.totalRequests = 0
		cb.lastChange = time.Now()
	} else if cb.state == BreakerClosed && cb.successes > cb.failures {
		cb.failures = 0
	}

	return nil
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = BreakerClosed
	cb.failures = 0
	cb.successes = 0
	cb.totalRequests = 0
	cb.lastChange = time.Now()
}
