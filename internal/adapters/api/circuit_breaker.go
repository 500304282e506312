package api

import (
	"errors"
	"sync"
	"time"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// CircuitClosed allows all requests
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks all requests
	CircuitOpen
	// CircuitHalfOpen allows one probe request to test recovery
	CircuitHalfOpen
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker open")

const (
	defaultMaxFailures    = 5
	defaultCircuitTimeout = 60 * time.Second
)

// CircuitBreaker implements the circuit breaker pattern.
// One breaker guards one (player, endpoint family) pair so a failing
// endpoint for one agent never blocks requests for another.
type CircuitBreaker struct {
	maxFailures     int
	timeout         time.Duration
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
	probeInFlight   bool
	mu              sync.RWMutex
	clock           shared.Clock
}

// NewCircuitBreaker creates a new circuit breaker with optional clock injection.
// If clock is nil, uses RealClock.
func NewCircuitBreaker(maxFailures int, timeout time.Duration, clock shared.Clock) *CircuitBreaker {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	if timeout <= 0 {
		timeout = defaultCircuitTimeout
	}
	return &CircuitBreaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		state:       CircuitClosed,
		clock:       clock,
	}
}

// Call executes a function with circuit breaker protection.
// Half-open admits a single probe; concurrent callers are rejected
// with ErrCircuitOpen until the probe settles.
func (cb *CircuitBreaker) Call(fn func() error) error {
	probe := false
	cb.mu.Lock()
	switch cb.state {
	case CircuitOpen:
		if cb.clock.Now().Sub(cb.lastFailureTime) < cb.timeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		cb.probeInFlight = true
		probe = true
	case CircuitHalfOpen:
		if cb.probeInFlight {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probeInFlight = true
		probe = true
	}
	cb.mu.Unlock()

	// Execute WITHOUT holding the lock so long retry loops in one call
	// don't block state reads from other goroutines
	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.probeInFlight = false
	}
	if err != nil {
		cb.onFailure(err)
		return err
	}

	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) onFailure(err error) {
	if shared.IsCancelled(err) {
		// Caller gave up; says nothing about the endpoint
		return
	}
	if !tripsBreaker(err) {
		// The server answered; a rejection is not an outage
		cb.onSuccess()
		return
	}

	cb.failureCount++
	cb.lastFailureTime = cb.clock.Now()

	if cb.state == CircuitHalfOpen {
		// Probe failed, reopen
		cb.state = CircuitOpen
		return
	}

	if cb.failureCount >= cb.maxFailures {
		cb.state = CircuitOpen
	}
}

// tripsBreaker reports whether a failure counts toward opening the
// circuit. Only transport-level and server-side failures do; 4xx
// rejections prove the endpoint is alive.
func tripsBreaker(err error) bool {
	switch shared.KindOf(err) {
	case shared.KindNotFound, shared.KindConflict, shared.KindBadRequest,
		shared.KindInvalidTransition, shared.KindRateLimited:
		return false
	}
	return true
}

func (cb *CircuitBreaker) onSuccess() {
	cb.failureCount = 0

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
	}
}

// GetState returns the current circuit breaker state
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetFailureCount returns the current consecutive failure count
func (cb *CircuitBreaker) GetFailureCount() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failureCount
}

// SetState allows setting the circuit breaker state (for testing)
func (cb *CircuitBreaker) SetState(state CircuitState, failures int, lastFailure time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = state
	cb.failureCount = failures
	cb.lastFailureTime = lastFailure
	cb.probeInFlight = false
}

// Reset resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failureCount = 0
	cb.probeInFlight = false
}

// breakerRegistry hands out one breaker per (token, endpoint family) key
type breakerRegistry struct {
	mu          sync.Mutex
	breakers    map[string]*CircuitBreaker
	maxFailures int
	timeout     time.Duration
	clock       shared.Clock
}

func newBreakerRegistry(maxFailures int, timeout time.Duration, clock shared.Clock) *breakerRegistry {
	return &breakerRegistry{
		breakers:    make(map[string]*CircuitBreaker),
		maxFailures: maxFailures,
		timeout:     timeout,
		clock:       clock,
	}
}

func (r *breakerRegistry) get(key string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(r.maxFailures, r.timeout, r.clock)
		r.breakers[key] = cb
	}
	return cb
}
