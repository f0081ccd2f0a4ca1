package circuitbreaker

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Probed normally
	StateOpen                  // Skipped until the cooldown ends
	StateHalfOpen              // Cooldown over; the next failure reopens
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitBreaker tracks consecutive failed runs for one endpoint. State is
// derived from the failure count and the cooldown deadline on every call, so
// an open breaker closes lazily once its deadline passes.
type CircuitBreaker struct {
	mutex            sync.Mutex
	failures         int
	openUntil        time.Time
	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return newCircuitBreaker(threshold, cooldown, time.Now)
}

func newCircuitBreaker(threshold int, cooldown time.Duration, now func() time.Time) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: threshold,
		cooldown:         cooldown,
		now:              now,
	}
}

// Allow reports whether the endpoint may be probed now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.stateLocked() != StateOpen
}

// RecordFailure counts one failed run. Reaching the threshold, or failing
// again after it, pushes the deadline to now plus the cooldown.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++
	if cb.failures >= cb.failureThreshold {
		cb.openUntil = cb.now().Add(cb.cooldown)
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures = 0
	cb.openUntil = time.Time{}
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.stateLocked()
}

func (cb *CircuitBreaker) Failures() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.failures
}

// OpenUntil returns the cooldown deadline, or the zero time if the threshold
// was never reached.
func (cb *CircuitBreaker) OpenUntil() time.Time {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.openUntil
}

func (cb *CircuitBreaker) stateLocked() State {
	if cb.failures < cb.failureThreshold {
		return StateClosed
	}
	if cb.now().Before(cb.openUntil) {
		return StateOpen
	}
	return StateHalfOpen
}

func (cb *CircuitBreaker) setClock(now func() time.Time) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.now = now
}
