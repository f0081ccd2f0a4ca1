package circuitbreaker

import (
	"sync"
	"time"
)

// Registry holds one breaker per endpoint URL. Endpoints without an entry
// are closed. Entries are created on the first failure and removed on the
// first success.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*CircuitBreaker
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

func NewRegistry(threshold int, cooldown time.Duration) *Registry {
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// SetClock replaces the time source for the registry and all its breakers.
func (r *Registry) SetClock(now func() time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.now = now
	for _, cb := range r.breakers {
		cb.setClock(now)
	}
}

func (r *Registry) GetBreaker(endpointURL string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[endpointURL]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[endpointURL]; exists {
		return cb
	}

	cb = newCircuitBreaker(r.threshold, r.cooldown, r.now)
	r.breakers[endpointURL] = cb
	return cb
}

func (r *Registry) Lookup(endpointURL string) (*CircuitBreaker, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	cb, ok := r.breakers[endpointURL]
	return cb, ok
}

func (r *Registry) Allow(endpointURL string) bool {
	cb, ok := r.Lookup(endpointURL)
	if !ok {
		return true
	}
	return cb.Allow()
}

func (r *Registry) RecordFailure(endpointURL string) {
	r.GetBreaker(endpointURL).RecordFailure()
}

// RecordSuccess forgets the endpoint entirely.
func (r *Registry) RecordSuccess(endpointURL string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.breakers, endpointURL)
}

func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.breakers = make(map[string]*CircuitBreaker)
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.breakers)
}

type BreakerStats struct {
	State     State      `json:"state"`
	Failures  int        `json:"failures"`
	OpenUntil *time.Time `json:"open_until,omitempty"`
}

func (r *Registry) Stats() map[string]BreakerStats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]BreakerStats, len(r.breakers))
	for url, cb := range r.breakers {
		s := BreakerStats{
			State:    cb.State(),
			Failures: cb.Failures(),
		}
		if until := cb.OpenUntil(); !until.IsZero() {
			s.OpenUntil = &until
		}
		stats[url] = s
	}
	return stats
}
