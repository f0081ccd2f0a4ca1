// Package circuitbreaker suppresses endpoints that keep failing in watch mode.
//
// Each tracked endpoint has a breaker with three states:
//
//   - CLOSED: fewer failed runs than the threshold, probed normally
//   - OPEN: threshold reached and cooldown running, skipped
//   - HALF-OPEN: cooldown over, probed again; one more failure reopens it
//
// The watch loop consults the Registry before each iteration and applies a
// Policy to it afterwards:
//
//	registry := circuitbreaker.NewRegistry(3, time.Minute)
//	if registry.Allow(url) {
//	    // probe...
//	}
//	circuitbreaker.PerEndpointPolicy{}.Update(registry, summary, outcomes)
package circuitbreaker
