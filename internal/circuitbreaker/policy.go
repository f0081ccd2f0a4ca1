package circuitbreaker

import (
	"fmt"

	"github.com/angeloszaimis/healthwatch/config"
	"github.com/angeloszaimis/healthwatch/internal/healthcheck"
)

// Policy applies the result of one run to the registry. outcomes holds only
// the endpoints probed in that run, keyed by their configured URL.
type Policy interface {
	Update(reg *Registry, summary healthcheck.Summary, outcomes map[string]healthcheck.Outcome)
}

// AnyFailurePolicy penalizes every probed endpoint when any of them was
// Down, and clears them all when none was.
type AnyFailurePolicy struct{}

func (AnyFailurePolicy) Update(reg *Registry, summary healthcheck.Summary, outcomes map[string]healthcheck.Outcome) {
	for url := range outcomes {
		if summary.Down > 0 {
			reg.RecordFailure(url)
		} else {
			reg.RecordSuccess(url)
		}
	}
}

// PerEndpointPolicy only penalizes the endpoints that were Down themselves.
type PerEndpointPolicy struct{}

func (PerEndpointPolicy) Update(reg *Registry, _ healthcheck.Summary, outcomes map[string]healthcheck.Outcome) {
	for url, outcome := range outcomes {
		if outcome.Up() {
			reg.RecordSuccess(url)
		} else {
			reg.RecordFailure(url)
		}
	}
}

func PolicyFor(name string) (Policy, error) {
	switch name {
	case "", config.PolicyAnyFailure:
		return AnyFailurePolicy{}, nil
	case config.PolicyPerEndpoint:
		return PerEndpointPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown circuit breaker policy: %s", name)
	}
}
