package healthcheck_test

import (
	"context"
	"sync"
	"time"

	"github.com/angeloszaimis/healthwatch/config"
	"github.com/angeloszaimis/healthwatch/internal/healthcheck"
)

func intPtr(v int) *int { return &v }

type recordedEvent struct {
	endpoint   string
	up         bool
	statusCode int
	kind       string
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *fakeRecorder) RecordUp(endpoint string, _ time.Duration, statusCode int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{endpoint: endpoint, up: true, statusCode: statusCode})
}

func (r *fakeRecorder) RecordDown(endpoint string, statusCode int, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{endpoint: endpoint, statusCode: statusCode, kind: kind})
}

func (r *fakeRecorder) Events() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

// scriptedProber returns the queued outcomes in order and repeats the last.
type scriptedProber struct {
	mu       sync.Mutex
	outcomes []healthcheck.Outcome
	calls    int
}

func (p *scriptedProber) Probe(_ context.Context, ep config.EndpointConfig, _ time.Duration) healthcheck.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := min(p.calls, len(p.outcomes)-1)
	p.calls++

	out := p.outcomes[idx]
	out.Endpoint = ep.URL
	return out
}

func (p *scriptedProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func down(reason string) healthcheck.Outcome {
	return healthcheck.Outcome{Status: healthcheck.StatusDown, Reason: reason, Kind: healthcheck.KindStatus, StatusCode: 500}
}

func up() healthcheck.Outcome {
	return healthcheck.Outcome{Status: healthcheck.StatusUp, StatusCode: 200, Latency: time.Millisecond}
}
