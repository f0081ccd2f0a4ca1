package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventProbeUp         EventType = "probe_up"
	EventProbeDown       EventType = "probe_down"
	EventEndpointSkipped EventType = "endpoint_skipped"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Endpoint   string
	Duration   time.Duration
	StatusCode int
	Kind       string
}

// Collector aggregates probe events on its own goroutine. The Record methods
// never block; events are dropped when the buffer is full.
type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
	done    chan struct{}
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

// Done is closed once the collector has drained after its context ended.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

func (c *Collector) RecordUp(endpoint string, latency time.Duration, statusCode int) {
	c.emit(MetricEvent{
		Type:       EventProbeUp,
		Timestamp:  time.Now(),
		Endpoint:   endpoint,
		Duration:   latency,
		StatusCode: statusCode,
	})
}

func (c *Collector) RecordDown(endpoint string, statusCode int, kind string) {
	c.emit(MetricEvent{
		Type:       EventProbeDown,
		Timestamp:  time.Now(),
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Kind:       kind,
	})
}

func (c *Collector) RecordSkip(endpoint string) {
	c.emit(MetricEvent{
		Type:      EventEndpointSkipped,
		Timestamp: time.Now(),
		Endpoint:  endpoint,
	})
}

func (c *Collector) emit(event MetricEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Debug("Metrics buffer full, dropping event",
			slog.String("type", string(event.Type)),
			slog.String("endpoint", event.Endpoint))
	}
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Debug("Metrics collector started")
	defer c.logger.Debug("Metrics collector stopped")
	defer close(c.done)

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventProbeUp:
		c.metrics.RecordUp(event.Endpoint, event.Duration, event.StatusCode)

	case EventProbeDown:
		c.metrics.RecordDown(event.Endpoint, event.StatusCode, event.Kind)

	case EventEndpointSkipped:
		c.metrics.RecordSkip(event.Endpoint)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
