package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/angeloszaimis/healthwatch/config"
	"github.com/angeloszaimis/healthwatch/internal/circuitbreaker"
	"github.com/angeloszaimis/healthwatch/internal/dispatch"
	"github.com/angeloszaimis/healthwatch/internal/healthcheck"
	"github.com/angeloszaimis/healthwatch/internal/urlutil"
)

var ErrNoInterval = errors.New("watch interval must be positive")

// Runner performs one check pass. *dispatch.Dispatcher satisfies it.
type Runner interface {
	Run(ctx context.Context, cfg *config.Config) dispatch.Report
}

type SkipRecorder interface {
	RecordSkip(endpoint string)
}

type nopSkipRecorder struct{}

func (nopSkipRecorder) RecordSkip(string) {}

type Option func(*Loop)

// WithOutput sets where summary lines are written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(l *Loop) {
		l.out = w
	}
}

func WithSkipRecorder(r SkipRecorder) Option {
	return func(l *Loop) {
		l.skips = r
	}
}

// WithIntervals overrides the iteration and metrics intervals taken from
// the config. A zero metrics interval disables the periodic summary.
func WithIntervals(iteration, metrics time.Duration) Option {
	return func(l *Loop) {
		l.interval = iteration
		l.metricsInterval = metrics
	}
}

// Loop repeats check passes on a fixed interval and keeps failing endpoints
// out of the batch through the breaker registry. A Loop is not safe for
// concurrent use; Run must only be called once at a time.
type Loop struct {
	cfg      *config.Config
	runner   Runner
	registry *circuitbreaker.Registry
	policy   circuitbreaker.Policy
	logger   *slog.Logger
	out      io.Writer
	skips    SkipRecorder

	interval        time.Duration
	metricsInterval time.Duration

	last healthcheck.Summary
}

func New(cfg *config.Config, runner Runner, registry *circuitbreaker.Registry, policy circuitbreaker.Policy, logger *slog.Logger, opts ...Option) *Loop {
	l := &Loop{
		cfg:             cfg,
		runner:          runner,
		registry:        registry,
		policy:          policy,
		logger:          logger,
		out:             os.Stdout,
		skips:           nopSkipRecorder{},
		interval:        cfg.WatchInterval(),
		metricsInterval: cfg.MetricsLogInterval(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run loops until ctx is cancelled, which is reported as a nil error. It
// only fails if the interval is not positive or a summary cannot be
// written.
func (l *Loop) Run(ctx context.Context) error {
	if l.interval <= 0 {
		return ErrNoInterval
	}

	var tick <-chan time.Time
	if l.metricsInterval > 0 {
		ticker := time.NewTicker(l.metricsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	l.logger.Info("starting watch loop",
		slog.Duration("interval", l.interval),
		slog.Duration("metrics_interval", l.metricsInterval))

	for {
		if err := l.Iterate(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := l.wait(ctx, tick); err != nil {
			l.logger.Info("watch loop stopped")
			return nil
		}
	}
}

// Iterate runs a single pass over the endpoints whose breaker allows it and
// applies the policy to the result.
func (l *Loop) Iterate(ctx context.Context) error {
	endpoints := l.cfg.Endpoints()
	allowed := make([]config.EndpointConfig, 0, len(endpoints))
	for _, ep := range endpoints {
		if !l.registry.Allow(ep.URL) {
			redacted := urlutil.Redact(ep.URL)
			l.logger.Warn("circuit open; skipping this iteration", slog.String("endpoint", redacted))
			l.skips.RecordSkip(redacted)
			continue
		}
		allowed = append(allowed, ep)
	}

	report := l.runner.Run(ctx, l.cfg.WithEndpoints(allowed))
	if err := ctx.Err(); err != nil {
		return err
	}

	l.last = report.Summary

	if l.cfg.SummaryJSON {
		if err := json.NewEncoder(l.out).Encode(report.Summary); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	l.policy.Update(l.registry, report.Summary, report.Outcomes())
	return nil
}

// LastSummary returns the summary of the most recent completed pass.
func (l *Loop) LastSummary() healthcheck.Summary {
	return l.last
}

// wait blocks for one iteration interval. Metrics ticks log the last summary
// without cutting the wait short.
func (l *Loop) wait(ctx context.Context, tick <-chan time.Time) error {
	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-tick:
			l.logger.Info("periodic summary",
				slog.Int("total", l.last.Total),
				slog.Int("up", l.last.Up),
				slog.Int("down", l.last.Down))
		}
	}
}
