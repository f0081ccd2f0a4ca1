package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/angeloszaimis/healthwatch/config"
	"github.com/angeloszaimis/healthwatch/internal/healthcheck"
	"github.com/angeloszaimis/healthwatch/internal/urlutil"
)

// Result pairs a configured endpoint with its final outcome.
type Result struct {
	Endpoint config.EndpointConfig
	Outcome  healthcheck.Outcome
}

type Report struct {
	RunID   uuid.UUID
	Summary healthcheck.Summary
	Results []Result
}

// Outcomes indexes the results by configured URL.
func (r Report) Outcomes() map[string]healthcheck.Outcome {
	outcomes := make(map[string]healthcheck.Outcome, len(r.Results))
	for _, res := range r.Results {
		outcomes[res.Endpoint.URL] = res.Outcome
	}
	return outcomes
}

type Dispatcher struct {
	prober      healthcheck.Prober
	logger      *slog.Logger
	retrierOpts []healthcheck.RetrierOption
}

func New(prober healthcheck.Prober, logger *slog.Logger, opts ...healthcheck.RetrierOption) *Dispatcher {
	return &Dispatcher{
		prober:      prober,
		logger:      logger,
		retrierOpts: opts,
	}
}

// Run checks every endpoint in cfg concurrently and waits for all of them.
// At most cfg.Concurrency probe attempts are in flight at once, counting
// retries; backoff waits do not hold a slot.
func (d *Dispatcher) Run(ctx context.Context, cfg *config.Config) Report {
	runID := uuid.New()
	log := d.logger.With(slog.String("run_id", runID.String()))

	endpoints := cfg.Endpoints()
	if len(endpoints) == 0 {
		log.Warn("no endpoints configured")
		return Report{RunID: runID}
	}

	gate := semaphore.NewWeighted(int64(max(cfg.Concurrency, 1)))
	retrier := healthcheck.NewRetrier(
		&gatedProber{next: d.prober, gate: gate},
		healthcheck.Backoff{Base: cfg.BaseBackoff(), Max: cfg.MaxBackoff()},
		log,
		d.retrierOpts...,
	)

	results := make([]Result, len(endpoints))

	var wg sync.WaitGroup
	for i, ep := range endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()

			log.Debug("checking endpoint", slog.String("endpoint", urlutil.Redact(ep.URL)))

			outcome := retrier.CheckWithRetries(ctx, ep, ep.RetriesOr(cfg.Retries), ep.TimeoutOr(cfg.RequestTimeout()))
			results[i] = Result{Endpoint: ep, Outcome: outcome}

			logOutcome(log, outcome)
		}()
	}
	wg.Wait()

	outcomes := make([]healthcheck.Outcome, len(results))
	for i, res := range results {
		outcomes[i] = res.Outcome
	}
	summary := healthcheck.Summarize(outcomes)

	log.Info("healthcheck summary",
		slog.Int("total", summary.Total),
		slog.Int("up", summary.Up),
		slog.Int("down", summary.Down))

	return Report{
		RunID:   runID,
		Summary: summary,
		Results: results,
	}
}

func logOutcome(log *slog.Logger, o healthcheck.Outcome) {
	if o.Up() {
		log.Info("endpoint up",
			slog.String("endpoint", o.Endpoint),
			slog.Int64("latency_ms", o.LatencyMS()),
			slog.Int("status", o.StatusCode),
			slog.Int("attempts", o.Attempts))
		return
	}

	attrs := []any{
		slog.String("endpoint", o.Endpoint),
		slog.String("reason", o.Reason),
		slog.String("kind", string(o.Kind)),
		slog.Int("attempts", o.Attempts),
	}
	if o.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status", o.StatusCode))
	}
	log.Error("endpoint down", attrs...)
}

// gatedProber holds one slot of the shared gate for the duration of each
// attempt.
type gatedProber struct {
	next healthcheck.Prober
	gate *semaphore.Weighted
}

func (g *gatedProber) Probe(ctx context.Context, ep config.EndpointConfig, timeout time.Duration) healthcheck.Outcome {
	if err := g.gate.Acquire(ctx, 1); err != nil {
		return healthcheck.Outcome{
			Endpoint: urlutil.Redact(ep.URL),
			Status:   healthcheck.StatusDown,
			Reason:   err.Error(),
			Kind:     healthcheck.KindOther,
			Attempts: 1,
		}
	}
	defer g.gate.Release(1)

	return g.next.Probe(ctx, ep, timeout)
}
