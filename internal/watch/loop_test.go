package watch_test

import (
	"bytes"
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/angeloszaimis/healthwatch/config"
	"github.com/angeloszaimis/healthwatch/internal/circuitbreaker"
	"github.com/angeloszaimis/healthwatch/internal/dispatch"
	"github.com/angeloszaimis/healthwatch/internal/healthcheck"
	"github.com/angeloszaimis/healthwatch/internal/watch"
	"github.com/angeloszaimis/healthwatch/pkg/logger"
)

const (
	flaky   = "http://flaky.example.com/health?token=secret"
	healthy = "http://healthy.example.com/health"
)

// fakeRunner marks every endpoint in failing as Down and records the URLs
// it was asked to probe on each pass.
type fakeRunner struct {
	mu      sync.Mutex
	failing map[string]bool
	passes  [][]string
	onRun   func(pass int)
}

func (r *fakeRunner) Run(_ context.Context, cfg *config.Config) dispatch.Report {
	r.mu.Lock()
	var (
		urls    []string
		results []dispatch.Result
		outs    []healthcheck.Outcome
	)
	for _, ep := range cfg.Endpoints() {
		urls = append(urls, ep.URL)
		out := healthcheck.Outcome{Endpoint: ep.URL, Status: healthcheck.StatusUp, Attempts: 1}
		if r.failing[ep.URL] {
			out = healthcheck.Outcome{Endpoint: ep.URL, Status: healthcheck.StatusDown, Reason: "HTTP 503", Attempts: 1}
		}
		results = append(results, dispatch.Result{Endpoint: ep, Outcome: out})
		outs = append(outs, out)
	}
	r.passes = append(r.passes, urls)
	pass := len(r.passes)
	onRun := r.onRun
	r.mu.Unlock()

	if onRun != nil {
		onRun(pass)
	}

	return dispatch.Report{Summary: healthcheck.Summarize(outs), Results: results}
}

func (r *fakeRunner) Passes() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.passes...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type skipSink struct {
	mu      sync.Mutex
	skipped []string
}

func (s *skipSink) RecordSkip(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped = append(s.skipped, endpoint)
}

var _ = Describe("Loop", func() {
	var (
		cfg      *config.Config
		runner   *fakeRunner
		registry *circuitbreaker.Registry
		clock    *fakeClock
		out      *bytes.Buffer
		ctx      context.Context
	)

	BeforeEach(func() {
		cfg = &config.Config{
			EndpointsToCheck:    []string{flaky},
			WatchIntervalSec:    1,
			CBFailuresThreshold: 3,
			CBCooldownSec:       60,
		}
		runner = &fakeRunner{failing: map[string]bool{flaky: true}}
		clock = &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		registry = circuitbreaker.NewRegistry(cfg.CBFailuresThreshold, cfg.CBCooldown())
		registry.SetClock(clock.Now)
		out = &bytes.Buffer{}
		ctx = context.Background()
	})

	Describe("Iterate", func() {
		It("should exclude an endpoint after three failed passes until the cooldown ends", func() {
			loop := watch.New(cfg, runner, registry, circuitbreaker.AnyFailurePolicy{}, logger.Discard(), watch.WithOutput(out))

			for range 4 {
				Expect(loop.Iterate(ctx)).To(Succeed())
			}
			passes := runner.Passes()
			Expect(passes[0]).To(ConsistOf(flaky))
			Expect(passes[1]).To(ConsistOf(flaky))
			Expect(passes[2]).To(ConsistOf(flaky))
			Expect(passes[3]).To(BeEmpty())

			clock.Advance(59 * time.Second)
			Expect(loop.Iterate(ctx)).To(Succeed())
			Expect(runner.Passes()[4]).To(BeEmpty())

			clock.Advance(2 * time.Second)
			Expect(loop.Iterate(ctx)).To(Succeed())
			Expect(runner.Passes()[5]).To(ConsistOf(flaky))

			// Still failing, so a single failure reopens it.
			Expect(loop.Iterate(ctx)).To(Succeed())
			Expect(runner.Passes()[6]).To(BeEmpty())
		})

		It("should forget an endpoint once it recovers", func() {
			loop := watch.New(cfg, runner, registry, circuitbreaker.AnyFailurePolicy{}, logger.Discard(), watch.WithOutput(out))

			Expect(loop.Iterate(ctx)).To(Succeed())
			Expect(loop.Iterate(ctx)).To(Succeed())
			Expect(registry.Len()).To(Equal(1))

			runner.failing = nil
			Expect(loop.Iterate(ctx)).To(Succeed())
			Expect(registry.Len()).To(BeZero())
		})

		It("should penalize healthy neighbours under the any-failure policy", func() {
			cfg.EndpointsToCheck = []string{flaky, healthy}
			loop := watch.New(cfg, runner, registry, circuitbreaker.AnyFailurePolicy{}, logger.Discard(), watch.WithOutput(out))

			for range 4 {
				Expect(loop.Iterate(ctx)).To(Succeed())
			}
			Expect(runner.Passes()[3]).To(BeEmpty())
		})

		It("should only exclude the failing endpoint under the per-endpoint policy", func() {
			cfg.EndpointsToCheck = []string{flaky, healthy}
			loop := watch.New(cfg, runner, registry, circuitbreaker.PerEndpointPolicy{}, logger.Discard(), watch.WithOutput(out))

			for range 4 {
				Expect(loop.Iterate(ctx)).To(Succeed())
			}
			Expect(runner.Passes()[3]).To(ConsistOf(healthy))
		})

		It("should record and log skipped endpoints without their query", func() {
			sink := &skipSink{}
			logs := gbytes.NewBuffer()
			loop := watch.New(cfg, runner, registry, circuitbreaker.AnyFailurePolicy{},
				logger.NewWithWriter(logs, "info", false, false),
				watch.WithOutput(out), watch.WithSkipRecorder(sink))

			for range 4 {
				Expect(loop.Iterate(ctx)).To(Succeed())
			}

			Expect(sink.skipped).To(Equal([]string{"http://flaky.example.com/health"}))
			Expect(logs).To(gbytes.Say("circuit open; skipping this iteration"))
			Expect(string(logs.Contents())).NotTo(ContainSubstring("secret"))
		})

		It("should print one JSON summary line per pass when enabled", func() {
			cfg.SummaryJSON = true
			loop := watch.New(cfg, runner, registry, circuitbreaker.AnyFailurePolicy{}, logger.Discard(), watch.WithOutput(out))

			Expect(loop.Iterate(ctx)).To(Succeed())
			Expect(loop.Iterate(ctx)).To(Succeed())

			Expect(out.String()).To(Equal("{\"total\":1,\"up\":0,\"down\":1}\n{\"total\":1,\"up\":0,\"down\":1}\n"))
			Expect(loop.LastSummary()).To(Equal(healthcheck.Summary{Total: 1, Down: 1}))
		})

		It("should print nothing when summaries are disabled", func() {
			loop := watch.New(cfg, runner, registry, circuitbreaker.AnyFailurePolicy{}, logger.Discard(), watch.WithOutput(out))
			Expect(loop.Iterate(ctx)).To(Succeed())
			Expect(out.Len()).To(BeZero())
		})

		It("should leave breakers untouched when cancelled mid-pass", func() {
			cctx, cancel := context.WithCancel(ctx)
			runner.onRun = func(int) { cancel() }
			loop := watch.New(cfg, runner, registry, circuitbreaker.AnyFailurePolicy{}, logger.Discard(), watch.WithOutput(out))

			Expect(loop.Iterate(cctx)).To(MatchError(context.Canceled))
			Expect(registry.Len()).To(BeZero())
		})
	})

	Describe("Run", func() {
		It("should refuse a non-positive interval", func() {
			cfg.WatchIntervalSec = 0
			loop := watch.New(cfg, runner, registry, circuitbreaker.AnyFailurePolicy{}, logger.Discard(), watch.WithOutput(out))
			Expect(loop.Run(ctx)).To(MatchError(watch.ErrNoInterval))
		})

		It("should repeat passes until cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			runner.onRun = func(pass int) {
				if pass == 3 {
					cancel()
				}
			}
			loop := watch.New(cfg, runner, registry, circuitbreaker.AnyFailurePolicy{}, logger.Discard(),
				watch.WithOutput(out), watch.WithIntervals(5*time.Millisecond, 0))

			Expect(loop.Run(cctx)).To(Succeed())
			Expect(runner.Passes()).To(HaveLen(3))
		})

		It("should log periodic summaries without shortening the interval", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()

			logs := gbytes.NewBuffer()
			loop := watch.New(cfg, runner, registry, circuitbreaker.AnyFailurePolicy{},
				logger.NewWithWriter(logs, "info", false, false),
				watch.WithOutput(out), watch.WithIntervals(300*time.Millisecond, 20*time.Millisecond))

			done := make(chan error, 1)
			go func() { done <- loop.Run(cctx) }()

			Eventually(logs).Should(gbytes.Say("periodic summary"))
			Eventually(logs).Should(gbytes.Say("periodic summary"))
			Expect(len(runner.Passes())).To(BeNumerically("<=", 1))

			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
