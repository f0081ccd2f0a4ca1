package healthcheck

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/angeloszaimis/healthwatch/config"
)

const maxBackoffExponent = 20

// Backoff computes retry delays: min(Base*2^(n-1), Max) plus a uniform
// jitter of up to half that value.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// Jitter returns a value in [0, n]. Nil means uniform random.
	Jitter func(n int64) int64
}

// Delay returns the wait before retry n, counting from 1.
func (b Backoff) Delay(n int) time.Duration {
	exp := min(max(n-1, 0), maxBackoffExponent)

	d := b.Base
	if d > 0 && d > time.Duration(math.MaxInt64>>exp) {
		d = time.Duration(math.MaxInt64)
	} else {
		d <<= exp
	}
	d = min(d, b.Max)
	if d <= 0 {
		return 0
	}

	return d + time.Duration(b.jitter(int64(d/2)))
}

func (b Backoff) jitter(n int64) int64 {
	if b.Jitter != nil {
		return b.Jitter(n)
	}
	return rand.Int64N(n + 1)
}

type RetrierOption func(*Retrier)

// WithSleep replaces the wait between attempts. The function must return a
// non-nil error when ctx ends before d has elapsed.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) {
		r.sleep = sleep
	}
}

// Retrier repeats failed probes with exponential backoff. Attempts for one
// endpoint never overlap.
type Retrier struct {
	prober  Prober
	backoff Backoff
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewRetrier(prober Prober, backoff Backoff, logger *slog.Logger, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		prober:  prober,
		backoff: backoff,
		logger:  logger,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckWithRetries probes ep once and then up to maxRetries more times until
// it is Up. The returned outcome is the last attempt's, carrying the total
// number of attempts made.
func (r *Retrier) CheckWithRetries(ctx context.Context, ep config.EndpointConfig, maxRetries int, timeout time.Duration) Outcome {
	outcome := r.prober.Probe(ctx, ep, timeout)
	outcome.Attempts = 1

	for retry := 1; retry <= maxRetries && !outcome.Up(); retry++ {
		r.logger.Warn("retrying failed endpoint",
			slog.String("endpoint", outcome.Endpoint),
			slog.Int("attempt", retry),
			slog.String("reason", outcome.Reason))

		if err := r.sleep(ctx, r.backoff.Delay(retry)); err != nil {
			break
		}

		outcome = r.prober.Probe(ctx, ep, timeout)
		outcome.Attempts = retry + 1
	}

	return outcome
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
