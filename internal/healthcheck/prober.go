package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/angeloszaimis/healthwatch/config"
	"github.com/angeloszaimis/healthwatch/internal/urlutil"
)

const maxResponseBodySize = 1 << 20 // 1MB

// Prober performs a single check attempt against one endpoint.
type Prober interface {
	Probe(ctx context.Context, ep config.EndpointConfig, timeout time.Duration) Outcome
}

// Recorder receives one event per probe attempt. Endpoints are redacted.
type Recorder interface {
	RecordUp(endpoint string, latency time.Duration, statusCode int)
	RecordDown(endpoint string, statusCode int, kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordUp(string, time.Duration, int) {}
func (nopRecorder) RecordDown(string, int, string)      {}

// HTTPProber checks endpoints with a shared, read-only http.Client.
type HTTPProber struct {
	client   *http.Client
	recorder Recorder
}

// NewHTTPProber returns a prober using client. Timeouts are applied per
// request through the context, so client should not carry its own. A nil
// recorder discards metrics.
func NewHTTPProber(client *http.Client, recorder Recorder) *HTTPProber {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &HTTPProber{
		client:   client,
		recorder: recorder,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, ep config.EndpointConfig, timeout time.Duration) Outcome {
	endpoint := urlutil.Redact(ep.URL)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, ep.HTTPMethod(), ep.URL, nil)
	if err != nil {
		return p.failure(endpoint, err, KindOther)
	}

	for name, value := range ep.Headers {
		req.Header.Set(name, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return p.failure(endpoint, err, classify(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if !ep.ExpectedStatus.Allows(resp.StatusCode) {
		p.recorder.RecordDown(endpoint, resp.StatusCode, string(KindStatus))
		return Outcome{
			Endpoint:   endpoint,
			Status:     StatusDown,
			Reason:     fmt.Sprintf("HTTP %d", resp.StatusCode),
			Kind:       KindStatus,
			Attempts:   1,
			StatusCode: resp.StatusCode,
		}
	}

	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize)); err != nil {
		kind := classify(err)
		if kind != KindTimeout {
			kind = KindBody
		}
		return p.failure(endpoint, err, kind)
	}

	latency := time.Since(start)
	p.recorder.RecordUp(endpoint, latency, resp.StatusCode)

	return Outcome{
		Endpoint:   endpoint,
		Status:     StatusUp,
		Latency:    latency,
		Attempts:   1,
		StatusCode: resp.StatusCode,
	}
}

func (p *HTTPProber) failure(endpoint string, err error, kind FailureKind) Outcome {
	p.recorder.RecordDown(endpoint, 0, string(kind))
	return Outcome{
		Endpoint: endpoint,
		Status:   StatusDown,
		Reason:   redactError(err),
		Kind:     kind,
		Attempts: 1,
	}
}

// redactError renders err with any request URL stripped of its query.
func redactError(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = urlutil.Redact(urlErr.URL)
	}
	return err.Error()
}

func classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindConnect
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnect
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindConnect
	}

	return KindOther
}
