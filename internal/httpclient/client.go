package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/angeloszaimis/healthwatch/config"
)

var ErrNoCertificates = errors.New("no PEM certificates found")

// New builds the client shared by every probe in the process. It carries no
// timeout of its own; probes bound each request through their context.
func New(cfg *config.Config) (*http.Client, error) {
	transport := cleanhttp.DefaultPooledTransport()
	transport.MaxIdleConnsPerHost = max(cfg.Concurrency, transport.MaxIdleConnsPerHost)

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.DangerAcceptInvalidCerts {
		tlsConfig.InsecureSkipVerify = true //nolint:gosec // opt-in for self-signed targets
	}

	if cfg.CABundlePath != "" {
		pool, err := loadCABundle(cfg.CABundlePath)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}
	transport.TLSClientConfig = tlsConfig

	return &http.Client{
		Transport: &userAgentTransport{
			next:      transport,
			userAgent: cfg.UserAgent,
		},
	}, nil
}

// loadCABundle appends the PEM bundle at path to the system roots.
func loadCABundle(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle %s: %w", path, err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}

	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("parse CA bundle %s: %w", path, ErrNoCertificates)
	}

	return pool, nil
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" || req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(r)
}
