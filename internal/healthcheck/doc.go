// Package healthcheck probes HTTP endpoints and retries failures.
//
// HTTPProber issues a single request per call and classifies the result as
// Up or Down, recording a metrics event for every attempt. Retrier wraps any
// Prober with bounded retries and exponential backoff with jitter. Outcomes
// never carry query strings, so they are safe to log.
package healthcheck
