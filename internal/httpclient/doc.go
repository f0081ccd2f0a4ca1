// Package httpclient builds the pooled HTTP client used for probing, with
// the configured user agent and TLS trust settings applied.
package httpclient
