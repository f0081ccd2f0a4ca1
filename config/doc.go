// Package config loads the run configuration from a JSON or YAML file, applies
// defaults and environment overrides, and validates it. It defines the run
// settings (concurrency, timeouts, backoff, circuit breaker) and the endpoint
// list, including per-endpoint overrides resolved at the point of use.
package config
