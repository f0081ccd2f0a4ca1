// Package dispatch runs one health check pass over a set of endpoints.
//
// Every endpoint gets its own goroutine running the retrier, while a
// weighted semaphore sized to the configured concurrency bounds how many
// probe attempts are in flight. The pass ends when every endpoint has a
// final outcome, and the Report aggregates them into a Summary.
package dispatch
