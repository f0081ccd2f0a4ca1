// Package metrics collects probe metrics for the health checker.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - healthcheck_up_total and healthcheck_down_total counters
//   - the healthcheck_latency_ms histogram, fed by successful probes
//   - per-endpoint up/down/skip counts, latency percentiles (P50, P95, P99),
//     status code distribution and failure kinds
//
// The collector runs in a dedicated goroutine. Probes report through the
// non-blocking Record methods, so a slow consumer never delays a check.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.RecordUp("https://api.example.com/health", 42*time.Millisecond, 200)
//	collector.RecordDown("https://db.example.com/health", 0, "timeout")
//
//	snapshot := collector.Snapshot()
//
// Cancelling the context drains any buffered events before Done is closed.
package metrics
