package metrics

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

const maxLatencySamples = 1000

// LatencyBuckets are the upper bounds, in milliseconds, of the latency
// histogram. A final +Inf bucket is implied.
var LatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

type Metrics struct {
	mutex        sync.RWMutex
	upTotal      int64
	downTotal    int64
	bucketCounts []int64
	latencySum   float64
	latencyCount int64
	ups          map[string]int64
	downs        map[string]int64
	skips        map[string]int64
	latencies    map[string][]time.Duration
	statusCodes  map[string]map[int]int64
	failureKinds map[string]map[string]int64
	healthStatus map[string]bool
	startTime    time.Time
}

type Snapshot struct {
	UpTotal   int64                      `json:"healthcheck_up_total"`
	DownTotal int64                      `json:"healthcheck_down_total"`
	Latency   Histogram                  `json:"healthcheck_latency_ms"`
	Uptime    time.Duration              `json:"uptime"`
	Endpoints map[string]EndpointMetrics `json:"endpoints"`
}

// Histogram holds cumulative bucket counts in the Prometheus style.
type Histogram struct {
	Buckets []Bucket `json:"buckets"`
	Count   int64    `json:"count"`
	Sum     float64  `json:"sum"`
}

type Bucket struct {
	LE    string `json:"le"`
	Count int64  `json:"count"`
}

type EndpointMetrics struct {
	Up           int64            `json:"up"`
	Down         int64            `json:"down"`
	Skipped      int64            `json:"skipped"`
	Healthy      bool             `json:"healthy"`
	AvgLatency   time.Duration    `json:"avg_latency"`
	P50Latency   time.Duration    `json:"p50_latency"`
	P95Latency   time.Duration    `json:"p95_latency"`
	P99Latency   time.Duration    `json:"p99_latency"`
	StatusCodes  map[int]int64    `json:"status_codes"`
	FailureKinds map[string]int64 `json:"failure_kinds,omitempty"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		bucketCounts: make([]int64, len(LatencyBuckets)+1),
		ups:          make(map[string]int64),
		downs:        make(map[string]int64),
		skips:        make(map[string]int64),
		latencies:    make(map[string][]time.Duration),
		statusCodes:  make(map[string]map[int]int64),
		failureKinds: make(map[string]map[string]int64),
		healthStatus: make(map[string]bool),
		startTime:    time.Now(),
	}
}

func (m *Metrics) RecordUp(endpoint string, latency time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.upTotal++
	m.ups[endpoint]++
	m.healthStatus[endpoint] = true
	m.recordStatus(endpoint, statusCode)

	ms := float64(latency) / float64(time.Millisecond)
	m.bucketCounts[bucketIndex(ms)]++
	m.latencySum += ms
	m.latencyCount++

	m.latencies[endpoint] = append(m.latencies[endpoint], latency)
	if len(m.latencies[endpoint]) > maxLatencySamples {
		m.latencies[endpoint] = m.latencies[endpoint][1:]
	}
}

func (m *Metrics) RecordDown(endpoint string, statusCode int, kind string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.downTotal++
	m.downs[endpoint]++
	m.healthStatus[endpoint] = false
	m.recordStatus(endpoint, statusCode)

	if kind != "" {
		if m.failureKinds[endpoint] == nil {
			m.failureKinds[endpoint] = make(map[string]int64)
		}
		m.failureKinds[endpoint][kind]++
	}
}

func (m *Metrics) RecordSkip(endpoint string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.skips[endpoint]++
}

// recordStatus expects the write lock to be held. Zero means no response.
func (m *Metrics) recordStatus(endpoint string, statusCode int) {
	if statusCode == 0 {
		return
	}
	if m.statusCodes[endpoint] == nil {
		m.statusCodes[endpoint] = make(map[int]int64)
	}
	m.statusCodes[endpoint][statusCode]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		UpTotal:   m.upTotal,
		DownTotal: m.downTotal,
		Latency:   m.histogram(),
		Uptime:    time.Since(m.startTime),
		Endpoints: make(map[string]EndpointMetrics),
	}

	allEndpoints := make(map[string]bool)
	for endpoint := range m.ups {
		allEndpoints[endpoint] = true
	}
	for endpoint := range m.downs {
		allEndpoints[endpoint] = true
	}
	for endpoint := range m.skips {
		allEndpoints[endpoint] = true
	}

	for endpoint := range allEndpoints {
		em := EndpointMetrics{
			Up:           m.ups[endpoint],
			Down:         m.downs[endpoint],
			Skipped:      m.skips[endpoint],
			Healthy:      m.healthStatus[endpoint],
			StatusCodes:  copyCounts(m.statusCodes[endpoint]),
			FailureKinds: copyCounts(m.failureKinds[endpoint]),
		}

		durations := m.latencies[endpoint]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			em.AvgLatency = average(sorted)
			em.P50Latency = percentile(sorted, 0.50)
			em.P95Latency = percentile(sorted, 0.95)
			em.P99Latency = percentile(sorted, 0.99)
		}

		snap.Endpoints[endpoint] = em
	}

	return snap
}

func (m *Metrics) histogram() Histogram {
	h := Histogram{
		Buckets: make([]Bucket, 0, len(m.bucketCounts)),
		Count:   m.latencyCount,
		Sum:     m.latencySum,
	}

	var cumulative int64
	for i, count := range m.bucketCounts {
		cumulative += count
		le := "+Inf"
		if i < len(LatencyBuckets) {
			le = strconv.FormatFloat(LatencyBuckets[i], 'f', -1, 64)
		}
		h.Buckets = append(h.Buckets, Bucket{LE: le, Count: cumulative})
	}

	return h
}

func bucketIndex(ms float64) int {
	for i, bound := range LatencyBuckets {
		if ms <= bound {
			return i
		}
	}
	return len(LatencyBuckets)
}

func copyCounts[K comparable](src map[K]int64) map[K]int64 {
	if src == nil {
		return nil
	}
	dst := make(map[K]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
