package metrics_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/healthwatch/internal/metrics"
	"github.com/angeloszaimis/healthwatch/pkg/logger"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, logger.Discard())
	})

	AfterEach(func() {
		cancel()
	})

	Describe("Record methods", func() {
		It("should process up events", func() {
			collector.Start(ctx)
			collector.RecordUp("http://localhost:8081", 100*time.Millisecond, 200)

			Eventually(func() int64 {
				return collector.Snapshot().UpTotal
			}).Should(Equal(int64(1)))
			Expect(collector.Snapshot().Endpoints["http://localhost:8081"].AvgLatency).To(Equal(100 * time.Millisecond))
		})

		It("should process down events", func() {
			collector.Start(ctx)
			collector.RecordDown("http://localhost:8081", 503, "status")

			Eventually(func() int64 {
				return collector.Snapshot().DownTotal
			}).Should(Equal(int64(1)))
		})

		It("should process skip events", func() {
			collector.Start(ctx)
			collector.RecordSkip("http://localhost:8081")

			Eventually(func() int64 {
				return collector.Snapshot().Endpoints["http://localhost:8081"].Skipped
			}).Should(Equal(int64(1)))
		})

		It("should accept raw events on the channel", func() {
			collector.Start(ctx)
			collector.EventChannel() <- metrics.MetricEvent{
				Type:       metrics.EventProbeUp,
				Timestamp:  time.Now(),
				Endpoint:   "http://localhost:8081",
				Duration:   5 * time.Millisecond,
				StatusCode: 200,
			}

			Eventually(func() int64 {
				return collector.Snapshot().UpTotal
			}).Should(Equal(int64(1)))
		})

		It("should drop events instead of blocking when the buffer is full", func() {
			small := metrics.NewCollector(1, logger.Discard())
			small.RecordUp("http://localhost:8081", time.Millisecond, 200)
			small.RecordUp("http://localhost:8081", time.Millisecond, 200)
			small.RecordUp("http://localhost:8081", time.Millisecond, 200)

			small.Start(ctx)
			cancel()
			Eventually(small.Done()).Should(BeClosed())
			Expect(small.Snapshot().UpTotal).To(Equal(int64(1)))
		})
	})

	Describe("Shutdown", func() {
		It("should drain events on context cancellation", func() {
			for i := 0; i < 5; i++ {
				collector.RecordDown("http://localhost:8081", 0, "connect")
			}

			collector.Start(ctx)
			cancel()

			Eventually(collector.Done()).Should(BeClosed())
			Expect(collector.Snapshot().DownTotal).To(Equal(int64(5)))
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)
			collector.RecordUp("http://localhost:8081", 12*time.Millisecond, 200)
			Eventually(func() int64 {
				return collector.Snapshot().UpTotal
			}).Should(Equal(int64(1)))

			rec := httptest.NewRecorder()
			collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var body map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("healthcheck_up_total", BeNumerically("==", 1)))
			Expect(body).To(HaveKeyWithValue("healthcheck_down_total", BeNumerically("==", 0)))
			Expect(body).To(HaveKey("healthcheck_latency_ms"))
		})
	})
})
