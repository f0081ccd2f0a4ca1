// Backend is a test HTTP server with endpoints that misbehave on purpose,
// for exercising healthwatch retries and circuit breaking locally.
//
// Usage:
//
//	go run ./scripts -port 8081 -fail-every 3 -delay 2s
//
// Endpoints:
//   - /health           always 200
//   - /flaky            503 on every Nth request (-fail-every), 200 otherwise
//   - /slow             sleeps for -delay before answering 200
//   - /status/{code}    answers with the given status code
//
// Every response carries an X-Request-Id header.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/healthwatch/pkg/logger"
)

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	failEvery := flag.Int("fail-every", 3, "fail every Nth request to /flaky (0 disables)")
	delay := flag.Duration("delay", 2*time.Second, "response delay for /slow")
	flag.Parse()

	log := logger.New("info", false, false)

	var flakyHits atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		n := flakyHits.Add(1)
		if *failEvery > 0 && n%int64(*failEvery) == 0 {
			http.Error(w, "flaky failure", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(*delay):
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	})

	mux.HandleFunc("/status/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(r.PathValue("code"))
		if err != nil || code < 100 || code > 599 {
			http.Error(w, "invalid status code", http.StatusBadRequest)
			return
		}
		w.WriteHeader(code)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Info("starting test backend", slog.String("addr", addr))

	if err := http.ListenAndServe(addr, withRequestID(log, mux)); err != nil {
		log.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func withRequestID(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)

		log.Info("request",
			slog.String("id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("user_agent", r.UserAgent()))

		next.ServeHTTP(w, r)
	})
}
