package main

import (
	"net/http"

	"github.com/angeloszaimis/healthwatch/internal/circuitbreaker"
	"github.com/angeloszaimis/healthwatch/internal/metrics"
)

func setupRouter(metricsCollector *metrics.Collector, registry *circuitbreaker.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /metrics", metricsCollector.Handler())
	mux.HandleFunc("GET /breakers", registry.Handler())

	return mux
}
