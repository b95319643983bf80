package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/alfreddev/connpool/pool"
)

// newRouter builds the demo HTTP surface: liveness endpoints matching the
// teacher's router_test.go expectations, a /pools introspection endpoint,
// and a Prometheus /metrics endpoint.
func newRouter(manager *pool.ConnectionManager, registry *prometheus.Registry, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	healthy := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
	r.Get("/healthz", healthy)
	r.Get("/ready", healthy)
	r.Get("/health", healthy)

	r.Get("/pools", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(manager.Snapshot()); err != nil {
			log.Error().Err(err).Msg("encode pool snapshot")
		}
	})

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}
