package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atmx/vault-ledger/internal/feed"
	"github.com/atmx/vault-ledger/internal/metrics"
)

// newRouter serves the operational endpoints. Ledger state is not queried
// over HTTP; consumers follow the /ws feed.
func newRouter(hub *feed.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"vault-ledger"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint for committed snapshots.
	r.Get("/ws", hub.HandleWS)

	return r
}
