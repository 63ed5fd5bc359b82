package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridwall/gridwall/internal/metrics"
)

// NewServer creates an HTTP handler with all routes configured. wsHandler
// serves the realtime channel; it is mounted outside the logging and
// metrics middleware because those wrap the ResponseWriter and would break
// the websocket upgrade.
func NewServer(logger *slog.Logger, grid Grid, sessions SessionCounter, store Pinger, wsHandler http.Handler) http.Handler {
	mux := chi.NewRouter()

	mux.Use(RequestID)
	mux.Use(Recovery(logger))

	mux.Handle("/ws", wsHandler)

	mux.Group(func(r chi.Router) {
		r.Use(Logging(logger))
		r.Use(metrics.HTTP)

		humaAPI := humachi.New(r, huma.DefaultConfig("gridwall", "1.0.0"))
		registerGridRoutes(humaAPI, NewGridHandler(grid, sessions))

		health := NewHealthHandler(store, logger)
		r.Get("/livez", health.Livez)
		r.Get("/readyz", health.Readyz)

		r.Handle("/metrics", promhttp.Handler())
	})

	return mux
}
