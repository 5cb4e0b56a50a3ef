// Package server provides the HTTP status server for momo-credentials.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexjbarnes/momo-credentials/momo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthTimeout bounds a single health probe.
const healthTimeout = 3 * time.Second

// StatusReporter reports the token state of one integration.
// *momo.Manager implements it.
type StatusReporter interface {
	Status() momo.Status
}

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Managers []StatusReporter
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	// Health checks the credential store backend. Nil means always healthy.
	Health func(ctx context.Context) error
}

// NewMux builds the HTTP mux with health, status and metrics endpoints.
// None of them exposes token values.
func NewMux(cfg MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth(cfg.Health, cfg.Logger))
	mux.HandleFunc("GET /status", handleStatus(cfg.Managers))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	return mux
}

func handleHealth(check func(context.Context) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()

			if err := check(ctx); err != nil {
				logger.Warn("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})

				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleStatus(managers []StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := make([]momo.Status, 0, len(managers))
		for _, m := range managers {
			out = append(out, m.Status())
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
