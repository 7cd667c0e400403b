package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veridoc/internal/platform/middleware"
)

// HealthCheck reports one dependency's reachability.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewRouter wires all public endpoints.
func NewRouter(logger *slog.Logger, h *Handler, checks []HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	h.Register(r)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{}
		healthy := true
		for _, check := range checks {
			if err := check.Check(req.Context()); err != nil {
				status[check.Name] = err.Error()
				healthy = false
			} else {
				status[check.Name] = "ok"
			}
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"ok": healthy, "checks": status})
	})

	return r
}
