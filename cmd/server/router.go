package main

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bureau/internal/mandate"
	"bureau/internal/mandate/handler"
	mandatemetrics "bureau/internal/mandate/metrics"
	mandateservice "bureau/internal/mandate/service"
	"bureau/internal/platform/config"
	"bureau/internal/platform/metrics"
	"bureau/internal/platform/middleware"
	"bureau/pkg/platform/httputil"
)

const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// newRouter mounts the mandate routes plus the unauthenticated /health and
// /metrics endpoints. Collectors are registered with reg and served from gatherer.
func newRouter(
	cfg config.Server,
	b *backend,
	validator middleware.JWTValidator,
	logger *slog.Logger,
	reg prometheus.Registerer,
	gatherer prometheus.Gatherer,
) http.Handler {
	svc := mandate.NewService(b.store, b.tx,
		mandateservice.WithLogger(logger),
		mandateservice.WithMetrics(mandatemetrics.New(reg)),
		mandateservice.WithCache(b.cache),
	)
	h := mandate.NewHandler(svc, logger, validator,
		handler.WithResponseCache(b.cache, cfg.Cache.TTL),
		handler.WithMetrics(metrics.New(reg)),
		handler.WithRequestTimeout(cfg.RequestTimeout),
	)

	r := chi.NewRouter()
	r.Get("/health", healthHandler(b.checks, logger))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	h.Register(r)
	return r
}

func healthHandler(checks map[string]func(context.Context) error, logger *slog.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
