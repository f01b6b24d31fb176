// Package app wires configuration, adapters and handlers into a running
// HTTP server.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/immigration-assistant/internal/adapter/httpserver"
	"github.com/fairyhunter13/immigration-assistant/internal/config"
	"github.com/fairyhunter13/immigration-assistant/internal/observability"
)

// NewRouter assembles the chi router with the standard middleware chain.
func NewRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(httpserver.RequestID)
	r.Use(middleware.Timeout(cfg.HTTPWriteTimeout))
	r.Use(httpserver.SecurityHeaders)
	r.Use(httpserver.AccessLog)
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSAllowOrigins, ","),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Operational endpoints stay outside the rate limit so probes and
	// scrapes never get throttled.
	r.Get("/healthz", srv.HealthzHandler)
	r.Get("/readyz", srv.ReadyzHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", srv.OpenAPIHandler)

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
		r.Post("/api/question", srv.QuestionHandler)
		r.Post("/api/audio", srv.AudioHandler)
		r.Post("/api/feedback", srv.FeedbackHandler)
	})

	return r
}
