package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/middleware"
)

// RouterConfig carries the edge concerns the router mounts around the
// handlers.
type RouterConfig struct {
	AssertionSecret []byte
	RateLimit       middleware.RateLimitConfig
	AllowedOrigins  []string
}

// NewRouter assembles the chi router: request-ID, logging, panic recovery,
// CORS, and the per-IP edge limiter globally; principal verification on /v1
// and /internal; operator level on the ad-hoc and invalidation routes.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		}))
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(middleware.RateLimiter(cfg.RateLimit))
	}

	r.Get("/healthz", h.Healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Principal(cfg.AssertionSecret))
		r.Post("/query", h.Query)
		r.Get("/quota", h.Quota)
		r.Get("/tables", h.ListTables)
		r.Get("/tables/{table}", h.DescribeTable)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLevel(domain.LevelOperator))
			r.Post("/adhoc", h.Adhoc)
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.Principal(cfg.AssertionSecret))
		r.Use(middleware.RequireLevel(domain.LevelOperator))
		r.Post("/invalidate", h.Invalidate)
	})

	return r
}
