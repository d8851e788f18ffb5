package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"submission_service/internal/middleware"
	"submission_service/internal/ratelimit"
	"submission_service/internal/service"
	"submission_service/pkg/logging"
)

type RouterConfig struct {
	Logger           *logging.Logger
	Service          service.SubmissionService
	Limiter          ratelimit.Limiter
	RateLimitMetrics *middleware.RateLimitMetrics
	Metrics          http.Handler
	MaxBodySize      int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger))
	r.Use(func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, cfg.MaxBodySize)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	rateLimit := middleware.NewRateLimitMiddleware(cfg.Limiter, cfg.RateLimitMetrics)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware())
		NewSubmissionHandler(cfg.Service).RegisterRoutes(r, rateLimit)
		NewAdminHandler(cfg.Limiter).RegisterRoutes(r)
	})

	return r
}
