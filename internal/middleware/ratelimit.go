package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"submission_service/internal/domain"
	"submission_service/internal/ratelimit"
	"submission_service/pkg/ctxdata"
	"submission_service/pkg/logging"
)

type RateLimitMetrics struct {
	rejections *prometheus.CounterVec
}

func NewRateLimitMetrics(reg prometheus.Registerer) *RateLimitMetrics {
	m := &RateLimitMetrics{
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter, by tier class.",
		}, []string{"tier_class"}),
	}
	if reg != nil {
		reg.MustRegister(m.rejections)
	}
	return m
}

// NewRateLimitMiddleware admits a request only when every tier of the
// caller's bucket has a token. It must run after the identity middleware.
// If the limiter backend fails the request is let through.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, metrics *RateLimitMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, _ := ctxdata.GetUserID(ctx)
			role, _ := ctxdata.GetUserRole(ctx)
			principal := ratelimit.Principal{UserID: userID, Role: domain.ToUserRole(role)}

			decision, err := limiter.Allow(ctx, principal)
			if err != nil {
				if logger, ok := logging.GetFromContext(ctx); ok {
					logger.Error(ctx, "rate limiter unavailable", zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}

			if !decision.Allowed {
				if metrics != nil {
					metrics.rejections.WithLabelValues(string(decision.Class)).Inc()
				}
				if logger, ok := logging.GetFromContext(ctx); ok {
					logger.Info(ctx, "rate limit exceeded",
						zap.String("tier_class", string(decision.Class)),
						zap.Duration("retry_after", decision.RetryAfter),
					)
				}
				WriteRateLimited(w, decision.RetryAfterSeconds())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WriteRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":               "rate limit exceeded",
		"retry_after_seconds": retryAfterSeconds,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
