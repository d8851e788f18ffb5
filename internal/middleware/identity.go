package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"submission_service/pkg/ctxdata"
	"submission_service/pkg/logging"
)

const (
	HeaderUserID        = "X-User-Id"
	HeaderUserRole      = "X-User-Role"
	HeaderCorrelationID = "X-Correlation-Id"
)

// NewIdentityMiddleware copies the caller identity set by the gateway into
// the request context. Requests without a valid user id are rejected.
func NewIdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID := r.Header.Get(HeaderUserID)
			role := r.Header.Get(HeaderUserRole)
			if _, err := uuid.Parse(userID); err != nil || role == "" {
				if logger, ok := logging.GetFromContext(ctx); ok {
					logger.Info(ctx, "missing or invalid identity headers", zap.String("path", r.URL.Path))
				}
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthenticated"})
				return
			}

			ctx = ctxdata.WithUserID(ctx, userID)
			ctx = ctxdata.WithUserRole(ctx, role)

			correlationID := r.Header.Get(HeaderCorrelationID)
			if correlationID == "" {
				correlationID, _ = ctxdata.GetTraceID(ctx)
			}
			if correlationID != "" {
				ctx = ctxdata.WithCorrelationID(ctx, correlationID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
