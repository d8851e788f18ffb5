package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"submission_service/internal/domain"
	"submission_service/internal/ratelimit"
	"submission_service/pkg/ctxdata"
	"submission_service/pkg/logging"
)

type AdminHandler struct {
	limiter ratelimit.Limiter
}

func NewAdminHandler(limiter ratelimit.Limiter) *AdminHandler {
	return &AdminHandler{limiter: limiter}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Delete("/admin/rate-limits/{role}/{user_id}", h.ClearRateLimit)
}

// ClearRateLimit drops a principal's buckets so its next request starts
// from full capacity.
func (h *AdminHandler) ClearRateLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerRole, _ := ctxdata.GetUserRole(ctx)
	if domain.ToUserRole(callerRole) != domain.UserRoleAdmin {
		writeErrorJSON(w, http.StatusForbidden, "permission denied")
		return
	}

	role := domain.ToUserRole(chi.URLParam(r, "role"))
	switch role {
	case domain.UserRoleStudent, domain.UserRoleInstructor, domain.UserRoleAdmin:
	default:
		writeErrorJSON(w, http.StatusBadRequest, "unknown role")
		return
	}
	userID, err := parseUUIDParam(r, "user_id")
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	principal := ratelimit.Principal{UserID: userID.String(), Role: role}
	if err := h.limiter.Clear(ctx, principal); err != nil {
		if logger, ok := logging.GetFromContext(ctx); ok {
			logger.Error(ctx, "failed to clear rate limit", zap.String("target_user_id", userID.String()), zap.Error(err))
		}
		writeErrorJSON(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	if logger, ok := logging.GetFromContext(ctx); ok {
		logger.Info(ctx, "rate limit cleared",
			zap.String("target_user_id", userID.String()),
			zap.String("target_role", string(role)),
		)
	}
	w.WriteHeader(http.StatusNoContent)
}
