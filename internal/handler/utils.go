package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"submission_service/internal/middleware"
	"submission_service/internal/ratelimit"
	"submission_service/internal/service"
	"submission_service/pkg/logging"
)

var ErrBadRequest = errors.New("bad request")

func mapErr(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrIllegalStateTransition), errors.Is(err, service.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Handle adapts a service method to an HTTP handler. reqParser fills the
// request from path, query and context after the optional JSON body.
func Handle[Req any, Resp any](
	method func(context.Context, Req) (Resp, error),
	reqParser func(*http.Request, *Req) error,
	parseBody bool,
	successStatus int,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger, ok := logging.GetFromContext(ctx)
		if !ok {
			logger = logging.NewNop()
		}

		var req Req
		if parseBody {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error(ctx, "Failed to read request body", zap.Error(err))
				writeErrorJSON(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			if len(body) > 0 {
				if err := json.Unmarshal(body, &req); err != nil {
					logger.Info(ctx, "Failed to parse request body", zap.Error(err))
					writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
					return
				}
			}
		}

		if reqParser != nil {
			if err := reqParser(r, &req); err != nil {
				logger.Info(ctx, "Failed to parse request path and query", zap.Error(err))
				writeErrorJSON(w, mapErr(err), err.Error())
				return
			}
		}

		resp, err := method(ctx, req)
		if err != nil {
			writeServiceError(ctx, w, logger, err)
			return
		}

		writeJSON(w, successStatus, resp)
	}
}

func writeServiceError(ctx context.Context, w http.ResponseWriter, logger *logging.Logger, err error) {
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		middleware.WriteRateLimited(w, ratelimit.Decision{RetryAfter: exceeded.RetryAfter}.RetryAfterSeconds())
		return
	}

	statusCode := mapErr(err)
	if statusCode == http.StatusInternalServerError {
		logger.Error(ctx, "request failed", zap.Error(err))
		writeErrorJSON(w, statusCode, http.StatusText(statusCode))
		return
	}
	logger.Info(ctx, "request rejected", zap.Int("status", statusCode), zap.Error(err))
	writeErrorJSON(w, statusCode, err.Error())
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, "failed to serialize response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(data)
}

func writeErrorJSON(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	resp, _ := json.Marshal(map[string]string{"error": message})
	_, _ = w.Write(resp)
}

func parsePathParam(r *http.Request, key string) (string, error) {
	val := chi.URLParam(r, key)
	if val == "" {
		return "", fmt.Errorf("%w: missing path param %s", ErrBadRequest, key)
	}
	return val, nil
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val, err := parsePathParam(r, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid id", ErrBadRequest, key)
	}
	return id, nil
}
