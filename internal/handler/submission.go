package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"submission_service/internal/domain"
	"submission_service/internal/service"
	"submission_service/pkg/ctxdata"
)

type SubmissionHandler struct {
	svc service.SubmissionService
}

func NewSubmissionHandler(svc service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{svc: svc}
}

// RegisterRoutes mounts the submission API. rateLimit wraps every write.
func (h *SubmissionHandler) RegisterRoutes(r chi.Router, rateLimit func(http.Handler) http.Handler) {
	r.Get("/submissions", Handle(h.list, parseListQuery, false, http.StatusOK))
	r.Get("/submissions/{id}", Handle(h.svc.GetSubmission, parseSubmissionID, false, http.StatusOK))

	r.Group(func(r chi.Router) {
		r.Use(rateLimit)
		r.Post("/submissions", Handle(h.svc.CreateSubmission, parseCreate, true, http.StatusCreated))
		r.Patch("/submissions/{id}", Handle(h.svc.UpdateSubmission, parseUpdate, true, http.StatusOK))
		r.Post("/submissions/{id}/submit", Handle(h.svc.SubmitSubmission, parseSubmit, false, http.StatusOK))
		r.Post("/submissions/{id}/grade", Handle(h.grade, parseGrade, true, http.StatusOK))
		r.Post("/submissions/{id}/revoke", Handle(h.svc.RevokeSubmission, parseRevoke, true, http.StatusOK))
		r.Post("/submissions/{id}/comments", Handle(h.svc.AddComment, parseComment, true, http.StatusCreated))
	})
}

type gradeRequest struct {
	Grade    *int   `json:"grade"`
	Feedback string `json:"feedback"`

	cmd service.GradeSubmissionCommand
}

func (h *SubmissionHandler) grade(ctx context.Context, req gradeRequest) (*service.SubmissionResponse, error) {
	if req.Grade == nil {
		return nil, &domain.ValidationError{Field: "grade", Reason: "is required"}
	}
	cmd := req.cmd
	cmd.Grade = *req.Grade
	cmd.Feedback = req.Feedback
	return h.svc.GradeSubmission(ctx, cmd)
}

type listRequest struct {
	filter domain.SubmissionFilter
	page   service.Pagination
}

func (h *SubmissionHandler) list(ctx context.Context, req listRequest) (*service.SubmissionPage, error) {
	return h.svc.ListSubmissions(ctx, req.filter, req.page)
}

// initiator reads the caller placed in the context by the identity
// middleware. Body fields never override it.
func initiator(r *http.Request) (uuid.UUID, string, error) {
	userID, _ := ctxdata.GetUserID(r.Context())
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: missing caller identity", service.ErrPermissionDenied)
	}
	correlationID, _ := ctxdata.GetCorrelationID(r.Context())
	return id, correlationID, nil
}

func parseSubmissionID(r *http.Request, id *uuid.UUID) error {
	parsed, err := parseUUIDParam(r, "id")
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseCreate(r *http.Request, cmd *service.CreateSubmissionCommand) error {
	var err error
	cmd.InitiatorID, cmd.CorrelationID, err = initiator(r)
	return err
}

func parseUpdate(r *http.Request, cmd *service.UpdateSubmissionCommand) error {
	var err error
	if cmd.InitiatorID, cmd.CorrelationID, err = initiator(r); err != nil {
		return err
	}
	cmd.SubmissionID, err = parseUUIDParam(r, "id")
	return err
}

func parseSubmit(r *http.Request, cmd *service.SubmitSubmissionCommand) error {
	var err error
	if cmd.InitiatorID, cmd.CorrelationID, err = initiator(r); err != nil {
		return err
	}
	cmd.SubmissionID, err = parseUUIDParam(r, "id")
	return err
}

func parseGrade(r *http.Request, req *gradeRequest) error {
	var err error
	if req.cmd.InitiatorID, req.cmd.CorrelationID, err = initiator(r); err != nil {
		return err
	}
	req.cmd.SubmissionID, err = parseUUIDParam(r, "id")
	return err
}

func parseRevoke(r *http.Request, cmd *service.RevokeSubmissionCommand) error {
	var err error
	if cmd.InitiatorID, cmd.CorrelationID, err = initiator(r); err != nil {
		return err
	}
	cmd.SubmissionID, err = parseUUIDParam(r, "id")
	return err
}

func parseComment(r *http.Request, cmd *service.AddCommentCommand) error {
	var err error
	if cmd.InitiatorID, cmd.CorrelationID, err = initiator(r); err != nil {
		return err
	}
	cmd.SubmissionID, err = parseUUIDParam(r, "id")
	return err
}

func parseListQuery(r *http.Request, req *listRequest) error {
	q := r.URL.Query()

	parseID := func(key string) (*uuid.UUID, error) {
		raw := q.Get(key)
		if raw == "" {
			return nil, nil
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not a valid id", ErrBadRequest, key)
		}
		return &id, nil
	}
	parseTime := func(key string) (*time.Time, error) {
		raw := q.Get(key)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", ErrBadRequest, key)
		}
		return &t, nil
	}
	parseInt := func(key string) (int, error) {
		raw := q.Get(key)
		if raw == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, key)
		}
		return n, nil
	}

	var err error
	if req.filter.StudentID, err = parseID("student_id"); err != nil {
		return err
	}
	if req.filter.ProjectID, err = parseID("project_id"); err != nil {
		return err
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := domain.ToSubmissionStatus(strings.ToUpper(raw))
		if !ok {
			return fmt.Errorf("%w: unknown status %q", ErrBadRequest, raw)
		}
		req.filter.Status = &status
	}
	if req.filter.SubmittedFrom, err = parseTime("from"); err != nil {
		return err
	}
	if req.filter.SubmittedTo, err = parseTime("to"); err != nil {
		return err
	}
	if req.page.Page, err = parseInt("page"); err != nil {
		return err
	}
	req.page.PageSize, err = parseInt("page_size")
	return err
}
