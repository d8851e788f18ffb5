package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"submission_service/internal/domain"
)

type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_operations_total",
			Help: "Submission service operations by operation and result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "submission_operation_duration_seconds",
			Help:    "Submission service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration)
	}
	return m
}

func (m *Metrics) observe(operation string, start time.Time, err error) {
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	m.operations.WithLabelValues(operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrIllegalStateTransition):
		return "illegal_state"
	case errors.Is(err, ErrConcurrentModification):
		return "conflict"
	default:
		return "error"
	}
}

type instrumentedService struct {
	next    SubmissionService
	metrics *Metrics
}

// WithMetrics wraps next so every operation is counted and timed.
func WithMetrics(next SubmissionService, metrics *Metrics) SubmissionService {
	return &instrumentedService{next: next, metrics: metrics}
}

func (s *instrumentedService) CreateSubmission(ctx context.Context, cmd CreateSubmissionCommand) (_ *SubmissionResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("create", start, err) }()
	return s.next.CreateSubmission(ctx, cmd)
}

func (s *instrumentedService) UpdateSubmission(ctx context.Context, cmd UpdateSubmissionCommand) (_ *SubmissionResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("update", start, err) }()
	return s.next.UpdateSubmission(ctx, cmd)
}

func (s *instrumentedService) SubmitSubmission(ctx context.Context, cmd SubmitSubmissionCommand) (_ *SubmissionResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("submit", start, err) }()
	return s.next.SubmitSubmission(ctx, cmd)
}

func (s *instrumentedService) GradeSubmission(ctx context.Context, cmd GradeSubmissionCommand) (_ *SubmissionResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("grade", start, err) }()
	return s.next.GradeSubmission(ctx, cmd)
}

func (s *instrumentedService) RevokeSubmission(ctx context.Context, cmd RevokeSubmissionCommand) (_ *SubmissionResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("revoke", start, err) }()
	return s.next.RevokeSubmission(ctx, cmd)
}

func (s *instrumentedService) AddComment(ctx context.Context, cmd AddCommentCommand) (_ *SubmissionResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("add_comment", start, err) }()
	return s.next.AddComment(ctx, cmd)
}

func (s *instrumentedService) GetSubmission(ctx context.Context, id uuid.UUID) (_ *SubmissionResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("get", start, err) }()
	return s.next.GetSubmission(ctx, id)
}

func (s *instrumentedService) ListByStudent(ctx context.Context, studentID uuid.UUID, page Pagination) (_ *SubmissionPage, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("list_by_student", start, err) }()
	return s.next.ListByStudent(ctx, studentID, page)
}

func (s *instrumentedService) ListByProject(ctx context.Context, projectID uuid.UUID, page Pagination) (_ *SubmissionPage, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("list_by_project", start, err) }()
	return s.next.ListByProject(ctx, projectID, page)
}

func (s *instrumentedService) ListSubmissions(ctx context.Context, filter domain.SubmissionFilter, page Pagination) (_ *SubmissionPage, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("list", start, err) }()
	return s.next.ListSubmissions(ctx, filter, page)
}
