//go:generate mockgen -source=interface.go -destination=mocks/service_mocks.go -package=mocks
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"submission_service/internal/domain"
)

type SubmissionRepository interface {
	Save(ctx context.Context, submission *domain.Submission) (*domain.Submission, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	List(ctx context.Context, filter domain.SubmissionFilter, limit, offset int) ([]*domain.Submission, int, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Transactor runs fn in one storage transaction. fn must use the ctx it is
// given so repositories join the transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SubmissionCache holds read projections. Set must never replace an entry
// with a higher Version, so a slow reader cannot overwrite a fresh write.
type SubmissionCache interface {
	Get(ctx context.Context, id uuid.UUID) (*SubmissionResponse, bool)
	Set(ctx context.Context, submission *SubmissionResponse)
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type SubmissionService interface {
	CreateSubmission(ctx context.Context, cmd CreateSubmissionCommand) (*SubmissionResponse, error)
	UpdateSubmission(ctx context.Context, cmd UpdateSubmissionCommand) (*SubmissionResponse, error)
	SubmitSubmission(ctx context.Context, cmd SubmitSubmissionCommand) (*SubmissionResponse, error)
	GradeSubmission(ctx context.Context, cmd GradeSubmissionCommand) (*SubmissionResponse, error)
	RevokeSubmission(ctx context.Context, cmd RevokeSubmissionCommand) (*SubmissionResponse, error)
	AddComment(ctx context.Context, cmd AddCommentCommand) (*SubmissionResponse, error)

	GetSubmission(ctx context.Context, id uuid.UUID) (*SubmissionResponse, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID, page Pagination) (*SubmissionPage, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, page Pagination) (*SubmissionPage, error)
	ListSubmissions(ctx context.Context, filter domain.SubmissionFilter, page Pagination) (*SubmissionPage, error)
}
