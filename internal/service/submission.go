package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"submission_service/internal/domain"
	"submission_service/pkg/logging"
)

type submissionService struct {
	repo      SubmissionRepository
	publisher EventPublisher
	tx        Transactor
	cache     SubmissionCache
	clock     Clock
	logger    *logging.Logger
}

type Option func(*submissionService)

func WithClock(clock Clock) Option {
	return func(s *submissionService) { s.clock = clock }
}

func WithCache(cache SubmissionCache) Option {
	return func(s *submissionService) {
		if cache != nil {
			s.cache = cache
		}
	}
}

func NewSubmissionService(
	repo SubmissionRepository,
	publisher EventPublisher,
	tx Transactor,
	logger *logging.Logger,
	opts ...Option,
) SubmissionService {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &submissionService{
		repo:      repo,
		publisher: publisher,
		tx:        tx,
		cache:     nopCache{},
		clock:     ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *submissionService) CreateSubmission(ctx context.Context, cmd CreateSubmissionCommand) (*SubmissionResponse, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	act, err := actorFromContext(ctx, cmd.InitiatorID)
	if err != nil {
		return nil, err
	}
	if err := act.canModify(cmd.StudentID); err != nil {
		return nil, err
	}

	return s.execute(ctx, func(context.Context) (*domain.Submission, error) {
		return domain.NewSubmission(cmd.StudentID, cmd.ProjectID, cmd.Content, cmd.FilePath, cmd.IsLate, s.clock.Now())
	}, nil)
}

func (s *submissionService) UpdateSubmission(ctx context.Context, cmd UpdateSubmissionCommand) (*SubmissionResponse, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	act, err := actorFromContext(ctx, cmd.InitiatorID)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, s.load(cmd.SubmissionID), func(sub *domain.Submission) error {
		if err := act.canModify(sub.StudentID); err != nil {
			return err
		}
		return sub.Update(cmd.Content, cmd.FilePath, s.clock.Now())
	})
}

func (s *submissionService) SubmitSubmission(ctx context.Context, cmd SubmitSubmissionCommand) (*SubmissionResponse, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	act, err := actorFromContext(ctx, cmd.InitiatorID)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, s.load(cmd.SubmissionID), func(sub *domain.Submission) error {
		if err := act.canModify(sub.StudentID); err != nil {
			return err
		}
		return sub.Submit(s.clock.Now())
	})
}

func (s *submissionService) GradeSubmission(ctx context.Context, cmd GradeSubmissionCommand) (*SubmissionResponse, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	act, err := actorFromContext(ctx, cmd.InitiatorID)
	if err != nil {
		return nil, err
	}
	if err := act.canGrade(); err != nil {
		return nil, err
	}

	return s.execute(ctx, s.load(cmd.SubmissionID), func(sub *domain.Submission) error {
		return sub.AssignGrade(cmd.Grade, cmd.Feedback, act.id, s.clock.Now())
	})
}

func (s *submissionService) RevokeSubmission(ctx context.Context, cmd RevokeSubmissionCommand) (*SubmissionResponse, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	act, err := actorFromContext(ctx, cmd.InitiatorID)
	if err != nil {
		return nil, err
	}
	if err := act.canGrade(); err != nil {
		return nil, err
	}

	return s.execute(ctx, s.load(cmd.SubmissionID), func(sub *domain.Submission) error {
		return sub.Revoke(cmd.Reason, act.id, s.clock.Now())
	})
}

func (s *submissionService) AddComment(ctx context.Context, cmd AddCommentCommand) (*SubmissionResponse, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	act, err := actorFromContext(ctx, cmd.InitiatorID)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, s.load(cmd.SubmissionID), func(sub *domain.Submission) error {
		_, err := sub.AddComment(cmd.Text, act.id, s.clock.Now())
		return err
	})
}

func (s *submissionService) GetSubmission(ctx context.Context, id uuid.UUID) (*SubmissionResponse, error) {
	act, err := actorFromContext(ctx, uuid.Nil)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(ctx, id); ok {
		if err := act.canRead(cached.StudentID); err != nil {
			return nil, err
		}
		return cached, nil
	}

	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := act.canRead(sub.StudentID); err != nil {
		return nil, err
	}

	resp := toResponse(sub)
	s.cache.Set(ctx, resp)
	return resp, nil
}

func (s *submissionService) ListByStudent(ctx context.Context, studentID uuid.UUID, page Pagination) (*SubmissionPage, error) {
	return s.ListSubmissions(ctx, domain.SubmissionFilter{StudentID: &studentID}, page)
}

func (s *submissionService) ListByProject(ctx context.Context, projectID uuid.UUID, page Pagination) (*SubmissionPage, error) {
	return s.ListSubmissions(ctx, domain.SubmissionFilter{ProjectID: &projectID}, page)
}

// ListSubmissions returns submissions newest first. Students only ever see
// their own submissions.
func (s *submissionService) ListSubmissions(
	ctx context.Context,
	filter domain.SubmissionFilter,
	page Pagination,
) (*SubmissionPage, error) {
	page, err := page.normalize()
	if err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Reason: "is invalid"}
	}
	if filter.SubmittedFrom != nil && filter.SubmittedTo != nil && filter.SubmittedFrom.After(*filter.SubmittedTo) {
		return nil, &domain.ValidationError{Field: "from", Reason: "must not be after to"}
	}

	act, err := actorFromContext(ctx, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if !act.role.IsStaff() {
		if filter.StudentID != nil && *filter.StudentID != act.id {
			return nil, ErrPermissionDenied
		}
		own := act.id
		filter.StudentID = &own
	}

	subs, total, err := s.repo.List(ctx, filter, page.PageSize, page.offset())
	if err != nil {
		return nil, err
	}

	items := make([]*SubmissionResponse, 0, len(subs))
	for _, sub := range subs {
		items = append(items, toResponse(sub))
	}
	return &SubmissionPage{
		Items:    items,
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

func (s *submissionService) load(id uuid.UUID) func(ctx context.Context) (*domain.Submission, error) {
	return func(ctx context.Context) (*domain.Submission, error) {
		return s.repo.FindByID(ctx, id)
	}
}

// execute loads or builds a submission, applies the transition and saves
// it in one transaction. Buffered events are published only after commit.
func (s *submissionService) execute(
	ctx context.Context,
	load func(ctx context.Context) (*domain.Submission, error),
	apply func(sub *domain.Submission) error,
) (*SubmissionResponse, error) {
	var (
		sub   *domain.Submission
		saved *domain.Submission
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		sub, err = load(ctx)
		if err != nil {
			return err
		}
		if apply != nil {
			if err := apply(sub); err != nil {
				return err
			}
		}
		saved, err = s.repo.Save(ctx, sub)
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(saved)
	s.cache.Set(ctx, resp)
	s.flush(ctx, sub.PendingEvents())
	sub.ClearEvents()

	return resp, nil
}

// flush publishes events in order and stops at the first failure. The
// state change is already committed, so a failure is only logged.
func (s *submissionService) flush(ctx context.Context, events []domain.Event) {
	logger := s.logger
	if l, ok := logging.GetFromContext(ctx); ok {
		logger = l
	}

	for i, event := range events {
		if err := s.publisher.Publish(ctx, event); err != nil {
			meta := event.Meta()
			logger.Error(ctx, "Failed to publish submission event",
				zap.String("submission_id", meta.SubmissionID.String()),
				zap.String("event_id", meta.EventID.String()),
				zap.String("routing_key", domain.RoutingKey(event.Kind())),
				zap.Int("unpublished", len(events)-i),
				zap.Error(err),
			)
			return
		}
	}
}

type nopCache struct{}

func (nopCache) Get(context.Context, uuid.UUID) (*SubmissionResponse, bool) { return nil, false }

func (nopCache) Set(context.Context, *SubmissionResponse) {}
