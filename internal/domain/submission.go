package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxContentLength  = 50000
	MaxFilePathLength = 500
	MaxFeedbackLength = 1000
	MaxCommentLength  = 1000
	MaxReasonLength   = 1000
	MinGrade          = 0
	MaxGrade          = 100
)

type Comment struct {
	ID        uuid.UUID
	Text      string
	AuthorID  uuid.UUID
	CreatedAt time.Time
}

// Submission is a student's work against a project. Status changes go
// through the methods below; each either applies fully and records an
// event or returns an error without touching the submission.
type Submission struct {
	ID             uuid.UUID
	StudentID      uuid.UUID
	ProjectID      uuid.UUID
	Content        string
	FilePath       *string
	Grade          *int
	Feedback       *string
	Status         SubmissionStatus
	IsLate         bool
	SubmittedAt    *time.Time
	GradedBy       *uuid.UUID
	GradedAt       *time.Time
	RevokedBy      *uuid.UUID
	RevokedAt      *time.Time
	RevokeReason   *string
	Comments       []Comment
	CreatedAt      time.Time
	LastModifiedAt time.Time
	// Version is 0 until the submission is first stored.
	Version int64

	events EventLog
}

func NewSubmission(
	studentID uuid.UUID,
	projectID uuid.UUID,
	content string,
	filePath *string,
	isLate bool,
	now time.Time,
) (*Submission, error) {
	if studentID == uuid.Nil {
		return nil, invalid("student_id", "is required")
	}
	if projectID == uuid.Nil {
		return nil, invalid("project_id", "is required")
	}
	if err := validateContent(content, filePath); err != nil {
		return nil, err
	}

	s := &Submission{
		ID:             newID(),
		StudentID:      studentID,
		ProjectID:      projectID,
		Content:        content,
		FilePath:       filePath,
		Status:         SubmissionStatusDraft,
		IsLate:         isLate,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	s.events.Append(SubmissionCreated{
		EventMeta: newEventMeta(s.ID, now),
		StudentID: studentID,
		ProjectID: projectID,
		FilePath:  filePath,
		IsLate:    isLate,
	})
	return s, nil
}

func (s *Submission) Update(content string, filePath *string, now time.Time) error {
	if s.Status != SubmissionStatusDraft {
		return &TransitionError{From: s.Status, Message: "can only update draft submissions"}
	}
	if err := validateContent(content, filePath); err != nil {
		return err
	}

	s.Content = content
	s.FilePath = filePath
	s.LastModifiedAt = now
	s.events.Append(SubmissionUpdated{
		EventMeta:     newEventMeta(s.ID, now),
		ContentLength: utf8.RuneCountInString(content),
		FilePath:      filePath,
	})
	return nil
}

func (s *Submission) Submit(now time.Time) error {
	if s.Status != SubmissionStatusDraft {
		return &TransitionError{From: s.Status, Message: "can only submit draft submissions"}
	}

	submittedAt := now
	s.Status = SubmissionStatusSubmitted
	s.SubmittedAt = &submittedAt
	s.LastModifiedAt = now
	s.events.Append(SubmissionSubmitted{
		EventMeta:   newEventMeta(s.ID, now),
		StudentID:   s.StudentID,
		ProjectID:   s.ProjectID,
		SubmittedAt: submittedAt,
		IsLate:      s.IsLate,
	})
	return nil
}

// AssignGrade sets grade and feedback together. Arguments are checked before the
// status so malformed input is reported as such regardless of state.
func (s *Submission) AssignGrade(grade int, feedback string, graderID uuid.UUID, now time.Time) error {
	if grade < MinGrade || grade > MaxGrade {
		return invalid("grade", "must be between 0 and 100")
	}
	if strings.TrimSpace(feedback) == "" {
		return invalid("feedback", "is required when grading")
	}
	if utf8.RuneCountInString(feedback) > MaxFeedbackLength {
		return invalid("feedback", "must be at most 1000 characters")
	}
	if graderID == uuid.Nil {
		return invalid("grader_id", "is required")
	}
	if s.Status != SubmissionStatusSubmitted {
		return &TransitionError{From: s.Status, Message: "can only grade submitted submissions"}
	}

	g, fb, by, at := grade, feedback, graderID, now
	s.Status = SubmissionStatusGraded
	s.Grade = &g
	s.Feedback = &fb
	s.GradedBy = &by
	s.GradedAt = &at
	s.LastModifiedAt = now
	s.events.Append(SubmissionGraded{
		EventMeta: newEventMeta(s.ID, now),
		StudentID: s.StudentID,
		Grade:     grade,
		Feedback:  feedback,
		GraderID:  graderID,
	})
	return nil
}

func (s *Submission) Revoke(reason string, initiatorID uuid.UUID, now time.Time) error {
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return invalid("reason", "must be at most 1000 characters")
	}
	if initiatorID == uuid.Nil {
		return invalid("initiator_id", "is required")
	}
	if s.Status != SubmissionStatusSubmitted && s.Status != SubmissionStatusGraded {
		return &TransitionError{From: s.Status, Message: "can only revoke submitted or graded submissions"}
	}

	previous := s.Status
	r, by, at := reason, initiatorID, now
	s.Status = SubmissionStatusRevoked
	s.RevokeReason = &r
	s.RevokedBy = &by
	s.RevokedAt = &at
	s.LastModifiedAt = now
	s.events.Append(SubmissionRevoked{
		EventMeta:      newEventMeta(s.ID, now),
		PreviousStatus: previous,
		Reason:         reason,
		InitiatorID:    initiatorID,
	})
	return nil
}

// AddComment is allowed in every status and never changes it.
func (s *Submission) AddComment(text string, authorID uuid.UUID, now time.Time) (Comment, error) {
	if strings.TrimSpace(text) == "" {
		return Comment{}, invalid("text", "is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return Comment{}, invalid("text", "must be at most 1000 characters")
	}
	if authorID == uuid.Nil {
		return Comment{}, invalid("author_id", "is required")
	}

	c := Comment{
		ID:        newID(),
		Text:      text,
		AuthorID:  authorID,
		CreatedAt: now,
	}
	s.Comments = append(s.Comments, c)
	s.LastModifiedAt = now
	s.events.Append(CommentAdded{
		EventMeta: newEventMeta(s.ID, now),
		CommentID: c.ID,
		Text:      text,
		AuthorID:  authorID,
	})
	return c, nil
}

// PendingEvents returns the events recorded since the last ClearEvents.
func (s *Submission) PendingEvents() []Event {
	return s.events.Events()
}

func (s *Submission) ClearEvents() {
	s.events.Clear()
}

// Clone returns a deep copy without pending events.
func (s *Submission) Clone() *Submission {
	if s == nil {
		return nil
	}
	c := *s
	c.events = EventLog{}
	c.FilePath = clonePtr(s.FilePath)
	c.Grade = clonePtr(s.Grade)
	c.Feedback = clonePtr(s.Feedback)
	c.SubmittedAt = clonePtr(s.SubmittedAt)
	c.GradedBy = clonePtr(s.GradedBy)
	c.GradedAt = clonePtr(s.GradedAt)
	c.RevokedBy = clonePtr(s.RevokedBy)
	c.RevokedAt = clonePtr(s.RevokedAt)
	c.RevokeReason = clonePtr(s.RevokeReason)
	if s.Comments != nil {
		c.Comments = make([]Comment, len(s.Comments))
		copy(c.Comments, s.Comments)
	}
	return &c
}

func validateContent(content string, filePath *string) error {
	if utf8.RuneCountInString(content) > MaxContentLength {
		return invalid("content", "must be at most 50000 characters")
	}
	if filePath != nil && utf8.RuneCountInString(*filePath) > MaxFilePathLength {
		return invalid("file_path", "must be at most 500 characters")
	}
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

type SubmissionFilter struct {
	StudentID     *uuid.UUID
	ProjectID     *uuid.UUID
	Status        *SubmissionStatus
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
}
