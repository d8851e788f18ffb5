package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the kind of a submission event.
type EventKind string

const (
	// EventKindCreated records the creation of a draft.
	EventKindCreated EventKind = "created"
	// EventKindUpdated records a change to draft content.
	EventKindUpdated EventKind = "updated"
	// EventKindSubmitted records a draft handed in for grading.
	EventKindSubmitted EventKind = "submitted"
	// EventKindGraded records a grade and feedback being assigned.
	EventKindGraded EventKind = "graded"
	// EventKindRevoked records a submitted or graded submission being revoked.
	EventKindRevoked EventKind = "revoked"
	// EventKindCommentAdded records a comment on a submission in any status.
	EventKindCommentAdded EventKind = "comment.added"
)

func AllEventKinds() []EventKind {
	return []EventKind{
		EventKindCreated,
		EventKindUpdated,
		EventKindSubmitted,
		EventKindGraded,
		EventKindRevoked,
		EventKindCommentAdded,
	}
}

// RoutingKey maps an event kind to the key used on the message broker.
func RoutingKey(kind EventKind) string {
	switch kind {
	case EventKindCreated:
		return "submission.created"
	case EventKindUpdated:
		return "submission.updated"
	case EventKindSubmitted:
		return "submission.submitted"
	case EventKindGraded:
		return "submission.graded"
	case EventKindRevoked:
		return "submission.revoked"
	case EventKindCommentAdded:
		return "submission.comment.added"
	default:
		return ""
	}
}

// SyncRoutingKey maps an event kind to the key used by the in-process bus.
func SyncRoutingKey(kind EventKind) string {
	switch kind {
	case EventKindCreated:
		return "submission.sync.created"
	case EventKindUpdated:
		return "submission.sync.updated"
	case EventKindSubmitted:
		return "submission.sync.submitted"
	case EventKindGraded:
		return "submission.sync.graded"
	case EventKindRevoked:
		return "submission.sync.revoked"
	case EventKindCommentAdded:
		return "submission.sync.comment.added"
	default:
		return ""
	}
}

// Event is a fact recorded by a Submission. The concrete types below are
// the only implementations.
type Event interface {
	Meta() EventMeta
	Kind() EventKind
	isSubmissionEvent()
}

type EventMeta struct {
	EventID      uuid.UUID `json:"event_id"`
	SubmissionID uuid.UUID `json:"submission_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func (m EventMeta) Meta() EventMeta { return m }

func (EventMeta) isSubmissionEvent() {}

func newEventMeta(submissionID uuid.UUID, at time.Time) EventMeta {
	return EventMeta{
		EventID:      newID(),
		SubmissionID: submissionID,
		OccurredAt:   at,
	}
}

type SubmissionCreated struct {
	EventMeta
	StudentID uuid.UUID `json:"student_id"`
	ProjectID uuid.UUID `json:"project_id"`
	FilePath  *string   `json:"file_path,omitempty"`
	IsLate    bool      `json:"is_late"`
}

func (SubmissionCreated) Kind() EventKind { return EventKindCreated }

type SubmissionUpdated struct {
	EventMeta
	ContentLength int     `json:"content_length"`
	FilePath      *string `json:"file_path,omitempty"`
}

func (SubmissionUpdated) Kind() EventKind { return EventKindUpdated }

type SubmissionSubmitted struct {
	EventMeta
	StudentID   uuid.UUID `json:"student_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	IsLate      bool      `json:"is_late"`
}

func (SubmissionSubmitted) Kind() EventKind { return EventKindSubmitted }

type SubmissionGraded struct {
	EventMeta
	StudentID uuid.UUID `json:"student_id"`
	Grade     int       `json:"grade"`
	Feedback  string    `json:"feedback"`
	GraderID  uuid.UUID `json:"grader_id"`
}

func (SubmissionGraded) Kind() EventKind { return EventKindGraded }

type SubmissionRevoked struct {
	EventMeta
	PreviousStatus SubmissionStatus `json:"previous_status"`
	Reason         string           `json:"reason"`
	InitiatorID    uuid.UUID        `json:"initiator_id"`
}

func (SubmissionRevoked) Kind() EventKind { return EventKindRevoked }

type CommentAdded struct {
	EventMeta
	CommentID uuid.UUID `json:"comment_id"`
	Text      string    `json:"text"`
	AuthorID  uuid.UUID `json:"author_id"`
}

func (CommentAdded) Kind() EventKind { return EventKindCommentAdded }
