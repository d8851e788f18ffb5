package service

import (
	"time"

	"github.com/google/uuid"

	"submission_service/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type CommentResponse struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	AuthorID  uuid.UUID `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type SubmissionResponse struct {
	ID             uuid.UUID               `json:"id"`
	StudentID      uuid.UUID               `json:"student_id"`
	ProjectID      uuid.UUID               `json:"project_id"`
	Content        string                  `json:"content"`
	FilePath       *string                 `json:"file_path,omitempty"`
	Grade          *int                    `json:"grade"`
	Feedback       *string                 `json:"feedback"`
	Status         domain.SubmissionStatus `json:"status"`
	IsLate         bool                    `json:"is_late"`
	SubmittedAt    *time.Time              `json:"submitted_at"`
	GradedBy       *uuid.UUID              `json:"graded_by,omitempty"`
	GradedAt       *time.Time              `json:"graded_at,omitempty"`
	RevokedBy      *uuid.UUID              `json:"revoked_by,omitempty"`
	RevokedAt      *time.Time              `json:"revoked_at,omitempty"`
	RevokeReason   *string                 `json:"revoke_reason,omitempty"`
	Comments       []CommentResponse       `json:"comments"`
	CreatedAt      time.Time               `json:"created_at"`
	LastModifiedAt time.Time               `json:"last_modified_at"`
	Version        int64                   `json:"version"`
}

type SubmissionPage struct {
	Items    []*SubmissionResponse `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// Pagination is 1-based. Zero values select the first page and the
// default page size.
type Pagination struct {
	Page     int
	PageSize int
}

func (p Pagination) normalize() (Pagination, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.Page < 1 {
		return p, &domain.ValidationError{Field: "page", Reason: "must be at least 1"}
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return p, &domain.ValidationError{Field: "page_size", Reason: "must be between 1 and 100"}
	}
	return p, nil
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.PageSize
}

func toResponse(s *domain.Submission) *SubmissionResponse {
	// Clone so the projection shares no pointers with the entity.
	s = s.Clone()

	comments := make([]CommentResponse, 0, len(s.Comments))
	for _, c := range s.Comments {
		comments = append(comments, CommentResponse{
			ID:        c.ID,
			Text:      c.Text,
			AuthorID:  c.AuthorID,
			CreatedAt: c.CreatedAt,
		})
	}

	return &SubmissionResponse{
		ID:             s.ID,
		StudentID:      s.StudentID,
		ProjectID:      s.ProjectID,
		Content:        s.Content,
		FilePath:       s.FilePath,
		Grade:          s.Grade,
		Feedback:       s.Feedback,
		Status:         s.Status,
		IsLate:         s.IsLate,
		SubmittedAt:    s.SubmittedAt,
		GradedBy:       s.GradedBy,
		GradedAt:       s.GradedAt,
		RevokedBy:      s.RevokedBy,
		RevokedAt:      s.RevokedAt,
		RevokeReason:   s.RevokeReason,
		Comments:       comments,
		CreatedAt:      s.CreatedAt,
		LastModifiedAt: s.LastModifiedAt,
		Version:        s.Version,
	}
}
