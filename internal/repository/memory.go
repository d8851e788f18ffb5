package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"submission_service/internal/domain"
)

// MemorySubmissionRepository keeps submissions in process memory with the
// same version semantics as the postgres repository.
type MemorySubmissionRepository struct {
	mu          sync.RWMutex
	submissions map[uuid.UUID]*domain.Submission
}

func NewMemorySubmissionRepository() *MemorySubmissionRepository {
	return &MemorySubmissionRepository{
		submissions: make(map[uuid.UUID]*domain.Submission),
	}
}

func (r *MemorySubmissionRepository) Save(_ context.Context, submission *domain.Submission) (*domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.submissions[submission.ID]
	switch {
	case submission.Version == 0 && exists:
		return nil, fmt.Errorf("insert submission %s: %w", submission.ID, ErrConcurrentModification)
	case submission.Version != 0 && !exists:
		return nil, ErrNotFound
	case exists && current.Version != submission.Version:
		return nil, fmt.Errorf("submission %s at version %d: %w", submission.ID, submission.Version, ErrConcurrentModification)
	}

	stored := submission.Clone()
	stored.Version = submission.Version + 1
	r.submissions[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *MemorySubmissionRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemorySubmissionRepository) List(
	_ context.Context,
	filter domain.SubmissionFilter,
	limit, offset int,
) ([]*domain.Submission, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*domain.Submission
	for _, s := range r.submissions {
		if matches(s, filter) {
			matched = append(matched, s)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return []*domain.Submission{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	page := make([]*domain.Submission, 0, end-offset)
	for _, s := range matched[offset:end] {
		page = append(page, s.Clone())
	}
	return page, total, nil
}

func matches(s *domain.Submission, f domain.SubmissionFilter) bool {
	if f.StudentID != nil && s.StudentID != *f.StudentID {
		return false
	}
	if f.ProjectID != nil && s.ProjectID != *f.ProjectID {
		return false
	}
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if f.SubmittedFrom != nil && (s.SubmittedAt == nil || s.SubmittedAt.Before(*f.SubmittedFrom)) {
		return false
	}
	if f.SubmittedTo != nil && (s.SubmittedAt == nil || !s.SubmittedAt.Before(*f.SubmittedTo)) {
		return false
	}
	return true
}
