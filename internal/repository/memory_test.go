package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submission_service/internal/domain"
)

var baseTime = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func newSubmission(t *testing.T, studentID, projectID uuid.UUID, at time.Time) *domain.Submission {
	t.Helper()
	s, err := domain.NewSubmission(studentID, projectID, "content", nil, false, at)
	require.NoError(t, err)
	return s
}

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemorySubmissionRepository()
	ctx := context.Background()
	s := newSubmission(t, uuid.New(), uuid.New(), baseTime)

	stored, err := repo.Save(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Empty(t, stored.PendingEvents())

	first, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)

	first.Content = "mutated"
	again, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "content", again.Content)
}

func TestMemoryRepository_NotFound(t *testing.T) {
	repo := NewMemorySubmissionRepository()

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	s := newSubmission(t, uuid.New(), uuid.New(), baseTime)
	s.Version = 3
	_, err = repo.Save(context.Background(), s)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_VersionConflict(t *testing.T) {
	repo := NewMemorySubmissionRepository()
	ctx := context.Background()
	s := newSubmission(t, uuid.New(), uuid.New(), baseTime)
	_, err := repo.Save(ctx, s)
	require.NoError(t, err)

	a, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)

	require.NoError(t, a.Submit(baseTime))
	saved, err := repo.Save(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	require.NoError(t, b.Update("late edit", nil, baseTime))
	_, err = repo.Save(ctx, b)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	current, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionStatusSubmitted, current.Status)

	_, err = repo.Save(ctx, newSubmissionWithID(t, s.ID))
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func newSubmissionWithID(t *testing.T, id uuid.UUID) *domain.Submission {
	s := newSubmission(t, uuid.New(), uuid.New(), baseTime)
	s.ID = id
	return s
}

func TestMemoryRepository_ListFilters(t *testing.T) {
	repo := NewMemorySubmissionRepository()
	ctx := context.Background()
	studentA, studentB := uuid.New(), uuid.New()
	project := uuid.New()

	var saved []*domain.Submission
	for i, student := range []uuid.UUID{studentA, studentA, studentB} {
		s := newSubmission(t, student, project, baseTime.Add(time.Duration(i)*time.Hour))
		if i == 1 {
			require.NoError(t, s.Submit(baseTime.Add(2*time.Hour)))
		}
		stored, err := repo.Save(ctx, s)
		require.NoError(t, err)
		saved = append(saved, stored)
	}

	items, total, err := repo.List(ctx, domain.SubmissionFilter{StudentID: &studentA}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, saved[1].ID, items[0].ID, "newest first")

	status := domain.SubmissionStatusSubmitted
	items, total, err = repo.List(ctx, domain.SubmissionFilter{ProjectID: &project, Status: &status}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, saved[1].ID, items[0].ID)

	from, to := baseTime.Add(time.Hour), baseTime.Add(3*time.Hour)
	_, total, err = repo.List(ctx, domain.SubmissionFilter{SubmittedFrom: &from, SubmittedTo: &to}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	items, total, err = repo.List(ctx, domain.SubmissionFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, saved[0].ID, items[0].ID)

	items, _, err = repo.List(ctx, domain.SubmissionFilter{}, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}
