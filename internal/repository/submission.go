package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"submission_service/internal/domain"
	"submission_service/pkg/db"
)

const uniqueViolation = "23505"

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) querier(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.db)
}

// Save inserts a new submission (Version 0) or updates an existing one when
// its stored version still matches. The returned copy carries the new version.
func (r *SubmissionRepository) Save(ctx context.Context, submission *domain.Submission) (*domain.Submission, error) {
	q := r.querier(ctx)

	var (
		newVersion int64
		err        error
	)
	if submission.Version == 0 {
		newVersion, err = r.insert(ctx, q, submission)
	} else {
		newVersion, err = r.update(ctx, q, submission)
	}
	if err != nil {
		return nil, err
	}

	if err := r.insertComments(ctx, q, submission); err != nil {
		return nil, err
	}

	stored := submission.Clone()
	stored.Version = newVersion
	return stored, nil
}

func (r *SubmissionRepository) insert(ctx context.Context, q db.Querier, s *domain.Submission) (int64, error) {
	query := `
		INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1)
	`

	_, err := q.ExecContext(ctx, query,
		s.ID,
		s.StudentID,
		s.ProjectID,
		s.Content,
		s.FilePath,
		s.Grade,
		s.Feedback,
		string(s.Status),
		s.IsLate,
		s.SubmittedAt,
		s.GradedBy,
		s.GradedAt,
		s.RevokedBy,
		s.RevokedAt,
		s.RevokeReason,
		s.CreatedAt,
		s.LastModifiedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, fmt.Errorf("insert submission %s: %w", s.ID, ErrConcurrentModification)
		}
		return 0, fmt.Errorf("failed to insert submission: %w", err)
	}
	return 1, nil
}

func (r *SubmissionRepository) update(ctx context.Context, q db.Querier, s *domain.Submission) (int64, error) {
	query := `
		UPDATE submissions
		SET content = $3, file_path = $4, grade = $5, feedback = $6, status = $7, is_late = $8,
			submitted_at = $9, graded_by = $10, graded_at = $11, revoked_by = $12, revoked_at = $13,
			revoke_reason = $14, last_modified_at = $15, version = version + 1
		WHERE id = $1 AND version = $2
	`

	res, err := q.ExecContext(ctx, query,
		s.ID,
		s.Version,
		s.Content,
		s.FilePath,
		s.Grade,
		s.Feedback,
		string(s.Status),
		s.IsLate,
		s.SubmittedAt,
		s.GradedBy,
		s.GradedAt,
		s.RevokedBy,
		s.RevokedAt,
		s.RevokeReason,
		s.LastModifiedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update submission: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM submissions WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("failed to check submission: %w", err)
		}
		if !exists {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("submission %s at version %d: %w", s.ID, s.Version, ErrConcurrentModification)
	}
	return s.Version + 1, nil
}

func (r *SubmissionRepository) insertComments(ctx context.Context, q db.Querier, s *domain.Submission) error {
	query := `
		INSERT INTO submission_comments (id, submission_id, text, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`

	for _, c := range s.Comments {
		if _, err := q.ExecContext(ctx, query, c.ID, s.ID, c.Text, c.AuthorID, c.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert comment: %w", err)
		}
	}
	return nil
}

func (r *SubmissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	q := r.querier(ctx)
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	submission, err := scanSubmission(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	comments, err := r.loadComments(ctx, q, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	submission.Comments = comments[id]

	return submission, nil
}

func (r *SubmissionRepository) List(
	ctx context.Context,
	filter domain.SubmissionFilter,
	limit, offset int,
) ([]*domain.Submission, int, error) {
	q := r.querier(ctx)
	countQuery, listQuery, args := buildListQuery(filter, limit, offset)

	var total int
	if err := q.QueryRowContext(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	rows, err := q.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		submissions []*domain.Submission
		ids         []uuid.UUID
	)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		submissions = append(submissions, submission)
		ids = append(ids, submission.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	comments, err := r.loadComments(ctx, q, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, s := range submissions {
		s.Comments = comments[s.ID]
	}

	return submissions, total, nil
}

func (r *SubmissionRepository) loadComments(
	ctx context.Context,
	q db.Querier,
	ids []uuid.UUID,
) (map[uuid.UUID][]domain.Comment, error) {
	result := make(map[uuid.UUID][]domain.Comment, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	query := `
		SELECT id, submission_id, text, author_id, created_at
		FROM submission_comments
		WHERE submission_id = ANY($1::uuid[])
		ORDER BY created_at, id
	`

	rows, err := q.QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			c            domain.Comment
			submissionID uuid.UUID
		)
		if err := rows.Scan(&c.ID, &submissionID, &c.Text, &c.AuthorID, &c.CreatedAt); err != nil {
			return nil, err
		}
		result[submissionID] = append(result[submissionID], c)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*domain.Submission, error) {
	var (
		s      domain.Submission
		status string
	)
	err := row.Scan(
		&s.ID,
		&s.StudentID,
		&s.ProjectID,
		&s.Content,
		&s.FilePath,
		&s.Grade,
		&s.Feedback,
		&status,
		&s.IsLate,
		&s.SubmittedAt,
		&s.GradedBy,
		&s.GradedAt,
		&s.RevokedBy,
		&s.RevokedAt,
		&s.RevokeReason,
		&s.CreatedAt,
		&s.LastModifiedAt,
		&s.Version,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SubmissionStatus(status)
	return &s, nil
}
