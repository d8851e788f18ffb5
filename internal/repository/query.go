package repository

import (
	"fmt"
	"strings"

	"submission_service/internal/domain"
)

const submissionColumns = `id, student_id, project_id, content, file_path, grade, feedback, status, is_late,
		submitted_at, graded_by, graded_at, revoked_by, revoked_at, revoke_reason,
		created_at, last_modified_at, version`

// buildFilter turns a filter into a WHERE clause with positional args.
func buildFilter(filter domain.SubmissionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.StudentID != nil {
		add("student_id = $%d", *filter.StudentID)
	}
	if filter.ProjectID != nil {
		add("project_id = $%d", *filter.ProjectID)
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.SubmittedFrom != nil {
		add("submitted_at >= $%d", *filter.SubmittedFrom)
	}
	if filter.SubmittedTo != nil {
		add("submitted_at < $%d", *filter.SubmittedTo)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func buildListQuery(filter domain.SubmissionFilter, limit, offset int) (string, string, []any) {
	where, args := buildFilter(filter)

	countQuery := "SELECT COUNT(*) FROM submissions " + where

	listArgs := append(append([]any{}, args...), limit, offset)
	listQuery := fmt.Sprintf(
		"SELECT %s FROM submissions %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d",
		submissionColumns, where, len(args)+1, len(args)+2,
	)
	return countQuery, listQuery, listArgs
}
