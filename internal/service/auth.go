package service

import (
	"context"

	"github.com/google/uuid"

	"submission_service/internal/domain"
	"submission_service/pkg/ctxdata"
)

type actor struct {
	id   uuid.UUID
	role domain.UserRole
}

// actorFromContext resolves the caller. initiatorID comes from the command;
// when the request also carries a user id the two must agree.
func actorFromContext(ctx context.Context, initiatorID uuid.UUID) (actor, error) {
	rawRole, ok := ctxdata.GetUserRole(ctx)
	if !ok {
		return actor{}, ErrPermissionDenied
	}
	role := domain.ToUserRole(rawRole)
	switch role {
	case domain.UserRoleStudent, domain.UserRoleInstructor, domain.UserRoleAdmin:
	default:
		return actor{}, ErrPermissionDenied
	}

	if userID, ok := ctxdata.GetUserID(ctx); ok {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			return actor{}, ErrPermissionDenied
		}
		if initiatorID == uuid.Nil {
			initiatorID = parsed
		} else if parsed != initiatorID {
			return actor{}, ErrPermissionDenied
		}
	}
	if initiatorID == uuid.Nil {
		return actor{}, ErrPermissionDenied
	}

	return actor{id: initiatorID, role: role}, nil
}

func (a actor) owns(studentID uuid.UUID) bool {
	return a.role == domain.UserRoleStudent && a.id == studentID
}

// canModify covers create, update and submit.
func (a actor) canModify(studentID uuid.UUID) error {
	if a.role == domain.UserRoleAdmin || a.owns(studentID) {
		return nil
	}
	return ErrPermissionDenied
}

func (a actor) canGrade() error {
	if a.role.IsStaff() {
		return nil
	}
	return ErrPermissionDenied
}

func (a actor) canRead(studentID uuid.UUID) error {
	if a.role.IsStaff() || a.owns(studentID) {
		return nil
	}
	return ErrPermissionDenied
}
