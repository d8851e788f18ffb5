package service

import (
	"errors"

	"submission_service/internal/domain"
	"submission_service/internal/repository"
)

var (
	ErrPermissionDenied = errors.New("permission denied")

	ErrInvalidArgument        = domain.ErrInvalidArgument
	ErrIllegalStateTransition = domain.ErrIllegalStateTransition
	ErrNotFound               = repository.ErrNotFound
	ErrConcurrentModification = repository.ErrConcurrentModification
)
