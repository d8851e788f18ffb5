package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrIllegalStateTransition = errors.New("illegal state transition")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type TransitionError struct {
	From    SubmissionStatus
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s (status %s)", e.Message, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalStateTransition
}
