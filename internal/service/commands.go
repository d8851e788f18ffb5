package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"submission_service/internal/domain"
)

type CreateSubmissionCommand struct {
	InitiatorID   uuid.UUID `json:"initiator_id" validate:"required"`
	CorrelationID string    `json:"correlation_id" validate:"max=128"`
	StudentID     uuid.UUID `json:"student_id" validate:"required"`
	ProjectID     uuid.UUID `json:"project_id" validate:"required"`
	Content       string    `json:"content" validate:"max=50000"`
	FilePath      *string   `json:"file_path" validate:"omitempty,max=500"`
	IsLate        bool      `json:"is_late"`
}

type UpdateSubmissionCommand struct {
	InitiatorID   uuid.UUID `json:"initiator_id" validate:"required"`
	CorrelationID string    `json:"correlation_id" validate:"max=128"`
	SubmissionID  uuid.UUID `json:"submission_id" validate:"required"`
	Content       string    `json:"content" validate:"max=50000"`
	FilePath      *string   `json:"file_path" validate:"omitempty,max=500"`
}

type SubmitSubmissionCommand struct {
	InitiatorID   uuid.UUID `json:"initiator_id" validate:"required"`
	CorrelationID string    `json:"correlation_id" validate:"max=128"`
	SubmissionID  uuid.UUID `json:"submission_id" validate:"required"`
}

type GradeSubmissionCommand struct {
	InitiatorID   uuid.UUID `json:"initiator_id" validate:"required"`
	CorrelationID string    `json:"correlation_id" validate:"max=128"`
	SubmissionID  uuid.UUID `json:"submission_id" validate:"required"`
	Grade         int       `json:"grade" validate:"min=0,max=100"`
	Feedback      string    `json:"feedback" validate:"required,max=1000"`
}

type RevokeSubmissionCommand struct {
	InitiatorID   uuid.UUID `json:"initiator_id" validate:"required"`
	CorrelationID string    `json:"correlation_id" validate:"max=128"`
	SubmissionID  uuid.UUID `json:"submission_id" validate:"required"`
	Reason        string    `json:"reason" validate:"max=1000"`
}

type AddCommentCommand struct {
	InitiatorID   uuid.UUID `json:"initiator_id" validate:"required"`
	CorrelationID string    `json:"correlation_id" validate:"max=128"`
	SubmissionID  uuid.UUID `json:"submission_id" validate:"required"`
	Text          string    `json:"text" validate:"required,max=1000"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateCommand reports the first failing field as a domain validation
// error so callers see the same error type the entity returns.
func validateCommand(cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &domain.ValidationError{Field: fe.Field(), Reason: reasonFor(fe)}
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Ptr {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}
