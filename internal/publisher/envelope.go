package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"submission_service/internal/domain"
)

var ErrPublishFailed = errors.New("failed to publish event")

// Envelope is the wire form of a submission event on every channel.
type Envelope struct {
	EventID       uuid.UUID        `json:"event_id"`
	Kind          domain.EventKind `json:"kind"`
	RoutingKey    string           `json:"routing_key"`
	SubmissionID  uuid.UUID        `json:"submission_id"`
	OccurredAt    time.Time        `json:"occurred_at"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	Payload       json.RawMessage  `json:"payload"`
}

func NewEnvelope(event domain.Event, routingKey, correlationID string) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	meta := event.Meta()
	return Envelope{
		EventID:       meta.EventID,
		Kind:          event.Kind(),
		RoutingKey:    routingKey,
		SubmissionID:  meta.SubmissionID,
		OccurredAt:    meta.OccurredAt,
		CorrelationID: correlationID,
		Payload:       payload,
	}, nil
}

// DecodeEvent restores the typed event carried by an envelope.
func (e Envelope) DecodeEvent() (domain.Event, error) {
	var (
		event domain.Event
		err   error
	)
	switch e.Kind {
	case domain.EventKindCreated:
		event, err = decodeAs[domain.SubmissionCreated](e.Payload)
	case domain.EventKindUpdated:
		event, err = decodeAs[domain.SubmissionUpdated](e.Payload)
	case domain.EventKindSubmitted:
		event, err = decodeAs[domain.SubmissionSubmitted](e.Payload)
	case domain.EventKindGraded:
		event, err = decodeAs[domain.SubmissionGraded](e.Payload)
	case domain.EventKindRevoked:
		event, err = decodeAs[domain.SubmissionRevoked](e.Payload)
	case domain.EventKindCommentAdded:
		event, err = decodeAs[domain.CommentAdded](e.Payload)
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", e.Kind, err)
	}
	return event, nil
}

func decodeAs[T domain.Event](payload json.RawMessage) (domain.Event, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}
