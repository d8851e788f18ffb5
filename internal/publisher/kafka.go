package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"submission_service/internal/domain"
	"submission_service/pkg/ctxdata"
	"submission_service/pkg/retry"
)

type KafkaConfig struct {
	Brokers          []string
	MaxRetries       int
	RetryBaseDelay   time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each event to the topic named by its routing key,
// keyed by submission id so one submission's events stay ordered.
type KafkaPublisher struct {
	writer     MessageWriter
	breaker    *retry.CircuitBreaker
	maxRetries int
	baseDelay  time.Duration
}

func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(writer, cfg)
}

func NewKafkaPublisherWithWriter(writer MessageWriter, cfg KafkaConfig) *KafkaPublisher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 100 * time.Millisecond
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerReset <= 0 {
		cfg.BreakerReset = 30 * time.Second
	}
	return &KafkaPublisher{
		writer:     writer,
		breaker:    retry.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerReset, isRetriable),
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	routingKey := domain.RoutingKey(event.Kind())
	if routingKey == "" {
		return fmt.Errorf("%w: no routing key for kind %q", ErrPublishFailed, event.Kind())
	}

	correlationID, _ := ctxdata.GetCorrelationID(ctx)
	envelope, err := NewEnvelope(event, routingKey, correlationID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal envelope: %w", ErrPublishFailed, err)
	}

	msg := kafka.Message{
		Topic: routingKey,
		Key:   []byte(envelope.SubmissionID.String()),
		Value: value,
		Time:  envelope.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(envelope.EventID.String())},
			{Key: "event_kind", Value: []byte(envelope.Kind)},
			{Key: "correlation_id", Value: []byte(correlationID)},
		},
	}

	_, err = retry.RetryWithCircuitBreaker(ctx, p.breaker, p.maxRetries, p.baseDelay, func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, routingKey, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func isRetriable(err error) bool {
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		for _, e := range writeErrs {
			if e != nil && retry.IsTemporary(e) {
				return true
			}
		}
		return false
	}
	return retry.IsTemporary(err)
}
