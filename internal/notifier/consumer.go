package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"submission_service/internal/domain"
	"submission_service/internal/publisher"
	"submission_service/pkg/ctxdata"
	"submission_service/pkg/logging"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Topics lists every broker topic submission events are written to.
func Topics() []string {
	kinds := domain.AllEventKinds()
	topics := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		topics = append(topics, domain.RoutingKey(kind))
	}
	return topics
}

func NewReader(brokers []string, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: Topics(),
	})
}

type Notification struct {
	Recipient    uuid.UUID
	SubmissionID uuid.UUID
	Message      string
}

// Notify maps an event to the message its student should get. Events
// that concern nobody in particular return false.
func Notify(event domain.Event) (Notification, bool) {
	id := event.Meta().SubmissionID
	switch e := event.(type) {
	case domain.SubmissionCreated:
		return Notification{Recipient: e.StudentID, SubmissionID: id, Message: "Your draft submission was created"}, true
	case domain.SubmissionSubmitted:
		msg := "Your submission was received"
		if e.IsLate {
			msg += " after the deadline"
		}
		return Notification{Recipient: e.StudentID, SubmissionID: id, Message: msg}, true
	case domain.SubmissionGraded:
		return Notification{
			Recipient:    e.StudentID,
			SubmissionID: id,
			Message:      fmt.Sprintf("Your submission was graded %d/100: %s", e.Grade, e.Feedback),
		}, true
	case domain.SubmissionUpdated, domain.SubmissionRevoked, domain.CommentAdded:
		return Notification{}, false
	default:
		return Notification{}, false
	}
}

const (
	fetchRetryBase = 100 * time.Millisecond
	fetchRetryMax  = 5 * time.Second
)

type Consumer struct {
	reader MessageReader
	logger *logging.Logger
	sent   func(ctx context.Context, n Notification)
	// retryBase is the first pause after a failed fetch; it doubles up to
	// fetchRetryMax while fetches keep failing.
	retryBase time.Duration
}

func NewConsumer(reader MessageReader, logger *logging.Logger) *Consumer {
	c := &Consumer{reader: reader, logger: logger, retryBase: fetchRetryBase}
	c.sent = c.logNotification
	return c
}

// Run consumes until ctx is cancelled or the reader is closed. Messages
// that cannot be decoded are logged and committed so they do not block the
// partition.
func (c *Consumer) Run(ctx context.Context) error {
	delay := c.retryBase
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info(ctx, "Consumer shutting down")
				return nil
			}
			if errors.Is(err, io.EOF) {
				c.logger.Info(ctx, "Reader closed, consumer stopping")
				return nil
			}
			c.logger.Error(ctx, "Failed to fetch message", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				c.logger.Info(ctx, "Consumer shutting down")
				return nil
			case <-time.After(delay):
			}
			delay = min(delay*2, fetchRetryMax)
			continue
		}
		delay = c.retryBase

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error(ctx, "Failed to commit message", zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var envelope publisher.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		c.logger.Warn(ctx, "Failed to unmarshal message",
			zap.String("topic", msg.Topic),
			zap.ByteString("value", msg.Value),
			zap.Error(err),
		)
		return
	}
	if envelope.CorrelationID != "" {
		ctx = ctxdata.WithCorrelationID(ctx, envelope.CorrelationID)
	}

	event, err := envelope.DecodeEvent()
	if err != nil {
		c.logger.Warn(ctx, "Failed to decode event",
			zap.String("topic", msg.Topic),
			zap.String("event_id", envelope.EventID.String()),
			zap.Error(err),
		)
		return
	}

	c.logger.Debug(ctx, "Received event",
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.String("event_id", envelope.EventID.String()),
	)

	if n, ok := Notify(event); ok {
		c.sent(ctx, n)
	}
}

func (c *Consumer) logNotification(ctx context.Context, n Notification) {
	c.logger.Info(ctx, "Notification",
		zap.String("recipient", n.Recipient.String()),
		zap.String("submission_id", n.SubmissionID.String()),
		zap.String("message", n.Message),
	)
}
