package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"submission_service/internal/domain"
	"submission_service/internal/publisher"
	"submission_service/pkg/logging"
)

// fakeReader hands out queued messages and cancels the run once empty.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs []error
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if len(r.queue) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func meta(id uuid.UUID) domain.EventMeta {
	return domain.EventMeta{
		EventID:      uuid.New(),
		SubmissionID: id,
		OccurredAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func message(t *testing.T, event domain.Event) kafka.Message {
	t.Helper()
	envelope, err := publisher.NewEnvelope(event, domain.RoutingKey(event.Kind()), "corr-1")
	require.NoError(t, err)
	value, err := json.Marshal(envelope)
	require.NoError(t, err)
	return kafka.Message{Topic: envelope.RoutingKey, Value: value}
}

func run(t *testing.T, reader *fakeReader, logger *logging.Logger) []Notification {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader.cancel = cancel

	var sent []Notification
	c := NewConsumer(reader, logger)
	c.retryBase = time.Millisecond
	c.sent = func(_ context.Context, n Notification) { sent = append(sent, n) }
	require.NoError(t, c.Run(ctx))
	return sent
}

func TestTopics(t *testing.T) {
	topics := Topics()
	assert.Len(t, topics, len(domain.AllEventKinds()))
	assert.Contains(t, topics, domain.RoutingKey(domain.EventKindGraded))
	assert.Contains(t, topics, domain.RoutingKey(domain.EventKindSubmitted))
}

func TestNotify(t *testing.T) {
	id := uuid.New()
	student := uuid.New()

	tests := []struct {
		name    string
		event   domain.Event
		ok      bool
		message string
	}{
		{
			name:    "created",
			event:   domain.SubmissionCreated{EventMeta: meta(id), StudentID: student},
			ok:      true,
			message: "Your draft submission was created",
		},
		{
			name:    "submitted late",
			event:   domain.SubmissionSubmitted{EventMeta: meta(id), StudentID: student, IsLate: true},
			ok:      true,
			message: "Your submission was received after the deadline",
		},
		{
			name:    "graded",
			event:   domain.SubmissionGraded{EventMeta: meta(id), StudentID: student, Grade: 85, Feedback: "good"},
			ok:      true,
			message: "Your submission was graded 85/100: good",
		},
		{name: "updated", event: domain.SubmissionUpdated{EventMeta: meta(id)}},
		{name: "revoked", event: domain.SubmissionRevoked{EventMeta: meta(id)}},
		{name: "comment", event: domain.CommentAdded{EventMeta: meta(id)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := Notify(tt.event)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, student, n.Recipient)
			assert.Equal(t, id, n.SubmissionID)
			assert.Equal(t, tt.message, n.Message)
		})
	}
}

func TestConsumer_Run(t *testing.T) {
	id := uuid.New()
	student := uuid.New()
	reader := &fakeReader{queue: []kafka.Message{
		message(t, domain.SubmissionSubmitted{EventMeta: meta(id), StudentID: student}),
		message(t, domain.SubmissionUpdated{EventMeta: meta(id), ContentLength: 3}),
		message(t, domain.SubmissionGraded{EventMeta: meta(id), StudentID: student, Grade: 70, Feedback: "ok"}),
	}}

	sent := run(t, reader, logging.NewNop())

	require.Len(t, sent, 2)
	assert.Equal(t, "Your submission was received", sent[0].Message)
	assert.Equal(t, "Your submission was graded 70/100: ok", sent[1].Message)
	assert.Len(t, reader.committed, 3)
}

func TestConsumer_SkipsMalformedMessages(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	unknown, err := json.Marshal(publisher.Envelope{Kind: "submission.unknown", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "submission.graded", Value: []byte("not json")},
		{Topic: "submission.graded", Value: unknown},
	}}

	sent := run(t, reader, logging.New(zap.New(core)))

	assert.Empty(t, sent)
	assert.Len(t, reader.committed, 2, "poison messages are committed")
	assert.Equal(t, 1, logs.FilterMessage("Failed to unmarshal message").Len())
	assert.Equal(t, 1, logs.FilterMessage("Failed to decode event").Len())
}

func TestConsumer_RetriesFetchErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	reader := &fakeReader{fetchErrs: []error{errors.New("broker unavailable")}}

	sent := run(t, reader, logging.New(zap.New(core)))

	assert.Empty(t, sent)
	assert.Equal(t, 1, logs.FilterMessage("Failed to fetch message").Len())
}

func TestConsumer_StopsWhenReaderClosed(t *testing.T) {
	reader := &fakeReader{fetchErrs: []error{io.EOF}, cancel: func() {}}
	c := NewConsumer(reader, logging.NewNop())

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer kept running after the reader was closed")
	}
	assert.Empty(t, reader.fetchErrs)
}

func TestConsumer_BacksOffBetweenFetchErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &fakeReader{
		fetchErrs: []error{errors.New("broker unavailable"), errors.New("broker unavailable")},
		cancel:    cancel,
	}
	c := NewConsumer(reader, logging.NewNop())
	c.retryBase = 20 * time.Millisecond

	start := time.Now()
	require.NoError(t, c.Run(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond, "second retry waits twice as long")
}
