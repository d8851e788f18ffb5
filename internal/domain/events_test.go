package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingKeys(t *testing.T) {
	expected := map[EventKind][2]string{
		EventKindCreated:      {"submission.created", "submission.sync.created"},
		EventKindUpdated:      {"submission.updated", "submission.sync.updated"},
		EventKindSubmitted:    {"submission.submitted", "submission.sync.submitted"},
		EventKindGraded:       {"submission.graded", "submission.sync.graded"},
		EventKindRevoked:      {"submission.revoked", "submission.sync.revoked"},
		EventKindCommentAdded: {"submission.comment.added", "submission.sync.comment.added"},
	}

	require.Len(t, AllEventKinds(), len(expected))
	for _, kind := range AllEventKinds() {
		assert.Equal(t, expected[kind][0], RoutingKey(kind))
		assert.Equal(t, expected[kind][1], SyncRoutingKey(kind))
	}
	assert.Empty(t, RoutingKey(EventKind("unknown")))
}

func TestEventLog_Order(t *testing.T) {
	var log EventLog
	id := uuid.New()
	log.Append(SubmissionCreated{EventMeta: newEventMeta(id, testNow)})
	log.Append(SubmissionSubmitted{EventMeta: newEventMeta(id, testNow)})

	events := log.Events()
	assert.Equal(t, 2, log.Len())
	assert.Equal(t, []EventKind{EventKindCreated, EventKindSubmitted}, eventKinds(events))

	events[0] = nil
	assert.NotNil(t, log.Events()[0])

	log.Clear()
	assert.Equal(t, 0, log.Len())
}

func TestEvent_JSONFlattensMeta(t *testing.T) {
	e := SubmissionGraded{
		EventMeta: newEventMeta(uuid.New(), testNow),
		Grade:     85,
		Feedback:  "Good work!",
		GraderID:  uuid.New(),
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, e.SubmissionID.String(), decoded["submission_id"])
	assert.Equal(t, e.EventID.String(), decoded["event_id"])
	assert.Equal(t, float64(85), decoded["grade"])
}
