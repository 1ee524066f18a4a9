package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/observability"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
	// release, when set, blocks every write until it is closed.
	release chan struct{}
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.release != nil {
		<-w.release
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

func TestKafkaAuditMirror_PublishKeysByIssue(t *testing.T) {
	writer := &recordingWriter{}
	mirror := newKafkaAuditMirror(writer, "audit", 8, zap.NewNop())

	prev, next := "high", "critical"
	entry := domain.AuditEntry{
		ID:             "a-1",
		IssueID:        "issue-7",
		ActorID:        domain.SystemActor,
		Action:         domain.AuditActionEscalated,
		PreviousStatus: &prev,
		NewStatus:      &next,
		Detail:         map[string]any{"new_level": 1},
		CreatedAt:      time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, mirror.Publish(context.Background(), entry))
	require.NoError(t, mirror.Close())

	messages := writer.written()
	require.Len(t, messages, 1)
	msg := messages[0]
	assert.Equal(t, "issue-7", string(msg.Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "escalated", decoded["action"])
	assert.Equal(t, "critical", decoded["new_status"])
}

func TestKafkaAuditMirror_PublishDoesNotWaitOnBrokers(t *testing.T) {
	writer := &recordingWriter{release: make(chan struct{})}
	mirror := newKafkaAuditMirror(writer, "audit", 1, zap.NewNop())

	// The sender takes the first entry and blocks on the writer; the second
	// fills the queue and the third is rejected without waiting.
	require.NoError(t, mirror.Publish(context.Background(), domain.AuditEntry{IssueID: "a"}))
	require.Eventually(t, func() bool { return len(mirror.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, mirror.Publish(context.Background(), domain.AuditEntry{IssueID: "b"}))
	assert.ErrorIs(t, mirror.Publish(context.Background(), domain.AuditEntry{IssueID: "c"}), ErrMirrorQueueFull)

	close(writer.release)
	require.NoError(t, mirror.Close())
	assert.Len(t, writer.written(), 2)
}

func TestKafkaAuditMirror_WriteErrorIsCounted(t *testing.T) {
	boom := errors.New("broker down")
	mirror := newKafkaAuditMirror(&recordingWriter{err: boom}, "audit", 8, zap.NewNop())

	before := testutil.ToFloat64(observability.AuditWriteFailures.WithLabelValues("mirror"))
	require.NoError(t, mirror.Publish(context.Background(), domain.AuditEntry{IssueID: "x"}))
	require.NoError(t, mirror.Close())
	assert.Equal(t, before+1, testutil.ToFloat64(observability.AuditWriteFailures.WithLabelValues("mirror")))
}

func TestKafkaAuditMirror_ClosedRejectsPublish(t *testing.T) {
	writer := &recordingWriter{}
	mirror := newKafkaAuditMirror(writer, "audit", 8, zap.NewNop())
	require.NoError(t, mirror.Close())
	require.NoError(t, mirror.Close())
	assert.True(t, writer.closed)

	assert.ErrorIs(t, mirror.Publish(context.Background(), domain.AuditEntry{}), ErrMirrorClosed)
}

func TestNewKafkaAuditMirror_DisabledWithoutBrokers(t *testing.T) {
	assert.Nil(t, NewKafkaAuditMirror(config.KafkaConfig{AuditTopic: "audit"}, zap.NewNop()))
}
