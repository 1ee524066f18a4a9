package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/observability"
)

var (
	// ErrMirrorClosed is returned by Publish after Close.
	ErrMirrorClosed = errors.New("audit mirror closed")
	// ErrMirrorQueueFull is returned when the send queue has no room.
	ErrMirrorQueueFull = errors.New("audit mirror queue full")
)

// auditMessage is the wire form of an audit entry on the mirror topic.
type auditMessage struct {
	ID             string         `json:"id"`
	IssueID        string         `json:"issue_id"`
	ActorID        string         `json:"actor_id"`
	Action         string         `json:"action"`
	PreviousStatus *string        `json:"previous_status,omitempty"`
	NewStatus      *string        `json:"new_status,omitempty"`
	Detail         map[string]any `json:"detail,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// messageWriter is the subset of *kafka.Writer the mirror needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAuditMirror streams committed audit entries to a Kafka topic. Publish
// only enqueues; a background sender owns the writer.
type KafkaAuditMirror struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
	queue  chan kafka.Message
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewKafkaAuditMirror returns nil when no brokers are configured.
func NewKafkaAuditMirror(cfg config.KafkaConfig, logger *zap.Logger) *KafkaAuditMirror {
	if !cfg.Enabled() {
		logger.Info("KAFKA_BROKERS not provided; audit mirror disabled")
		return nil
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.AuditTopic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           100 * time.Millisecond,
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: false,
	}

	logger.Info("kafka audit mirror created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.AuditTopic),
		zap.Int("queue_size", cfg.QueueSize))

	return newKafkaAuditMirror(writer, cfg.AuditTopic, cfg.QueueSize, logger)
}

func newKafkaAuditMirror(writer messageWriter, topic string, queueSize int, logger *zap.Logger) *KafkaAuditMirror {
	if queueSize <= 0 {
		queueSize = 1024
	}
	m := &KafkaAuditMirror{
		writer: writer,
		topic:  topic,
		logger: logger.Named("kafka-audit"),
		queue:  make(chan kafka.Message, queueSize),
		done:   make(chan struct{}),
	}
	go m.send()
	return m
}

// Publish enqueues one entry keyed by issue id so an issue's history stays
// ordered within a partition. It never waits on the brokers.
func (m *KafkaAuditMirror) Publish(_ context.Context, entry domain.AuditEntry) error {
	value, err := json.Marshal(auditMessage{
		ID:             entry.ID,
		IssueID:        entry.IssueID,
		ActorID:        entry.ActorID,
		Action:         string(entry.Action),
		PreviousStatus: entry.PreviousStatus,
		NewStatus:      entry.NewStatus,
		Detail:         entry.Detail,
		CreatedAt:      entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(entry.IssueID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(entry.Action)},
			{Key: "actor", Value: []byte(entry.ActorID)},
			{Key: "timestamp", Value: []byte(entry.CreatedAt.Format(time.RFC3339))},
		},
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMirrorClosed
	}
	select {
	case m.queue <- msg:
		return nil
	default:
		return ErrMirrorQueueFull
	}
}

func (m *KafkaAuditMirror) send() {
	defer close(m.done)
	for msg := range m.queue {
		if err := m.writer.WriteMessages(context.Background(), msg); err != nil {
			observability.AuditWriteFailures.WithLabelValues("mirror").Inc()
			m.logger.Warn("write audit entry failed",
				zap.String("topic", m.topic),
				zap.String("issue_id", string(msg.Key)),
				zap.Error(err))
		}
	}
}

// Close stops accepting entries, flushes the queue and closes the writer.
func (m *KafkaAuditMirror) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	<-m.done
	if err := m.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
