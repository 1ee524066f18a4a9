package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/events"
)

type captureChannel struct {
	name string
	got  []events.Event
	err  error
}

func (c *captureChannel) Name() string { return c.name }

func (c *captureChannel) Send(_ context.Context, event events.Event) error {
	c.got = append(c.got, event)
	return c.err
}

type flakyDialer struct {
	failures int
	calls    int
	sent     []*gomail.Message
}

func (d *flakyDialer) DialAndSend(m ...*gomail.Message) error {
	d.calls++
	if d.calls <= d.failures {
		return errBoom
	}
	d.sent = append(d.sent, m...)
	return nil
}

type capturePublisher struct {
	channel string
	message []byte
}

func (p *capturePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	p.message, _ = message.([]byte)
	return redis.NewIntResult(1, nil)
}

func TestNotificationService_NotifyFansOutToChannels(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	good := &captureChannel{name: "good"}
	bad := &captureChannel{name: "bad", err: errBoom}
	svc := NewNotificationService(dispatcher, zaptest.NewLogger(t), good, bad)
	svc.now = func() time.Time { return testNow }
	svc.RegisterHandlers()

	err := svc.Notify(context.Background(), events.KindIssueEscalated,
		[]events.Recipient{{UserID: "manager-1", Email: "mira@example.com"}},
		map[string]any{"issue_id": "g-1", "level": 1})
	assert.ErrorIs(t, err, errBoom)

	require.Len(t, good.got, 1)
	assert.Equal(t, "g-1", good.got[0].IssueID)
	assert.Equal(t, events.KindIssueEscalated, good.got[0].Kind)
	assert.NotEmpty(t, good.got[0].ID)
	assert.True(t, good.got[0].Timestamp.Equal(testNow))
	require.Len(t, bad.got, 1)
}

func TestNotificationService_QueueFullIsReported(t *testing.T) {
	dispatcher := events.NewAsyncDispatcher(1, 1, zaptest.NewLogger(t))
	svc := NewNotificationService(dispatcher, zaptest.NewLogger(t))

	require.NoError(t, svc.Notify(context.Background(), events.KindIssueReopened, nil, map[string]any{"issue_id": "a"}))
	err := svc.Notify(context.Background(), events.KindIssueReopened, nil, map[string]any{"issue_id": "b"})
	assert.ErrorIs(t, err, events.ErrQueueFull)
}

func TestMailChannel_RetriesThenSends(t *testing.T) {
	dialer := &flakyDialer{failures: 2}
	ch := newMailChannel(dialer, config.NotificationConfig{
		EmailFrom:     "noreply@example.com",
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	}, zaptest.NewLogger(t))

	err := ch.Send(context.Background(), events.Event{
		Kind:       events.KindIssueEscalated,
		IssueID:    "g-1",
		Recipients: []events.Recipient{{Email: "a@example.com"}, {Email: "a@example.com"}, {Email: "b@example.com"}},
		Payload:    map[string]any{"new_priority": "critical"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, dialer.calls)
	require.Len(t, dialer.sent, 1)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, dialer.sent[0].GetHeader("Bcc"))
	assert.Equal(t, []string{"Grievance g-1 escalated"}, dialer.sent[0].GetHeader("Subject"))
}

func TestMailChannel_GivesUp(t *testing.T) {
	dialer := &flakyDialer{failures: 10}
	ch := newMailChannel(dialer, config.NotificationConfig{RetryAttempts: 1, RetryBackoff: time.Millisecond}, zaptest.NewLogger(t))

	err := ch.Send(context.Background(), events.Event{Recipients: []events.Recipient{{Email: "a@example.com"}}})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, dialer.calls)
}

func TestMailChannel_NoAddressesIsNoop(t *testing.T) {
	dialer := &flakyDialer{}
	ch := newMailChannel(dialer, config.NotificationConfig{}, zaptest.NewLogger(t))
	require.NoError(t, ch.Send(context.Background(), events.Event{Recipients: []events.Recipient{{UserID: "u"}}}))
	assert.Zero(t, dialer.calls)
}

func TestRedisChannel_PublishesJSON(t *testing.T) {
	pub := &capturePublisher{}
	ch := &RedisChannel{client: pub, channel: "grievance:notifications"}

	require.NoError(t, ch.Send(context.Background(), events.Event{ID: "e-1", Kind: events.KindIssueReassigned, IssueID: "g-1"}))
	assert.Equal(t, "grievance:notifications", pub.channel)

	var decoded events.Event
	require.NoError(t, json.Unmarshal(pub.message, &decoded))
	assert.Equal(t, "g-1", decoded.IssueID)
	assert.Equal(t, events.KindIssueReassigned, decoded.Kind)
}

func TestNewMailChannel_DisabledWithoutHost(t *testing.T) {
	assert.Nil(t, NewMailChannel(config.NotificationConfig{}, zaptest.NewLogger(t)))
}
