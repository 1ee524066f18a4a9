package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/events"
)

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailChannel sends plain-text notification mails over SMTP with retries.
type MailChannel struct {
	dialer  mailDialer
	from    string
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

// NewMailChannel returns nil when no SMTP host is configured.
func NewMailChannel(cfg config.NotificationConfig, logger *zap.Logger) *MailChannel {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return nil
	}
	return newMailChannel(gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword), cfg, logger)
}

func newMailChannel(dialer mailDialer, cfg config.NotificationConfig, logger *zap.Logger) *MailChannel {
	retries := cfg.RetryAttempts
	if retries < 0 {
		retries = 0
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &MailChannel{
		dialer:  dialer,
		from:    cfg.EmailFrom,
		retries: retries,
		backoff: backoff,
		logger:  logger.Named("mail"),
	}
}

func (m *MailChannel) Name() string { return "mail" }

func (m *MailChannel) Send(ctx context.Context, event events.Event) error {
	receivers := event.Emails()
	if len(receivers) == 0 {
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("Bcc", receivers...)
	msg.SetHeader("Subject", mailSubject(event))
	msg.SetBody("text/plain", mailBody(event))

	var lastErr error
	backoff := m.backoff
	for attempt := 0; attempt <= m.retries; attempt++ {
		if lastErr = m.dialer.DialAndSend(msg); lastErr == nil {
			return nil
		}
		if attempt == m.retries {
			break
		}
		m.logger.Debug("mail send failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("send mail after %d attempts: %w", m.retries+1, lastErr)
}

func mailSubject(event events.Event) string {
	switch event.Kind {
	case events.KindIssueEscalated:
		return fmt.Sprintf("Grievance %s escalated", event.IssueID)
	case events.KindIssueReassigned:
		return fmt.Sprintf("Grievance %s assigned to you", event.IssueID)
	case events.KindIssueStatusChanged:
		return fmt.Sprintf("Grievance %s status changed", event.IssueID)
	case events.KindIssueReopened:
		return fmt.Sprintf("Grievance %s reopened", event.IssueID)
	default:
		return fmt.Sprintf("Grievance %s updated", event.IssueID)
	}
}

func mailBody(event events.Event) string {
	keys := make([]string, 0, len(event.Payload))
	for k := range event.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", mailSubject(event))
	for _, k := range keys {
		if v := event.Payload[k]; v != nil && v != "" {
			fmt.Fprintf(&b, "%s: %v\n", k, v)
		}
	}
	return b.String()
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisChannel publishes events as JSON for the realtime transport to pick up.
type RedisChannel struct {
	client  redisPublisher
	channel string
}

// NewRedisChannel returns nil when client is nil.
func NewRedisChannel(client redis.Cmdable, channel string) *RedisChannel {
	if client == nil || channel == "" {
		return nil
	}
	return &RedisChannel{client: client, channel: channel}
}

func (r *RedisChannel) Name() string { return "redis" }

func (r *RedisChannel) Send(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}

// LogChannel writes events to the log; it is always enabled.
type LogChannel struct {
	logger *zap.Logger
}

func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger.Named("notify")}
}

func (l *LogChannel) Name() string { return "log" }

func (l *LogChannel) Send(_ context.Context, event events.Event) error {
	l.logger.Info("notification",
		zap.String("kind", string(event.Kind)),
		zap.String("issue_id", event.IssueID),
		zap.Strings("emails", event.Emails()),
		zap.Any("payload", event.Payload))
	return nil
}
