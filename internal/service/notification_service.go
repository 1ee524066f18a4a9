package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/observability"
)

// Notifier hands notifications to delivery. Implementations only enqueue.
type Notifier interface {
	Notify(ctx context.Context, kind events.Kind, recipients []events.Recipient, payload map[string]any) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, events.Kind, []events.Recipient, map[string]any) error {
	return nil
}

// Channel delivers one event over a single transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, event events.Event) error
}

// NotificationService queues notifications on the dispatcher and fans each
// event out to the configured channels.
type NotificationService struct {
	dispatcher events.Dispatcher
	channels   []Channel
	logger     *zap.Logger
	now        func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, channels ...Channel) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		channels:   channels,
		logger:     logger.Named("notifications"),
		now:        time.Now,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.KindIssueEscalated, n.deliver)
	n.dispatcher.Subscribe(events.KindIssueReassigned, n.deliver)
	n.dispatcher.Subscribe(events.KindIssueStatusChanged, n.deliver)
	n.dispatcher.Subscribe(events.KindIssueReopened, n.deliver)
}

// Notify enqueues an event. It never waits on delivery.
func (n *NotificationService) Notify(ctx context.Context, kind events.Kind, recipients []events.Recipient, payload map[string]any) error {
	if n.dispatcher == nil {
		return nil
	}
	issueID, _ := payload["issue_id"].(string)
	event := events.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		IssueID:    issueID,
		Recipients: recipients,
		Timestamp:  n.now().UTC(),
		Payload:    payload,
	}
	if err := n.dispatcher.Publish(ctx, event); err != nil {
		observability.Notifications.WithLabelValues("queue", "dropped").Inc()
		return err
	}
	return nil
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Kind),
		zap.String("issue_id", event.IssueID),
		zap.Int("recipients", len(event.Recipients)))

	var errs []error
	for _, ch := range n.channels {
		if err := ch.Send(ctx, event); err != nil {
			observability.Notifications.WithLabelValues(ch.Name(), "failed").Inc()
			n.logger.Warn("notification delivery failed",
				zap.String("channel", ch.Name()),
				zap.String("issue_id", event.IssueID),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		observability.Notifications.WithLabelValues(ch.Name(), "sent").Inc()
	}
	return errors.Join(errs...)
}
