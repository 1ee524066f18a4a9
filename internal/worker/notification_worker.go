package worker

import (
	"context"

	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/service"
)

// StartNotificationWorker registers notification handlers and delivers queued
// events until ctx is done. Events already queued are drained before it returns.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, dispatcher *events.AsyncDispatcher) error {
	if notificationService == nil || dispatcher == nil {
		return nil
	}
	notificationService.RegisterHandlers()
	return dispatcher.Run(ctx)
}
