package services

import (
	"context"
	"log/slog"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/middleware"
)

// logNotifier writes notifications to the structured log. It stands in for a
// push or email channel; the dispatcher contract stays the same when one is
// plugged in.
type logNotifier struct{}

// NewLogNotifier creates a Notifier that records deliveries in the log.
func NewLogNotifier() portssvc.Notifier {
	return logNotifier{}
}

func (logNotifier) Notify(ctx context.Context, n domain.Notification) error {
	middleware.GetLoggerFromCtx(ctx).Info("Notification",
		slog.String("user_id", n.UserID),
		slog.String("type", n.Type),
		slog.String("severity", string(n.Severity)),
		slog.String("message", n.Message),
		slog.String("related_id", n.RelatedID))
	return nil
}

// notificationDispatcher delivers post-commit event lists through a Notifier.
// Delivery failures are logged and swallowed; they can never fail the operation
// that produced the events.
type notificationDispatcher struct {
	notifier portssvc.Notifier
}

// NewNotificationDispatcher creates the post-commit event dispatcher.
func NewNotificationDispatcher(notifier portssvc.Notifier) portssvc.NotificationDispatcher {
	return &notificationDispatcher{notifier: notifier}
}

var _ portssvc.NotificationDispatcher = (*notificationDispatcher)(nil)

func (d *notificationDispatcher) Dispatch(ctx context.Context, events []domain.Notification) {
	logger := middleware.GetLoggerFromCtx(ctx)
	for _, event := range events {
		if err := d.notifier.Notify(ctx, event); err != nil {
			logger.Warn("Notification delivery failed",
				slog.String("user_id", event.UserID),
				slog.String("type", event.Type),
				slog.String("error", err.Error()))
		}
	}
}
