package services

import (
	"context"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
)

// Notifier is the fire-and-forget notification sink. Implementations deliver a
// single notification; an error is logged by the dispatcher, never propagated
// to the operation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// NotificationDispatcher consumes the post-commit event lists returned by core
// operations and delivers them through a Notifier.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, events []domain.Notification)
}
