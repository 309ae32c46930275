// Package notifications implements the activity notification engine:
// subscription preferences, in-app notification records, recipient
// resolution and batched email fan-out.
package notifications

import (
	"context"
	"time"

	"github.com/authorshaven/notify/internal/domain"
)

// Repository defines the interface for notifications data access.
type Repository interface {
	// Notification records
	CreateNotification(ctx context.Context, notification *domain.Notification) error
	GetNotificationByID(ctx context.Context, id string) (*domain.Notification, error)
	ListNotifications(ctx context.Context, userID string, read *bool, limit, offset int) ([]domain.Notification, error)
	CountNotifications(ctx context.Context, userID string, read *bool) (int, error)
	MarkNotificationRead(ctx context.Context, id string) (*domain.Notification, error)

	// Subscription preferences
	CreateSubscription(ctx context.Context, userID string) error
	GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *domain.Subscription) error
	OptedOutUserIDs(ctx context.Context, channel domain.Channel) (map[string]bool, error)

	// Mail queue
	EnqueueMail(ctx context.Context, item *MailQueueItem) error
	FetchPendingMail(ctx context.Context, limit int) ([]*MailQueueItem, error)
	MarkMailSent(ctx context.Context, id string) error
	MarkMailFailed(ctx context.Context, id string, sendErr error) error
	MarkMailForRetry(ctx context.Context, id string, sendErr error, nextAttempt time.Time) error
	MailQueueStats(ctx context.Context) (*QueueStats, error)
}
