package notifications

import (
	"context"
	"fmt"

	"github.com/authorshaven/notify/internal/domain"
	"github.com/authorshaven/notify/internal/pkg/ctxlog"
)

// ReadFilter selects which notifications a listing returns.
type ReadFilter string

const (
	FilterAll    ReadFilter = "all"
	FilterRead   ReadFilter = "read"
	FilterUnread ReadFilter = "unread"
)

// NotificationList is a page of notifications with the total count for the
// applied filter.
type NotificationList struct {
	Count         int                   `json:"count"`
	Notifications []domain.Notification `json:"notifications"`
}

// Service provides notification and subscription read/write operations for
// the HTTP layer.
type Service struct {
	repo Repository
}

// NewService creates a new notifications service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListNotifications returns the user's notifications for the given filter,
// newest first.
func (s *Service) ListNotifications(ctx context.Context, userID string, filter ReadFilter, limit, offset int) (*NotificationList, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var read *bool
	switch filter {
	case FilterRead:
		t := true
		read = &t
	case FilterUnread:
		f := false
		read = &f
	}

	notifications, err := s.repo.ListNotifications(ctx, userID, read, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	count, err := s.repo.CountNotifications(ctx, userID, read)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	if notifications == nil {
		notifications = []domain.Notification{}
	}

	return &NotificationList{
		Count:         count,
		Notifications: notifications,
	}, nil
}

// MarkRead marks a notification as read. Only the recipient may mark their
// own notification; marking an already-read notification is a no-op.
func (s *Service) MarkRead(ctx context.Context, id, requestingUserID string) (*domain.Notification, error) {
	notification, err := s.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if notification.UserID == nil || *notification.UserID != requestingUserID {
		return nil, ErrNotificationNotOwned
	}

	if notification.Read {
		return notification, nil
	}

	updated, err := s.repo.MarkNotificationRead(ctx, id)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("notification marked read", "notification_id", id, "user_id", requestingUserID)
	return updated, nil
}

// GetSubscriptions returns the user's channel subscription settings.
func (s *Service) GetSubscriptions(ctx context.Context, userID string) (*domain.Subscription, error) {
	return s.repo.GetSubscription(ctx, userID)
}

// UpdateSubscriptions updates the user's channel opt-in flags. Nil fields
// are left unchanged.
func (s *Service) UpdateSubscriptions(ctx context.Context, userID string, email, app *bool) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	if email != nil {
		sub.Email = *email
	}
	if app != nil {
		sub.App = *app
	}

	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	ctxlog.FromContext(ctx).Info("subscription updated",
		"user_id", userID,
		"email", sub.Email,
		"app", sub.App,
	)
	return sub, nil
}
