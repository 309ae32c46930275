package notifications

import "errors"

// Repository errors.
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotificationNotOwned = errors.New("notification does not belong to user")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
