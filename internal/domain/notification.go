package domain

import "time"

// Notification is an in-app activity record. Message, URL, target user and
// timestamp never change after creation; only Read transitions, and only
// from false to true.
type Notification struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"-"`
	Message   string    `json:"message"`
	URL       string    `json:"url"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
