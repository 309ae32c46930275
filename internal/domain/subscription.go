package domain

import "time"

// Channel is a notification delivery channel a user can toggle independently.
type Channel string

const (
	ChannelApp   Channel = "app"
	ChannelEmail Channel = "email"
)

// Subscription holds a user's per-channel opt-in flags. Exactly one record
// exists per user; it is created when the account is created and both
// channels default to enabled.
type Subscription struct {
	UserID    string    `json:"-"`
	Email     bool      `json:"email"`
	App       bool      `json:"app"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
