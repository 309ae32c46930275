package domain

import "time"

// User is a platform account as seen by the notification engine.
// Accounts are owned by the authentication service; this service only
// reads them through the directory.
type User struct {
	ID        string
	Username  string
	Email     string
	CreatedAt time.Time
}
