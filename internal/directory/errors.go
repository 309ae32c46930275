package directory

import "errors"

// Repository errors.
var (
	ErrUserNotFound = errors.New("user not found")
)
