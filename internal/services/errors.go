package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both missing rows and rows owned by someone else, so
	// callers never learn whether a foreign id exists.
	ErrNotFound = errors.New("not found")

	ErrUsernameTaken      = errors.New("username already in use")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrFolderCycle        = errors.New("folder cannot be moved inside itself")
)

// QuotaExceededError reports how much room the user has left.
type QuotaExceededError struct {
	AvailableBytes int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("upload exceeds storage quota: %d bytes available", e.AvailableBytes)
}
