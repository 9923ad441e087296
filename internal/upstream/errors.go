package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an upstream failure with the status to relay to the caller.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream: %d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream: %d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf extracts the relay status from err, 500 when err is not an *Error.
func StatusOf(err error) int {
	var upErr *Error
	if errors.As(err, &upErr) && upErr.Status != 0 {
		return upErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf extracts the user-facing message from err, or fallback.
func MessageOf(err error, fallback string) string {
	var upErr *Error
	if errors.As(err, &upErr) && upErr.Message != "" {
		return upErr.Message
	}
	return fallback
}

// StatusCode returns the status to relay.
func (e *Error) StatusCode() int {
	return e.Status
}

// PublicMessage returns the message safe to show users.
func (e *Error) PublicMessage() string {
	return e.Message
}
