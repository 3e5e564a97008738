package assist

import (
	"errors"
	"fmt"
)

var (
	ErrAuthInvalid = errors.New("assist: authentication rejected")
	ErrClosed      = errors.New("assist: connection closed")
	ErrNoURL       = errors.New("assist: no Home Assistant URL configured")
)

// HTTPError is a non-2xx reply from the REST API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("assist: http status %d: %s", e.StatusCode, e.Body)
}

// CommandError is a failed WebSocket command result.
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("assist: command failed: %s: %s", e.Code, e.Message)
}
