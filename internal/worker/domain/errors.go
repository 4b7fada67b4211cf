package domain

import "errors"

var (
	// ErrInvalidPayload is returned when a message body is not a usable images_released event
	ErrInvalidPayload = errors.New("invalid event payload")

	// ErrUnknownEvent is returned for events this worker does not handle
	ErrUnknownEvent = errors.New("unknown event")

	// ErrMaxRetriesExceeded is returned when a task keeps failing after its last allowed retry
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
