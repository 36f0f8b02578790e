package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork wraps transport failures (DNS, refused connection, timeouts).
	ErrNetwork = errors.New("assistant: network failure")

	// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("assistant: malformed response")

	// ErrEmptyResult is returned when extraction succeeded in shape but found nothing usable.
	ErrEmptyResult = errors.New("assistant: empty extraction result")
)

// ProtocolError is a non-2xx response from the backend.
type ProtocolError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("assistant: %s returned status %d", e.Path, e.StatusCode)
}

// IsRetryable reports whether the status is worth another attempt.
func (e *ProtocolError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
