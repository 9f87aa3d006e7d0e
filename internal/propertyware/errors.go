package propertyware

import (
	"errors"
	"fmt"
)

// ErrAuthFailed indicates the provider rejected the configured
// credentials. Never retried.
var ErrAuthFailed = errors.New("propertyware authentication failed")

// ErrMissingCredentials indicates no credentials are configured.
var ErrMissingCredentials = errors.New("propertyware credentials not configured")

// ErrRateLimited indicates the provider returned HTTP 429.
var ErrRateLimited = errors.New("propertyware rate limit exceeded")

// BadRequestError represents a 4xx response other than auth or rate
// limiting. Not retryable.
type BadRequestError struct {
	StatusCode int
	Body       string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("propertyware rejected request: HTTP %d: %s", e.StatusCode, e.Body)
}

// ServerError represents a 5xx response from the provider.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("propertyware server error: HTTP %d", e.StatusCode)
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}
	return false
}
