package messaging

import (
	"errors"
	"fmt"
	"time"
)

// ErrMessageNotModified is returned when an edit would not change the
// message. Callers treat it as success.
var ErrMessageNotModified = errors.New("message is not modified")

// ErrNotConnected is returned by operations issued before Connect.
var ErrNotConnected = errors.New("client is not connected")

// RateLimitedError signals that the platform requires the caller to wait
// before repeating the request.
type RateLimitedError struct {
	Method string
	Wait   time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("rate limited: retry after %s", e.Wait)
	}
	return fmt.Sprintf("%s: rate limited: retry after %s", e.Method, e.Wait)
}

// IsRateLimited reports whether err carries a rate-limit signal and returns
// the requested wait.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.Wait, true
	}
	return 0, false
}

// APIError is a non-throttling failure reported by the platform.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Method, e.StatusCode, e.Description)
}
