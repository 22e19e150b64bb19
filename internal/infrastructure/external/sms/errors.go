package sms

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// APIError is any response with status >= 400 other than 429.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sms api %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap maps the status to the shared taxonomy so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return shared.ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return shared.ErrAlreadyExists
	case e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity:
		return shared.ErrValidation
	case e.StatusCode >= 500:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrExternalService
	}
}

// Temporary reports whether the request may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusRequestTimeout
}

// RateLimitError is returned for a 429 response, or by the local limiter when
// a token did not become available in time.
type RateLimitError struct {
	RetryAfter time.Duration

	// Local is true when the limit was hit client-side.
	Local bool
}

func (e *RateLimitError) Error() string {
	if e.Local {
		return fmt.Sprintf("sms api: local rate limit, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("sms api: rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return shared.ErrRateLimited }

// RetryDelay lets the retrier honour Retry-After.
func (e *RateLimitError) RetryDelay() time.Duration { return e.RetryAfter }

// transportError wraps failures below HTTP: dial, reset, timeout.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "sms api transport: " + e.err.Error() }
func (e *transportError) Unwrap() []error {
	return []error{e.err, shared.ErrServiceUnavailable}
}

// isTransient decides what the retrier repeats and what the breaker counts.
// Client errors such as 404 or 400 are neither.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return !rl.Local
	}
	var api *APIError
	if errors.As(err, &api) {
		return api.Temporary()
	}
	var te *transportError
	return errors.As(err, &te)
}

// IsNotFound reports whether the records service answered 404.
func IsNotFound(err error) bool {
	var api *APIError
	return errors.As(err, &api) && api.StatusCode == http.StatusNotFound
}
