package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrUpstream     = errors.New("upstream failure")
)

// Error carries a user-facing message next to its category. The category is
// one of the sentinels above and is matched with errors.Is.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// RateLimitError is returned when a principal has exhausted its window.
type RateLimitError struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Message   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

func Upstream(msg string, cause error) error {
	return &Error{Kind: ErrUpstream, Message: msg, Cause: cause}
}

// Message returns the user-facing text of err. Errors that did not come from
// this package are reported generically so store internals never leak.
func Message(err error) string {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		if rl.Message != "" {
			return rl.Message
		}
		return "Too many requests. Please try again later."
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "Internal server error."
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
