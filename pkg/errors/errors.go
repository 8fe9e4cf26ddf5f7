package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is the closed set of failure kinds a remote call can produce.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindServerError Kind = "server_error"
	KindBadRequest  Kind = "bad_request"
	KindForbidden   Kind = "forbidden"
	KindAuth        Kind = "auth_error"
	KindUnexpected  Kind = "unexpected_error"
)

// Kinds lists every Kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindRateLimited, KindServerError, KindBadRequest, KindForbidden, KindAuth, KindUnexpected}
}

// Error represents a classified remote-service error
type Error struct {
	Kind       Kind
	Message    string
	Code       int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (code %d): %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (code %d): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err under kind, keeping it as the cause
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err. Untyped errors are unexpected.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromStatus maps an HTTP status code to a Kind
func FromStatus(statusCode int) Kind {
	switch {
	case statusCode == http.StatusBadRequest, statusCode == http.StatusNotFound:
		return KindBadRequest
	case statusCode == http.StatusUnauthorized:
		return KindAuth
	case statusCode == http.StatusForbidden:
		return KindForbidden
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode >= 500:
		return KindServerError
	default:
		return KindUnexpected
	}
}

// IsRetryable checks if a failure of this kind should be retried on the same cursor
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindRateLimited, KindServerError, KindUnexpected:
		return true
	case KindBadRequest, KindForbidden, KindAuth:
		return false
	default:
		return false
	}
}
