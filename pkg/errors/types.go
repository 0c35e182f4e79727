package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP surface and the capture channel.
type Kind string

const (
	KindBadRequest    Kind = "BAD_REQUEST"
	KindConflict      Kind = "CONFLICT"
	KindNotFound      Kind = "NOT_FOUND"
	KindSerialization Kind = "SERIALIZATION_ERROR"
	KindDatabase      Kind = "DATABASE_ERROR"
	KindInternal      Kind = "INTERNAL_ERROR"
)

// Error is the structured error returned by every coordinator. The kind is
// the only part exposed on the wire; the underlying error stays internal.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
}

// New creates a new structured error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new structured error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an existing error. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Underlying: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// HTTPStatus maps the error kind to its wire status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest, KindSerialization:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Label is the short error field of the JSON error body.
func (e *Error) Label() string {
	switch e.Kind {
	case KindBadRequest:
		return "Bad request"
	case KindConflict:
		return "Conflict"
	case KindNotFound:
		return "Not found"
	case KindSerialization:
		return "Serialization error"
	case KindDatabase:
		return "Database error"
	default:
		return "Internal error"
	}
}

// Severity buckets errors for the capture side channel.
func (e *Error) Severity() string {
	switch e.Kind {
	case KindDatabase:
		return "high"
	case KindInternal:
		return "critical"
	case KindBadRequest, KindSerialization:
		return "low"
	default:
		return "medium"
	}
}

// IsKind checks whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf extracts the kind from an error, defaulting to Internal for
// errors that did not originate in this package.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return KindInternal
	}
	return e.Kind
}

// HTTPStatusOf maps any error to a wire status.
func HTTPStatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
