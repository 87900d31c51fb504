// Package apperr defines the error kinds shared by the catalog, the booking
// engine, the identity directory and the HTTP layer.  Every error produced
// by those packages wraps exactly one of the sentinel kinds below so that
// handlers can translate it into a stable client code with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds.  Compare with errors.Is, never with ==.
var (
	ErrValidation        = errors.New("validation error")
	ErrAuthentication    = errors.New("authentication error")
	ErrAuthorization     = errors.New("authorization error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrDuplicateBooking  = errors.New("duplicate booking")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrDependency        = errors.New("dependency unavailable")
)

// Error carries a kind, a client-safe message and an optional cause.  The
// cause is never rendered to clients; it is kept for logs.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Unwrap exposes the underlying cause so that errors.Is also matches
// driver-level errors such as context.Canceled.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around cause.
func Wrap(kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Message returns the client-safe message of err.  Errors that are not
// *Error yield a generic text so internals never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

type mapping struct {
	kind   error
	code   string
	status int
}

// Order matters only for readability; an *Error matches one kind.
var mappings = []mapping{
	{ErrValidation, "validation_error", http.StatusBadRequest},
	{ErrAuthentication, "authentication_error", http.StatusUnauthorized},
	{ErrAuthorization, "authorization_error", http.StatusForbidden},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrConflict, "conflict", http.StatusConflict},
	{ErrDuplicateBooking, "duplicate_booking", http.StatusConflict},
	{ErrCapacityExceeded, "capacity_exceeded", http.StatusConflict},
	{ErrInvalidTransition, "invalid_transition", http.StatusUnprocessableEntity},
	{ErrDependency, "dependency_unavailable", http.StatusServiceUnavailable},
}

// Code returns the stable client-facing code for err.
func Code(err error) string {
	for _, m := range mappings {
		if errors.Is(err, m.kind) {
			return m.code
		}
	}
	return "internal_error"
}

// Status returns the HTTP status code for err.
func Status(err error) int {
	for _, m := range mappings {
		if errors.Is(err, m.kind) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the caller may retry the same request.
func Retryable(err error) bool { return errors.Is(err, ErrDependency) }
