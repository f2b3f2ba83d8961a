// Package apperr defines the error kinds shared by every layer of the service.
package apperr

import (
	"errors"
)

// Sentinel kinds. Wrap them with New or fmt.Errorf("...: %w") and test with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Error carries a user-facing message alongside its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// New returns an *Error of the given kind.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation returns a validation error with a user-facing message.
func Validation(message string) *Error { return New(ErrValidation, message) }

// Conflict returns a conflict error with a user-facing message.
func Conflict(message string) *Error { return New(ErrConflict, message) }

// NotFound returns a not-found error with a user-facing message.
func NotFound(message string) *Error { return New(ErrNotFound, message) }

// Unauthorized returns an authentication error with a user-facing message.
func Unauthorized(message string) *Error { return New(ErrUnauthorized, message) }

// Forbidden returns a permission error with a user-facing message.
func Forbidden(message string) *Error { return New(ErrForbidden, message) }

// Message returns the user-facing message of err, falling back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Kind returns a short machine-readable name for the error kind, or "" when err is not one of ours.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "notFound"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return ""
}
