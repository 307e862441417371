package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transports can map them to a status.
type ErrorKind string

const (
	KindLocked          ErrorKind = "locked"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindInvalidMutation ErrorKind = "invalid_mutation"
	KindConfig          ErrorKind = "config_error"
	KindBadRequest      ErrorKind = "bad_request"
)

// Error is a classified game error carrying a human-readable reason.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works for every not-found error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrLocked          = &Error{Kind: KindLocked, Message: "Player is locked (try again)."}
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict        = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInvalidMutation = &Error{Kind: KindInvalidMutation, Message: "invalid mutation"}
	ErrConfig          = &Error{Kind: KindConfig, Message: "invalid building config"}
	ErrBadRequest      = &Error{Kind: KindBadRequest, Message: "bad request"}
)

// NewNotFoundError creates a new not found error
func NewNotFoundError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError creates a new conflict error
func NewConflictError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidMutationError creates a new business rule violation
func NewInvalidMutationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidMutation, Message: fmt.Sprintf(format, args...)}
}

// NewConfigError wraps a catalog inconsistency
func NewConfigError(cause error) *Error {
	return &Error{Kind: KindConfig, Message: "Invalid building config", Cause: cause}
}

// NewBadRequestError creates a new malformed request error
func NewBadRequestError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the reason of a classified error without its cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
