// Package apperr defines the stable error taxonomy surfaced by the
// budget-ledger workflow. Every error leaving a component carries one of
// these kinds so transport layers can map it without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable tag attached to every workflow error.
type Kind string

const (
	NotFound          Kind = "not_found"
	Forbidden         Kind = "forbidden"
	Unauthenticated   Kind = "unauthenticated"
	InvalidArgument   Kind = "invalid_argument"
	Unprocessable     Kind = "unprocessable"
	InsufficientFunds Kind = "insufficient_funds"
	Conflict          Kind = "conflict"
	Timeout           Kind = "timeout"
	Internal          Kind = "internal"
)

// Error is a kind-tagged error. Wrapped causes are preserved for errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a kind-tagged error with the given message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf returns a kind-tagged error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, or Internal if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a kind to its transport status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Unauthenticated:
		return http.StatusUnauthorized
	case InvalidArgument, InsufficientFunds:
		return http.StatusBadRequest
	case Unprocessable:
		return http.StatusUnprocessableEntity
	case Conflict:
		return http.StatusConflict
	case Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
