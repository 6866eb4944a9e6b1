// Package errors provides the structured error type shared by the copr
// client packages, classifying failures by kind so callers can distinguish
// configuration mistakes, transport failures, auth problems, and the two
// waiter-specific conditions (protocol violation and timeout).
package errors

import (
	stdErrors "errors"
	"fmt"
)

// Kind classifies a copr client error.
type Kind string

const (
	// Client-side input and configuration errors
	KindConfig Kind = "config"
	KindUsage  Kind = "usage"

	// Remote interaction errors
	KindRequest Kind = "request"
	KindAuth    Kind = "auth"

	// Waiter errors
	KindProtocol Kind = "protocol"
	KindTimeout  Kind = "timeout"
)

// Error is a structured client error with a kind, an optional cause, and
// the HTTP status code when the failure came from an API response.
type Error struct {
	Kind       Kind
	Message    string
	Cause      error
	StatusCode int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error that wraps an existing error.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Sentinel errors for the two waiter failure modes. Errors returned by the
// waiter wrap these, so callers test with errors.Is.
var (
	// ErrUnknownStatus signals a client/server contract violation: the
	// frontend reported a build state this client does not recognize.
	ErrUnknownStatus = New(KindProtocol, "unknown build status")

	// ErrTimeout signals that builds were still pending when the wait
	// deadline elapsed.
	ErrTimeout = New(KindTimeout, "timed out waiting for builds")
)

// IsKind checks whether err is (or wraps) an Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// GetKind extracts the kind from an error, or KindRequest for errors that
// did not originate in this client.
func GetKind(err error) Kind {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.Kind
	}
	return KindRequest
}

// StatusCode returns the HTTP status code carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
