// Package errkind implements the fixed error-kind taxonomy used across the
// core so that callers can branch on "what kind of failure" without string
// matching, while the underlying message still wraps with fmt.Errorf-style
// chains (see pkg/utils.Wrap for the plain message-wrapping counterpart).
package errkind

import (
	"errors"
	"fmt"
)

// Kind enumerates the error kinds named in the error handling design.
type Kind string

const (
	NotFound        Kind = "NotFound"
	AlreadyExists   Kind = "AlreadyExists"
	InvalidInput    Kind = "InvalidInput"
	OutOfGas        Kind = "OutOfGas"
	Revert          Kind = "Revert"
	DepthExceeded   Kind = "DepthExceeded"
	Reentrancy      Kind = "Reentrancy"
	MissingContract Kind = "MissingContract"
	FrozenState     Kind = "FrozenState"
	Timeout         Kind = "Timeout"
	Cancelled       Kind = "Cancelled"
	Storage         Kind = "Storage"
	Internal        Kind = "Internal"
	AuthRequired    Kind = "AuthRequired"
	ProtocolError   Kind = "ProtocolError"
	RateLimited     Kind = "RateLimited"
	Backpressure    Kind = "Backpressure"
)

// Error carries a Kind alongside a wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a Kind-tagged error with no cause.
func New(k Kind, message string) error {
	return &Error{Kind: k, Message: message}
}

// Wrap tags cause with a Kind and message. Returns nil if cause is nil.
func Wrap(k Kind, cause error, message string) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: k, Message: message, Cause: cause}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// Of extracts the Kind of err, returning Internal if err is not a tagged
// Error.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
