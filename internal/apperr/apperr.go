// Package apperr provides kind-tagged errors for the arbitrage core.
//
// Operations never return raw errors to a caller that needs to map them to
// a user-visible outcome (HTTP status, retry policy, ...). Instead they wrap
// errors in a Kind so the presentation layer (out of scope here) and the
// scheduler/OMS loops can decide how to react without string-matching
// error messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation/handling purposes.
type Kind string

const (
	// InvalidArgument: bad trading mode, bad strategy type, missing required field.
	InvalidArgument Kind = "invalid_argument"
	// PermissionDenied: live mode without confirm flag/enablement, order not owned by user.
	PermissionDenied Kind = "permission_denied"
	// NotFound: plan/order id absent, no executable decision for user.
	NotFound Kind = "not_found"
	// Conflict: duplicate client_order_id - resolved locally, never surfaced in practice.
	Conflict Kind = "conflict"
	// Transient: market data missing, exchange timeout, single-symbol fetch failure.
	Transient Kind = "transient"
	// Fatal: KV or relational store unavailable.
	Fatal Kind = "fatal"
)

// Error is a kind-tagged application error.
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

func new_(kind Kind, msg string, wrapped error) *Error {
	return &Error{Kind: kind, Message: msg, Err: wrapped}
}

// InvalidArgumentf builds an InvalidArgument error.
func InvalidArgumentf(format string, args ...any) *Error {
	return new_(InvalidArgument, fmt.Sprintf(format, args...), nil)
}

// PermissionDeniedf builds a PermissionDenied error.
func PermissionDeniedf(format string, args ...any) *Error {
	return new_(PermissionDenied, fmt.Sprintf(format, args...), nil)
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return new_(NotFound, fmt.Sprintf(format, args...), nil)
}

// Conflictf builds a Conflict error.
func Conflictf(format string, args ...any) *Error {
	return new_(Conflict, fmt.Sprintf(format, args...), nil)
}

// Transientf builds a Transient error wrapping the cause.
func Transientf(cause error, format string, args ...any) *Error {
	return new_(Transient, fmt.Sprintf(format, args...), cause)
}

// Fatalf builds a Fatal error wrapping the cause.
func Fatalf(cause error, format string, args ...any) *Error {
	return new_(Fatal, fmt.Sprintf(format, args...), cause)
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err isn't an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
