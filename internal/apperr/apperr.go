// Package apperr classifies errors by outcome kind so HTTP handlers can map
// them to status codes and callers can tell "rejected" from "missing" from
// "failed" with errors.As.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the outcome class of an error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation covers malformed or missing input, rejected before any
	// persistence access.
	KindValidation
	// KindNotFound covers absent bookings, properties or projection rows.
	KindNotFound
	// KindForbidden covers callers that are neither the resource owner nor admin.
	KindForbidden
	// KindConflict covers overlapping dates, illegal state transitions and
	// duplicate non-idempotent writes.
	KindConflict
	// KindUpstream covers checkout-provider and persistence failures.
	KindUpstream
)

// Error carries a kind plus optional field detail for validation failures.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Msg, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a field-level validation error.
func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

// NotFound builds a not-found error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Forbidden builds an authorization error.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Msg: msg}
}

// Conflict builds a conflict error.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Upstream wraps a dependency failure.
func Upstream(err error, msg string) *Error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
