// Package apperr defines the error kinds returned by the core services.
//
// Every failure surfaced to a caller carries a stable Kind plus a
// human-readable reason, so transports can tell "upgrade capacity"
// apart from "fix the request".
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	Conflict
	Forbidden
	ResourceExhausted
	InvalidArgument
	Busy
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Forbidden:
		return "forbidden"
	case ResourceExhausted:
		return "resource_exhausted"
	case InvalidArgument:
		return "invalid_argument"
	case Busy:
		return "busy"
	default:
		return "unknown"
	}
}

// Error is a classified failure.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind, so that
// errors.Is(err, apperr.ErrConflict) works through any wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t == sentinelFor(t.Kind) && t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: NotFound, Reason: "not found"}
	ErrConflict          = &Error{Kind: Conflict, Reason: "conflict"}
	ErrForbidden         = &Error{Kind: Forbidden, Reason: "forbidden"}
	ErrResourceExhausted = &Error{Kind: ResourceExhausted, Reason: "resource exhausted"}
	ErrInvalidArgument   = &Error{Kind: InvalidArgument, Reason: "invalid argument"}
	ErrBusy              = &Error{Kind: Busy, Reason: "busy"}
)

func sentinelFor(k Kind) *Error {
	switch k {
	case NotFound:
		return ErrNotFound
	case Conflict:
		return ErrConflict
	case Forbidden:
		return ErrForbidden
	case ResourceExhausted:
		return ErrResourceExhausted
	case InvalidArgument:
		return ErrInvalidArgument
	case Busy:
		return ErrBusy
	}
	return nil
}

func newf(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Reason: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return newf(NotFound, format, args...)
}

func Conflictf(format string, args ...interface{}) *Error {
	return newf(Conflict, format, args...)
}

func Forbiddenf(format string, args ...interface{}) *Error {
	return newf(Forbidden, format, args...)
}

func Exhaustedf(format string, args ...interface{}) *Error {
	return newf(ResourceExhausted, format, args...)
}

func Invalidf(format string, args ...interface{}) *Error {
	return newf(InvalidArgument, format, args...)
}

func Busyf(format string, args ...interface{}) *Error {
	return newf(Busy, format, args...)
}

// Wrap attaches a kind and reason to an underlying error.
func Wrap(k Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Reason: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Reason returns the caller-facing reason for err. Unclassified errors get a
// generic message so infrastructure details stay in the logs.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "internal error"
}
