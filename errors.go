package worlds

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by store adapters. The engine wraps them into
// status-coded *Error values before they reach callers.
var (
	// Store errors.
	ErrNoStore     = errors.New("worlds: no store configured")
	ErrStoreClosed = errors.New("worlds: store closed")

	// Not found errors.
	ErrRunNotFound   = errors.New("worlds: run not found")
	ErrStepNotFound  = errors.New("worlds: step not found")
	ErrHookNotFound  = errors.New("worlds: hook not found")
	ErrEventNotFound = errors.New("worlds: event not found")

	// Conflict errors.
	ErrRunExists      = errors.New("worlds: run already exists")
	ErrStepExists     = errors.New("worlds: step already exists")
	ErrHookTokenTaken = errors.New("worlds: hook token already taken")
)

// Code classifies an engine failure. Codes are part of the public contract:
// the workflow runtime branches on them to decide whether to retry,
// reschedule, or surface the failure.
type Code string

const (
	// CodeBadRequest means a required field was missing or malformed.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound means the referenced run, step, or hook does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict means the event violates a lifecycle invariant: a terminal
	// transition, a duplicate step ID, or an event unsupported on a legacy run.
	CodeConflict Code = "conflict"
	// CodeGone means a step mutation was rejected because its run terminated
	// while the step was not running.
	CodeGone Code = "gone"
	// CodeTooEarly means a step was started before its retry deadline.
	// The error carries the deadline in RetryAfter.
	CodeTooEarly Code = "too_early"
	// CodeRunNotSupported means the run's protocol version is newer than this
	// engine understands and must be routed to a newer one.
	CodeRunNotSupported Code = "run_not_supported"
)

// Error is a status-coded engine error. It optionally wraps a store sentinel
// so errors.Is keeps working across layers.
type Error struct {
	Code    Code
	Message string

	// RetryAfter is set on CodeTooEarly errors: the earliest time the
	// rejected step_started may be retried.
	RetryAfter *time.Time

	err error
}

// NewError creates an Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error that wraps cause.
func WrapError(code Code, cause error, message string) *Error {
	return &Error{Code: code, Message: message, err: cause}
}

// TooEarly creates a CodeTooEarly error carrying the retry deadline.
func TooEarly(message string, retryAfter time.Time) *Error {
	return &Error{Code: CodeTooEarly, Message: message, RetryAfter: &retryAfter}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("worlds: %s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.err }

// CodeOf extracts the Code from err, or "" if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// RetryAfterOf extracts the retry deadline from a CodeTooEarly error.
// The second return is false when err carries no deadline.
func RetryAfterOf(err error) (time.Time, bool) {
	var e *Error
	if errors.As(err, &e) && e.RetryAfter != nil {
		return *e.RetryAfter, true
	}
	return time.Time{}, false
}
