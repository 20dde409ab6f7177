// Package apperror defines the typed error returned by every component of the
// API. Each error carries a fixed status/code pair; the HTTP error handler is
// the only place that turns it into the wire format.
package apperror

import (
	"errors"
	"net/http"
)

// Code is the machine readable error code surfaced to clients.
type Code string

const (
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL"
)

// Error is an application error with an HTTP status, a client facing message
// and an optional underlying cause. Err is never serialized; it exists for
// server side logging only.
type Error struct {
	Code    Code
	Status  int
	Message string
	Details any
	// Reason narrows an error inside its code, e.g. "expired" vs "invalid"
	// for session tokens.
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithReason returns a copy of e tagged with reason.
func (e *Error) WithReason(reason string) *Error {
	cp := *e
	cp.Reason = reason
	return &cp
}

func newError(code Code, status int, message string, details any) *Error {
	return &Error{Code: code, Status: status, Message: message, Details: details}
}

// BadRequest reports malformed or invalid input.
func BadRequest(message string, details any) *Error {
	return newError(CodeBadRequest, http.StatusBadRequest, message, details)
}

// Unauthorized reports failed authentication (bad credentials or token).
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Unauthorized"
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// Forbidden reports an authenticated caller without rights to the resource.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Forbidden"
	}
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// NotFound reports a missing resource.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return newError(CodeNotFound, http.StatusNotFound, message, nil)
}

// Conflict reports a uniqueness violation.
func Conflict(message string, details any) *Error {
	return newError(CodeConflict, http.StatusConflict, message, details)
}

// TooManyRequests reports a rate limited request. Clients see BAD_REQUEST
// with HTTP status 429.
func TooManyRequests(message string) *Error {
	if message == "" {
		message = "Too many requests, please try again later"
	}
	return newError(CodeBadRequest, http.StatusTooManyRequests, message, nil)
}

// Internal wraps an unexpected error. The message shown to clients is fixed.
func Internal(cause error) *Error {
	return &Error{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
		Err:     cause,
	}
}

// From extracts an *Error from err. Anything that is not already an
// application error is wrapped as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Is reports whether err is an application error with the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}
