// Package apperrors defines the service-wide error taxonomy. Every error that
// crosses a package boundary carries a Code so handlers can map it to an HTTP
// status without inspecting message text.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
	CodePreconditionFailed Code = "PRECONDITION_FAILED"
	CodeConflict           Code = "CONFLICT"
	CodeUpstream           Code = "UPSTREAM_FAILURE"
)

// Error is a coded error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error with a message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound reports that a resource does not exist.
func NotFound(resource, id string) *Error {
	return Newf(CodeNotFound, "%s not found: %s", resource, id)
}

// InvalidInput reports a validation failure on a specific field.
func InvalidInput(field, message string) *Error {
	return Newf(CodeValidation, "%s: %s", field, message)
}

// Conflict reports that a state transition lost to an earlier one.
func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// PreconditionFailed reports that a gating requirement is not met.
func PreconditionFailed(message string) *Error {
	return New(CodePreconditionFailed, message)
}

// CodeOf extracts the Code from an error chain. Uncoded errors are treated as
// upstream failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUpstream
}

// MessageOf returns the coded message, or a generic one for uncoded errors so
// internal detail never reaches a public caller.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeUpstream {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps an error to its response status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodePreconditionFailed, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
