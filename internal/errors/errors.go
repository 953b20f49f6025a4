// Package errors provides standardized domain errors with codes for the PageVoice API.
//
// Usage:
//
//	// In services - return typed errors
//	if payload.TotalDurationSeconds == nil {
//	    return errors.DataIntegrity("benchmark payload missing totalDurationSeconds")
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrSessionExpired) {
//	    // ask the client to re-authenticate
//	}
//
//	// Or use the Code directly for switch statements
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeNotFound:
//	        ...
//	    case errors.CodeProvider:
//	        ...
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeValidation         Code = "VALIDATION"
	CodeConflict           Code = "CONFLICT"
	CodeInternal           Code = "INTERNAL"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeSessionExpired     Code = "SESSION_EXPIRED"
	CodeProvider           Code = "PROVIDER"
	CodeDataIntegrity      Code = "DATA_INTEGRITY"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized, CodeInvalidCredentials, CodeSessionExpired:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusBadRequest
	case CodeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// remediation returns the default human remediation hint for a code.
// Hints are caller guidance, distinct from the low-level error text.
func (c Code) remediation() string {
	switch c {
	case CodeValidation:
		return "correct the request and retry"
	case CodeUnauthorized, CodeInvalidCredentials:
		return "authenticate and retry"
	case CodeSessionExpired:
		return "re-authenticate to obtain a new session"
	case CodeProvider:
		return "retry later; the upstream provider failed"
	case CodeNotFound:
		return "verify the identifier; the resource does not exist"
	case CodeDataIntegrity:
		return "stored data is corrupt; manual inspection required"
	default:
		return ""
	}
}

// Error is a domain error with a code, message, remediation hint, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Hint:    e.Hint,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Hint:    e.Hint,
		Details: e.Details,
		cause:   err,
	}
}

// WithHint returns a new error with a custom remediation hint.
func (e *Error) WithHint(hint string) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Hint:    hint,
		Details: e.Details,
		cause:   e.cause,
	}
}

// newError creates an error with the code's default remediation hint.
func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Hint: code.remediation()}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound           = newError(CodeNotFound, "not found")
	ErrAlreadyExists      = newError(CodeAlreadyExists, "already exists")
	ErrUnauthorized       = newError(CodeUnauthorized, "unauthorized")
	ErrForbidden          = newError(CodeForbidden, "forbidden")
	ErrValidation         = newError(CodeValidation, "validation error")
	ErrConflict           = newError(CodeConflict, "conflict")
	ErrInternal           = newError(CodeInternal, "internal error")
	ErrInvalidCredentials = newError(CodeInvalidCredentials, "invalid credentials")
	ErrSessionExpired     = newError(CodeSessionExpired, "session expired")
	ErrProvider           = newError(CodeProvider, "provider failure")
	ErrDataIntegrity      = newError(CodeDataIntegrity, "data integrity violation")
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return newError(CodeNotFound, msg)
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return newError(CodeNotFound, fmt.Sprintf(format, args...))
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return newError(CodeAlreadyExists, msg)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return newError(CodeUnauthorized, msg)
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error {
	return newError(CodeForbidden, msg)
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return newError(CodeValidation, msg)
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return newError(CodeValidation, fmt.Sprintf(format, args...))
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return newError(CodeValidation, msg).WithDetails(details)
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return newError(CodeConflict, msg)
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return newError(CodeInternal, msg)
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return newError(CodeInternal, fmt.Sprintf(format, args...))
}

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(msg string) *Error {
	return newError(CodeInvalidCredentials, msg)
}

// SessionExpired creates a session expired error.
func SessionExpired(msg string) *Error {
	return newError(CodeSessionExpired, msg)
}

// Provider creates a provider error for OCR/TTS/reader upstream failures.
func Provider(msg string) *Error {
	return newError(CodeProvider, msg)
}

// Providerf creates a provider error with formatted message.
func Providerf(format string, args ...any) *Error {
	return newError(CodeProvider, fmt.Sprintf(format, args...))
}

// DataIntegrity creates a data integrity error for malformed persisted state.
func DataIntegrity(msg string) *Error {
	return newError(CodeDataIntegrity, msg)
}

// DataIntegrityf creates a data integrity error with formatted message.
func DataIntegrityf(format string, args ...any) *Error {
	return newError(CodeDataIntegrity, fmt.Sprintf(format, args...))
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return newError(code, msg).WithCause(err)
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return newError(code, fmt.Sprintf(format, args...)).WithCause(err)
}

// IsTransient reports whether an error is worth retrying with backoff.
// Provider failures and plain internal errors are transient; validation,
// authentication, and integrity errors are not.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		// Unclassified errors (network timeouts etc.) are treated as transient.
		return true
	}
	switch e.Code {
	case CodeProvider, CodeInternal:
		return true
	default:
		return false
	}
}
