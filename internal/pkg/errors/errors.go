// Package errors provides custom error types and error handling utilities.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	// Input errors.
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"

	// Collaborator errors.
	CodeBackend     = "BACKEND_ERROR"
	CodeIO          = "IO_ERROR"
	CodeRemote      = "REMOTE_ERROR"
	CodeUnavailable = "SERVICE_UNAVAILABLE"

	// Defects.
	CodeInvariant = "INVARIANT_VIOLATION"
	CodeInternal  = "INTERNAL_ERROR"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit status for this error.
func (e *AppError) ExitCode() int {
	switch e.Code {
	case CodeValidation, CodeNotFound:
		return 2
	case CodeInvariant, CodeInternal:
		return 3
	default:
		return 1
	}
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// NotFoundError creates a not found error.
func NotFoundError(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// BackendError creates a knowledge store error.
func BackendError(message string, err error) *AppError {
	return Wrap(CodeBackend, message, err)
}

// IOError creates a file system error.
func IOError(message string, err error) *AppError {
	return Wrap(CodeIO, message, err)
}

// RemoteError creates a remote API error.
func RemoteError(message string, err error) *AppError {
	return Wrap(CodeRemote, message, err)
}

// InvariantError creates an error for a broken internal invariant.
func InvariantError(message string) *AppError {
	return New(CodeInvariant, message)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// ServiceUnavailableError creates a service unavailable error.
func ServiceUnavailableError(service string) *AppError {
	message := "service unavailable"
	if service != "" {
		message = fmt.Sprintf("%s is unavailable", service)
	}
	return New(CodeUnavailable, message)
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound checks if error is a not found error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return CodeOf(err) == CodeValidation
}

// IsInvariant checks if error reports a broken invariant.
func IsInvariant(err error) bool {
	return CodeOf(err) == CodeInvariant
}

// IsRemote checks if error came from a remote API.
func IsRemote(err error) bool {
	return CodeOf(err) == CodeRemote
}
