// Package errors defines common error types for the application.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown        = "UNKNOWN_ERROR"
	CodeAborted        = "ABORTED"
	CodeTransportError = "TRANSPORT_ERROR"
	CodeParseError     = "PARSE_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeSuperseded     = "SUPERSEDED"
	CodeStorageError   = "STORAGE_ERROR"
	CodeDatabaseError  = "DATABASE_ERROR"
	CodeConfigError    = "CONFIG_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrAborted        = New(CodeAborted, "aborted")
	ErrTransportError = New(CodeTransportError, "transport error")
	ErrParseError     = New(CodeParseError, "parse error")
	ErrNotFound       = New(CodeNotFound, "not found")
	ErrInvalidInput   = New(CodeInvalidInput, "invalid input")
	ErrSuperseded     = New(CodeSuperseded, "superseded by a newer request")
	ErrStorageError   = New(CodeStorageError, "storage error")
	ErrDatabaseError  = New(CodeDatabaseError, "database error")
	ErrConfigError    = New(CodeConfigError, "configuration error")
)

// IsAborted reports whether err is an abort, including a canceled context.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

// IsNotFound checks if the error is a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsParseError checks if the error is a malformed record error.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParseError)
}

// IsTransportError checks if the error is a transport failure.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransportError)
}

// IsSuperseded checks if a request was dropped in favor of a newer one.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return CodeAborted
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// FromPanic converts a recovered panic value into an error.
func FromPanic(r interface{}) error {
	if err, ok := r.(error); ok {
		return Wrap(CodeInternal, "panic", err)
	}
	return New(CodeInternal, fmt.Sprintf("panic: %v", r))
}
