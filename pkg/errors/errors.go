// Package errors defines the error taxonomy shared by the packing protocol
// and the layers built around it.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown           = "UNKNOWN_ERROR"
	CodeStructural        = "STRUCTURAL_ERROR"
	CodeVersion           = "VERSION_ERROR"
	CodeUnknownType       = "UNKNOWN_TYPE"
	CodeStuckGraph        = "STUCK_GRAPH"
	CodeContractViolation = "CONTRACT_VIOLATION"
	CodeStorageError      = "STORAGE_ERROR"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeConfigError       = "CONFIG_ERROR"
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

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Sentinel values for errors.Is comparisons.
var (
	ErrStructural        = New(CodeStructural, "structural error")
	ErrVersion           = New(CodeVersion, "unsupported version")
	ErrUnknownType       = New(CodeUnknownType, "unknown type")
	ErrStuckGraph        = New(CodeStuckGraph, "entity graph cannot be completed")
	ErrContractViolation = New(CodeContractViolation, "contract violation")
	ErrStorageError      = New(CodeStorageError, "storage error")
	ErrDatabaseError     = New(CodeDatabaseError, "database error")
	ErrInvalidInput      = New(CodeInvalidInput, "invalid input")
	ErrNotFound          = New(CodeNotFound, "resource not found")
	ErrConfigError       = New(CodeConfigError, "configuration error")
)

// IsStructuralError checks if the error is a structural error.
func IsStructuralError(err error) bool {
	return errors.Is(err, ErrStructural)
}

// IsVersionError checks if the error is a version error.
func IsVersionError(err error) bool {
	return errors.Is(err, ErrVersion)
}

// IsUnknownTypeError checks if the error is an unknown-type error.
func IsUnknownTypeError(err error) bool {
	return errors.Is(err, ErrUnknownType)
}

// IsStuckGraphError checks if the error is a stuck-graph error.
func IsStuckGraphError(err error) bool {
	return errors.Is(err, ErrStuckGraph)
}

// IsContractViolation checks if the error is a contract violation.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrContractViolation)
}

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
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
