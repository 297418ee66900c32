package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an agenda error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"           // 404
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrNameAlreadyExists ErrorCode = "NAME_ALREADY_EXISTS" // 409
	ErrConflict          ErrorCode = "CONFLICT"            // 409
	ErrRangeTooLarge     ErrorCode = "RANGE_TOO_LARGE"     // 413
	ErrCancelled         ErrorCode = "CANCELLED"           // 499
	ErrInternal          ErrorCode = "INTERNAL"            // 500
)

// AgendaError represents a structured error with code, status, and details.
type AgendaError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *AgendaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *AgendaError {
	return &AgendaError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing category, event or record.
func NewNotFound(kind, identifier string) *AgendaError {
	return &AgendaError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *AgendaError {
	return &AgendaError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNameAlreadyExists creates a 409 error for name collisions within a user.
func NewNameAlreadyExists(user, name string) *AgendaError {
	return &AgendaError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("category %q already exists for user %q", name, user),
		Details: map[string]any{"user": user, "name": name},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *AgendaError {
	return &AgendaError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewRangeTooLarge creates a 413 error when a requested date range spans too many days.
func NewRangeTooLarge(max, actual int) *AgendaError {
	return &AgendaError{
		Code:    ErrRangeTooLarge,
		Status:  413,
		Message: fmt.Sprintf("date range spans %d days (max %d)", actual, max),
		Details: map[string]any{"max_days": max, "actual_days": actual},
	}
}

// NewCancelled creates a 499 error when the caller's context is done mid-operation.
func NewCancelled(op string) *AgendaError {
	return &AgendaError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *AgendaError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &AgendaError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) an AgendaError with the given code.
func Is(err error, code ErrorCode) bool {
	var aErr *AgendaError
	if stderrors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}

// As extracts an AgendaError from err, wrapping anything else as internal.
func As(err error) *AgendaError {
	var aErr *AgendaError
	if stderrors.As(err, &aErr) {
		return aErr
	}
	return NewInternal(err)
}
