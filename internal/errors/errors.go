package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Hive error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrUsage          ErrorCode = "USAGE"           // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrSchema         ErrorCode = "SCHEMA"          // 404
	ErrAlreadyExists  ErrorCode = "ALREADY_EXISTS"  // 409
	ErrReadOnly       ErrorCode = "READ_ONLY"       // 409
	ErrClosed         ErrorCode = "CLOSED"          // 409
	ErrIntegrity      ErrorCode = "INTEGRITY"       // 422
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// HiveError represents a structured error with code, status, and details.
type HiveError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *HiveError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *HiveError {
	return &HiveError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUsage creates a 400 error for a command invoked with the wrong arguments.
func NewUsage(msg string) *HiveError {
	return &HiveError{
		Code:    ErrUsage,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing file (template, archive, import source).
func NewNotFound(path string) *HiveError {
	return &HiveError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewSchema creates a 404 error for a node that is missing or has the wrong kind.
func NewSchema(path, msg string) *HiveError {
	return &HiveError{
		Code:    ErrSchema,
		Status:  404,
		Message: fmt.Sprintf("%s: %s", path, msg),
		Details: map[string]any{"path": path},
	}
}

// NewAlreadyExists creates a 409 error when a node or file is already present.
func NewAlreadyExists(path string) *HiveError {
	return &HiveError{
		Code:    ErrAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("already exists: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewReadOnly creates a 409 error for a write against a read-only container.
func NewReadOnly(path string) *HiveError {
	return &HiveError{
		Code:    ErrReadOnly,
		Status:  409,
		Message: fmt.Sprintf("container opened read-only: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewClosed creates a 409 error for an operation on a closed archive.
func NewClosed(path string) *HiveError {
	return &HiveError{
		Code:    ErrClosed,
		Status:  409,
		Message: fmt.Sprintf("archive already closed: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewIntegrity creates a 422 error when a cell label implied by the record
// counter is absent or is not a group.
func NewIntegrity(label string) *HiveError {
	return &HiveError{
		Code:    ErrIntegrity,
		Status:  422,
		Message: fmt.Sprintf("%s not a valid group; archive corrupted", label),
		Details: map[string]any{"label": label},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *HiveError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &HiveError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is (or wraps) a HiveError with the given code.
func Is(err error, code ErrorCode) bool {
	var hErr *HiveError
	if stderrors.As(err, &hErr) {
		return hErr.Code == code
	}
	return false
}
