package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sort"
	"strings"
)

// ErrorCode represents an ecapsule error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrUnauthorized     ErrorCode = "UNAUTHORIZED"      // 401
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrSubmitInFlight   ErrorCode = "SUBMIT_IN_FLIGHT"  // 409
	ErrFileRejected     ErrorCode = "FILE_REJECTED"     // 415
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED" // 422
	ErrInternal         ErrorCode = "INTERNAL"          // 500
	ErrSubmitFailed     ErrorCode = "SUBMIT_FAILED"     // 502
)

// SubmitFailedMessage is the only message surfaced for opaque submission failures.
const SubmitFailedMessage = "Failed to create capsule. Please try again."

// CapsuleError represents a structured error with code, status, and details.
type CapsuleError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CapsuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthorized creates a 401 error for missing or rejected credentials.
func NewUnauthorized(msg string) *CapsuleError {
	if msg == "" {
		msg = "unauthenticated"
	}
	return &CapsuleError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing resource.
func NewNotFound(identifier string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing file.
func NewFileNotFound(path string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewSubmitInFlight creates a 409 error when a submission is already pending.
func NewSubmitInFlight() *CapsuleError {
	return &CapsuleError{
		Code:    ErrSubmitInFlight,
		Status:  409,
		Message: "a submission is already in progress",
	}
}

// NewFileRejected creates a 415 error for an image that failed the media checks.
func NewFileRejected(name, reason string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrFileRejected,
		Status:  415,
		Message: fmt.Sprintf("%s: %s", name, reason),
		Details: map[string]any{"file": name, "reason": reason},
	}
}

// NewValidationFailed creates a 422 error carrying a field -> message set.
func NewValidationFailed(fields map[string]string) *CapsuleError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return &CapsuleError{
		Code:    ErrValidationFailed,
		Status:  422,
		Message: fmt.Sprintf("invalid fields: %s", strings.Join(names, ", ")),
		Details: map[string]any{"fields": maps.Clone(fields)},
	}
}

// NewSubmitFailed creates a 502 error for a transport or non-success response.
// The cause is kept in Details for logging only; Message is always generic.
func NewSubmitFailed(cause error) *CapsuleError {
	e := &CapsuleError{
		Code:    ErrSubmitFailed,
		Status:  502,
		Message: SubmitFailedMessage,
	}
	if cause != nil {
		e.Details = map[string]any{"cause": cause.Error()}
	}
	return e
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the cause is kept in Details for logging.
func NewInternal(err error) *CapsuleError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &CapsuleError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is a CapsuleError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CapsuleError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// Fields returns the field -> message set of a VALIDATION_FAILED error, or nil.
func Fields(err error) map[string]string {
	var cErr *CapsuleError
	if !stderrors.As(err, &cErr) || cErr.Code != ErrValidationFailed {
		return nil
	}
	fields, _ := cErr.Details["fields"].(map[string]string)
	return fields
}
