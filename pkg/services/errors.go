// Package services provides the application services behind the HTTP API:
// copilot runs, suggestion approval, and agent settings.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInvalidSuggestionType = errors.New("invalid suggestion type")
	ErrInvalidCopilotMode    = errors.New("invalid copilot mode")
	ErrSuggestionIndex       = errors.New("suggestion index out of range")

	// Business logic conflicts (409 Conflict).
	ErrSuggestionResolved = errors.New("suggestion already resolved")
	ErrInboxItemResolved  = errors.New("inbox item already resolved")
	ErrWorkflowNotPaused  = errors.New("workflow is not paused")
	ErrRunAlreadyActive   = errors.New("a copilot run is already active for this work order")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSuggestionType) ||
		errors.Is(err, ErrInvalidCopilotMode) ||
		errors.Is(err, ErrSuggestionIndex)
}

// IsConflictError checks if an error should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSuggestionResolved) ||
		errors.Is(err, ErrInboxItemResolved) ||
		errors.Is(err, ErrWorkflowNotPaused) ||
		errors.Is(err, ErrRunAlreadyActive)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
