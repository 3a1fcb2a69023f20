// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	ErrTriggerNotFound       = errors.New("trigger not found")
	ErrChainNotFound         = errors.New("chain not found")
	ErrWorkflowStateNotFound = errors.New("workflow state not found")
	ErrInboxItemNotFound     = errors.New("inbox item not found")
	ErrAgentConfigNotFound   = errors.New("agent config not found")
	ErrWorkOrderNotFound     = errors.New("work order not found")
)

// StoreError wraps a persistence failure with the operation and record it
// concerned.
type StoreError struct {
	Op       string // Operation being performed (e.g., "GetByID", "Save")
	Record   string // Record kind ("trigger", "workflow_state", ...)
	RecordID string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Record, e.RecordID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new store error with context.
func NewStoreError(op, record, recordID string, err error) *StoreError {
	return &StoreError{Op: op, Record: record, RecordID: recordID, Err: err}
}

func IsTriggerNotFound(err error) bool {
	return errors.Is(err, ErrTriggerNotFound)
}

func IsChainNotFound(err error) bool {
	return errors.Is(err, ErrChainNotFound)
}

func IsWorkflowStateNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowStateNotFound)
}

func IsInboxItemNotFound(err error) bool {
	return errors.Is(err, ErrInboxItemNotFound)
}

func IsAgentConfigNotFound(err error) bool {
	return errors.Is(err, ErrAgentConfigNotFound)
}

func IsWorkOrderNotFound(err error) bool {
	return errors.Is(err, ErrWorkOrderNotFound)
}

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return IsTriggerNotFound(err) ||
		IsChainNotFound(err) ||
		IsWorkflowStateNotFound(err) ||
		IsInboxItemNotFound(err) ||
		IsAgentConfigNotFound(err) ||
		IsWorkOrderNotFound(err)
}
