package errors

import (
	"fmt"
	"time"
)

// OperationalError wraps an error with compilation context: which
// workflow, which node, which stage was running when it happened.
type OperationalError struct {
	Operation  string                 // What operation was being performed
	WorkflowID string                 // Which workflow
	NodeID     string                 // Which node (if applicable)
	Timestamp  time.Time              // When error occurred
	Attributes map[string]interface{} // Additional context (optional)
	Cause      error                  // Underlying error
}

// NewOperationalError creates an OperationalError wrapping an error.
//
// Returns nil if cause is nil (no error to wrap).
func NewOperationalError(operation, workflowID, nodeID string, cause error) *OperationalError {
	if cause == nil {
		return nil
	}

	return &OperationalError{
		Operation:  operation,
		WorkflowID: workflowID,
		NodeID:     nodeID,
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

// Error implements the error interface.
//
// Format: "[timestamp] operation: workflow={id} node={id}: {cause}"
// If node ID is empty, it's omitted from the message.
func (e *OperationalError) Error() string {
	if e == nil {
		return "<nil OperationalError>"
	}

	timestamp := e.Timestamp.Format(time.RFC3339)

	if e.NodeID != "" {
		return fmt.Sprintf("[%s] %s: workflow=%s node=%s: %v",
			timestamp, e.Operation, e.WorkflowID, e.NodeID, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: workflow=%s: %v",
		timestamp, e.Operation, e.WorkflowID, e.Cause)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
