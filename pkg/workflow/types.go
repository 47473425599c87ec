package workflow

import (
	"errors"

	"github.com/google/uuid"
)

// Common workflow errors
var (
	// ErrWorkflowNotFound is returned when a workflow cannot be found
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrNotCompilable is returned when a stage is invoked on a workflow
	// with blocking validation errors
	ErrNotCompilable = errors.New("workflow is not compilable")
)

// WorkflowID is a unique identifier for a workflow
type WorkflowID string

// String returns the string representation of the WorkflowID
func (w WorkflowID) String() string {
	return string(w)
}

// NewWorkflowID generates a new unique WorkflowID
func NewWorkflowID() WorkflowID {
	return WorkflowID(uuid.New().String())
}

// NodeID is a unique identifier for a node within a workflow
type NodeID string

// String returns the string representation of the NodeID
func (n NodeID) String() string {
	return string(n)
}

// ConnectionID is a unique identifier for a connection within a workflow
type ConnectionID string

// String returns the string representation of the ConnectionID
func (c ConnectionID) String() string {
	return string(c)
}

// NewConnectionID generates a new unique ConnectionID
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New().String())
}
