package errors

import "fmt"

// InternalError indicates a consistency bug between compiler stages:
// the validator approved a graph that a later stage cannot lower (for
// example a parallel fan-out whose branches do not share a join node).
// It must never be presented as a user-facing validation finding.
type InternalError struct {
	Stage      string // Which compiler stage detected the inconsistency
	Detail     string // What invariant was violated
	NodeID     string // Offending node, if known
	WorkflowID string // Workflow being compiled
}

// NewInternalError creates an InternalError for a stage consistency bug.
func NewInternalError(stage, workflowID, nodeID, detail string) *InternalError {
	return &InternalError{
		Stage:      stage,
		Detail:     detail,
		NodeID:     nodeID,
		WorkflowID: workflowID,
	}
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("internal compiler error in %s: %s (workflow=%s node=%s)",
			e.Stage, e.Detail, e.WorkflowID, e.NodeID)
	}
	return fmt.Sprintf("internal compiler error in %s: %s (workflow=%s)",
		e.Stage, e.Detail, e.WorkflowID)
}

// IsInternal reports whether err is (or wraps) an InternalError.
func IsInternal(err error) bool {
	for err != nil {
		if _, ok := err.(*InternalError); ok {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
