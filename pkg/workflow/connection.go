package workflow

import (
	"errors"
	"fmt"
)

// Well-known connection labels. Condition nodes use true/false, switch
// nodes use case values plus default, for_loop uses body/done with a
// back-labeled closing edge, try_catch uses try/catch. Parallel fan-out
// edges are unlabeled.
const (
	LabelTrue    = "true"
	LabelFalse   = "false"
	LabelDefault = "default"
	LabelBody    = "body"
	LabelDone    = "done"
	LabelBack    = "back"
	LabelTry     = "try"
	LabelCatch   = "catch"
)

// Connection is a directed edge between two nodes. The optional label
// disambiguates multiple outgoing edges of branching kinds.
type Connection struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	SourceID string `json:"source_node_id" yaml:"from"`
	TargetID string `json:"target_node_id" yaml:"to"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Validate checks connection-local invariants.
func (c *Connection) Validate() error {
	if c.SourceID == "" {
		return errors.New("connection: empty source node")
	}
	if c.TargetID == "" {
		return errors.New("connection: empty target node")
	}
	if c.SourceID == c.TargetID {
		return fmt.Errorf("connection: self-loop detected (node %s to itself)", c.SourceID)
	}
	return nil
}
