package workflow

import (
	"errors"
	"fmt"
	"time"
)

// Metadata contains descriptive and deployment information about a workflow.
type Metadata struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	ProjectID   string    `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Region      string    `json:"region,omitempty" yaml:"region,omitempty"`
	Version     string    `json:"version" yaml:"version"`
	Author      string    `json:"author,omitempty" yaml:"author,omitempty"`
	Tags        []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Created     time.Time `json:"created,omitempty" yaml:"created,omitempty"`
}

// DefaultRegion is used when metadata does not name a deployment region.
const DefaultRegion = "us-central1"

// Workflow is a directed graph of nodes and connections describing a
// cloud automation. The compiler treats it as immutable input: no stage
// writes to a Workflow after construction.
type Workflow struct {
	ID          string        `json:"id" yaml:"id"`
	Metadata    Metadata      `json:"metadata" yaml:"metadata"`
	Nodes       []*Node       `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Connections []*Connection `json:"connections,omitempty" yaml:"connections,omitempty"`
}

// New creates an empty workflow with the given name.
func New(name, description string) (*Workflow, error) {
	if name == "" {
		return nil, errors.New("workflow name cannot be empty")
	}

	return &Workflow{
		ID: NewWorkflowID().String(),
		Metadata: Metadata{
			Name:        name,
			Description: description,
			Version:     "1.0.0",
			Region:      DefaultRegion,
			Created:     time.Now(),
		},
		Nodes:       make([]*Node, 0),
		Connections: make([]*Connection, 0),
	}, nil
}

// AddNode adds a node to the workflow.
// Nodes are not validated during addition so callers can build graphs
// incrementally; Validate catches duplicate IDs and missing config.
func (w *Workflow) AddNode(node *Node) error {
	if node == nil {
		return errors.New("cannot add nil node")
	}
	w.Nodes = append(w.Nodes, node)
	return nil
}

// AddConnection adds a connection to the workflow. Duplicate
// source/target/label triples are rejected immediately since they can
// never be intended.
func (w *Workflow) AddConnection(conn *Connection) error {
	if conn == nil {
		return errors.New("cannot add nil connection")
	}

	for _, existing := range w.Connections {
		if existing.SourceID == conn.SourceID && existing.TargetID == conn.TargetID && existing.Label == conn.Label {
			return fmt.Errorf("duplicate connection from %s to %s", conn.SourceID, conn.TargetID)
		}
	}

	if conn.ID == "" {
		conn.ID = NewConnectionID().String()
	}

	w.Connections = append(w.Connections, conn)
	return nil
}

// Node returns the node with the given ID, or nil if absent.
func (w *Workflow) Node(id string) *Node {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// StartNode returns the workflow's start node, or nil if absent.
// Duplicate start nodes are a validation error; the first one wins here.
func (w *Workflow) StartNode() *Node {
	for _, n := range w.Nodes {
		if n.Kind == KindStart {
			return n
		}
	}
	return nil
}

// Outgoing returns the connections leaving the given node, in
// declaration order.
func (w *Workflow) Outgoing(nodeID string) []*Connection {
	var out []*Connection
	for _, c := range w.Connections {
		if c.SourceID == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// OutgoingLabeled returns the first outgoing connection of the node
// carrying the given label, or nil.
func (w *Workflow) OutgoingLabeled(nodeID, label string) *Connection {
	for _, c := range w.Connections {
		if c.SourceID == nodeID && c.Label == label {
			return c
		}
	}
	return nil
}

// InDegree returns the number of connections arriving at the node.
func (w *Workflow) InDegree(nodeID string) int {
	count := 0
	for _, c := range w.Connections {
		if c.TargetID == nodeID {
			count++
		}
	}
	return count
}

// Region returns the configured deployment region or the default.
func (w *Workflow) Region() string {
	if w.Metadata.Region != "" {
		return w.Metadata.Region
	}
	return DefaultRegion
}
