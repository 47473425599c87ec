package workflow

import (
	"errors"
	"fmt"
)

// NodeKind identifies the behavior of a node. The set is closed: every
// stage of the compiler dispatches on it with an exhaustive switch.
type NodeKind string

const (
	KindStart         NodeKind = "start"
	KindEnd           NodeKind = "end"
	KindCloudFunction NodeKind = "cloud_function"
	KindCloudRun      NodeKind = "cloud_run"
	KindPubSub        NodeKind = "pubsub"
	KindHTTPRequest   NodeKind = "http_request"
	KindCondition     NodeKind = "condition"
	KindParallel      NodeKind = "parallel"
	KindDelay         NodeKind = "delay"
	KindAssign        NodeKind = "assign"
	KindCall          NodeKind = "call"
	KindSwitch        NodeKind = "switch"
	KindForLoop       NodeKind = "for_loop"
	KindTryCatch      NodeKind = "try_catch"
)

// allNodeKinds is the closed enumeration in declaration order.
var allNodeKinds = []NodeKind{
	KindStart, KindEnd, KindCloudFunction, KindCloudRun, KindPubSub,
	KindHTTPRequest, KindCondition, KindParallel, KindDelay, KindAssign,
	KindCall, KindSwitch, KindForLoop, KindTryCatch,
}

// IsValid reports whether k is a member of the closed kind enumeration.
func (k NodeKind) IsValid() bool {
	for _, kind := range allNodeKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsCompute reports whether nodes of this kind produce a source scaffold.
func (k NodeKind) IsCompute() bool {
	return k == KindCloudFunction || k == KindCloudRun
}

// IsSequential reports whether nodes of this kind have plain
// single-successor control flow (they lower to a single step).
func (k NodeKind) IsSequential() bool {
	switch k {
	case KindCloudFunction, KindCloudRun, KindPubSub, KindHTTPRequest,
		KindDelay, KindAssign, KindCall:
		return true
	default:
		return false
	}
}

// ConfigType describes the expected primitive type of a config value.
type ConfigType int

const (
	ConfigString ConfigType = iota
	ConfigNumber
	ConfigMap
)

// String returns a human-readable name for the config type.
func (t ConfigType) String() string {
	switch t {
	case ConfigString:
		return "string"
	case ConfigNumber:
		return "number"
	case ConfigMap:
		return "map"
	default:
		return "unknown"
	}
}

// ConfigKey is a single required configuration entry for a node kind.
type ConfigKey struct {
	Name string
	Type ConfigType
}

// requiredConfig maps each kind to its required configuration keys.
// Kinds absent from the map require no configuration.
var requiredConfig = map[NodeKind][]ConfigKey{
	KindCloudFunction: {
		{Name: "name", Type: ConfigString},
		{Name: "runtime", Type: ConfigString},
		{Name: "entrypoint", Type: ConfigString},
		{Name: "memory", Type: ConfigString},
	},
	KindCloudRun: {
		{Name: "service", Type: ConfigString},
		{Name: "image", Type: ConfigString},
	},
	KindPubSub: {
		{Name: "topic", Type: ConfigString},
	},
	KindHTTPRequest: {
		{Name: "url", Type: ConfigString},
		{Name: "method", Type: ConfigString},
	},
	KindCondition: {
		{Name: "expression", Type: ConfigString},
	},
	KindDelay: {
		{Name: "seconds", Type: ConfigNumber},
	},
	KindAssign: {
		{Name: "variables", Type: ConfigMap},
	},
	KindCall: {
		{Name: "target", Type: ConfigString},
	},
	KindSwitch: {
		{Name: "variable", Type: ConfigString},
	},
	KindForLoop: {
		{Name: "collection", Type: ConfigString},
		{Name: "item", Type: ConfigString},
	},
	KindTryCatch: {
		{Name: "error_variable", Type: ConfigString},
	},
}

// RequiredConfig returns the required configuration keys for a kind.
func (k NodeKind) RequiredConfig() []ConfigKey {
	return requiredConfig[k]
}

// Node is a single step in the authored graph. Configuration is a
// kind-keyed mapping validated against RequiredConfig; Outputs are the
// variable names the node produces, Inputs the variables it consumes.
type Node struct {
	ID      string         `json:"id" yaml:"id"`
	Kind    NodeKind       `json:"kind" yaml:"kind"`
	Config  map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Outputs []string       `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Inputs  []string       `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// Validate checks node-local invariants. Graph-level invariants are
// the validator's job.
func (n *Node) Validate() error {
	if n.ID == "" {
		return errors.New("node: empty node ID")
	}
	if !n.Kind.IsValid() {
		return fmt.Errorf("node %s: unknown node kind: %s", n.ID, n.Kind)
	}
	return nil
}

// ConfigString returns the named config value as a string.
// The second return is false when the key is absent or not a string.
func (n *Node) ConfigString(key string) (string, bool) {
	v, ok := n.Config[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ConfigNumber returns the named config value as a float64. JSON and
// YAML decoders produce different numeric types, so integers are
// widened here.
func (n *Node) ConfigNumber(key string) (float64, bool) {
	v, ok := n.Config[key]
	if !ok {
		return 0, false
	}
	switch num := v.(type) {
	case float64:
		return num, true
	case float32:
		return float64(num), true
	case int:
		return float64(num), true
	case int64:
		return float64(num), true
	case uint64:
		return float64(num), true
	default:
		return 0, false
	}
}

// ConfigMap returns the named config value as a map.
func (n *Node) ConfigMap(key string) (map[string]any, bool) {
	v, ok := n.Config[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Name returns the node's configured display name, falling back to its ID.
func (n *Node) Name() string {
	if name, ok := n.ConfigString("name"); ok && name != "" {
		return name
	}
	if svc, ok := n.ConfigString("service"); ok && svc != "" {
		return svc
	}
	return n.ID
}
