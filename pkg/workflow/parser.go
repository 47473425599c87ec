package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// ParseJSON decodes a workflow graph from caller-supplied JSON.
// Accepts either a bare workflow document or a generation-request
// envelope with the graph under a top-level "workflow" key. The payload
// is checked against the graph schema before decoding.
func ParseJSON(data []byte) (*Workflow, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON input")
	}

	// Unwrap a request envelope without a full decode.
	if inner := gjson.GetBytes(data, "workflow"); inner.Exists() && inner.IsObject() {
		data = []byte(inner.Raw)
	}

	if err := ValidateAgainstSchema(data); err != nil {
		return nil, err
	}

	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow JSON: %w", err)
	}

	if err := checkParsedNodes(&wf); err != nil {
		return nil, err
	}

	return &wf, nil
}

// ParseYAML decodes a workflow graph from YAML, the on-disk format used
// by the CLI and the filesystem repository.
func ParseYAML(data []byte) (*Workflow, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML input")
	}

	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}

	// YAML decodes nested config maps as map[string]interface{} already,
	// but keys may arrive as interface{} in older documents.
	for _, n := range wf.Nodes {
		n.Config = normalizeConfig(n.Config)
	}

	if err := checkParsedNodes(&wf); err != nil {
		return nil, err
	}

	return &wf, nil
}

// checkParsedNodes rejects nodes whose kind is outside the closed
// enumeration. Everything else is the validator's job.
func checkParsedNodes(wf *Workflow) error {
	for _, n := range wf.Nodes {
		if err := n.Validate(); err != nil {
			return err
		}
	}
	for _, c := range wf.Connections {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// normalizeConfig converts map[interface{}]interface{} values produced
// by some YAML documents into map[string]any.
func normalizeConfig(config map[string]any) map[string]any {
	if config == nil {
		return nil
	}
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[fmt.Sprintf("%v", k)] = normalizeValue(inner)
		}
		return m
	case map[string]any:
		return normalizeConfig(val)
	case []any:
		for i := range val {
			val[i] = normalizeValue(val[i])
		}
		return val
	default:
		return v
	}
}
