package workflow

import (
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// graphSchema is the JSON schema for caller-supplied workflow graphs.
// It gates obviously malformed payloads before the structural validator
// runs; graph semantics (terminals, cycles, variable flow) are checked
// by Validate, not here.
const graphSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Workflow Graph",
  "type": "object",
  "required": ["id", "metadata", "nodes"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "metadata": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "description": {"type": "string"},
        "project_id": {"type": "string"},
        "region": {"type": "string"},
        "version": {"type": "string"}
      }
    },
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "kind": {"type": "string", "minLength": 1},
          "config": {"type": "object"},
          "outputs": {"type": "array", "items": {"type": "string"}},
          "inputs": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source_node_id", "target_node_id"],
        "properties": {
          "source_node_id": {"type": "string", "minLength": 1},
          "target_node_id": {"type": "string", "minLength": 1},
          "label": {"type": "string"}
        }
      }
    }
  }
}`

// ValidateAgainstSchema validates raw workflow JSON against the graph schema.
func ValidateAgainstSchema(jsonBytes []byte) error {
	if len(jsonBytes) == 0 {
		return errors.New("empty JSON input")
	}

	schemaLoader := gojsonschema.NewStringLoader(graphSchema)
	documentLoader := gojsonschema.NewBytesLoader(jsonBytes)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errMsg string
		for i, desc := range result.Errors() {
			if i > 0 {
				errMsg += "; "
			}
			errMsg += fmt.Sprintf("%s: %s", desc.Field(), desc.Description())
		}
		return fmt.Errorf("schema validation failed: %s", errMsg)
	}

	return nil
}
