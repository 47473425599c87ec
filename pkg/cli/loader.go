package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dshills/flowforge/pkg/workflow"
)

// LoadWorkflowFromFile loads a workflow graph from a JSON or YAML file.
// The format is chosen by extension; anything that is not .json is
// treated as YAML.
func LoadWorkflowFromFile(path string) (*workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	if strings.HasSuffix(path, ".json") {
		return workflow.ParseJSON(data)
	}
	return workflow.ParseYAML(data)
}
