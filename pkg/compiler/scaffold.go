package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/flowforge/pkg/workflow"
)

// Manifest describes the runtime contract of a scaffolded artifact.
type Manifest struct {
	Runtime      string   `json:"runtime" yaml:"runtime"`
	Entrypoint   string   `json:"entrypoint" yaml:"entrypoint"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	// Container is the relative path of the container descriptor, set
	// only for artifacts that deploy as a container image.
	Container string `json:"container,omitempty" yaml:"container,omitempty"`
}

// SourceArtifact is the generated source skeleton for one compute node.
// Files maps paths relative to the bundle root to their content.
type SourceArtifact struct {
	NodeID   string
	Name     string
	Files    map[string]string
	Manifest Manifest
	// Notes records non-fatal conditions from post-processing, such as
	// a skipped AI enhancement.
	Notes []string
}

// Scaffold generates the source skeleton for a compute-capable node.
// Deterministic given the node's configuration; performs no I/O.
func Scaffold(node *workflow.Node) (*SourceArtifact, error) {
	switch node.Kind {
	case workflow.KindCloudFunction:
		return scaffoldFunction(node), nil
	case workflow.KindCloudRun:
		return scaffoldService(node), nil
	default:
		return nil, fmt.Errorf("node %s: kind %s is not compute-capable", node.ID, node.Kind)
	}
}

// ComputeNodes returns the workflow's compute-capable nodes in
// declaration order.
func ComputeNodes(wf *workflow.Workflow) []*workflow.Node {
	var nodes []*workflow.Node
	for _, n := range wf.Nodes {
		if n.Kind.IsCompute() {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func scaffoldFunction(node *workflow.Node) *SourceArtifact {
	name, _ := node.ConfigString("name")
	if name == "" {
		name = identifier(node.ID)
	}
	entrypoint, _ := node.ConfigString("entrypoint")
	if entrypoint == "" {
		entrypoint = identifier(name)
	}
	runtime, _ := node.ConfigString("runtime")
	if runtime == "" {
		runtime = "python311"
	}

	deps := []string{"functions-framework>=3.4.0", "google-cloud-logging>=3.8.0"}
	base := "functions/" + name

	return &SourceArtifact{
		NodeID: node.ID,
		Name:   name,
		Files: map[string]string{
			base + "/main.py":          functionSource(node, name, entrypoint),
			base + "/requirements.txt": strings.Join(deps, "\n") + "\n",
		},
		Manifest: Manifest{
			Runtime:      runtime,
			Entrypoint:   entrypoint,
			Dependencies: deps,
		},
	}
}

func scaffoldService(node *workflow.Node) *SourceArtifact {
	service, _ := node.ConfigString("service")
	if service == "" {
		service = identifier(node.ID)
	}

	deps := []string{"Flask>=2.3.0", "gunicorn>=21.2.0", "google-cloud-logging>=3.8.0"}
	base := "services/" + service

	return &SourceArtifact{
		NodeID: node.ID,
		Name:   service,
		Files: map[string]string{
			base + "/main.py":          serviceSource(node, service),
			base + "/requirements.txt": strings.Join(deps, "\n") + "\n",
			base + "/Dockerfile":       dockerfileSource,
		},
		Manifest: Manifest{
			Runtime:      "python311",
			Entrypoint:   "main:app",
			Dependencies: deps,
			Container:    base + "/Dockerfile",
		},
	}
}

// identifier converts a display name or node ID into a valid Python
// identifier.
func identifier(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, s)
	if mapped == "" || (mapped[0] >= '0' && mapped[0] <= '9') {
		mapped = "fn_" + mapped
	}
	return mapped
}

// contractComment documents the node's declared variable contract at
// the top of the generated handler.
func contractComment(node *workflow.Node) string {
	var b strings.Builder
	if len(node.Inputs) > 0 {
		sorted := append([]string{}, node.Inputs...)
		sort.Strings(sorted)
		b.WriteString("Inputs:  " + strings.Join(sorted, ", ") + "\n")
	}
	if len(node.Outputs) > 0 {
		sorted := append([]string{}, node.Outputs...)
		sort.Strings(sorted)
		b.WriteString("Outputs: " + strings.Join(sorted, ", ") + "\n")
	}
	if b.Len() == 0 {
		return "No declared variable contract.\n"
	}
	return b.String()
}

func functionSource(node *workflow.Node, name, entrypoint string) string {
	description, _ := node.ConfigString("description")
	if description == "" {
		description = "Generated Cloud Function"
	}

	return fmt.Sprintf(`"""
Cloud Function: %s
Description: %s

%s"""

import logging
from typing import Any, Dict

import functions_framework


@functions_framework.http
def %s(request):
    """HTTP Cloud Function entry point."""
    logging.info("Function %s triggered")

    try:
        if request.method == "POST":
            request_json = request.get_json(silent=True)
            if request_json is None:
                return {"error": "Invalid JSON in request"}, 400
        else:
            request_json = {}

        result = process_request(request_json)

        logging.info("Function %s completed successfully")
        return {"result": result, "status": "success"}

    except Exception as e:
        logging.error("Function %s failed: %%s", e)
        return {"error": str(e), "status": "error"}, 500


def process_request(data: Dict[str, Any]) -> Dict[str, Any]:
    """Process the function request."""
    # TODO: Implement your business logic here
    return {"message": "Function executed successfully", "input_data": data}
`, name, description, contractComment(node), entrypoint, name, name, name)
}

func serviceSource(node *workflow.Node, service string) string {
	description, _ := node.ConfigString("description")
	if description == "" {
		description = "Generated Cloud Run Service"
	}

	return fmt.Sprintf(`"""
Cloud Run Service: %s
Description: %s

%s"""

import logging
import os
from typing import Any, Dict

from flask import Flask, jsonify, request

app = Flask(__name__)

logging.basicConfig(level=logging.INFO)
logger = logging.getLogger(__name__)


@app.route("/health", methods=["GET"])
def health_check():
    """Health check endpoint."""
    return jsonify({"status": "healthy", "service": "%s"})


@app.route("/", methods=["POST"])
def process_request():
    """Main request processing endpoint."""
    logger.info("Service %s received request")

    try:
        data = request.get_json() or {}
        result = handle_request(data)

        logger.info("Service %s completed successfully")
        return jsonify({"result": result, "status": "success"})

    except Exception as e:
        logger.error("Service %s failed: %%s", e)
        return jsonify({"error": str(e), "status": "error"}), 500


def handle_request(data: Dict[str, Any]) -> Dict[str, Any]:
    """Handle the service request."""
    # TODO: Implement your business logic here
    return {"message": "Service executed successfully", "input_data": data}


if __name__ == "__main__":
    port = int(os.environ.get("PORT", 8080))
    app.run(host="0.0.0.0", port=port, debug=False)
`, service, description, contractComment(node), service, service, service, service)
}

const dockerfileSource = `FROM python:3.11-slim

WORKDIR /app

COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt

COPY . .

EXPOSE 8080

ENV PYTHONUNBUFFERED=1
ENV PORT=8080

CMD ["python", "main.py"]
`
