package cli

import (
	"os"
	"path/filepath"
	"testing"
)

const workflowYAML = `id: wf-orders
metadata:
  name: order-pipeline
  project_id: acme-prod
  region: us-central1
  version: 1.0.0
nodes:
  - id: start
    kind: start
  - id: work
    kind: cloud_function
    config:
      name: work
      runtime: python311
      entrypoint: handler
      memory: 256MB
    outputs:
      - result
  - id: end
    kind: end
connections:
  - from: start
    to: work
  - from: work
    to: end
`

const workflowJSON = `{
  "id": "wf-orders",
  "metadata": {"name": "order-pipeline", "project_id": "acme-prod", "region": "us-central1", "version": "1.0.0"},
  "nodes": [
    {"id": "start", "kind": "start"},
    {"id": "work", "kind": "cloud_function",
     "config": {"name": "work", "runtime": "python311", "entrypoint": "handler", "memory": "256MB"},
     "outputs": ["result"]},
    {"id": "end", "kind": "end"}
  ],
  "connections": [
    {"source_node_id": "start", "target_node_id": "work"},
    {"source_node_id": "work", "target_node_id": "end"}
  ]
}`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadWorkflowFromFile_YAML(t *testing.T) {
	path := writeTempFile(t, "orders.yaml", workflowYAML)

	wf, err := LoadWorkflowFromFile(path)
	if err != nil {
		t.Fatalf("LoadWorkflowFromFile: %v", err)
	}
	if wf.ID != "wf-orders" {
		t.Errorf("ID = %q", wf.ID)
	}
	if len(wf.Nodes) != 3 || len(wf.Connections) != 2 {
		t.Errorf("graph shape: %d nodes, %d connections", len(wf.Nodes), len(wf.Connections))
	}
}

func TestLoadWorkflowFromFile_JSON(t *testing.T) {
	path := writeTempFile(t, "orders.json", workflowJSON)

	wf, err := LoadWorkflowFromFile(path)
	if err != nil {
		t.Fatalf("LoadWorkflowFromFile: %v", err)
	}
	if wf.Metadata.Name != "order-pipeline" {
		t.Errorf("name = %q", wf.Metadata.Name)
	}
	if wf.Connections[0].SourceID != "start" {
		t.Errorf("first connection source = %q", wf.Connections[0].SourceID)
	}
}

func TestLoadWorkflowFromFile_Missing(t *testing.T) {
	if _, err := LoadWorkflowFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadWorkflowFromFile_BadKind(t *testing.T) {
	path := writeTempFile(t, "bad.yaml", `id: wf-bad
metadata:
  name: bad
  version: 1.0.0
nodes:
  - id: n1
    kind: teleport
`)
	if _, err := LoadWorkflowFromFile(path); err == nil {
		t.Fatal("expected an error for an unknown node kind")
	}
}
