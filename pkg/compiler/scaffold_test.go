package compiler

import (
	"strings"
	"testing"

	"github.com/dshills/flowforge/pkg/workflow"
)

func TestScaffold_CloudFunction(t *testing.T) {
	node := testFn("work", "result")
	node.Inputs = []string{"order_id"}

	artifact, err := Scaffold(node)
	if err != nil {
		t.Fatalf("Scaffold: %v", err)
	}

	if artifact.Name != "work" {
		t.Errorf("name = %q, want work", artifact.Name)
	}

	source, ok := artifact.Files["functions/work/main.py"]
	if !ok {
		t.Fatalf("main.py missing, files = %v", keys(artifact.Files))
	}
	for _, want := range []string{
		"import functions_framework",
		"def handler(request):",
		"Inputs:  order_id",
		"Outputs: result",
	} {
		if !strings.Contains(source, want) {
			t.Errorf("main.py missing %q", want)
		}
	}

	reqs, ok := artifact.Files["functions/work/requirements.txt"]
	if !ok {
		t.Fatal("requirements.txt missing")
	}
	if !strings.Contains(reqs, "functions-framework") {
		t.Errorf("requirements = %q", reqs)
	}

	if artifact.Manifest.Runtime != "python311" || artifact.Manifest.Entrypoint != "handler" {
		t.Errorf("manifest = %+v", artifact.Manifest)
	}
	if artifact.Manifest.Container != "" {
		t.Errorf("function artifact should not declare a container: %q", artifact.Manifest.Container)
	}
}

func TestScaffold_CloudRunService(t *testing.T) {
	node := &workflow.Node{
		ID:   "svc",
		Kind: workflow.KindCloudRun,
		Config: map[string]any{
			"service": "order-api",
			"image":   "gcr.io/acme/order-api",
		},
	}

	artifact, err := Scaffold(node)
	if err != nil {
		t.Fatalf("Scaffold: %v", err)
	}

	source, ok := artifact.Files["services/order-api/main.py"]
	if !ok {
		t.Fatalf("main.py missing, files = %v", keys(artifact.Files))
	}
	for _, want := range []string{
		"from flask import Flask",
		`@app.route("/health", methods=["GET"])`,
		`@app.route("/", methods=["POST"])`,
	} {
		if !strings.Contains(source, want) {
			t.Errorf("main.py missing %q", want)
		}
	}

	docker, ok := artifact.Files["services/order-api/Dockerfile"]
	if !ok {
		t.Fatal("Dockerfile missing")
	}
	if !strings.Contains(docker, "FROM python:3.11-slim") {
		t.Errorf("Dockerfile = %q", docker)
	}

	if artifact.Manifest.Container != "services/order-api/Dockerfile" {
		t.Errorf("container = %q", artifact.Manifest.Container)
	}
}

func TestScaffold_RejectsNonCompute(t *testing.T) {
	if _, err := Scaffold(testCond("check", "true")); err == nil {
		t.Error("expected error for non-compute node")
	}
}

func TestComputeNodes(t *testing.T) {
	wf := testGraph(
		[]*workflow.Node{
			testStart("start"),
			testFn("first"),
			testCond("check", "true"),
			{ID: "svc", Kind: workflow.KindCloudRun, Config: map[string]any{"service": "s", "image": "i"}},
			testEnd("end"),
		},
		nil,
	)

	nodes := ComputeNodes(wf)
	if len(nodes) != 2 || nodes[0].ID != "first" || nodes[1].ID != "svc" {
		t.Errorf("compute nodes = %v", nodeIDs(nodes))
	}
}

func TestDeploymentFiles(t *testing.T) {
	wf := testGraph(
		[]*workflow.Node{testStart("start"), testFn("work"), testEnd("end")},
		[]*workflow.Connection{
			testConn("start", "work", ""),
			testConn("work", "end", ""),
		},
	)

	files := deploymentFiles(wf)
	for _, path := range []string{"cloudbuild.yaml", "terraform/main.tf", "deploy.sh"} {
		if _, ok := files[path]; !ok {
			t.Errorf("missing deployment file %s", path)
		}
	}
	if !strings.Contains(files["terraform/main.tf"], "google_workflows_workflow") {
		t.Error("terraform template missing workflow resource")
	}
	if !strings.Contains(files["deploy.sh"], "acme-prod") {
		t.Error("deploy script missing project ID")
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func nodeIDs(nodes []*workflow.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}
