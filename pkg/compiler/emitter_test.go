package compiler

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dshills/flowforge/pkg/workflow"
)

// emitText runs resolve + emit and returns the definition and its text.
func emitText(t *testing.T, wf *workflow.Workflow) (*Definition, string) {
	t.Helper()

	block, err := Resolve(wf)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	def, err := Emit(block, wf)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	text, err := def.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	return def, text
}

// decodeSteps unmarshals the definition text and returns main.steps as
// generic YAML values.
func decodeSteps(t *testing.T, text string) []map[string]any {
	t.Helper()

	var doc struct {
		Main struct {
			Steps []map[string]any `yaml:"steps"`
		} `yaml:"main"`
	}
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("unmarshal definition: %v", err)
	}
	return doc.Main.Steps
}

func TestEmit_LinearDefinition(t *testing.T) {
	wf := testGraph(
		[]*workflow.Node{testStart("start"), testFn("work", "result"), testEnd("end")},
		[]*workflow.Connection{
			testConn("start", "work", ""),
			testConn("work", "end", ""),
		},
	)

	def, text := emitText(t, wf)

	if def.StepCount() != 2 {
		t.Errorf("StepCount = %d, want 2", def.StepCount())
	}

	steps := decodeSteps(t, text)
	if len(steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(steps))
	}

	call, ok := steps[0]["call_work"].(map[string]any)
	if !ok {
		t.Fatalf("first step is not call_work: %v", steps[0])
	}
	if call["call"] != "http.post" {
		t.Errorf("call = %v, want http.post", call["call"])
	}
	args := call["args"].(map[string]any)
	wantURL := "https://us-central1-acme-prod.cloudfunctions.net/work"
	if args["url"] != wantURL {
		t.Errorf("url = %v, want %s", args["url"], wantURL)
	}
	if call["result"] != "result" {
		t.Errorf("result = %v, want result", call["result"])
	}

	ret, ok := steps[1]["end_end"].(map[string]any)
	if !ok {
		t.Fatalf("second step is not end_end: %v", steps[1])
	}
	if ret["return"] != nil {
		t.Errorf("return = %v, want null without a return config", ret["return"])
	}
}

func TestEmit_EndReturnsConfiguredVariable(t *testing.T) {
	end := testEnd("end")
	end.Config = map[string]any{"return": "result"}
	wf := testGraph(
		[]*workflow.Node{testStart("start"), testFn("work", "result"), end},
		[]*workflow.Connection{
			testConn("start", "work", ""),
			testConn("work", "end", ""),
		},
	)

	_, text := emitText(t, wf)

	steps := decodeSteps(t, text)
	ret, ok := steps[len(steps)-1]["end_end"].(map[string]any)
	if !ok {
		t.Fatalf("last step is not end_end: %v", steps[len(steps)-1])
	}
	if ret["return"] != "${result}" {
		t.Errorf("return = %v, want ${result}", ret["return"])
	}
}

func TestEmit_BranchSwitch(t *testing.T) {
	wf := testGraph(
		[]*workflow.Node{
			testStart("start"),
			testFn("fetch", "count"),
			testCond("check", "count > 3"),
			testFn("big"),
			testFn("small"),
			testEnd("end"),
		},
		[]*workflow.Connection{
			testConn("start", "fetch", ""),
			testConn("fetch", "check", ""),
			testConn("check", "big", workflow.LabelTrue),
			testConn("check", "small", workflow.LabelFalse),
			testConn("big", "end", ""),
			testConn("small", "end", ""),
		},
	)

	_, text := emitText(t, wf)
	steps := decodeSteps(t, text)

	sw, ok := steps[1]["switch_check"].(map[string]any)
	if !ok {
		t.Fatalf("second step is not switch_check: %v", steps[1])
	}
	arms := sw["switch"].([]any)
	if len(arms) != 2 {
		t.Fatalf("arms = %d, want 2", len(arms))
	}
	first := arms[0].(map[string]any)
	if first["condition"] != "${count > 3}" {
		t.Errorf("condition = %v, want ${count > 3}", first["condition"])
	}
	second := arms[1].(map[string]any)
	if second["condition"] != true && second["condition"] != "true" {
		t.Errorf("else condition = %v, want true", second["condition"])
	}
}

func TestEmit_AssignSortsVariables(t *testing.T) {
	wf := testGraph(
		[]*workflow.Node{
			testStart("start"),
			{ID: "init", Kind: workflow.KindAssign, Config: map[string]any{
				"variables": map[string]any{"zeta": 1, "alpha": 2, "mid": 3},
			}},
			testEnd("end"),
		},
		[]*workflow.Connection{
			testConn("start", "init", ""),
			testConn("init", "end", ""),
		},
	)

	_, text := emitText(t, wf)
	steps := decodeSteps(t, text)

	assign := steps[0]["assign_init"].(map[string]any)
	list := assign["assign"].([]any)
	var order []string
	for _, entry := range list {
		for name := range entry.(map[string]any) {
			order = append(order, name)
		}
	}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("assign order = %v, want %v", order, want)
		}
	}
}

func TestEmit_LoopAndDelay(t *testing.T) {
	wf := testGraph(
		[]*workflow.Node{
			testStart("start"),
			testFn("fetch", "items"),
			{ID: "each", Kind: workflow.KindForLoop, Config: map[string]any{"collection": "items", "item": "entry"}},
			{ID: "wait", Kind: workflow.KindDelay, Config: map[string]any{"seconds": 5}},
			testEnd("end"),
		},
		[]*workflow.Connection{
			testConn("start", "fetch", ""),
			testConn("fetch", "each", ""),
			testConn("each", "wait", workflow.LabelBody),
			testConn("wait", "each", workflow.LabelBack),
			testConn("each", "end", workflow.LabelDone),
		},
	)

	_, text := emitText(t, wf)
	steps := decodeSteps(t, text)

	loop := steps[1]["for_each"].(map[string]any)
	clause := loop["for"].(map[string]any)
	if clause["value"] != "entry" {
		t.Errorf("value = %v, want entry", clause["value"])
	}
	if clause["in"] != "${items}" {
		t.Errorf("in = %v, want ${items}", clause["in"])
	}
	body := clause["steps"].([]any)
	sleep := body[0].(map[string]any)["sleep_wait"].(map[string]any)
	if sleep["call"] != "sys.sleep" {
		t.Errorf("call = %v, want sys.sleep", sleep["call"])
	}
}

func TestEmit_TryCatch(t *testing.T) {
	wf := testGraph(
		[]*workflow.Node{
			testStart("start"),
			{ID: "guard", Kind: workflow.KindTryCatch, Config: map[string]any{"error_variable": "e"}},
			testFn("risky"),
			testFn("recover"),
			testEnd("end"),
		},
		[]*workflow.Connection{
			testConn("start", "guard", ""),
			testConn("guard", "risky", workflow.LabelTry),
			testConn("guard", "recover", workflow.LabelCatch),
			testConn("risky", "end", ""),
			testConn("recover", "end", ""),
		},
	)

	_, text := emitText(t, wf)
	steps := decodeSteps(t, text)

	try := steps[0]["try_guard"].(map[string]any)
	except := try["except"].(map[string]any)
	if except["as"] != "e" {
		t.Errorf("as = %v, want e", except["as"])
	}
}

func TestEmit_PubSubPublish(t *testing.T) {
	publish := &workflow.Node{
		ID:     "notify",
		Kind:   workflow.KindPubSub,
		Config: map[string]any{"topic": "orders"},
		Inputs: []string{"result"},
	}
	wf := testGraph(
		[]*workflow.Node{testStart("start"), testFn("work", "result"), publish, testEnd("end")},
		[]*workflow.Connection{
			testConn("start", "work", ""),
			testConn("work", "notify", ""),
			testConn("notify", "end", ""),
		},
	)

	_, text := emitText(t, wf)
	steps := decodeSteps(t, text)

	pub := steps[1]["publish_notify"].(map[string]any)
	if pub["call"] != "googleapis.pubsub.v1.projects.topics.publish" {
		t.Errorf("call = %v", pub["call"])
	}
	args := pub["args"].(map[string]any)
	if args["topic"] != "projects/acme-prod/topics/orders" {
		t.Errorf("topic = %v", args["topic"])
	}
}

func TestEmit_Deterministic(t *testing.T) {
	wf := testGraph(
		[]*workflow.Node{
			testStart("start"),
			{ID: "init", Kind: workflow.KindAssign, Config: map[string]any{
				"variables": map[string]any{"b": 2, "a": 1, "c": 3},
			}},
			testFn("work", "result"),
			testEnd("end"),
		},
		[]*workflow.Connection{
			testConn("start", "init", ""),
			testConn("init", "work", ""),
			testConn("work", "end", ""),
		},
	)

	_, first := emitText(t, wf)
	_, second := emitText(t, wf)

	if first != second {
		t.Error("emission is not byte-identical across runs")
	}
	if !strings.HasPrefix(first, "main:") {
		t.Errorf("definition does not start with main block:\n%s", first)
	}
}
