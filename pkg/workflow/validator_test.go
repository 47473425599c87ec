package workflow

import (
	"reflect"
	"testing"
)

// Test graph helpers. Nodes are built with the full required config for
// their kind so config findings only appear when a test removes keys.

func graph(nodes []*Node, conns []*Connection) *Workflow {
	return &Workflow{
		ID:          "wf-test",
		Metadata:    Metadata{Name: "test", Version: "1.0.0"},
		Nodes:       nodes,
		Connections: conns,
	}
}

func startNode(id string) *Node {
	return &Node{ID: id, Kind: KindStart}
}

func endNode(id string) *Node {
	return &Node{ID: id, Kind: KindEnd}
}

func fnNode(id string, outputs ...string) *Node {
	return &Node{
		ID:   id,
		Kind: KindCloudFunction,
		Config: map[string]any{
			"name":       id,
			"runtime":    "python311",
			"entrypoint": "handler",
			"memory":     "256MB",
		},
		Outputs: outputs,
	}
}

func condNode(id, expression string) *Node {
	return &Node{
		ID:     id,
		Kind:   KindCondition,
		Config: map[string]any{"expression": expression},
	}
}

func loopNode(id, collection, item string) *Node {
	return &Node{
		ID:     id,
		Kind:   KindForLoop,
		Config: map[string]any{"collection": collection, "item": item},
	}
}

func conn(source, target, label string) *Connection {
	return &Connection{
		ID:       source + "->" + target + ":" + label,
		SourceID: source,
		TargetID: target,
		Label:    label,
	}
}

func hasFinding(report *Report, code FindingCode, severity Severity) bool {
	for _, f := range report.Findings {
		if f.Code == code && f.Severity == severity {
			return true
		}
	}
	return false
}

func findingCodes(report *Report) map[FindingCode]int {
	codes := make(map[FindingCode]int)
	for _, f := range report.Findings {
		codes[f.Code]++
	}
	return codes
}

func TestValidate_ValidLinearWorkflow(t *testing.T) {
	wf := graph(
		[]*Node{startNode("start"), fnNode("work", "result"), endNode("end")},
		[]*Connection{conn("start", "work", ""), conn("work", "end", "")},
	)

	report := Validate(wf)

	if len(report.Findings) != 0 {
		t.Errorf("expected no findings, got %v", report.Findings)
	}
	if !report.Compilable {
		t.Error("expected workflow to be compilable")
	}
	if report.HasBlockingErrors() {
		t.Error("expected no blocking errors")
	}
}

func TestValidate_ValidBranchWorkflow(t *testing.T) {
	wf := graph(
		[]*Node{
			startNode("start"),
			fnNode("fetch", "count"),
			condNode("check", "count > 10"),
			fnNode("big"),
			fnNode("small"),
			endNode("end"),
		},
		[]*Connection{
			conn("start", "fetch", ""),
			conn("fetch", "check", ""),
			conn("check", "big", LabelTrue),
			conn("check", "small", LabelFalse),
			conn("big", "end", ""),
			conn("small", "end", ""),
		},
	)
	wf.Node("big").Inputs = []string{"count"}

	report := Validate(wf)

	if len(report.Findings) != 0 {
		t.Errorf("expected no findings, got %v", report.Findings)
	}
}

func TestValidate_FindingScenarios(t *testing.T) {
	tests := []struct {
		name         string
		wf           *Workflow
		wantCode     FindingCode
		wantSeverity Severity
	}{
		{
			name: "no start node",
			wf: graph(
				[]*Node{fnNode("work"), endNode("end")},
				[]*Connection{conn("work", "end", "")},
			),
			wantCode:     CodeBadTerminals,
			wantSeverity: SeverityError,
		},
		{
			name: "two start nodes",
			wf: graph(
				[]*Node{startNode("a"), startNode("b"), endNode("end")},
				[]*Connection{conn("a", "end", ""), conn("b", "end", "")},
			),
			wantCode:     CodeBadTerminals,
			wantSeverity: SeverityError,
		},
		{
			name: "no end node",
			wf: graph(
				[]*Node{startNode("start"), fnNode("work")},
				[]*Connection{conn("start", "work", "")},
			),
			wantCode:     CodeBadTerminals,
			wantSeverity: SeverityError,
		},
		{
			name: "connection to missing node",
			wf: graph(
				[]*Node{startNode("start"), endNode("end")},
				[]*Connection{conn("start", "ghost", ""), conn("start", "end", "")},
			),
			wantCode:     CodeUnknownRef,
			wantSeverity: SeverityError,
		},
		{
			name: "duplicate node IDs",
			wf: graph(
				[]*Node{startNode("start"), fnNode("dup"), fnNode("dup"), endNode("end")},
				[]*Connection{conn("start", "dup", ""), conn("dup", "end", "")},
			),
			wantCode:     CodeUnknownRef,
			wantSeverity: SeverityError,
		},
		{
			name: "input without producer",
			wf: func() *Workflow {
				work := fnNode("work")
				work.Inputs = []string{"missing"}
				return graph(
					[]*Node{startNode("start"), work, endNode("end")},
					[]*Connection{conn("start", "work", ""), conn("work", "end", "")},
				)
			}(),
			wantCode:     CodeUnknownRef,
			wantSeverity: SeverityError,
		},
		{
			name: "unreachable node is a warning",
			wf: graph(
				[]*Node{startNode("start"), fnNode("work"), fnNode("island"), endNode("end")},
				[]*Connection{
					conn("start", "work", ""),
					conn("work", "end", ""),
					conn("island", "end", ""),
				},
			),
			wantCode:     CodeUnreachableNode,
			wantSeverity: SeverityWarning,
		},
		{
			name: "dead end path",
			wf: graph(
				[]*Node{
					startNode("start"),
					condNode("check", "true"),
					fnNode("stuck"),
					fnNode("loop_a"),
					endNode("end"),
				},
				[]*Connection{
					conn("start", "check", ""),
					conn("check", "stuck", LabelTrue),
					conn("check", "end", LabelFalse),
					conn("stuck", "loop_a", ""),
					conn("loop_a", "stuck", ""),
				},
			),
			wantCode:     CodeNoPathToEnd,
			wantSeverity: SeverityError,
		},
		{
			name: "condition missing false branch",
			wf: graph(
				[]*Node{startNode("start"), condNode("check", "true"), endNode("end")},
				[]*Connection{
					conn("start", "check", ""),
					conn("check", "end", LabelTrue),
				},
			),
			wantCode:     CodeBadBranchArity,
			wantSeverity: SeverityError,
		},
		{
			name: "sequential node fan-out",
			wf: graph(
				[]*Node{startNode("start"), fnNode("work"), endNode("a"), endNode("b")},
				[]*Connection{
					conn("start", "work", ""),
					conn("work", "a", ""),
					conn("work", "b", ""),
				},
			),
			wantCode:     CodeBadBranchArity,
			wantSeverity: SeverityError,
		},
		{
			name: "parallel with single branch",
			wf: graph(
				[]*Node{
					startNode("start"),
					{ID: "fan", Kind: KindParallel},
					fnNode("only"),
					endNode("end"),
				},
				[]*Connection{
					conn("start", "fan", ""),
					conn("fan", "only", ""),
					conn("only", "end", ""),
				},
			),
			wantCode:     CodeBadBranchArity,
			wantSeverity: SeverityError,
		},
		{
			name: "missing config key",
			wf: func() *Workflow {
				work := fnNode("work")
				delete(work.Config, "entrypoint")
				return graph(
					[]*Node{startNode("start"), work, endNode("end")},
					[]*Connection{conn("start", "work", ""), conn("work", "end", "")},
				)
			}(),
			wantCode:     CodeMissingConfig,
			wantSeverity: SeverityError,
		},
		{
			name: "wrong config type",
			wf: graph(
				[]*Node{
					startNode("start"),
					{ID: "wait", Kind: KindDelay, Config: map[string]any{"seconds": "ten"}},
					endNode("end"),
				},
				[]*Connection{conn("start", "wait", ""), conn("wait", "end", "")},
			),
			wantCode:     CodeBadConfigType,
			wantSeverity: SeverityError,
		},
		{
			name: "malformed condition expression",
			wf: graph(
				[]*Node{startNode("start"), condNode("check", "count >"), endNode("a"), endNode("b")},
				[]*Connection{
					conn("start", "check", ""),
					conn("check", "a", LabelTrue),
					conn("check", "b", LabelFalse),
				},
			),
			wantCode:     CodeBadExpression,
			wantSeverity: SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Validate(tt.wf)
			if !hasFinding(report, tt.wantCode, tt.wantSeverity) {
				t.Errorf("expected %s %s finding, got %v", tt.wantSeverity, tt.wantCode, report.Findings)
			}
		})
	}
}

func TestValidate_CycleLegality(t *testing.T) {
	t.Run("plain cycle is illegal", func(t *testing.T) {
		wf := graph(
			[]*Node{startNode("start"), fnNode("a"), fnNode("b"), endNode("end")},
			[]*Connection{
				conn("start", "a", ""),
				conn("a", "b", ""),
				conn("b", "a", ""),
			},
		)

		report := Validate(wf)
		if !hasFinding(report, CodeIllegalCycle, SeverityError) {
			t.Errorf("expected ILLEGAL_CYCLE, got %v", report.Findings)
		}
	})

	t.Run("cycle owned by a for_loop is legal", func(t *testing.T) {
		wf := graph(
			[]*Node{
				startNode("start"),
				fnNode("fetch", "items"),
				loopNode("each", "items", "item"),
				fnNode("process"),
				endNode("end"),
			},
			[]*Connection{
				conn("start", "fetch", ""),
				conn("fetch", "each", ""),
				conn("each", "process", LabelBody),
				conn("process", "each", LabelBack),
				conn("each", "end", LabelDone),
			},
		)
		wf.Node("process").Inputs = []string{"item"}

		report := Validate(wf)
		if hasFinding(report, CodeIllegalCycle, SeverityError) {
			t.Errorf("expected loop cycle to be legal, got %v", report.Findings)
		}
	})

	t.Run("cycle spanning two for_loops is illegal", func(t *testing.T) {
		wf := graph(
			[]*Node{
				startNode("start"),
				fnNode("fetch", "items"),
				loopNode("outer", "items", "x"),
				loopNode("inner", "items", "y"),
				endNode("end"),
			},
			[]*Connection{
				conn("start", "fetch", ""),
				conn("fetch", "outer", ""),
				conn("outer", "inner", LabelBody),
				conn("inner", "outer", LabelBody),
				conn("inner", "end", LabelDone),
				conn("outer", "end", LabelDone),
			},
		)

		report := Validate(wf)
		if !hasFinding(report, CodeIllegalCycle, SeverityError) {
			t.Errorf("expected ILLEGAL_CYCLE for shared cycle, got %v", report.Findings)
		}
	})
}

func TestValidate_ParallelJoin(t *testing.T) {
	t.Run("branches reconverging at a join are legal", func(t *testing.T) {
		wf := graph(
			[]*Node{
				startNode("start"),
				{ID: "fan", Kind: KindParallel},
				fnNode("left"),
				fnNode("right"),
				fnNode("join"),
				endNode("end"),
			},
			[]*Connection{
				conn("start", "fan", ""),
				conn("fan", "left", ""),
				conn("fan", "right", ""),
				conn("left", "join", ""),
				conn("right", "join", ""),
				conn("join", "end", ""),
			},
		)

		report := Validate(wf)
		if len(report.Findings) != 0 {
			t.Errorf("expected no findings, got %v", report.Findings)
		}
	})

	t.Run("branches running to separate ends are an error", func(t *testing.T) {
		wf := graph(
			[]*Node{
				startNode("start"),
				{ID: "fan", Kind: KindParallel},
				fnNode("left"),
				fnNode("right"),
				endNode("end_a"),
				endNode("end_b"),
			},
			[]*Connection{
				conn("start", "fan", ""),
				conn("fan", "left", ""),
				conn("fan", "right", ""),
				conn("left", "end_a", ""),
				conn("right", "end_b", ""),
			},
		)

		report := Validate(wf)
		if !hasFinding(report, CodeBadBranchArity, SeverityError) {
			t.Errorf("expected BAD_BRANCH_ARITY for joinless fan-out, got %v", report.Findings)
		}
		if !report.HasBlockingErrors() {
			t.Error("joinless fan-out should block emission")
		}
	})
}

func TestValidate_VariableDominance(t *testing.T) {
	t.Run("producer on one branch does not reach the merge", func(t *testing.T) {
		// Only the true branch produces "data"; the merge node cannot
		// rely on it.
		wf := graph(
			[]*Node{
				startNode("start"),
				condNode("check", "true"),
				fnNode("produce", "data"),
				fnNode("skip"),
				fnNode("merge"),
				endNode("end"),
			},
			[]*Connection{
				conn("start", "check", ""),
				conn("check", "produce", LabelTrue),
				conn("check", "skip", LabelFalse),
				conn("produce", "merge", ""),
				conn("skip", "merge", ""),
				conn("merge", "end", ""),
			},
		)
		wf.Node("merge").Inputs = []string{"data"}

		report := Validate(wf)
		if !hasFinding(report, CodeUndefinedVariable, SeverityError) {
			t.Errorf("expected UNDEFINED_VARIABLE, got %v", report.Findings)
		}
	})

	t.Run("producer before the branch dominates both arms", func(t *testing.T) {
		wf := graph(
			[]*Node{
				startNode("start"),
				fnNode("produce", "data"),
				condNode("check", "true"),
				fnNode("left"),
				fnNode("right"),
				endNode("end"),
			},
			[]*Connection{
				conn("start", "produce", ""),
				conn("produce", "check", ""),
				conn("check", "left", LabelTrue),
				conn("check", "right", LabelFalse),
				conn("left", "end", ""),
				conn("right", "end", ""),
			},
		)
		wf.Node("left").Inputs = []string{"data"}
		wf.Node("right").Inputs = []string{"data"}

		report := Validate(wf)
		if hasFinding(report, CodeUndefinedVariable, SeverityError) {
			t.Errorf("expected data to dominate both arms, got %v", report.Findings)
		}
	})

	t.Run("loop item is defined inside the body", func(t *testing.T) {
		wf := graph(
			[]*Node{
				startNode("start"),
				fnNode("fetch", "items"),
				loopNode("each", "items", "item"),
				fnNode("process"),
				endNode("end"),
			},
			[]*Connection{
				conn("start", "fetch", ""),
				conn("fetch", "each", ""),
				conn("each", "process", LabelBody),
				conn("process", "each", LabelBack),
				conn("each", "end", LabelDone),
			},
		)
		wf.Node("process").Inputs = []string{"item"}

		report := Validate(wf)
		if hasFinding(report, CodeUndefinedVariable, SeverityError) {
			t.Errorf("expected loop item to be defined in body, got %v", report.Findings)
		}
	})

	t.Run("condition expression variables are checked", func(t *testing.T) {
		wf := graph(
			[]*Node{
				startNode("start"),
				condNode("check", "missing > 3"),
				endNode("a"),
				endNode("b"),
			},
			[]*Connection{
				conn("start", "check", ""),
				conn("check", "a", LabelTrue),
				conn("check", "b", LabelFalse),
			},
		)

		report := Validate(wf)
		if !hasFinding(report, CodeUndefinedVariable, SeverityError) {
			t.Errorf("expected UNDEFINED_VARIABLE for expression reference, got %v", report.Findings)
		}
	})
}

func TestValidate_Purity(t *testing.T) {
	wf := graph(
		[]*Node{startNode("start"), condNode("check", "x >"), fnNode("island"), endNode("end")},
		[]*Connection{
			conn("start", "check", ""),
			conn("check", "end", LabelTrue),
		},
	)

	first := Validate(wf)
	second := Validate(wf)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated validation diverged:\nfirst:  %v\nsecond: %v", first, second)
	}
}

func TestValidate_CompilableGate(t *testing.T) {
	t.Run("config error blocks emission but stays compilable", func(t *testing.T) {
		work := fnNode("work")
		delete(work.Config, "runtime")
		wf := graph(
			[]*Node{startNode("start"), work, endNode("end")},
			[]*Connection{conn("start", "work", ""), conn("work", "end", "")},
		)

		report := Validate(wf)
		if !report.Compilable {
			t.Error("structurally sound graph should stay compilable")
		}
		if !report.HasBlockingErrors() {
			t.Error("config error should block emission")
		}
	})

	t.Run("reference error is not compilable", func(t *testing.T) {
		wf := graph(
			[]*Node{startNode("start"), endNode("end")},
			[]*Connection{conn("start", "ghost", ""), conn("start", "end", "")},
		)

		report := Validate(wf)
		if report.Compilable {
			t.Error("broken references should not be compilable")
		}
	})

	t.Run("missing terminals is not compilable", func(t *testing.T) {
		wf := graph([]*Node{fnNode("work")}, nil)

		report := Validate(wf)
		if report.Compilable {
			t.Error("graph without terminals should not be compilable")
		}
	})
}

func TestValidate_SkipsShapeChecksWithoutTerminals(t *testing.T) {
	// A graph with no start node cannot be walked; only reference,
	// terminal, arity, config, and expression findings may appear.
	wf := graph(
		[]*Node{fnNode("a"), fnNode("b")},
		[]*Connection{conn("a", "b", ""), conn("b", "a", "")},
	)

	report := Validate(wf)
	codes := findingCodes(report)
	for _, forbidden := range []FindingCode{CodeUnreachableNode, CodeNoPathToEnd, CodeIllegalCycle, CodeUndefinedVariable} {
		if codes[forbidden] > 0 {
			t.Errorf("shape check %s should be skipped without terminals", forbidden)
		}
	}
	if codes[CodeBadTerminals] == 0 {
		t.Error("expected BAD_TERMINALS finding")
	}
}
