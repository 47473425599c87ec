package workflow

import (
	"fmt"
	"sort"

	"github.com/dshills/flowforge/pkg/transform"
)

// Validate checks all workflow invariants and returns a report with
// every finding collected. It is a pure function of the workflow:
// repeated calls on an unchanged graph yield identical findings.
//
// Checks run in order: reference integrity, terminals, reachability,
// acyclicity outside for_loop constructs, branch cardinality, parallel
// join reconvergence, config completeness, variable flow. Graph-shape checks that need a start
// node (reachability, cycles, variable flow) are skipped when the
// terminal invariant is broken, since they would only produce noise.
func Validate(wf *Workflow) *Report {
	v := &validator{wf: wf, exprCheck: transform.NewExpressionValidator()}
	v.run()

	report := &Report{Findings: v.findings, Compilable: true}
	for _, f := range v.findings {
		if f.Severity != SeverityError {
			continue
		}
		// Structural gate: reference and terminal integrity decide
		// whether lowering can be attempted at all.
		if f.Code == CodeBadTerminals || f.Code == CodeUnknownRef {
			report.Compilable = false
		}
	}
	if report.Findings == nil {
		report.Findings = []Finding{}
	}
	return report
}

// HasBlockingErrors reports whether any error-severity finding exists.
// All errors block emission; warnings never do.
func (r *Report) HasBlockingErrors() bool {
	return len(r.Errors()) > 0
}

type validator struct {
	wf        *Workflow
	findings  []Finding
	exprCheck transform.ExpressionValidator
}

func (v *validator) errorf(code FindingCode, nodeID string, format string, args ...any) {
	v.findings = append(v.findings, Finding{
		Severity: SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		NodeID:   nodeID,
	})
}

func (v *validator) warnf(code FindingCode, nodeID string, format string, args ...any) {
	v.findings = append(v.findings, Finding{
		Severity: SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		NodeID:   nodeID,
	})
}

func (v *validator) run() {
	v.checkReferences()
	terminalsOK := v.checkTerminals()
	v.checkBranchArity()
	v.checkConfig()
	v.checkExpressions()

	if !terminalsOK {
		return
	}

	v.checkReachability()
	v.checkCycles()
	v.checkParallelJoins()
	v.checkVariableFlow()
}

// checkReferences verifies that every connection endpoint names an
// existing node and that node IDs are unique.
func (v *validator) checkReferences() {
	ids := make(map[string]bool, len(v.wf.Nodes))
	for _, n := range v.wf.Nodes {
		if ids[n.ID] {
			v.errorf(CodeUnknownRef, n.ID, "duplicate node ID: %s", n.ID)
			continue
		}
		ids[n.ID] = true
	}

	for _, c := range v.wf.Connections {
		if !ids[c.SourceID] {
			v.findings = append(v.findings, Finding{
				Severity:     SeverityError,
				Code:         CodeUnknownRef,
				Message:      fmt.Sprintf("connection references unknown source node: %s", c.SourceID),
				ConnectionID: c.ID,
			})
		}
		if !ids[c.TargetID] {
			v.findings = append(v.findings, Finding{
				Severity:     SeverityError,
				Code:         CodeUnknownRef,
				Message:      fmt.Sprintf("connection references unknown target node: %s", c.TargetID),
				ConnectionID: c.ID,
			})
		}
	}

	// Every consumed variable must have a producer somewhere in the
	// graph; whether that producer dominates the consumer is checked
	// separately in checkVariableFlow.
	producers := v.variableProducers()
	for _, n := range v.wf.Nodes {
		for _, in := range n.Inputs {
			if len(producers[in]) == 0 {
				v.errorf(CodeUnknownRef, n.ID, "input variable %q is not produced by any node", in)
			}
		}
	}
}

// checkTerminals verifies the start/end invariant. Returns false when
// the graph has no usable entry, which suppresses graph-shape checks.
func (v *validator) checkTerminals() bool {
	startCount, endCount := 0, 0
	for _, n := range v.wf.Nodes {
		switch n.Kind {
		case KindStart:
			startCount++
		case KindEnd:
			endCount++
		}
	}

	ok := true
	if startCount != 1 {
		v.errorf(CodeBadTerminals, "", "workflow must have exactly one start node (found %d)", startCount)
		ok = false
	}
	if endCount == 0 {
		v.errorf(CodeBadTerminals, "", "workflow must have at least one end node")
		ok = false
	}
	return ok
}

// checkReachability walks the graph from start. Nodes the walk never
// reaches are warnings; nodes from which no end node is reachable are
// errors, since execution entering them could never terminate cleanly.
func (v *validator) checkReachability() {
	start := v.wf.StartNode()

	reachable := make(map[string]bool)
	queue := []string{start.ID}
	reachable[start.ID] = true
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, c := range v.wf.Outgoing(current) {
			if !reachable[c.TargetID] {
				reachable[c.TargetID] = true
				queue = append(queue, c.TargetID)
			}
		}
	}

	for _, n := range v.wf.Nodes {
		if !reachable[n.ID] {
			v.warnf(CodeUnreachableNode, n.ID, "node is not reachable from start")
		}
	}

	// Reverse walk from every end node.
	incoming := make(map[string][]string)
	for _, c := range v.wf.Connections {
		incoming[c.TargetID] = append(incoming[c.TargetID], c.SourceID)
	}
	reachesEnd := make(map[string]bool)
	for _, n := range v.wf.Nodes {
		if n.Kind == KindEnd {
			reachesEnd[n.ID] = true
			queue = append(queue, n.ID)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, pred := range incoming[current] {
			if !reachesEnd[pred] {
				reachesEnd[pred] = true
				queue = append(queue, pred)
			}
		}
	}

	for _, n := range v.wf.Nodes {
		if reachable[n.ID] && !reachesEnd[n.ID] {
			v.errorf(CodeNoPathToEnd, n.ID, "no path from node to any end node")
		}
	}
}

// checkCycles performs a depth-first traversal looking for cycles. A
// cycle is legal only when every node on it belongs to the body of a
// single for_loop construct, identified by exactly one for_loop node
// sitting on the cycle.
func (v *validator) checkCycles() {
	adjacency := make(map[string][]string)
	for _, c := range v.wf.Connections {
		adjacency[c.SourceID] = append(adjacency[c.SourceID], c.TargetID)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make(map[string]int)
	var stack []string
	reported := make(map[string]bool)

	var dfs func(string)
	dfs = func(id string) {
		state[id] = gray
		stack = append(stack, id)

		for _, next := range adjacency[id] {
			switch state[next] {
			case white:
				dfs(next)
			case gray:
				// Reconstruct the cycle from the recursion stack.
				cycleStart := -1
				for i, sid := range stack {
					if sid == next {
						cycleStart = i
						break
					}
				}
				if cycleStart < 0 {
					continue
				}
				cycle := stack[cycleStart:]

				loops := 0
				for _, cid := range cycle {
					if n := v.wf.Node(cid); n != nil && n.Kind == KindForLoop {
						loops++
					}
				}
				if loops != 1 && !reported[next] {
					reported[next] = true
					v.errorf(CodeIllegalCycle, next, "cycle through %d node(s) is not owned by a for_loop", len(cycle))
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = black
	}

	for _, n := range v.wf.Nodes {
		if state[n.ID] == white {
			dfs(n.ID)
		}
	}
}

// checkBranchArity verifies each node's outgoing connection count and
// label set against its kind's cardinality rule.
func (v *validator) checkBranchArity() {
	for _, n := range v.wf.Nodes {
		out := v.wf.Outgoing(n.ID)
		labels := make(map[string]int)
		for _, c := range out {
			labels[c.Label]++
		}
		for label, count := range labels {
			if label != "" && count > 1 {
				v.errorf(CodeBadBranchArity, n.ID, "duplicate outgoing label %q", label)
			}
		}

		switch n.Kind {
		case KindStart:
			if len(out) != 1 {
				v.errorf(CodeBadBranchArity, n.ID, "start node must have exactly 1 outgoing connection (found %d)", len(out))
			}
		case KindEnd:
			if len(out) != 0 {
				v.errorf(CodeBadBranchArity, n.ID, "end node must have no outgoing connections (found %d)", len(out))
			}
		case KindCondition:
			if len(out) != 2 || labels[LabelTrue] != 1 || labels[LabelFalse] != 1 {
				v.errorf(CodeBadBranchArity, n.ID, "condition node must have exactly 2 outgoing connections labeled true/false")
			}
		case KindSwitch:
			if len(out) < 1 {
				v.errorf(CodeBadBranchArity, n.ID, "switch node must have at least 1 outgoing case connection")
			}
			for _, c := range out {
				if c.Label == "" {
					v.errorf(CodeBadBranchArity, n.ID, "switch connections must carry a case label")
					break
				}
			}
		case KindParallel:
			if len(out) < 2 {
				v.errorf(CodeBadBranchArity, n.ID, "parallel node must have at least 2 outgoing connections (found %d)", len(out))
			}
			for _, c := range out {
				if c.Label != "" {
					v.errorf(CodeBadBranchArity, n.ID, "parallel fan-out connections must be unlabeled")
					break
				}
			}
		case KindForLoop:
			if len(out) != 2 || labels[LabelBody] != 1 || labels[LabelDone] != 1 {
				v.errorf(CodeBadBranchArity, n.ID, "for_loop node must have exactly 2 outgoing connections labeled body/done")
			}
		case KindTryCatch:
			if len(out) != 2 || labels[LabelTry] != 1 || labels[LabelCatch] != 1 {
				v.errorf(CodeBadBranchArity, n.ID, "try_catch node must have exactly 2 outgoing connections labeled try/catch")
			}
		default:
			// Sequential kinds: exactly one successor. The single edge
			// may carry the back label when it closes a loop body.
			if len(out) != 1 {
				v.errorf(CodeBadBranchArity, n.ID, "%s node must have exactly 1 outgoing connection (found %d)", n.Kind, len(out))
			}
		}
	}
}

// checkParallelJoins verifies that the branches fanned out by each
// parallel node reconverge at a common join node. Branches that run to
// separate end nodes leave the fork without a join, which has no
// representation in the emitted definition.
func (v *validator) checkParallelJoins() {
	for _, n := range v.wf.Nodes {
		if n.Kind != KindParallel {
			continue
		}
		out := v.wf.Outgoing(n.ID)
		if len(out) < 2 {
			continue // reported by checkBranchArity
		}

		shared := v.reachableFrom(out[0].TargetID)
		for _, c := range out[1:] {
			branch := v.reachableFrom(c.TargetID)
			for id := range shared {
				if !branch[id] {
					delete(shared, id)
				}
			}
		}
		if len(shared) == 0 {
			v.errorf(CodeBadBranchArity, n.ID, "parallel branches do not reconverge at a join node")
		}
	}
}

// reachableFrom returns the set of node IDs reachable from id,
// including id itself.
func (v *validator) reachableFrom(id string) map[string]bool {
	reached := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, c := range v.wf.Outgoing(current) {
			if !reached[c.TargetID] {
				reached[c.TargetID] = true
				queue = append(queue, c.TargetID)
			}
		}
	}
	return reached
}

// checkConfig verifies kind-specific required configuration keys.
func (v *validator) checkConfig() {
	for _, n := range v.wf.Nodes {
		for _, key := range n.Kind.RequiredConfig() {
			value, present := n.Config[key.Name]
			if !present {
				v.errorf(CodeMissingConfig, n.ID, "%s node missing required config key %q", n.Kind, key.Name)
				continue
			}
			if !configTypeMatches(value, key.Type) {
				v.errorf(CodeBadConfigType, n.ID, "config key %q must be a %s", key.Name, key.Type)
			}
		}
	}
}

func configTypeMatches(value any, t ConfigType) bool {
	switch t {
	case ConfigString:
		s, ok := value.(string)
		return ok && s != ""
	case ConfigNumber:
		switch value.(type) {
		case float64, float32, int, int64, uint64:
			return true
		}
		return false
	case ConfigMap:
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}

// checkExpressions validates condition expressions with the sandboxed
// expression compiler.
func (v *validator) checkExpressions() {
	declared := v.declaredVariables()

	for _, n := range v.wf.Nodes {
		if n.Kind != KindCondition {
			continue
		}
		expression, ok := n.ConfigString("expression")
		if !ok {
			continue // reported by checkConfig
		}
		if err := v.exprCheck.ValidateSyntax(expression, declared); err != nil {
			v.errorf(CodeBadExpression, n.ID, "invalid condition expression: %v", err)
		}
	}
}

// checkVariableFlow enforces the dominance rule: a node may reference
// only variables produced by nodes guaranteed to have executed on every
// path reaching it.
func (v *validator) checkVariableFlow() {
	dom := v.dominators()
	producers := v.variableProducers()

	for _, n := range v.wf.Nodes {
		refs := append([]string{}, n.Inputs...)
		if n.Kind == KindCondition {
			if expression, ok := n.ConfigString("expression"); ok {
				refs = append(refs, transform.ExtractVariables(expression)...)
			}
		}
		if n.Kind == KindSwitch {
			if variable, ok := n.ConfigString("variable"); ok {
				refs = append(refs, variable)
			}
		}

		seen := make(map[string]bool)
		for _, ref := range refs {
			if seen[ref] {
				continue
			}
			seen[ref] = true

			prods := producers[ref]
			if len(prods) == 0 {
				// Expression/switch references without any producer:
				// Inputs were already reported in checkReferences, so
				// only report derived references here.
				if !contains(n.Inputs, ref) {
					v.errorf(CodeUndefinedVariable, n.ID, "variable %q is not produced by any node", ref)
				}
				continue
			}

			dominated := false
			for _, producer := range prods {
				if producer != n.ID && dom[n.ID][producer] {
					dominated = true
					break
				}
			}
			if !dominated {
				v.errorf(CodeUndefinedVariable, n.ID,
					"variable %q is not defined on every path reaching this node", ref)
			}
		}
	}
}

// variableProducers maps each variable name to the IDs of the nodes
// that produce it. A for_loop produces its item variable for the nodes
// it dominates (its body).
func (v *validator) variableProducers() map[string][]string {
	producers := make(map[string][]string)
	for _, n := range v.wf.Nodes {
		for _, out := range n.Outputs {
			producers[out] = append(producers[out], n.ID)
		}
		if n.Kind == KindForLoop {
			if item, ok := n.ConfigString("item"); ok && item != "" {
				producers[item] = append(producers[item], n.ID)
			}
		}
		if n.Kind == KindTryCatch {
			if errVar, ok := n.ConfigString("error_variable"); ok && errVar != "" {
				producers[errVar] = append(producers[errVar], n.ID)
			}
		}
		if n.Kind == KindAssign {
			if vars, ok := n.ConfigMap("variables"); ok {
				names := make([]string, 0, len(vars))
				for name := range vars {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					producers[name] = append(producers[name], n.ID)
				}
			}
		}
	}
	return producers
}

// declaredVariables returns every variable name any node can produce.
func (v *validator) declaredVariables() []string {
	producers := v.variableProducers()
	names := make([]string, 0, len(producers))
	for name := range producers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// dominators computes the dominator sets of every node reachable from
// start with the standard iterative data-flow algorithm.
// dom[n][d] is true when d dominates n.
func (v *validator) dominators() map[string]map[string]bool {
	start := v.wf.StartNode()

	var order []string
	seen := map[string]bool{start.ID: true}
	queue := []string{start.ID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		for _, c := range v.wf.Outgoing(current) {
			if !seen[c.TargetID] {
				seen[c.TargetID] = true
				queue = append(queue, c.TargetID)
			}
		}
	}

	preds := make(map[string][]string)
	for _, c := range v.wf.Connections {
		if seen[c.SourceID] && seen[c.TargetID] {
			preds[c.TargetID] = append(preds[c.TargetID], c.SourceID)
		}
	}

	dom := make(map[string]map[string]bool, len(order))
	all := make(map[string]bool, len(order))
	for _, id := range order {
		all[id] = true
	}
	for _, id := range order {
		if id == start.ID {
			dom[id] = map[string]bool{id: true}
			continue
		}
		init := make(map[string]bool, len(all))
		for k := range all {
			init[k] = true
		}
		dom[id] = init
	}

	changed := true
	for changed {
		changed = false
		for _, id := range order {
			if id == start.ID {
				continue
			}
			next := make(map[string]bool)
			first := true
			for _, p := range preds[id] {
				if first {
					for k := range dom[p] {
						next[k] = true
					}
					first = false
					continue
				}
				for k := range next {
					if !dom[p][k] {
						delete(next, k)
					}
				}
			}
			next[id] = true
			if !sameSet(next, dom[id]) {
				dom[id] = next
				changed = true
			}
		}
	}

	return dom
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
