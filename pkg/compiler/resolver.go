package compiler

import (
	fferrors "github.com/dshills/flowforge/pkg/errors"
	"github.com/dshills/flowforge/pkg/workflow"
)

// Resolve converts a validated workflow graph into an ordered tree of
// control-flow blocks. It must only be called on workflows without
// blocking validation errors; inconsistencies found here indicate a
// validator bug and surface as InternalError, never as findings.
//
// Resolution is deterministic: connections are followed in declaration
// order, so the same workflow always yields a structurally identical
// tree. A merge node reached from more than one branch is emitted
// exactly once, as the continuation of the enclosing sequence.
func Resolve(wf *workflow.Workflow) (*Block, error) {
	start := wf.StartNode()
	if start == nil {
		return nil, fferrors.NewInternalError("resolver", wf.ID, "", "no start node in validated workflow")
	}

	r := &resolver{wf: wf, emitted: make(map[string]bool)}

	out := wf.Outgoing(start.ID)
	if len(out) != 1 {
		return nil, fferrors.NewInternalError("resolver", wf.ID, start.ID, "start node does not have exactly one successor")
	}

	block, _, err := r.resolveSequence(out[0].TargetID, nil)
	if err != nil {
		return nil, err
	}
	return block, nil
}

type resolver struct {
	wf *workflow.Workflow
	// emitted guards the no-duplication rule: once a node is placed in
	// a block it can never appear in another.
	emitted map[string]bool
}

// resolveSequence walks from nodeID collecting blocks until it reaches
// an end node, a node in stop, or an already-emitted merge node. It
// returns the sequence and the ID the walk stopped at ("" when the
// sequence terminated at an end node or ran out of graph).
func (r *resolver) resolveSequence(nodeID string, stop map[string]bool) (*Block, string, error) {
	seq := &Block{Kind: BlockSequence}

	current := nodeID
	for current != "" {
		if stop[current] || r.emitted[current] {
			return seq, current, nil
		}

		node := r.wf.Node(current)
		if node == nil {
			return nil, "", fferrors.NewInternalError("resolver", r.wf.ID, current, "dangling node reference survived validation")
		}

		switch {
		case node.Kind == workflow.KindEnd:
			r.emitted[current] = true
			seq.Children = append(seq.Children, &Block{Kind: BlockLeaf, NodeID: current})
			return seq, "", nil

		case node.Kind.IsSequential():
			r.emitted[current] = true
			seq.Children = append(seq.Children, &Block{Kind: BlockLeaf, NodeID: current})
			current = r.singleSuccessor(current)

		case node.Kind == workflow.KindCondition:
			next, err := r.resolveCondition(node, seq, stop)
			if err != nil {
				return nil, "", err
			}
			current = next

		case node.Kind == workflow.KindSwitch:
			next, err := r.resolveSwitch(node, seq, stop)
			if err != nil {
				return nil, "", err
			}
			current = next

		case node.Kind == workflow.KindParallel:
			next, err := r.resolveParallel(node, seq, stop)
			if err != nil {
				return nil, "", err
			}
			current = next

		case node.Kind == workflow.KindForLoop:
			next, err := r.resolveLoop(node, seq, stop)
			if err != nil {
				return nil, "", err
			}
			current = next

		case node.Kind == workflow.KindTryCatch:
			next, err := r.resolveTryCatch(node, seq, stop)
			if err != nil {
				return nil, "", err
			}
			current = next

		default:
			return nil, "", fferrors.NewInternalError("resolver", r.wf.ID, current, "unhandled node kind "+string(node.Kind))
		}
	}

	return seq, "", nil
}

// singleSuccessor returns the target of the node's first outgoing
// connection, or "" when none exists. Back-labeled edges closing a loop
// body need no special case here: the loop node is in the body's stop
// set, so following the edge ends the sequence at the loop.
func (r *resolver) singleSuccessor(nodeID string) string {
	if out := r.wf.Outgoing(nodeID); len(out) > 0 {
		return out[0].TargetID
	}
	return ""
}

func (r *resolver) resolveCondition(node *workflow.Node, seq *Block, stop map[string]bool) (string, error) {
	trueConn := r.wf.OutgoingLabeled(node.ID, workflow.LabelTrue)
	falseConn := r.wf.OutgoingLabeled(node.ID, workflow.LabelFalse)
	if trueConn == nil || falseConn == nil {
		return "", fferrors.NewInternalError("resolver", r.wf.ID, node.ID, "condition node without true/false connections")
	}

	r.emitted[node.ID] = true
	merge := r.findMerge([]string{trueConn.TargetID, falseConn.TargetID}, stop)
	inner := withStop(stop, merge)

	thenBlock, _, err := r.resolveSequence(trueConn.TargetID, inner)
	if err != nil {
		return "", err
	}
	elseBlock, _, err := r.resolveSequence(falseConn.TargetID, inner)
	if err != nil {
		return "", err
	}

	expression, _ := node.ConfigString("expression")
	seq.Children = append(seq.Children, &Block{
		Kind:       BlockBranch,
		NodeID:     node.ID,
		Expression: expression,
		Then:       thenBlock,
		Else:       elseBlock,
	})
	return merge, nil
}

func (r *resolver) resolveSwitch(node *workflow.Node, seq *Block, stop map[string]bool) (string, error) {
	out := r.wf.Outgoing(node.ID)
	if len(out) == 0 {
		return "", fferrors.NewInternalError("resolver", r.wf.ID, node.ID, "switch node without case connections")
	}

	r.emitted[node.ID] = true

	targets := make([]string, 0, len(out))
	for _, c := range out {
		targets = append(targets, c.TargetID)
	}
	merge := r.findMerge(targets, stop)
	inner := withStop(stop, merge)

	variable, _ := node.ConfigString("variable")
	block := &Block{Kind: BlockMultiBranch, NodeID: node.ID, Variable: variable}

	for _, c := range out {
		body, _, err := r.resolveSequence(c.TargetID, inner)
		if err != nil {
			return "", err
		}
		if c.Label == workflow.LabelDefault {
			block.Default = body
			continue
		}
		block.Cases = append(block.Cases, Case{Match: c.Label, Body: body})
	}

	seq.Children = append(seq.Children, block)
	return merge, nil
}

func (r *resolver) resolveParallel(node *workflow.Node, seq *Block, stop map[string]bool) (string, error) {
	out := r.wf.Outgoing(node.ID)
	if len(out) < 2 {
		return "", fferrors.NewInternalError("resolver", r.wf.ID, node.ID, "parallel node with fewer than 2 branches")
	}

	r.emitted[node.ID] = true

	targets := make([]string, 0, len(out))
	for _, c := range out {
		targets = append(targets, c.TargetID)
	}
	join := r.findMerge(targets, stop)
	if join == "" {
		return "", fferrors.NewInternalError("resolver", r.wf.ID, node.ID, "parallel branches do not share a join node")
	}
	inner := withStop(stop, join)

	block := &Block{Kind: BlockFork, NodeID: node.ID, JoinID: join}
	for _, c := range out {
		body, stopped, err := r.resolveSequence(c.TargetID, inner)
		if err != nil {
			return "", err
		}
		// Re-check the join invariant the validator approved.
		if stopped != join {
			return "", fferrors.NewInternalError("resolver", r.wf.ID, node.ID, "parallel branch terminated outside the join node")
		}
		block.Branches = append(block.Branches, body)
	}

	seq.Children = append(seq.Children, block)
	return join, nil
}

func (r *resolver) resolveLoop(node *workflow.Node, seq *Block, stop map[string]bool) (string, error) {
	bodyConn := r.wf.OutgoingLabeled(node.ID, workflow.LabelBody)
	doneConn := r.wf.OutgoingLabeled(node.ID, workflow.LabelDone)
	if bodyConn == nil || doneConn == nil {
		return "", fferrors.NewInternalError("resolver", r.wf.ID, node.ID, "for_loop node without body/done connections")
	}

	r.emitted[node.ID] = true

	// The body runs up to the authored back-edge into the loop node.
	inner := withStop(stop, node.ID)
	body, _, err := r.resolveSequence(bodyConn.TargetID, inner)
	if err != nil {
		return "", err
	}

	collection, _ := node.ConfigString("collection")
	item, _ := node.ConfigString("item")
	seq.Children = append(seq.Children, &Block{
		Kind:       BlockLoop,
		NodeID:     node.ID,
		Collection: collection,
		Item:       item,
		Body:       body,
	})
	return doneConn.TargetID, nil
}

func (r *resolver) resolveTryCatch(node *workflow.Node, seq *Block, stop map[string]bool) (string, error) {
	tryConn := r.wf.OutgoingLabeled(node.ID, workflow.LabelTry)
	catchConn := r.wf.OutgoingLabeled(node.ID, workflow.LabelCatch)
	if tryConn == nil || catchConn == nil {
		return "", fferrors.NewInternalError("resolver", r.wf.ID, node.ID, "try_catch node without try/catch connections")
	}

	r.emitted[node.ID] = true
	merge := r.findMerge([]string{tryConn.TargetID, catchConn.TargetID}, stop)
	inner := withStop(stop, merge)

	tryBlock, _, err := r.resolveSequence(tryConn.TargetID, inner)
	if err != nil {
		return "", err
	}
	catchBlock, _, err := r.resolveSequence(catchConn.TargetID, inner)
	if err != nil {
		return "", err
	}

	errorVar, _ := node.ConfigString("error_variable")
	seq.Children = append(seq.Children, &Block{
		Kind:     BlockGuarded,
		NodeID:   node.ID,
		Try:      tryBlock,
		Catch:    catchBlock,
		ErrorVar: errorVar,
	})
	return merge, nil
}

// findMerge locates the reconvergence point of two or more branch
// entry nodes: the first node, in breadth-first order from the first
// branch, that every other branch can also reach. The enclosing stop
// set is honored so an inner split never claims an outer merge node's
// successors. Returns "" when the branches never reconverge (each runs
// to its own end node).
func (r *resolver) findMerge(targets []string, stop map[string]bool) string {
	if len(targets) == 0 {
		return ""
	}
	// A branch entry that is itself shared is the merge.
	shared := make(map[string]int)
	for _, t := range targets {
		shared[t]++
	}
	for _, t := range targets {
		if shared[t] == len(targets) {
			return t
		}
	}

	order, _ := r.reachable(targets[0], stop)
	sets := make([]map[string]bool, 0, len(targets)-1)
	for _, t := range targets[1:] {
		_, set := r.reachable(t, stop)
		sets = append(sets, set)
	}

	for _, candidate := range order {
		all := true
		for _, set := range sets {
			if !set[candidate] {
				all = false
				break
			}
		}
		if all && r.wf.InDegree(candidate) > 1 {
			return candidate
		}
	}
	return ""
}

// reachable returns the nodes reachable from id in BFS order, stopping
// at (and excluding successors of) nodes in the stop set.
func (r *resolver) reachable(id string, stop map[string]bool) ([]string, map[string]bool) {
	var order []string
	set := make(map[string]bool)
	queue := []string{id}
	set[id] = true
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		if stop[current] {
			continue
		}
		for _, c := range r.wf.Outgoing(current) {
			if !set[c.TargetID] {
				set[c.TargetID] = true
				queue = append(queue, c.TargetID)
			}
		}
	}
	return order, set
}

// withStop returns a copy of stop with id added. A "" id returns the
// original set unchanged.
func withStop(stop map[string]bool, id string) map[string]bool {
	if id == "" {
		return stop
	}
	next := make(map[string]bool, len(stop)+1)
	for k := range stop {
		next[k] = true
	}
	next[id] = true
	return next
}
