package compiler

import (
	"fmt"
	"sort"

	fferrors "github.com/dshills/flowforge/pkg/errors"
	"github.com/dshills/flowforge/pkg/workflow"
)

// Emit lowers a resolved block tree into the declarative definition.
// The workflow is read only for node configuration and deployment
// metadata; variable names pass through unchanged.
func Emit(block *Block, wf *workflow.Workflow) (*Definition, error) {
	e := &emitter{wf: wf}
	steps, err := e.emitBlock(block)
	if err != nil {
		return nil, err
	}
	return &Definition{Main: MainBlock{Steps: steps}}, nil
}

type emitter struct {
	wf *workflow.Workflow
}

func (e *emitter) emitBlock(block *Block) ([]Step, error) {
	if block == nil {
		return nil, nil
	}

	switch block.Kind {
	case BlockSequence:
		var steps []Step
		for _, child := range block.Children {
			childSteps, err := e.emitBlock(child)
			if err != nil {
				return nil, err
			}
			steps = append(steps, childSteps...)
		}
		return steps, nil

	case BlockLeaf:
		step, err := e.emitLeaf(block.NodeID)
		if err != nil {
			return nil, err
		}
		return []Step{step}, nil

	case BlockBranch:
		thenSteps, err := e.emitBlock(block.Then)
		if err != nil {
			return nil, err
		}
		elseSteps, err := e.emitBlock(block.Else)
		if err != nil {
			return nil, err
		}
		return []Step{{
			Name: stepName("switch", block.NodeID),
			Body: switchBody{Switch: []switchCase{
				{Condition: expressionRef(block.Expression), Steps: thenSteps},
				{Condition: "true", Steps: elseSteps},
			}},
		}}, nil

	case BlockMultiBranch:
		var cases []switchCase
		for _, c := range block.Cases {
			body, err := e.emitBlock(c.Body)
			if err != nil {
				return nil, err
			}
			cases = append(cases, switchCase{
				Condition: fmt.Sprintf("${%s == %q}", block.Variable, c.Match),
				Steps:     body,
			})
		}
		if block.Default != nil {
			body, err := e.emitBlock(block.Default)
			if err != nil {
				return nil, err
			}
			cases = append(cases, switchCase{Condition: "true", Steps: body})
		}
		return []Step{{
			Name: stepName("switch", block.NodeID),
			Body: switchBody{Switch: cases},
		}}, nil

	case BlockFork:
		var branches []Step
		for i, br := range block.Branches {
			body, err := e.emitBlock(br)
			if err != nil {
				return nil, err
			}
			branches = append(branches, Step{
				Name: fmt.Sprintf("%s_%d", stepName("branch", block.NodeID), i),
				Body: branchSteps{Steps: body},
			})
		}
		return []Step{{
			Name: stepName("parallel", block.NodeID),
			Body: parallelBody{Parallel: parallelBranches{Branches: branches}},
		}}, nil

	case BlockLoop:
		body, err := e.emitBlock(block.Body)
		if err != nil {
			return nil, err
		}
		return []Step{{
			Name: stepName("for", block.NodeID),
			Body: forBody{For: forClause{
				Value: block.Item,
				In:    expressionRef(block.Collection),
				Steps: body,
			}},
		}}, nil

	case BlockGuarded:
		trySteps, err := e.emitBlock(block.Try)
		if err != nil {
			return nil, err
		}
		catchSteps, err := e.emitBlock(block.Catch)
		if err != nil {
			return nil, err
		}
		return []Step{{
			Name: stepName("try", block.NodeID),
			Body: tryBody{
				Try:    branchSteps{Steps: trySteps},
				Except: exceptClause{As: block.ErrorVar, Steps: catchSteps},
			},
		}}, nil

	default:
		return nil, fferrors.NewInternalError("emitter", e.wf.ID, "", "unhandled block kind "+block.Kind.String())
	}
}

// emitLeaf maps a sequential node to its declarative step.
func (e *emitter) emitLeaf(nodeID string) (Step, error) {
	node := e.wf.Node(nodeID)
	if node == nil {
		return Step{}, fferrors.NewInternalError("emitter", e.wf.ID, nodeID, "leaf references unknown node")
	}

	switch node.Kind {
	case workflow.KindEnd:
		// Without a configured return value the step returns null; a
		// default like "${result}" would reference a variable the graph
		// may never have produced.
		var returnValue any
		if v, ok := node.ConfigString("return"); ok && v != "" {
			returnValue = expressionRef(v)
		}
		return Step{Name: stepName("end", node.ID), Body: returnBody{Return: returnValue}}, nil

	case workflow.KindCloudFunction:
		name, _ := node.ConfigString("name")
		url := fmt.Sprintf("https://%s-%s.cloudfunctions.net/%s",
			e.wf.Region(), e.wf.Metadata.ProjectID, name)
		return Step{Name: stepName("call", node.ID), Body: callBody{
			Call:   "http.post",
			Args:   withInputBody(node, map[string]any{"url": url}),
			Result: resultVariable(node),
		}}, nil

	case workflow.KindCloudRun:
		service, _ := node.ConfigString("service")
		url := fmt.Sprintf("https://%s-%s.%s.run.app",
			service, e.wf.Metadata.ProjectID, e.wf.Region())
		return Step{Name: stepName("call", node.ID), Body: callBody{
			Call:   "http.post",
			Args:   withInputBody(node, map[string]any{"url": url}),
			Result: resultVariable(node),
		}}, nil

	case workflow.KindPubSub:
		topic, _ := node.ConfigString("topic")
		return Step{Name: stepName("publish", node.ID), Body: callBody{
			Call: "googleapis.pubsub.v1.projects.topics.publish",
			Args: map[string]any{
				"topic": fmt.Sprintf("projects/%s/topics/%s", e.wf.Metadata.ProjectID, topic),
				"body":  map[string]any{"messages": []any{inputPayload(node)}},
			},
		}}, nil

	case workflow.KindHTTPRequest:
		url, _ := node.ConfigString("url")
		method, _ := node.ConfigString("method")
		args := map[string]any{"url": url, "method": method}
		if headers, ok := node.ConfigMap("headers"); ok {
			args["headers"] = headers
		}
		if body, ok := node.ConfigMap("body"); ok {
			args["body"] = body
		}
		return Step{Name: stepName("call", node.ID), Body: callBody{
			Call:   "http.request",
			Args:   args,
			Result: resultVariable(node),
		}}, nil

	case workflow.KindDelay:
		seconds, _ := node.ConfigNumber("seconds")
		return Step{Name: stepName("sleep", node.ID), Body: callBody{
			Call: "sys.sleep",
			Args: map[string]any{"seconds": seconds},
		}}, nil

	case workflow.KindAssign:
		variables, _ := node.ConfigMap("variables")
		names := make([]string, 0, len(variables))
		for name := range variables {
			names = append(names, name)
		}
		sort.Strings(names)
		assigns := make([]map[string]any, 0, len(names))
		for _, name := range names {
			assigns = append(assigns, map[string]any{name: variables[name]})
		}
		return Step{Name: stepName("assign", node.ID), Body: assignBody{Assign: assigns}}, nil

	case workflow.KindCall:
		target, _ := node.ConfigString("target")
		args, _ := node.ConfigMap("args")
		return Step{Name: stepName("call", node.ID), Body: callBody{
			Call:   target,
			Args:   args,
			Result: resultVariable(node),
		}}, nil

	default:
		return Step{}, fferrors.NewInternalError("emitter", e.wf.ID, nodeID,
			"node kind "+string(node.Kind)+" is not a sequential leaf")
	}
}

// resultVariable is the declared output variable the step's result
// binds to, or empty when the node declares none.
func resultVariable(node *workflow.Node) string {
	if len(node.Outputs) > 0 {
		return node.Outputs[0]
	}
	return ""
}

// withInputBody attaches the node's declared inputs as the call body.
func withInputBody(node *workflow.Node, args map[string]any) map[string]any {
	if payload := inputPayload(node); payload != nil {
		args["body"] = payload
	}
	return args
}

// inputPayload builds the request payload from declared input variables.
func inputPayload(node *workflow.Node) map[string]any {
	if len(node.Inputs) == 0 {
		return nil
	}
	payload := make(map[string]any, len(node.Inputs))
	for _, in := range node.Inputs {
		payload[in] = fmt.Sprintf("${%s}", in)
	}
	return payload
}

// expressionRef wraps an expression in the runtime's ${} form unless
// the author already did.
func expressionRef(expression string) string {
	if expression == "" {
		return expression
	}
	if len(expression) >= 2 && expression[0] == '$' && expression[1] == '{' {
		return expression
	}
	return "${" + expression + "}"
}
