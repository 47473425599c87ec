package compiler

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition is the in-memory declarative workflow document produced
// by the emitter. Its textual form is the step-based YAML consumed by
// the orchestration runtime; the step vocabulary is closed to
// {assign, call, switch, parallel, for, try}.
type Definition struct {
	Main MainBlock `yaml:"main"`
}

// MainBlock is the entry sequence of the definition.
type MainBlock struct {
	Params []string `yaml:"params,omitempty,flow"`
	Steps  []Step   `yaml:"steps"`
}

// Step is a named step. It marshals as a single-key mapping
// {name: body}, the shape the runtime expects inside a steps list.
type Step struct {
	Name string
	Body any
}

// MarshalYAML renders the step as {name: body}.
func (s Step) MarshalYAML() (interface{}, error) {
	return map[string]any{s.Name: s.Body}, nil
}

// callBody is the body of a call step.
type callBody struct {
	Call   string         `yaml:"call"`
	Args   map[string]any `yaml:"args,omitempty"`
	Result string         `yaml:"result,omitempty"`
}

// assignBody is the body of an assign step.
type assignBody struct {
	Assign []map[string]any `yaml:"assign"`
}

// switchBody is the body of a switch step.
type switchBody struct {
	Switch []switchCase `yaml:"switch"`
}

// switchCase is one arm of a switch step. The default arm uses the
// constant true condition.
type switchCase struct {
	Condition string `yaml:"condition"`
	Steps     []Step `yaml:"steps"`
}

// parallelBody is the body of a parallel step.
type parallelBody struct {
	Parallel parallelBranches `yaml:"parallel"`
}

type parallelBranches struct {
	Branches []Step `yaml:"branches"`
}

// branchSteps is a branch body inside a parallel step.
type branchSteps struct {
	Steps []Step `yaml:"steps"`
}

// forBody is the body of a for step.
type forBody struct {
	For forClause `yaml:"for"`
}

type forClause struct {
	Value string `yaml:"value"`
	In    string `yaml:"in"`
	Steps []Step `yaml:"steps"`
}

// tryBody is the body of a try step.
type tryBody struct {
	Try    branchSteps  `yaml:"try"`
	Except exceptClause `yaml:"except"`
}

type exceptClause struct {
	As    string `yaml:"as"`
	Steps []Step `yaml:"steps"`
}

// returnBody is the body of a terminal return step.
type returnBody struct {
	Return any `yaml:"return"`
}

// Text serializes the definition to its YAML wire form. Serialization
// is deterministic: emitting the same definition twice yields
// byte-identical text.
func (d *Definition) Text() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow definition: %w", err)
	}
	return string(data), nil
}

// StepCount returns the total number of steps, including nested ones.
func (d *Definition) StepCount() int {
	return countSteps(d.Main.Steps)
}

func countSteps(steps []Step) int {
	total := 0
	for _, s := range steps {
		total++
		switch body := s.Body.(type) {
		case switchBody:
			for _, c := range body.Switch {
				total += countSteps(c.Steps)
			}
		case parallelBody:
			for _, br := range body.Parallel.Branches {
				if bs, ok := br.Body.(branchSteps); ok {
					total += countSteps(bs.Steps)
				}
			}
		case forBody:
			total += countSteps(body.For.Steps)
		case tryBody:
			total += countSteps(body.Try.Steps)
			total += countSteps(body.Except.Steps)
		}
	}
	return total
}

// stepName derives a deterministic step identifier from a node ID so
// re-emission is diff-friendly.
func stepName(prefix, nodeID string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, nodeID)
	if prefix == "" {
		return sanitized
	}
	return prefix + "_" + sanitized
}
