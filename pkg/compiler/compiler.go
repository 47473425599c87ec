// Package compiler turns validated workflow graphs into deployable
// artifacts. The pipeline runs in fixed stages: validate, resolve the
// graph into a block tree, emit the declarative definition, scaffold
// compute node sources, and assemble the bundle. Each stage consumes
// the previous stage's output and never mutates the input workflow.
package compiler

import (
	"context"
	"time"

	"github.com/dshills/flowforge/pkg/ai"
	fferrors "github.com/dshills/flowforge/pkg/errors"
	"github.com/dshills/flowforge/pkg/workflow"
)

// Options controls a Generate run.
type Options struct {
	// AIEnhance rewrites scaffold sources through the AI collaborator.
	// Enhancement failures degrade to the plain scaffold.
	AIEnhance bool
	// AISuggest attaches workflow improvement suggestions to the tree.
	AISuggest bool
	// IncludeDeployment adds cloudbuild, terraform, and deploy script
	// templates to the bundle.
	IncludeDeployment bool
}

// Compiler is the pipeline facade. The zero value is not usable; use
// New.
type Compiler struct {
	assembler *Assembler
	enhancer  ai.Enhancer
	// suggestTimeout bounds the optional suggestion call.
	suggestTimeout time.Duration
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithAI attaches the enhancement and suggestion collaborator.
func WithAI(e ai.Enhancer) Option {
	return func(c *Compiler) { c.enhancer = e }
}

// WithSuggestTimeout overrides the suggestion call timeout.
func WithSuggestTimeout(d time.Duration) Option {
	return func(c *Compiler) {
		if d > 0 {
			c.suggestTimeout = d
		}
	}
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		suggestTimeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.assembler = NewAssembler(WithEnhancer(c.enhancer))
	return c
}

// Validate runs graph validation only. The returned report lists every
// finding discovered; it never stops at the first problem.
func (c *Compiler) Validate(wf *workflow.Workflow) *workflow.Report {
	return workflow.Validate(wf)
}

// Preview validates the workflow and, when nothing blocks emission,
// returns the definition text alongside the report. A blocked workflow
// yields an empty string and the same report Validate would produce.
func (c *Compiler) Preview(ctx context.Context, wf *workflow.Workflow) (string, *workflow.Report, error) {
	report := workflow.Validate(wf)
	if report.HasBlockingErrors() {
		return "", report, nil
	}

	def, err := c.definition(wf)
	if err != nil {
		return "", report, err
	}

	text, err := def.Text()
	if err != nil {
		return "", report, fferrors.NewInternalError("emit", wf.ID, "", err.Error())
	}
	return text, report, nil
}

// Generate runs the full pipeline. When validation blocks emission the
// returned tree is empty and the report carries the findings; callers
// distinguish the two outcomes by Report.HasBlockingErrors. An error
// return always means an internal pipeline defect, never a bad graph.
func (c *Compiler) Generate(ctx context.Context, wf *workflow.Workflow, opts Options) (*ArtifactTree, *workflow.Report, error) {
	report := workflow.Validate(wf)
	if report.HasBlockingErrors() {
		return &ArtifactTree{WorkflowID: wf.ID, Files: map[string]string{}}, report, nil
	}

	def, err := c.definition(wf)
	if err != nil {
		return nil, report, err
	}
	text, err := def.Text()
	if err != nil {
		return nil, report, fferrors.NewInternalError("emit", wf.ID, "", err.Error())
	}

	artifacts := make([]*SourceArtifact, 0)
	for _, node := range ComputeNodes(wf) {
		artifact, err := Scaffold(node)
		if err != nil {
			return nil, report, fferrors.NewInternalError("scaffold", wf.ID, node.ID, err.Error())
		}
		artifacts = append(artifacts, artifact)
	}

	tree := c.assembler.Assemble(ctx, text, artifacts, wf, AssembleOptions{
		AIEnhance:         opts.AIEnhance,
		IncludeDeployment: opts.IncludeDeployment,
	})
	tree.Steps = def.StepCount()

	if opts.AISuggest && c.enhancer != nil {
		tree.Suggestions = c.suggest(ctx, wf)
	}

	return tree, report, nil
}

func (c *Compiler) definition(wf *workflow.Workflow) (*Definition, error) {
	block, err := Resolve(wf)
	if err != nil {
		return nil, err
	}
	return Emit(block, wf)
}

// suggest asks the collaborator for workflow improvements. Failures
// are swallowed: suggestions are advisory and never affect the bundle.
func (c *Compiler) suggest(ctx context.Context, wf *workflow.Workflow) []string {
	callCtx, cancel := context.WithTimeout(ctx, c.suggestTimeout)
	defer cancel()

	suggestions, err := c.enhancer.Suggest(callCtx, summarize(wf))
	if err != nil {
		return nil
	}
	return suggestions
}

// summarize produces the compact graph description the suggestion
// prompt works from.
func summarize(wf *workflow.Workflow) string {
	summary := "Workflow: " + wf.Metadata.Name + "\nNodes:\n"
	for _, node := range wf.Nodes {
		summary += "- " + node.Name() + " (" + string(node.Kind) + ")\n"
	}
	summary += "Connections:\n"
	for _, conn := range wf.Connections {
		line := "- " + conn.SourceID + " -> " + conn.TargetID
		if conn.Label != "" {
			line += " [" + conn.Label + "]"
		}
		summary += line + "\n"
	}
	return summary
}
