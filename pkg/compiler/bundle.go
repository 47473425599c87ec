package compiler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/flowforge/pkg/ai"
	"github.com/dshills/flowforge/pkg/workflow"
)

// ArtifactTree is the full bundle produced by one Generate call:
// definition text, scaffold files, and infra templates, keyed by path
// relative to the bundle root.
type ArtifactTree struct {
	WorkflowID string            `json:"workflow_id"`
	Files      map[string]string `json:"files"`
	// Steps counts the steps in the emitted definition, including
	// nested ones.
	Steps int `json:"steps"`
	// Notes records degraded-but-successful conditions, one line per
	// event (an AI enhancement that fell back, for example).
	Notes []string `json:"notes,omitempty"`
	// Suggestions are optional AI workflow improvement hints.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Empty reports whether the tree carries no files.
func (t *ArtifactTree) Empty() bool {
	return t == nil || len(t.Files) == 0
}

// Paths returns the file paths in sorted order.
func (t *ArtifactTree) Paths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Assembler combines emitter output, scaffolds, and deployment
// templates into an artifact tree. Pure composition: validation never
// happens here, and the assembler is not invoked when upstream stages
// aborted.
type Assembler struct {
	enhancer ai.Enhancer
	// enhanceTimeout bounds each individual enhancement call.
	enhanceTimeout time.Duration
	// enhanceLimit bounds concurrent enhancement calls.
	enhanceLimit int
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithEnhancer attaches the AI enhancement collaborator.
func WithEnhancer(e ai.Enhancer) AssemblerOption {
	return func(a *Assembler) { a.enhancer = e }
}

// WithEnhanceTimeout overrides the per-call enhancement timeout.
func WithEnhanceTimeout(d time.Duration) AssemblerOption {
	return func(a *Assembler) {
		if d > 0 {
			a.enhanceTimeout = d
		}
	}
}

// NewAssembler creates an Assembler.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		enhanceTimeout: 20 * time.Second,
		enhanceLimit:   4,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AssembleOptions controls bundle contents.
type AssembleOptions struct {
	// AIEnhance passes scaffold sources through the enhancement
	// collaborator. Failures degrade to the unmodified scaffold.
	AIEnhance bool
	// IncludeDeployment adds infra and deploy templates to the tree.
	IncludeDeployment bool
}

// Assemble builds the artifact tree for a compiled workflow.
func (a *Assembler) Assemble(ctx context.Context, definitionText string, artifacts []*SourceArtifact, wf *workflow.Workflow, opts AssembleOptions) *ArtifactTree {
	tree := &ArtifactTree{
		WorkflowID: wf.ID,
		Files:      map[string]string{"workflow.yaml": definitionText},
	}

	if opts.AIEnhance && a.enhancer != nil {
		a.enhanceAll(ctx, artifacts, wf)
	}

	for _, artifact := range artifacts {
		for path, content := range artifact.Files {
			tree.Files[path] = content
		}
		tree.Notes = append(tree.Notes, artifact.Notes...)
	}

	if opts.IncludeDeployment {
		for path, content := range deploymentFiles(wf) {
			tree.Files[path] = content
		}
	}

	return tree
}

// enhanceAll rewrites every scaffold source file through the enhancer
// with bounded concurrency. Each call gets its own timeout; a failure
// or timeout attaches a note and keeps the original scaffold, and
// never cancels sibling tasks or the assembly.
func (a *Assembler) enhanceAll(ctx context.Context, artifacts []*SourceArtifact, wf *workflow.Workflow) {
	// Plain errgroup for the limit; task errors are handled per file,
	// so the group never observes one.
	g := &errgroup.Group{}
	g.SetLimit(a.enhanceLimit)

	// Guards artifact Files and Notes, which tasks for the same
	// artifact share.
	var mu sync.Mutex

	for _, artifact := range artifacts {
		node := wf.Node(artifact.NodeID)
		hints := enhanceHints(node, artifact)

		paths := make([]string, 0, len(artifact.Files))
		for path := range artifact.Files {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		for _, path := range paths {
			if !enhanceable(path) {
				continue
			}
			art, p, source := artifact, path, artifact.Files[path]
			g.Go(func() error {
				callCtx, cancel := context.WithTimeout(ctx, a.enhanceTimeout)
				defer cancel()

				enhanced, err := a.enhancer.Enhance(callCtx, source, hints)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					art.Notes = append(art.Notes,
						fmt.Sprintf("ai enhancement skipped for %s: %v", p, err))
					return nil
				}
				art.Files[p] = enhanced
				return nil
			})
		}
	}

	_ = g.Wait()
}

// enhanceable reports whether a scaffold file is worth sending to the
// model. Dependency manifests are left alone.
func enhanceable(path string) bool {
	return strings.HasSuffix(path, ".py") || strings.HasSuffix(path, "Dockerfile")
}

func enhanceHints(node *workflow.Node, artifact *SourceArtifact) ai.Hints {
	hints := ai.Hints{
		NodeName: artifact.Name,
		Runtime:  artifact.Manifest.Runtime,
	}
	if node != nil {
		hints.Kind = string(node.Kind)
		hints.Description, _ = node.ConfigString("description")
		hints.Prompt, _ = node.ConfigString("ai_prompt")
	}
	return hints
}
