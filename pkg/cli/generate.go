package cli

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/flowforge/pkg/ai"
	"github.com/dshills/flowforge/pkg/compiler"
	fferrors "github.com/dshills/flowforge/pkg/errors"
	"github.com/dshills/flowforge/pkg/storage"
	"github.com/dshills/flowforge/pkg/workflow"
)

// NewGenerateCommand creates the generate command
func NewGenerateCommand() *cobra.Command {
	var (
		outputDir    string
		withAI       bool
		withSuggest  bool
		noDeployment bool
		model        string
	)

	cmd := &cobra.Command{
		Use:   "generate <workflow-file>",
		Short: "Compile a workflow into a deployable bundle",
		Long: `Validate a workflow graph, compile it, and write the full artifact
bundle to disk: the GCP Workflows definition, scaffolded source for
each compute node, and deployment templates (Cloud Build, Terraform,
deploy script).

With --ai the scaffolded sources are rewritten by Gemini; the plain
scaffold is kept whenever enhancement fails. Store the API key first
with: flowforge credential set-key

Examples:
  flowforge generate my-workflow.yaml
  flowforge generate my-workflow.yaml -o ./out
  flowforge generate my-workflow.yaml --ai --suggest`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := LoadWorkflowFromFile(args[0])
			if err != nil {
				_, _ = fmt.Fprintln(cmd.OutOrStderr(), "✗ Failed to parse workflow")
				return err
			}

			var compilerOpts []compiler.Option
			if withAI || withSuggest {
				enhancer, err := newEnhancer(model)
				if err != nil {
					return err
				}
				compilerOpts = append(compilerOpts, compiler.WithAI(enhancer))
			}

			start := time.Now()
			tree, report, err := compiler.New(compilerOpts...).Generate(cmd.Context(), wf, compiler.Options{
				AIEnhance:         withAI,
				AISuggest:         withSuggest,
				IncludeDeployment: !noDeployment,
			})
			if err != nil {
				return err
			}

			if report.HasBlockingErrors() {
				printReport(cmd, report)
				return fmt.Errorf("workflow validation failed: %d error(s)", len(report.Errors()))
			}

			for _, f := range report.Warnings() {
				_, _ = fmt.Fprintf(cmd.OutOrStderr(), "⚠ %s\n", f)
			}

			baseDir := outputDir
			if baseDir == "" {
				baseDir = GetConfigDir()
			}
			writer, err := storage.NewBundleWriter(baseDir)
			if err != nil {
				return fferrors.NewOperationalError("bundle_write", wf.ID, "", err)
			}
			bundleDir, err := writer.Write(tree)
			if err != nil {
				return fferrors.NewOperationalError("bundle_write", wf.ID, "", err)
			}

			recordGeneration(wf.ID, wf.Metadata.Name, tree, report, time.Since(start))

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Generated %d files in %s\n", len(tree.Files), bundleDir)
			for _, path := range tree.Paths() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path)
			}

			for _, note := range tree.Notes {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "⚠ %s\n", note)
			}

			if len(tree.Suggestions) > 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nSuggestions:")
				for _, s := range tree.Suggestions {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", s)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default: config directory)")
	cmd.Flags().BoolVar(&withAI, "ai", false, "Enhance scaffolded sources with Gemini")
	cmd.Flags().BoolVar(&withSuggest, "suggest", false, "Include AI workflow improvement suggestions")
	cmd.Flags().BoolVar(&noDeployment, "no-deployment", false, "Skip cloudbuild, terraform, and deploy script templates")
	cmd.Flags().StringVar(&model, "model", "", "Gemini model name (default: "+ai.DefaultModel+")")

	return cmd
}

// newEnhancer builds the Gemini client from the stored credential.
func newEnhancer(model string) (ai.Enhancer, error) {
	apiKey, err := storage.NewKeyringCredentialStore().Get(storage.GeminiAPIKeyName)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) {
			return nil, fmt.Errorf("no Gemini API key stored; run: flowforge credential set-key")
		}
		return nil, err
	}

	var opts []ai.GeminiOption
	if model != "" {
		opts = append(opts, ai.WithModel(model))
	}
	return ai.NewGeminiClient(apiKey, opts...)
}

// recordGeneration writes the history entry. History is advisory, so a
// failure only logs in debug mode and never fails the command.
func recordGeneration(workflowID, name string, tree *compiler.ArtifactTree, report *workflow.Report, elapsed time.Duration) {
	repo, err := storage.NewSQLiteHistoryRepository(GetHistoryDBPath())
	if err != nil {
		log.Printf("history unavailable: %v", err)
		return
	}
	defer func() { _ = repo.Close() }()

	rec := &storage.GenerationRecord{
		WorkflowID:   workflowID,
		WorkflowName: name,
		FileCount:    len(tree.Files),
		StepCount:    tree.Steps,
		ErrorCount:   len(report.Errors()),
		WarningCount: len(report.Warnings()),
		Duration:     elapsed,
	}
	if err := repo.Record(rec); err != nil {
		log.Printf("failed to record generation: %v", err)
	}
}
