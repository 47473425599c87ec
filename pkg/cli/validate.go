package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/flowforge/pkg/compiler"
	"github.com/dshills/flowforge/pkg/workflow"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow-file>",
		Short: "Validate a workflow graph",
		Long: `Validate a workflow graph file for correctness.

This checks:
- Reference integrity (connections point at existing nodes)
- Terminal shape (exactly one start, at least one end)
- Node reachability and paths to an end node
- Cycles outside for-loop constructs
- Branch cardinality per node kind
- Required node configuration and types
- Condition expression syntax
- Variable definition before use

Examples:
  flowforge validate my-workflow.yaml
  flowforge validate my-workflow.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := LoadWorkflowFromFile(args[0])
			if err != nil {
				_, _ = fmt.Fprintln(cmd.OutOrStderr(), "✗ Failed to parse workflow")
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Workflow parsed successfully")

			report := compiler.New().Validate(wf)
			printReport(cmd, report)

			if report.HasBlockingErrors() {
				return fmt.Errorf("workflow validation failed: %d error(s)", len(report.Errors()))
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Workflow '%s' is valid and ready to compile\n", wf.Metadata.Name)
			return nil
		},
	}

	return cmd
}

// printReport renders findings with errors first, then warnings.
func printReport(cmd *cobra.Command, report *workflow.Report) {
	for _, f := range report.Errors() {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), "✗ %s\n", f)
	}
	for _, f := range report.Warnings() {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "⚠ %s\n", f)
	}
	if len(report.Findings) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ No findings")
	}
}
