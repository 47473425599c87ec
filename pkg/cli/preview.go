package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/flowforge/pkg/compiler"
)

// NewPreviewCommand creates the preview command
func NewPreviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <workflow-file>",
		Short: "Preview the compiled workflow definition",
		Long: `Validate a workflow graph and print the GCP Workflows definition
it would compile to, without generating source scaffolds or writing any
files.

Examples:
  flowforge preview my-workflow.yaml
  flowforge preview my-workflow.yaml > workflow.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := LoadWorkflowFromFile(args[0])
			if err != nil {
				_, _ = fmt.Fprintln(cmd.OutOrStderr(), "✗ Failed to parse workflow")
				return err
			}

			text, report, err := compiler.New().Preview(cmd.Context(), wf)
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

			_, _ = fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}

	return cmd
}
