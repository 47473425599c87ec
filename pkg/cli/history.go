package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/flowforge/pkg/storage"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [workflow-id]",
		Short: "Show generation history",
		Long: `Show recent bundle generations, most recent first. With a workflow ID
only that workflow's generations are listed.

Examples:
  flowforge history
  flowforge history 4f1c9a2e-... --limit 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := storage.NewSQLiteHistoryRepository(GetHistoryDBPath())
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			var records []*storage.GenerationRecord
			if len(args) == 1 {
				records, err = repo.ListByWorkflow(args[0], limit)
			} else {
				records, err = repo.ListRecent(limit)
			}
			if err != nil {
				return err
			}

			if len(records) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No generations recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "WHEN\tWORKFLOW\tFILES\tSTEPS\tERRORS\tWARNINGS\tDURATION")
			for _, rec := range records {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
					rec.WorkflowName,
					rec.FileCount,
					rec.StepCount,
					rec.ErrorCount,
					rec.WarningCount,
					rec.Duration,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records to show")

	return cmd
}
