package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wadevries/sps/internal/task"
)

type logFlags struct {
	Comments bool
	JSON     bool
}

// newLogCmd implements "sps log <task-id>": the task's append-only audit
// trail, oldest first.
func newLogCmd() *cobra.Command {
	var flags logFlags

	cmd := &cobra.Command{
		Use:   "log <task-id>",
		Short: "Show a task's audit log",
		Long: `Print every log entry recorded for a task: structured field changes and
free-text comments, in append order. The log survives task deletion, so
this also works for ids that no longer resolve to a live task.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := requireTaskID(args, 0)
			if err != nil {
				return err
			}

			r, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			entries, err := r.svc.Log(ctx, id)
			if err != nil {
				return err
			}

			if flags.Comments {
				kept := entries[:0]
				for _, e := range entries {
					if e.IsComment() {
						kept = append(kept, e)
					}
				}
				entries = kept
			}

			if flags.JSON {
				return printJSON(cmd, entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No log entries.")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintln(out, renderLogEntry(e))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.Comments, "comments", false, "Only show comments")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output entries as JSON")

	return cmd
}

func init() {
	rootCmd.AddCommand(newLogCmd())
}

// renderLogEntry renders one audit entry:
//
//	#2  2026-08-25 14:10  frank  status: todo -> in-progress
//	#3  2026-08-25 14:12  grace  comment: should we backport this?
func renderLogEntry(e *task.LogEntry) string {
	ts := e.Timestamp.Format("2006-01-02 15:04")
	head := fmt.Sprintf("%s  %s  %s  ", styleDim.Render(fmt.Sprintf("#%-3d", e.Seq)), ts, e.Author)

	if e.IsComment() {
		return head + styleDim.Render("comment: ") + e.Text
	}

	switch {
	case e.OldValue == "":
		return head + fmt.Sprintf("%s: %s", e.Field, e.NewValue)
	case e.NewValue == "":
		return head + fmt.Sprintf("%s: %s cleared", e.Field, e.OldValue)
	default:
		return head + fmt.Sprintf("%s: %s -> %s", e.Field, e.OldValue, e.NewValue)
	}
}
