package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wadevries/sps/internal/task"
)

// commentCmd implements "sps comment <task-id> <text...>".
func newCommentCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "comment <task-id> <text>...",
		Short: "Append a comment to a task's log",
		Long: `Append a comment to the task's append-only log. Comments are chained into
the log's checksum sequence like any other entry and survive even the
task's deletion.`,
		Example: `  sps comment a1b2c3d4-... "blocked on the upstream fix"
  sps --actor frank comment a1b2c3d4-... waiting for review`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := requireTaskID(args, 0)
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args[1:], " "))

			r, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			var entry *task.LogEntry
			err = retryConflicts(flagRetries, func() error {
				var mutErr error
				entry, mutErr = r.svc.AddComment(ctx, id, r.actor(), text)
				return mutErr
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Added comment #%d to task %s\n", entry.Seq, shortID(id))
			if jsonOut {
				return printJSON(cmd, entry)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the created log entry as JSON")

	return cmd
}

func init() {
	rootCmd.AddCommand(newCommentCmd())
}
