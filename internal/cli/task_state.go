package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wadevries/sps/internal/task"
)

func init() {
	taskCmd.AddCommand(newTaskCompleteCmd())
	taskCmd.AddCommand(newTaskReopenCmd())
	taskCmd.AddCommand(newTaskAssignCmd())
	taskCmd.AddCommand(newTaskStatusCmd())
}

// ---- task complete ------------------------------------------------------------

func newTaskCompleteCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "complete <task-id>",
		Aliases: []string{"done"},
		Short:   "Mark a task complete",
		Long: `Mark an atomic task complete. Fails while the task still has incomplete
dependencies; composite tasks derive completion from their children and
cannot be completed directly.`,
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

			var tk *task.Task
			err = retryConflicts(flagRetries, func() error {
				var mutErr error
				tk, mutErr = r.svc.SetComplete(ctx, id, true, r.actor())
				return mutErr
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Completed task %s: %s\n", shortID(tk.ID), tk.Title)
			if jsonOut {
				return printJSON(cmd, tk)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the updated task as JSON")

	return cmd
}

// ---- task reopen ---------------------------------------------------------------

func newTaskReopenCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "reopen <task-id>",
		Short: "Mark a completed task incomplete again",
		Long: `Clear the completion flag on an atomic task. Tasks that already depend on
it are untouched: completion gates are checked when completing, never
retroactively.`,
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

			var tk *task.Task
			err = retryConflicts(flagRetries, func() error {
				var mutErr error
				tk, mutErr = r.svc.SetComplete(ctx, id, false, r.actor())
				return mutErr
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Reopened task %s: %s\n", shortID(tk.ID), tk.Title)
			if jsonOut {
				return printJSON(cmd, tk)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the updated task as JSON")

	return cmd
}

// ---- task assign ---------------------------------------------------------------

func newTaskAssignCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "assign <task-id> [person]",
		Short: "Assign a task to a person (or clear the assignee)",
		Long: `Assign an atomic task. With no person argument the assignee is cleared
and the task becomes open again. Composite tasks cannot be assigned; their
assignee set is derived from their atomic descendants.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := requireTaskID(args, 0)
			if err != nil {
				return err
			}
			person := ""
			if len(args) == 2 {
				person = strings.TrimSpace(args[1])
			}

			r, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			var tk *task.Task
			err = retryConflicts(flagRetries, func() error {
				var mutErr error
				tk, mutErr = r.svc.SetAssignee(ctx, id, person, r.actor())
				return mutErr
			})
			if err != nil {
				return err
			}

			if person == "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Unassigned task %s: %s\n", shortID(tk.ID), tk.Title)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Assigned task %s to %s\n", shortID(tk.ID), person)
			}
			if jsonOut {
				return printJSON(cmd, tk)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the updated task as JSON")

	return cmd
}

// ---- task status ---------------------------------------------------------------

func newTaskStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Set a task's status",
		Long: `Set the status field. The value must be one of the configured status set
([statuses].values in sps.toml); status is independent of completion.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := requireTaskID(args, 0)
			if err != nil {
				return err
			}
			value := strings.TrimSpace(args[1])

			r, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			var tk *task.Task
			err = retryConflicts(flagRetries, func() error {
				var mutErr error
				tk, mutErr = r.svc.SetStatus(ctx, id, value, r.actor())
				return mutErr
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Task %s is now %s\n", shortID(tk.ID), tk.Status)
			if jsonOut {
				return printJSON(cmd, tk)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the updated task as JSON")

	return cmd
}
