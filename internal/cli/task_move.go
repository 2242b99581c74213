package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wadevries/sps/internal/task"
)

func init() {
	taskCmd.AddCommand(newTaskMoveCmd())
	taskCmd.AddCommand(newTaskDetachCmd())
	taskCmd.AddCommand(newTaskRmCmd())
}

// ---- task move -----------------------------------------------------------------

func newTaskMoveCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "move <task-id> <parent-id>",
		Short: "Move a task under a new parent",
		Long: `Attach a task as a subtask of another task, detaching it from its current
parent first when it has one. Both the old and the new ancestor chain are
rederived in the same commit. Moving a task under one of its own
descendants is rejected.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			childID, err := requireTaskID(args, 0)
			if err != nil {
				return err
			}
			parentID, err := requireTaskID(args, 1)
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
				tk, mutErr = r.svc.AttachSubtask(ctx, parentID, childID, r.actor())
				return mutErr
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Moved task %s under %s\n", shortID(childID), shortID(parentID))
			if jsonOut {
				return printJSON(cmd, tk)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the moved task as JSON")

	return cmd
}

// ---- task detach ---------------------------------------------------------------

func newTaskDetachCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "detach <task-id>",
		Short: "Detach a task from its parent, making it a root",
		Long: `Remove a task from its parent's children. The former parent's completion
and assignee aggregates are rederived; a parent left childless becomes
atomic again.`,
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
				tk, mutErr = r.svc.DetachSubtask(ctx, id, r.actor())
				return mutErr
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Detached task %s: %s is now a root task\n", shortID(tk.ID), tk.Title)
			if jsonOut {
				return printJSON(cmd, tk)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the detached task as JSON")

	return cmd
}

// ---- task rm -------------------------------------------------------------------

func newTaskRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <task-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Long: `Delete a task. Tasks with children or with dependents are protected:
detach the children and remove the incoming dependency edges first. The
task's audit log survives deletion.`,
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

			err = retryConflicts(flagRetries, func() error {
				return r.svc.DeleteTask(ctx, id, r.actor())
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Deleted task %s\n", shortID(id))
			return nil
		},
	}

	return cmd
}
