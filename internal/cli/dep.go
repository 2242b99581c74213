package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wadevries/sps/internal/task"
)

// depCmd is the parent "dep" namespace for dependency-edge commands.
var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage dependency edges between tasks",
	Long: `Dependencies order completion: a task cannot be completed while any task
it depends on is incomplete. Edges form a directed acyclic graph over the
same ids as the subtask forest; an edge that would close a cycle is
rejected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	depCmd.AddCommand(newDepAddCmd())
	depCmd.AddCommand(newDepRmCmd())
	depCmd.AddCommand(newDepLsCmd())
	rootCmd.AddCommand(depCmd)
}

// ---- dep add -------------------------------------------------------------------

func newDepAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <task-id> <depends-on-id>",
		Short: "Add a dependency edge",
		Long:  "Record that the first task depends on the second. Adding an existing edge is a no-op.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fromID, err := requireTaskID(args, 0)
			if err != nil {
				return err
			}
			toID, err := requireTaskID(args, 1)
			if err != nil {
				return err
			}

			r, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			err = retryConflicts(flagRetries, func() error {
				_, mutErr := r.svc.AddDependency(ctx, fromID, toID, r.actor())
				return mutErr
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Task %s now depends on %s\n", shortID(fromID), shortID(toID))
			return nil
		},
	}

	return cmd
}

// ---- dep rm --------------------------------------------------------------------

func newDepRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <task-id> <depends-on-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a dependency edge",
		Long: `Remove a dependency edge. Removal never revisits past completions: a task
completed while the edge was satisfied stays complete.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fromID, err := requireTaskID(args, 0)
			if err != nil {
				return err
			}
			toID, err := requireTaskID(args, 1)
			if err != nil {
				return err
			}

			r, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			err = retryConflicts(flagRetries, func() error {
				_, mutErr := r.svc.RemoveDependency(ctx, fromID, toID, r.actor())
				return mutErr
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Task %s no longer depends on %s\n", shortID(fromID), shortID(toID))
			return nil
		},
	}

	return cmd
}

// ---- dep ls --------------------------------------------------------------------

type depLsFlags struct {
	Dependents bool
	JSON       bool
}

func newDepLsCmd() *cobra.Command {
	var flags depLsFlags

	cmd := &cobra.Command{
		Use:     "ls <task-id>",
		Aliases: []string{"list"},
		Short:   "List a task's dependencies",
		Long:    "List the tasks a task depends on, or with --dependents the tasks that depend on it.",
		Args:    cobra.ExactArgs(1),
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

			var tasks []*task.Task
			if flags.Dependents {
				tasks, err = r.svc.Dependents(ctx, id)
			} else {
				tasks, err = r.svc.Dependencies(ctx, id)
			}
			if err != nil {
				return err
			}

			if flags.JSON {
				return printJSON(cmd, tasks)
			}
			if len(tasks) == 0 {
				if flags.Dependents {
					fmt.Fprintln(cmd.ErrOrStderr(), "Nothing depends on this task.")
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), "This task has no dependencies.")
				}
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTaskList(tasks))
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.Dependents, "dependents", false, "List dependents instead of dependencies")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output tasks as JSON")

	return cmd
}
