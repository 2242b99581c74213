package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wadevries/sps/internal/task"
)

// contextCmd is the parent "context" namespace. Contexts form their own
// forest (work/backend, home/garden) and every task lives in exactly one.
var contextCmd = &cobra.Command{
	Use:     "context",
	Aliases: []string{"ctx"},
	Short:   "Manage contexts",
	Long: `Contexts are the named buckets tasks live in, arranged as a forest of
their own. Tasks always belong to exactly one context; queries can take a
context together with its whole subtree.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	contextCmd.AddCommand(newContextNewCmd())
	contextCmd.AddCommand(newContextLsCmd())
	contextCmd.AddCommand(newContextRenameCmd())
	contextCmd.AddCommand(newContextMoveCmd())
	rootCmd.AddCommand(contextCmd)
}

// ---- context new ---------------------------------------------------------------

func newContextNewCmd() *cobra.Command {
	var parentRef string

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("context name must not be empty")
			}

			r, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			parentID := ""
			if parentRef != "" {
				parent, resolveErr := r.resolveContext(ctx, parentRef)
				if resolveErr != nil {
					return resolveErr
				}
				parentID = parent.ID
			}

			c, err := r.svc.CreateContext(ctx, name, parentID)
			if err != nil {
				return err
			}

			path, pathErr := r.dir.Path(ctx, c.ID)
			if pathErr != nil {
				path = c.Name
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Created context %s (%s)\n", path, shortID(c.ID))
			fmt.Fprintln(cmd.OutOrStdout(), c.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&parentRef, "parent", "p", "", "Parent context (id or name)")

	return cmd
}

// ---- context ls ----------------------------------------------------------------

type contextLsFlags struct {
	Glob string
	JSON bool
}

func newContextLsCmd() *cobra.Command {
	var flags contextLsFlags

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List contexts with their task counts",
		Example: `  sps context ls
  sps context ls --glob "work/**"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			r, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			var all []*task.Context
			if flags.Glob != "" {
				all, err = r.dir.Match(ctx, flags.Glob)
			} else {
				all, err = r.dir.List(ctx)
			}
			if err != nil {
				return err
			}

			if flags.JSON {
				return printJSON(cmd, all)
			}

			if len(all) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No contexts found.")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, c := range all {
				path, pathErr := r.dir.Path(ctx, c.ID)
				if pathErr != nil {
					path = c.Name
				}
				tasks, listErr := r.svc.TasksInContext(ctx, c.ID, false)
				if listErr != nil {
					return listErr
				}
				open := 0
				for _, tk := range tasks {
					if !tk.Complete {
						open++
					}
				}
				fmt.Fprintf(out, "%s %-32s %s\n",
					styleDim.Render(shortID(c.ID)),
					path,
					styleDim.Render(fmt.Sprintf("%d tasks, %d open", len(tasks), open)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Glob, "glob", "", "Only contexts whose path matches this doublestar pattern")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output contexts as JSON")

	return cmd
}

// ---- context rename ------------------------------------------------------------

func newContextRenameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <context> <new-name>",
		Short: "Rename a context",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			newName := strings.TrimSpace(args[1])
			if newName == "" {
				return fmt.Errorf("context name must not be empty")
			}

			r, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			c, err := r.resolveContext(ctx, args[0])
			if err != nil {
				return err
			}
			oldName := c.Name

			renamed, err := r.svc.RenameContext(ctx, c.ID, newName)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Renamed context %s -> %s\n", oldName, renamed.Name)
			return nil
		},
	}

	return cmd
}

// ---- context move --------------------------------------------------------------

func newContextMoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <context> [new-parent]",
		Short: "Move a context under a new parent (or to the root)",
		Long: `Reparent a context. With no new parent the context becomes a root. Moving
a context under its own descendant is rejected.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			r, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			c, err := r.resolveContext(ctx, args[0])
			if err != nil {
				return err
			}

			newParentID := ""
			if len(args) == 2 {
				parent, resolveErr := r.resolveContext(ctx, args[1])
				if resolveErr != nil {
					return resolveErr
				}
				newParentID = parent.ID
			}

			moved, err := r.svc.ReparentContext(ctx, c.ID, newParentID)
			if err != nil {
				return err
			}

			path, pathErr := r.dir.Path(ctx, moved.ID)
			if pathErr != nil {
				path = moved.Name
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Context is now %s\n", path)
			return nil
		},
	}

	return cmd
}
