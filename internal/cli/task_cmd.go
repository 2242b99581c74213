package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/wadevries/sps/internal/planner"
	"github.com/wadevries/sps/internal/task"
)

// taskCmd is the parent "task" namespace command grouping everything that
// creates or inspects individual tasks.
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, inspect, and update tasks",
	Long:  "Create tasks, inspect them, and walk the subtask forest.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	taskCmd.AddCommand(newTaskNewCmd())
	taskCmd.AddCommand(newTaskShowCmd())
	taskCmd.AddCommand(newTaskListCmd())
	taskCmd.AddCommand(newTaskTreeCmd())
	rootCmd.AddCommand(taskCmd)
}

// ---- task new ----------------------------------------------------------------

// taskNewFlags holds the flag values for "task new".
type taskNewFlags struct {
	Description string
	Context     string
	Parent      string
	Status      string
	Assignee    string
	Estimate    int64
	Interactive bool
	JSON        bool
}

func newTaskNewCmd() *cobra.Command {
	var flags taskNewFlags

	cmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a task",
		Long: `Create a new atomic task. With no title the first line of the description
is used. With --parent the task is attached as a subtask and the parent's
completion and assignee become derived from its children.`,
		Example: `  # Quick capture into the default context
  sps task new "fix the login redirect"

  # Full form
  sps task new "upgrade postgres" -d "test 16 -> 17 on staging first" \
      --context work --assignee frank --estimate 90

  # Subtask of an existing task
  sps task new "write release notes" --parent a1b2c3d4-...

  # Interactive wizard
  sps task new -i`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskNew(cmd, args, &flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Description, "description", "d", "", "Task description (first line becomes the title if none is given)")
	cmd.Flags().StringVarP(&flags.Context, "context", "c", "", "Context id or name (default: the configured default context)")
	cmd.Flags().StringVar(&flags.Parent, "parent", "", "Parent task id to attach the new task under")
	cmd.Flags().StringVar(&flags.Status, "status", "", "Initial status (default: the configured default status)")
	cmd.Flags().StringVarP(&flags.Assignee, "assignee", "a", "", "Person the task is assigned to")
	cmd.Flags().Int64Var(&flags.Estimate, "estimate", 0, "Estimated minutes (stored verbatim, 0 = none)")
	cmd.Flags().BoolVarP(&flags.Interactive, "interactive", "i", false, "Fill in the task via an interactive form")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Print the created task as JSON on stdout")

	return cmd
}

func runTaskNew(cmd *cobra.Command, args []string, flags *taskNewFlags) error {
	ctx := cmd.Context()
	title := strings.TrimSpace(strings.Join(args, " "))

	r, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	if flags.Interactive {
		if err := runTaskForm(ctx, r, flags, &title); err != nil {
			return err
		}
	} else if title == "" && flags.Description == "" {
		return errors.New("a task needs a title or a description (or use --interactive)")
	}

	c, err := r.resolveContext(ctx, flags.Context)
	if err != nil {
		return err
	}

	req := planner.CreateTaskRequest{
		Title:            title,
		Description:      flags.Description,
		ParentID:         flags.Parent,
		ContextID:        c.ID,
		Status:           flags.Status,
		Assignee:         flags.Assignee,
		EstimatedMinutes: flags.Estimate,
		Actor:            r.actor(),
	}

	var created *task.Task
	err = retryConflicts(flagRetries, func() error {
		var createErr error
		created, createErr = r.svc.CreateTask(ctx, req)
		return createErr
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Created task %s: %s\n", shortID(created.ID), created.Title)
	if flags.JSON {
		return printJSON(cmd, created)
	}
	fmt.Fprintln(cmd.OutOrStdout(), created.ID)
	return nil
}

// runTaskForm fills flags and title from an interactive huh form. Defaults
// already set via flags survive as pre-filled values.
func runTaskForm(ctx context.Context, r *runtime, flags *taskNewFlags, title *string) error {
	// Make sure at least the default context exists so the select is never
	// empty on a fresh store.
	if _, err := r.defaultContext(ctx); err != nil {
		return err
	}
	all, err := r.dir.List(ctx)
	if err != nil {
		return fmt.Errorf("listing contexts: %w", err)
	}

	contextOptions := make([]huh.Option[string], 0, len(all))
	for _, c := range all {
		path, pathErr := r.dir.Path(ctx, c.ID)
		if pathErr != nil {
			path = c.Name
		}
		contextOptions = append(contextOptions, huh.NewOption(path, c.ID))
	}

	statusValues := r.statuses.Values()
	statusOptions := make([]huh.Option[string], 0, len(statusValues))
	for _, s := range statusValues {
		statusOptions = append(statusOptions, huh.NewOption(s, s))
	}
	if flags.Status == "" {
		flags.Status = r.statuses.Default()
	}

	rawEstimate := ""
	if flags.Estimate > 0 {
		rawEstimate = strconv.FormatInt(flags.Estimate, 10)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Description("Leave empty to use the first line of the description.").
				Value(title),
			huh.NewText().
				Title("Description").
				Value(&flags.Description),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Context").
				Options(contextOptions...).
				Value(&flags.Context),
			huh.NewSelect[string]().
				Title("Status").
				Options(statusOptions...).
				Value(&flags.Status),
			huh.NewInput().
				Title("Assignee").
				Description("Leave empty to keep the task open for anyone.").
				Value(&flags.Assignee),
			huh.NewInput().
				Title("Estimate (minutes)").
				Value(&rawEstimate).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					n, convErr := strconv.ParseInt(s, 10, 64)
					if convErr != nil || n < 0 {
						return errors.New("must be a non-negative integer")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("running task form: %w", err)
	}

	if strings.TrimSpace(*title) == "" && strings.TrimSpace(flags.Description) == "" {
		return errors.New("a task needs a title or a description")
	}
	if rawEstimate != "" {
		n, convErr := strconv.ParseInt(rawEstimate, 10, 64)
		if convErr != nil {
			return fmt.Errorf("parsing estimate: %w", convErr)
		}
		flags.Estimate = n
	}
	return nil
}

// ---- task show ----------------------------------------------------------------

type taskShowFlags struct {
	JSON bool
}

func newTaskShowCmd() *cobra.Command {
	var flags taskShowFlags

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskShow(cmd, args, &flags)
		},
	}

	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output the task as JSON")

	return cmd
}

func runTaskShow(cmd *cobra.Command, args []string, flags *taskShowFlags) error {
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

	tk, err := r.svc.Task(ctx, id)
	if err != nil {
		return err
	}

	if flags.JSON {
		return printJSON(cmd, tk)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", checkbox(tk), styleHeader.Render(tk.Title))
	fmt.Fprintf(out, "  id:        %s\n", tk.ID)
	if tk.Description != "" {
		fmt.Fprintf(out, "  description:\n")
		for _, line := range strings.Split(tk.Description, "\n") {
			fmt.Fprintf(out, "    %s\n", line)
		}
	}

	if path, pathErr := r.dir.Path(ctx, tk.ContextID); pathErr == nil {
		fmt.Fprintf(out, "  context:   %s\n", path)
	} else {
		fmt.Fprintf(out, "  context:   %s\n", tk.ContextID)
	}
	fmt.Fprintf(out, "  status:    %s\n", tk.Status)

	if people := tk.Assignees(); len(people) > 0 {
		fmt.Fprintf(out, "  assignee:  %s\n", strings.Join(people, ", "))
	}
	if tk.EstimatedMinutes > 0 {
		fmt.Fprintf(out, "  estimate:  %dm\n", tk.EstimatedMinutes)
	}
	if tk.ParentID != "" {
		fmt.Fprintf(out, "  parent:    %s\n", tk.ParentID)
	}

	if len(tk.ChildIDs) > 0 {
		children, childErr := r.svc.Children(ctx, tk.ID)
		if childErr != nil {
			return childErr
		}
		done, total := 0, len(children)
		for _, c := range children {
			if c.Complete {
				done++
			}
		}
		fmt.Fprintf(out, "  subtasks:  %d/%d done\n", done, total)
		for _, c := range children {
			fmt.Fprintf(out, "    %s\n", renderTaskLine(c))
		}
	}

	deps, err := r.svc.Dependencies(ctx, tk.ID)
	if err != nil {
		return err
	}
	if len(deps) > 0 {
		fmt.Fprintln(out, "  depends on:")
		for _, d := range deps {
			fmt.Fprintf(out, "    %s\n", renderTaskLine(d))
		}
	}

	dependents, err := r.svc.Dependents(ctx, tk.ID)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		fmt.Fprintln(out, "  needed by:")
		for _, d := range dependents {
			fmt.Fprintf(out, "    %s\n", renderTaskLine(d))
		}
	}

	fmt.Fprintf(out, "  created:   %s\n", tk.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "  updated:   %s\n", tk.UpdatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "  version:   %d\n", tk.Version)

	return nil
}

// ---- task list ----------------------------------------------------------------

type taskListFlags struct {
	Open     bool
	Assignee string
	Context  string
	Roots    bool
	Limit    int
	JSON     bool
}

func newTaskListCmd() *cobra.Command {
	var flags taskListFlags

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Long: `List tasks. The default view is every live task, newest first.
--open narrows to unassigned, incomplete atomic tasks (the "what could I
pick up" view); --assignee narrows to one person's plate.`,
		Example: `  sps task list
  sps task list --open
  sps task list --assignee frank
  sps task list --context work --recursive
  sps task list --roots`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskList(cmd, &flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Open, "open", false, "Only open tasks: incomplete, unassigned, atomic")
	cmd.Flags().StringVarP(&flags.Assignee, "assignee", "a", "", "Only tasks assigned to this person")
	cmd.Flags().StringVarP(&flags.Context, "context", "c", "", "Only tasks in this context (id or name)")
	cmd.Flags().BoolVar(&flags.Roots, "roots", false, "Only root tasks")
	cmd.Flags().IntVar(&flags.Limit, "limit", 0, "Stop after this many tasks (0 = all)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output tasks as JSON")

	// --context includes the whole context subtree when set together.
	cmd.Flags().Bool("recursive", false, "With --context, include nested contexts")

	return cmd
}

func runTaskList(cmd *cobra.Command, flags *taskListFlags) error {
	ctx := cmd.Context()
	if flags.Open && flags.Assignee != "" {
		return errors.New("--open and --assignee are mutually exclusive: open means unassigned")
	}

	r, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	var tasks []*task.Task
	newestFirst := false
	switch {
	case flags.Context != "":
		c, resolveErr := r.resolveContext(ctx, flags.Context)
		if resolveErr != nil {
			return resolveErr
		}
		recursive, _ := cmd.Flags().GetBool("recursive")
		tasks, err = r.svc.TasksInContext(ctx, c.ID, recursive)
	case flags.Open:
		tasks, err = r.svc.OpenTasks(ctx, flags.Limit)
	case flags.Assignee != "":
		tasks, err = r.svc.AssignedTasks(ctx, flags.Assignee, flags.Limit)
	case flags.Roots:
		tasks, err = r.svc.Roots(ctx)
	default:
		tasks, err = r.svc.AllTasks(ctx)
		newestFirst = true
	}
	if err != nil {
		return err
	}
	if newestFirst {
		slices.Reverse(tasks)
	}

	// OpenTasks and AssignedTasks apply the limit themselves; the remaining
	// views are trimmed here.
	if flags.Limit > 0 && len(tasks) > flags.Limit {
		tasks = tasks[:flags.Limit]
	}

	if flags.JSON {
		return printJSON(cmd, tasks)
	}

	if len(tasks) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No tasks found.")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTaskList(tasks))
	return nil
}

// ---- task tree ----------------------------------------------------------------

type taskTreeFlags struct {
	Context string
}

func newTaskTreeCmd() *cobra.Command {
	var flags taskTreeFlags

	cmd := &cobra.Command{
		Use:   "tree [task-id]",
		Short: "Show the subtask forest",
		Long: `Render tasks as a tree. With no argument every root task is shown;
with a task id only that subtree is rendered.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskTree(cmd, args, &flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Context, "context", "c", "", "Only roots in this context (id or name)")

	return cmd
}

func runTaskTree(cmd *cobra.Command, args []string, flags *taskTreeFlags) error {
	ctx := cmd.Context()

	r, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	all, err := r.svc.AllTasks(ctx)
	if err != nil {
		return err
	}
	byID := indexTasks(all)

	var rootIDs []string
	switch {
	case len(args) == 1:
		id := strings.TrimSpace(args[0])
		if _, ok := byID[id]; !ok {
			return &planner.NotFoundError{Kind: "task", ID: id}
		}
		rootIDs = []string{id}
	case flags.Context != "":
		c, resolveErr := r.resolveContext(ctx, flags.Context)
		if resolveErr != nil {
			return resolveErr
		}
		rootIDs = rootsInContext(all, c.ID)
	default:
		rootIDs = rootsOf(all)
	}

	if len(rootIDs) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No tasks found.")
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), renderTree(byID, rootIDs))
	return nil
}

// rootsOf returns the ids of parentless tasks, oldest first.
func rootsOf(all []*task.Task) []string {
	roots := make([]*task.Task, 0, len(all))
	for _, tk := range all {
		if tk.ParentID == "" {
			roots = append(roots, tk)
		}
	}
	sortByCreation(roots)
	ids := make([]string, len(roots))
	for i, tk := range roots {
		ids[i] = tk.ID
	}
	return ids
}

// rootsInContext narrows rootsOf to one context.
func rootsInContext(all []*task.Task, contextID string) []string {
	roots := make([]*task.Task, 0, len(all))
	for _, tk := range all {
		if tk.ParentID == "" && tk.ContextID == contextID {
			roots = append(roots, tk)
		}
	}
	sortByCreation(roots)
	ids := make([]string, len(roots))
	for i, tk := range roots {
		ids[i] = tk.ID
	}
	return ids
}
