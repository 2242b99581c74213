package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wadevries/sps/internal/task"
)

// statusFlags holds the flag values for the status command.
type statusFlags struct {
	Context string // --context <ref>, empty means all root contexts
	JSON    bool   // --json for structured output
	Verbose bool   // --verbose for per-task details
}

// contextProgress aggregates completion over one context subtree.
type contextProgress struct {
	ContextID string
	Path      string
	Total     int
	Done      int
	ByStatus  map[string]int
	Open      int // incomplete, unassigned, atomic
}

// statusContextOutput is the JSON output type for a single context subtree.
type statusContextOutput struct {
	ContextID string         `json:"context_id"`
	Path      string         `json:"path"`
	Total     int            `json:"total"`
	Done      int            `json:"done"`
	Open      int            `json:"open"`
	ByStatus  map[string]int `json:"by_status"`
	Percent   float64        `json:"percent"`
}

// statusOutput is the top-level JSON output type for the status command.
type statusOutput struct {
	ProjectName string                `json:"project_name"`
	TotalTasks  int                   `json:"total_tasks"`
	TotalDone   int                   `json:"total_done"`
	OverallPct  float64               `json:"overall_percent"`
	Contexts    []statusContextOutput `json:"contexts"`
}

// newStatusCmd creates the "sps status" command.
func newStatusCmd() *cobra.Command {
	var flags statusFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show completion progress per context with progress bars",
		Long: `Display a summary of task progress, grouped by root context. Each context
subtree shows a progress bar, its completion fraction, and per-status
counts.

Use --verbose to see the tasks inside each context. Use --json for
structured output suitable for scripting.`,
		Example: `  # All root contexts
  sps status

  # One context subtree
  sps status --context work

  # Per-task details
  sps status --verbose

  # Structured JSON output
  sps status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Context, "context", "c", "", "Show a single context subtree (id or name)")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output structured JSON to stdout")
	cmd.Flags().BoolVar(&flags.Verbose, "verbose", false, "Show the tasks inside each context")

	return cmd
}

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

// runStatus is the command's RunE function. Loads the store, groups tasks by
// root context, computes progress, and renders output.
func runStatus(cmd *cobra.Command, flags statusFlags) error {
	ctx := cmd.Context()

	r, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	// Pick the context roots to report on.
	var roots []*task.Context
	if flags.Context != "" {
		c, resolveErr := r.resolveContext(ctx, flags.Context)
		if resolveErr != nil {
			return resolveErr
		}
		roots = []*task.Context{c}
	} else {
		all, listErr := r.dir.List(ctx)
		if listErr != nil {
			return fmt.Errorf("listing contexts: %w", listErr)
		}
		for _, c := range all {
			if c.ParentID == "" {
				roots = append(roots, c)
			}
		}
	}

	if len(roots) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No contexts found.")
		return nil
	}

	// Compute progress per root subtree, and keep the tasks around for the
	// --verbose listing.
	allProgress := make([]contextProgress, 0, len(roots))
	tasksByRoot := make(map[string][]*task.Task, len(roots))
	for _, root := range roots {
		tasks, listErr := r.svc.TasksInContext(ctx, root.ID, true)
		if listErr != nil {
			return listErr
		}
		path, pathErr := r.dir.Path(ctx, root.ID)
		if pathErr != nil {
			path = root.Name
		}
		allProgress = append(allProgress, buildContextProgress(root.ID, path, tasks))
		tasksByRoot[root.ID] = tasks
	}

	// JSON output mode: write to stdout.
	if flags.JSON {
		return renderStatusJSON(cmd, r.resolved.Config.Project.Name, allProgress)
	}

	out := cmd.OutOrStdout()
	projectName := r.resolved.Config.Project.Name
	if projectName == "" {
		projectName = "sps"
	}

	fmt.Fprintln(out, renderStatusSummary(allProgress, projectName))

	for _, prog := range allProgress {
		fmt.Fprintln(out, renderContextProgress(prog))

		if flags.Verbose {
			tasks := tasksByRoot[prog.ContextID]
			sortByCreation(tasks)
			for _, tk := range tasks {
				fmt.Fprintf(out, "  %s\n", renderTaskLine(tk))
			}
			if len(tasks) > 0 {
				fmt.Fprintln(out)
			}
		}
	}

	return nil
}

// buildContextProgress tallies one context subtree.
func buildContextProgress(contextID, path string, tasks []*task.Task) contextProgress {
	prog := contextProgress{
		ContextID: contextID,
		Path:      path,
		Total:     len(tasks),
		ByStatus:  make(map[string]int),
	}
	for _, tk := range tasks {
		if tk.Complete {
			prog.Done++
		} else {
			prog.ByStatus[tk.Status]++
			if tk.IsAtomic() && tk.Assignee == "" {
				prog.Open++
			}
		}
	}
	return prog
}

// renderStatusJSON serialises progress data to JSON and writes it to stdout.
func renderStatusJSON(cmd *cobra.Command, projectName string, allProgress []contextProgress) error {
	contexts := make([]statusContextOutput, 0, len(allProgress))
	for _, prog := range allProgress {
		pct := 0.0
		if prog.Total > 0 {
			pct = float64(prog.Done) / float64(prog.Total) * 100
		}
		contexts = append(contexts, statusContextOutput{
			ContextID: prog.ContextID,
			Path:      prog.Path,
			Total:     prog.Total,
			Done:      prog.Done,
			Open:      prog.Open,
			ByStatus:  prog.ByStatus,
			Percent:   pct,
		})
	}

	totalTasks, totalDone := 0, 0
	for _, prog := range allProgress {
		totalTasks += prog.Total
		totalDone += prog.Done
	}
	overallPct := 0.0
	if totalTasks > 0 {
		overallPct = float64(totalDone) / float64(totalTasks) * 100
	}

	return printJSON(cmd, statusOutput{
		ProjectName: projectName,
		TotalTasks:  totalTasks,
		TotalDone:   totalDone,
		OverallPct:  overallPct,
		Contexts:    contexts,
	})
}

// renderStatusSummary returns an overall summary header string.
//
//	sps Status - my-backlog
//	=======================
//	Overall: 45/87 tasks completed (51%)
func renderStatusSummary(allProgress []contextProgress, projectName string) string {
	totalTasks, totalDone := 0, 0
	for _, prog := range allProgress {
		totalTasks += prog.Total
		totalDone += prog.Done
	}

	overallPct := 0.0
	if totalTasks > 0 {
		overallPct = float64(totalDone) / float64(totalTasks) * 100
	}

	headerStyle := lipgloss.NewStyle().Bold(true)

	title := fmt.Sprintf("sps Status - %s", projectName)
	sep := strings.Repeat("=", len(title))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(title))
	sb.WriteString("\n")
	sb.WriteString(sep)
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Overall: %d/%d tasks completed (%.0f%%)", totalDone, totalTasks, overallPct))
	sb.WriteString("\n")

	return sb.String()
}

// renderContextProgress returns a styled string for a single context subtree
// with a progress bar, percentage, and completion fraction.
//
//	work
//	████████████░░░░░░░░ 60% (12/20)
//	  5 todo, 3 in-progress, 4 open
func renderContextProgress(prog contextProgress) string {
	const progressBarWidth = 40

	pathStyle := lipgloss.NewStyle().Bold(true)
	openStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow

	pct := 0.0
	if prog.Total > 0 {
		pct = float64(prog.Done) / float64(prog.Total)
	}

	// Build static progress bar using bubbles/progress ViewAs.
	// WithoutPercentage keeps the bar from duplicating the percentage we
	// render ourselves in the fraction line below.
	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(progressBarWidth),
		progress.WithoutPercentage(),
	)
	barStr := bar.ViewAs(pct)

	var sb strings.Builder
	sb.WriteString(pathStyle.Render(prog.Path))
	sb.WriteString("\n")
	sb.WriteString(barStr)
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%.0f%%", pct*100))
	sb.WriteString(" (")
	sb.WriteString(fmt.Sprintf("%d/%d", prog.Done, prog.Total))
	sb.WriteString(")")
	sb.WriteString("\n")

	// Per-status counts for the incomplete remainder, in stable order.
	statuses := make([]string, 0, len(prog.ByStatus))
	for s := range prog.ByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	var countParts []string
	for _, s := range statuses {
		countParts = append(countParts, fmt.Sprintf("%d %s", prog.ByStatus[s], s))
	}
	if prog.Open > 0 {
		countParts = append(countParts, openStyle.Render(fmt.Sprintf("%d open", prog.Open)))
	}

	if len(countParts) > 0 {
		sb.WriteString("  ")
		sb.WriteString(strings.Join(countParts, ", "))
		sb.WriteString("\n")
	}

	return sb.String()
}
