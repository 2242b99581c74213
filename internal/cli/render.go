package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wadevries/sps/internal/task"
)

// Styles shared by the task-facing commands. Colors follow the same palette
// as config debug output; --no-color strips them via the Ascii profile.
var (
	styleDoneMark = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	styleStatus   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	styleAssignee = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // bright blue
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // dark gray
)

const titleWidth = 48 // column width for task titles in list output

// shortID returns the leading segment of a UUID, enough to paste back into
// commands unambiguously in practice while keeping rows narrow.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// checkbox renders the completion marker for a task.
func checkbox(tk *task.Task) string {
	if tk.Complete {
		return styleDoneMark.Render("[x]")
	}
	return "[ ]"
}

// assigneeLabel renders who a task belongs to: the stored assignee for an
// atomic task, the derived set for a composite one.
func assigneeLabel(tk *task.Task) string {
	people := tk.Assignees()
	if len(people) == 0 {
		return ""
	}
	parts := make([]string, len(people))
	for i, p := range people {
		parts[i] = "@" + p
	}
	return styleAssignee.Render(strings.Join(parts, ","))
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// renderTaskLine renders one task as a single row:
//
//	a1b2c3d4 [ ] fix the login redirect      in-progress @frank
func renderTaskLine(tk *task.Task) string {
	var sb strings.Builder
	sb.WriteString(styleDim.Render(shortID(tk.ID)))
	sb.WriteString(" ")
	sb.WriteString(checkbox(tk))
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%-*s", titleWidth, truncate(tk.Title, titleWidth)))
	sb.WriteString(" ")
	sb.WriteString(styleStatus.Render(tk.Status))
	if lbl := assigneeLabel(tk); lbl != "" {
		sb.WriteString(" ")
		sb.WriteString(lbl)
	}
	if n := len(tk.DependencyIDs); n > 0 {
		sb.WriteString(" ")
		sb.WriteString(styleDim.Render(fmt.Sprintf("(%d deps)", n)))
	}
	return sb.String()
}

// renderTaskList renders a slice of tasks, one row each.
func renderTaskList(tasks []*task.Task) string {
	var sb strings.Builder
	for _, tk := range tasks {
		sb.WriteString(renderTaskLine(tk))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderTree renders the subtrees rooted at rootIDs using box-drawing
// connectors. byID must contain every reachable task; missing children are
// skipped rather than invented.
func renderTree(byID map[string]*task.Task, rootIDs []string) string {
	var sb strings.Builder
	for _, id := range rootIDs {
		tk, ok := byID[id]
		if !ok {
			continue
		}
		sb.WriteString(renderTreeNode(tk))
		sb.WriteString("\n")
		renderChildren(&sb, byID, tk, "")
	}
	return sb.String()
}

func renderChildren(sb *strings.Builder, byID map[string]*task.Task, parent *task.Task, prefix string) {
	last := len(parent.ChildIDs) - 1
	for i, childID := range parent.ChildIDs {
		child, ok := byID[childID]
		if !ok {
			continue
		}
		connector, childPrefix := "├── ", prefix+"│   "
		if i == last {
			connector, childPrefix = "└── ", prefix+"    "
		}
		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(renderTreeNode(child))
		sb.WriteString("\n")
		renderChildren(sb, byID, child, childPrefix)
	}
}

// renderTreeNode renders one tree entry. Composite tasks show their derived
// child completion count instead of a dependency count.
func renderTreeNode(tk *task.Task) string {
	var sb strings.Builder
	sb.WriteString(checkbox(tk))
	sb.WriteString(" ")
	sb.WriteString(styleDim.Render(shortID(tk.ID)))
	sb.WriteString(" ")
	sb.WriteString(tk.Title)
	sb.WriteString(" ")
	sb.WriteString(styleStatus.Render(tk.Status))
	if lbl := assigneeLabel(tk); lbl != "" {
		sb.WriteString(" ")
		sb.WriteString(lbl)
	}
	return sb.String()
}

// completionCount returns done and total over the direct children of a
// composite task, for progress summaries.
func completionCount(byID map[string]*task.Task, tk *task.Task) (done, total int) {
	for _, id := range tk.ChildIDs {
		child, ok := byID[id]
		if !ok {
			continue
		}
		total++
		if child.Complete {
			done++
		}
	}
	return done, total
}

// indexTasks builds an id lookup over a task slice.
func indexTasks(tasks []*task.Task) map[string]*task.Task {
	byID := make(map[string]*task.Task, len(tasks))
	for _, tk := range tasks {
		byID[tk.ID] = tk
	}
	return byID
}

// sortByCreation orders tasks oldest first. UUIDv7 ids sort by creation time,
// so this is stable even for tasks created in the same instant.
func sortByCreation(tasks []*task.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
