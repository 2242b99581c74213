package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wadevries/sps/internal/task"
)

// ---------------------------------------------------------------------------
// TaskRelations
// ---------------------------------------------------------------------------

// TaskRelations groups the snapshot-derived neighbours of the selected task.
// The App assembles it from the in-memory snapshot index so the detail panel
// never queries the store itself.
type TaskRelations struct {
	// ContextPath is the slash-joined name path of the task's context.
	ContextPath string
	// Parent is the enclosing composite, nil for roots.
	Parent *task.Task
	// Children are the direct subtasks in the parent's child order.
	Children []*task.Task
	// Dependencies are the tasks this one depends on.
	Dependencies []*task.Task
	// Dependents are the tasks that depend on this one.
	Dependents []*task.Task
}

// ---------------------------------------------------------------------------
// DetailModel
// ---------------------------------------------------------------------------

// DetailModel renders the selected task in the upper-right panel: its
// fields, subtask progress, dependency edges, and the tail of its audit log.
// The body scrolls through a bubbles/viewport when it exceeds the panel
// height.
//
// DetailModel follows Bubble Tea's Elm architecture: Update returns a new
// value, and View is a pure function of the model state.
type DetailModel struct {
	theme   Theme
	width   int
	height  int
	focused bool

	task     *task.Task
	rel      TaskRelations
	log      []*task.LogEntry
	viewport viewport.Model
}

// NewDetailModel creates an empty detail panel.
func NewDetailModel(theme Theme) DetailModel {
	return DetailModel{
		theme:    theme,
		viewport: viewport.New(0, 0),
	}
}

// SetDimensions updates the panel width and height and resizes the internal
// viewport. The viewport height is (height - 1) to reserve one row for the
// panel header.
func (d *DetailModel) SetDimensions(width, height int) {
	d.width = width
	d.height = height

	vpHeight := height - 1
	if vpHeight < 0 {
		vpHeight = 0
	}
	d.viewport.Width = width
	d.viewport.Height = vpHeight

	d.rebuildContent()
}

// SetFocused sets whether the detail panel currently holds keyboard focus.
func (d *DetailModel) SetFocused(focused bool) {
	d.focused = focused
}

// SetTask replaces the displayed task and its relations. The audit log is
// cleared until the matching TaskLogMsg arrives; the viewport scrolls back
// to the top.
func (d *DetailModel) SetTask(tk *task.Task, rel TaskRelations) {
	d.task = tk
	d.rel = rel
	d.log = nil
	d.rebuildContent()
	d.viewport.GotoTop()
}

// SetLog attaches audit log entries to the displayed task. Entries for a
// task other than the current one are dropped as stale.
func (d *DetailModel) SetLog(taskID string, entries []*task.LogEntry) {
	if d.task == nil || d.task.ID != taskID {
		return
	}
	d.log = entries
	d.rebuildContent()
}

// Clear empties the panel, used when the last task is deleted.
func (d *DetailModel) Clear() {
	d.task = nil
	d.rel = TaskRelations{}
	d.log = nil
	d.rebuildContent()
}

// TaskID returns the id of the displayed task, or "" when empty.
func (d DetailModel) TaskID() string {
	if d.task == nil {
		return ""
	}
	return d.task.ID
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

// Update processes incoming tea.Msg values and returns the updated model and
// any follow-up command.
//
// Handled messages:
//   - FocusChangedMsg — updates the focused flag
//   - tea.KeyMsg      — viewport scrolling when focused
func (d DetailModel) Update(msg tea.Msg) (DetailModel, tea.Cmd) {
	switch msg := msg.(type) {
	case FocusChangedMsg:
		d.focused = msg.Panel == FocusDetail

	case tea.KeyMsg:
		if d.focused {
			return d.handleKey(msg)
		}
	}

	return d, nil
}

// handleKey routes navigation key events to the viewport.
func (d DetailModel) handleKey(msg tea.KeyMsg) (DetailModel, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		d.viewport.ScrollUp(1)
	case tea.KeyDown:
		d.viewport.ScrollDown(1)
	case tea.KeyPgUp:
		d.viewport.PageUp()
	case tea.KeyPgDown:
		d.viewport.PageDown()
	case tea.KeyHome:
		d.viewport.GotoTop()
	case tea.KeyEnd:
		d.viewport.GotoBottom()
	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "k":
			d.viewport.ScrollUp(1)
		case "j":
			d.viewport.ScrollDown(1)
		case "g":
			d.viewport.GotoTop()
		case "G":
			d.viewport.GotoBottom()
		}
	default:
	}

	return d, nil
}

// ---------------------------------------------------------------------------
// Content
// ---------------------------------------------------------------------------

// rebuildContent regenerates the viewport body from the current task state.
func (d *DetailModel) rebuildContent() {
	if d.task == nil {
		d.viewport.SetContent("")
		return
	}

	tk := d.task
	var sb strings.Builder

	title := clip(tk.Title, d.width-4)
	sb.WriteString(plainGlyph(tk) + " " + d.theme.DetailHeader.Render(title))
	sb.WriteString("\n")

	meta := shortID(tk.ID) + " · v" + fmt.Sprint(tk.Version)
	if d.rel.ContextPath != "" {
		meta += " · " + d.rel.ContextPath
	}
	sb.WriteString(d.theme.DetailLabel.Render(meta))
	sb.WriteString("\n\n")

	if tk.Description != "" {
		sb.WriteString(d.theme.DetailValue.Render(tk.Description))
		sb.WriteString("\n\n")
	}

	sb.WriteString(d.field("status", tk.Status))
	assignees := tk.Assignees()
	if len(assignees) > 0 {
		sb.WriteString(d.field("assignee", strings.Join(assignees, ", ")))
	}
	if tk.EstimatedMinutes > 0 {
		sb.WriteString(d.field("estimate", fmt.Sprintf("%dm", tk.EstimatedMinutes)))
	}
	if d.rel.Parent != nil {
		sb.WriteString(d.field("parent", d.rel.Parent.Title))
	}
	sb.WriteString(d.field("created", tk.CreatedAt.Format("2006-01-02 15:04")))
	sb.WriteString(d.field("updated", tk.UpdatedAt.Format("2006-01-02 15:04")))

	if len(d.rel.Children) > 0 {
		done := 0
		for _, c := range d.rel.Children {
			if c.Complete {
				done++
			}
		}
		sb.WriteString("\n")
		sb.WriteString(d.theme.DetailLabel.Render(fmt.Sprintf("subtasks %d/%d done", done, len(d.rel.Children))))
		sb.WriteString("\n")
		d.taskList(&sb, d.rel.Children)
	}

	if len(d.rel.Dependencies) > 0 {
		sb.WriteString("\n")
		sb.WriteString(d.theme.DetailLabel.Render("depends on"))
		sb.WriteString("\n")
		d.taskList(&sb, d.rel.Dependencies)
	}

	if len(d.rel.Dependents) > 0 {
		sb.WriteString("\n")
		sb.WriteString(d.theme.DetailLabel.Render("needed by"))
		sb.WriteString("\n")
		d.taskList(&sb, d.rel.Dependents)
	}

	if len(d.log) > 0 {
		sb.WriteString("\n")
		sb.WriteString(d.theme.DetailLabel.Render("history"))
		sb.WriteString("\n")
		for _, e := range d.log {
			sb.WriteString("  " + d.logLine(e))
			sb.WriteString("\n")
		}
	}

	d.viewport.SetContent(sb.String())
}

// field renders one aligned "label  value" row.
func (d DetailModel) field(label, value string) string {
	return d.theme.DetailLabel.Render(fmt.Sprintf("%-9s", label)) + " " + d.theme.DetailValue.Render(value) + "\n"
}

// taskList renders related tasks as indented glyph+title rows.
func (d *DetailModel) taskList(sb *strings.Builder, tasks []*task.Task) {
	for _, tk := range tasks {
		line := "  " + d.theme.TaskGlyph(tk) + " " + clip(tk.Title, d.width-8)
		if tk.Assignee != "" {
			line += d.theme.TreeMeta.Render(" @" + tk.Assignee)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

// logLine renders one audit entry as "15:04 author  body". Change entries
// follow the CLI log rendering: "field: new" when set from empty, "field:
// old cleared" when cleared, "field: old -> new" otherwise.
func (d DetailModel) logLine(e *task.LogEntry) string {
	ts := d.theme.EventTimestamp.Render(e.Timestamp.Format("01-02 15:04"))

	var body string
	switch {
	case e.Kind == task.KindComment:
		body = "comment: " + e.Text
	case e.OldValue == "":
		body = fmt.Sprintf("%s: %s", e.Field, e.NewValue)
	case e.NewValue == "":
		body = fmt.Sprintf("%s: %s cleared", e.Field, e.OldValue)
	default:
		body = fmt.Sprintf("%s: %s -> %s", e.Field, e.OldValue, e.NewValue)
	}

	return ts + " " + d.theme.TreeMeta.Render(e.Author) + "  " + d.theme.DetailValue.Render(body)
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

// View renders the detail panel as a string. It returns an empty string when
// dimensions have not been set and a centred placeholder when no task is
// selected. When the panel has focus a highlighted border colour is used.
func (d DetailModel) View() string {
	if d.width <= 0 || d.height <= 0 {
		return ""
	}

	var sb strings.Builder

	header := d.theme.PanelTitle.Render("DETAIL")
	sb.WriteString(header)
	sb.WriteString("\n")

	if d.task == nil {
		placeholder := lipgloss.NewStyle().Foreground(ColorMuted).Render("No task selected")
		sb.WriteString(lipgloss.Place(d.width, d.height-1, lipgloss.Center, lipgloss.Center, placeholder))
	} else {
		sb.WriteString(d.viewport.View())
	}

	content := sb.String()

	containerStyle := d.theme.DetailContainer
	if d.focused {
		containerStyle = containerStyle.
			BorderForeground(ColorPrimary)
	}

	return containerStyle.
		Width(d.width).
		Render(content)
}
