package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusBarModel manages the bottom status bar. It shows the project name,
// overall completion with a small progress bar, the selected task, the actor
// mutations are attributed to, and when the last snapshot was taken. The
// view renders all fields in a single line with styled separators.
//
// StatusBarModel follows Bubble Tea's Elm architecture: Update returns a new
// value, and View is a pure function of the model state.
type StatusBarModel struct {
	theme Theme
	width int

	project string
	actor   string

	// Dynamic state updated by incoming messages.
	done     int
	total    int
	selected string // short id of the task under the tree cursor
	syncedAt time.Time
}

// NewStatusBarModel creates a StatusBarModel for the given project and actor.
func NewStatusBarModel(theme Theme, project, actor string) StatusBarModel {
	return StatusBarModel{
		theme:   theme,
		project: project,
		actor:   actor,
	}
}

// SetWidth updates the status bar width. This should be called whenever the
// parent App processes a tea.WindowSizeMsg.
func (sb *StatusBarModel) SetWidth(width int) {
	sb.width = width
}

// SetSelected records the id of the task under the tree cursor; pass "" when
// nothing is selected.
func (sb *StatusBarModel) SetSelected(id string) {
	sb.selected = shortID(id)
}

// Update processes messages that affect status bar content and returns the
// updated model.
//
// Handled messages:
//   - SnapshotMsg — refreshes the completion counters and sync time.
func (sb StatusBarModel) Update(msg tea.Msg) StatusBarModel {
	if m, ok := msg.(SnapshotMsg); ok && m.Err == nil {
		done := 0
		for _, tk := range m.Tasks {
			if tk.Complete {
				done++
			}
		}
		sb.done = done
		sb.total = len(m.Tasks)
		sb.syncedAt = m.At
	}

	return sb
}

// View renders the status bar as a single-line string spanning the full
// terminal width. Segments are left-aligned, separated by styled dividers,
// with a "? help" hint right-aligned. If the total segment width exceeds the
// available width, optional segments are omitted right-to-left so the bar
// fits exactly in one line.
//
// Rendered format (approximate):
//
//	[project] | 12/34 done ████░░░░ | Task 1f0c9a2e | Actor frank | Synced 15:04:05 | ? help
func (sb StatusBarModel) View() string {
	if sb.width <= 0 {
		return ""
	}

	sep := sb.theme.StatusSeparator.Render(" | ")

	projectStr := sb.projectSegment()
	progressStr := sb.progressSegment()
	taskStr := sb.taskSegment()
	actorStr := sb.actorSegment()
	syncedStr := sb.syncedSegment()
	helpStr := sb.theme.HelpKey.Render("?") + " " + sb.theme.HelpDesc.Render("help")

	// Mandatory segments are always shown; optional segments are hidden
	// right-to-left when the bar gets narrow.
	type segment struct {
		text     string
		optional bool
	}

	segments := []segment{
		{text: projectStr, optional: false},
		{text: sep + progressStr, optional: false},
		{text: sep + taskStr, optional: true},
		{text: sep + actorStr, optional: true},
		{text: sep + syncedStr, optional: true},
	}

	// The StatusBar style has Padding(0,1), so the content area is two
	// columns narrower than the rendered bar.
	const barPadding = 2
	innerWidth := sb.width - barPadding
	if innerWidth < 0 {
		innerWidth = 0
	}

	helpSepStr := sep + helpStr
	helpSegWidth := lipgloss.Width(helpSepStr)

	mandatoryWidth := 0
	for _, seg := range segments {
		if !seg.optional {
			mandatoryWidth += lipgloss.Width(seg.text)
		}
	}

	optionalBudget := innerWidth - mandatoryWidth - helpSegWidth
	if optionalBudget < 0 {
		optionalBudget = 0
	}

	var leftParts []string
	optionalUsed := 0

	for _, seg := range segments {
		w := lipgloss.Width(seg.text)
		if !seg.optional {
			leftParts = append(leftParts, seg.text)
		} else if optionalUsed+w <= optionalBudget {
			leftParts = append(leftParts, seg.text)
			optionalUsed += w
		}
	}

	leftContent := strings.Join(leftParts, "")

	leftWidth := lipgloss.Width(leftContent)
	gap := innerWidth - leftWidth - helpSegWidth
	if gap < 0 {
		gap = 0
	}
	padding := strings.Repeat(" ", gap)

	barContent := leftContent + padding + helpSepStr

	// Width(sb.width) sets the total rendered width (lipgloss uses the
	// border-box model), and MaxHeight(1) prevents wrapping.
	return sb.theme.StatusBar.
		Width(sb.width).
		MaxHeight(1).
		Render(barContent)
}

// projectSegment returns the styled project label, e.g. "[website]".
func (sb StatusBarModel) projectSegment() string {
	label := sb.project
	if label == "" {
		label = "sps"
	}
	return sb.theme.StatusKey.Render("[" + label + "]")
}

// progressSegment returns the completion counter with a ten-cell progress
// bar, e.g. "12/34 done ███░░░░░░░".
func (sb StatusBarModel) progressSegment() string {
	counts := sb.theme.StatusValue.Render(fmt.Sprintf("%d/%d done", sb.done, sb.total))
	frac := 0.0
	if sb.total > 0 {
		frac = float64(sb.done) / float64(sb.total)
	}
	return counts + " " + sb.theme.ProgressBar(frac, 10)
}

// taskSegment returns the styled selected-task label.
// Returns "Task --" when nothing is selected.
func (sb StatusBarModel) taskSegment() string {
	id := sb.selected
	if id == "" {
		id = "--"
	}
	return sb.theme.StatusKey.Render("Task") + " " + sb.theme.StatusValue.Render(id)
}

// actorSegment returns the styled actor label.
func (sb StatusBarModel) actorSegment() string {
	actor := sb.actor
	if actor == "" {
		actor = "--"
	}
	return sb.theme.StatusKey.Render("Actor") + " " + sb.theme.StatusValue.Render(actor)
}

// syncedSegment returns the wall-clock time of the last snapshot.
// Returns "Synced --" before the first snapshot arrives.
func (sb StatusBarModel) syncedSegment() string {
	at := "--"
	if !sb.syncedAt.IsZero() {
		at = sb.syncedAt.Format("15:04:05")
	}
	return sb.theme.StatusKey.Render("Synced") + " " + sb.theme.StatusValue.Render(at)
}
