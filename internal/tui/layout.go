package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// MinTerminalWidth is the minimum terminal width (in columns) required for
// the full dashboard layout to render correctly. Below this threshold
// RenderTooSmall is used instead.
const MinTerminalWidth = 80

// MinTerminalHeight is the minimum terminal height (in rows) required for the
// full dashboard layout. Below this threshold RenderTooSmall is used instead.
const MinTerminalHeight = 24

// MinTreeWidth and MaxTreeWidth bound the task tree column. The tree takes
// 40% of the terminal width, clamped to this range, so titles stay readable
// on wide terminals without starving the detail panel on narrow ones.
const (
	MinTreeWidth = 28
	MaxTreeWidth = 48
)

// TitleBarHeight is the number of terminal rows consumed by the title bar.
const TitleBarHeight = 1

// StatusBarHeight is the number of terminal rows consumed by the status bar.
const StatusBarHeight = 1

// BorderWidth is the width (in columns) of the vertical divider between the
// task tree and the right-hand panels.
const BorderWidth = 1

// ---------------------------------------------------------------------------
// PanelDimensions
// ---------------------------------------------------------------------------

// PanelDimensions holds the computed width and height for a single panel.
// Both values are in terminal cell units (columns / rows). Zero values mean
// the layout has not yet been computed via Resize.
type PanelDimensions struct {
	Width  int
	Height int
}

// ---------------------------------------------------------------------------
// Layout
// ---------------------------------------------------------------------------

// Layout computes and holds the dimensions of every dashboard panel. It must
// be updated on every tea.WindowSizeMsg by calling Resize; the resulting
// PanelDimensions are then applied inside View to size the lipgloss
// containers.
//
// Layout diagram:
//
//	+---------------------------------------------------+
//	| Title Bar (1 line)                                 |
//	+---------------+-----------------------------------+
//	| Task Tree     | Detail (upper right)               |
//	| (clamped 40%) |                                    |
//	|               |-----------------------------------|
//	|               | Event Feed (lower right)           |
//	+---------------+-----------------------------------+
//	| Status Bar (1 line)                                |
//	+---------------------------------------------------+
type Layout struct {
	termWidth   int
	termHeight  int
	detailSplit float64 // fraction of contentHeight allocated to the detail panel

	// TitleBar holds the computed dimensions for the title bar.
	TitleBar PanelDimensions
	// Tree holds the computed dimensions for the task tree panel.
	Tree PanelDimensions
	// Detail holds the computed dimensions for the upper-right detail panel.
	Detail PanelDimensions
	// EventLog holds the computed dimensions for the lower-right event feed.
	EventLog PanelDimensions
	// StatusBar holds the computed dimensions for the status bar.
	StatusBar PanelDimensions
}

// NewLayout returns a Layout with a detailSplit of 0.6 (the detail panel
// takes 60% of the content height). All PanelDimensions fields are
// zero-initialised until the first Resize call.
func NewLayout() Layout {
	return Layout{
		detailSplit: 0.6,
	}
}

// Resize recalculates all PanelDimensions for the given terminal size.
//
// If the terminal is smaller than the minimum supported dimensions
// (MinTerminalWidth x MinTerminalHeight) the method records the raw
// dimensions (so IsTooSmall and TerminalSize can report the actual values)
// and returns false without updating the panel dimensions.
//
// Returns true when the layout was successfully recalculated.
func (l *Layout) Resize(width, height int) bool {
	l.termWidth = width
	l.termHeight = height

	if width < MinTerminalWidth || height < MinTerminalHeight {
		return false
	}

	// Rows available between the title bar and the status bar.
	contentHeight := l.termHeight - TitleBarHeight - StatusBarHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	treeWidth := l.termWidth * 2 / 5
	if treeWidth < MinTreeWidth {
		treeWidth = MinTreeWidth
	}
	if treeWidth > MaxTreeWidth {
		treeWidth = MaxTreeWidth
	}

	// Columns available to the right of the tree + divider.
	mainWidth := l.termWidth - treeWidth - BorderWidth
	if mainWidth < 1 {
		mainWidth = 1
	}

	// Split the content height between the detail panel (top) and the event
	// feed (bottom).
	detailHeight := int(float64(contentHeight) * l.detailSplit)
	if detailHeight < 1 {
		detailHeight = 1
	}

	eventHeight := contentHeight - detailHeight
	if eventHeight < 1 {
		eventHeight = 1
	}

	l.TitleBar = PanelDimensions{Width: l.termWidth, Height: TitleBarHeight}
	l.Tree = PanelDimensions{Width: treeWidth, Height: contentHeight}
	l.Detail = PanelDimensions{Width: mainWidth, Height: detailHeight}
	l.EventLog = PanelDimensions{Width: mainWidth, Height: eventHeight}
	l.StatusBar = PanelDimensions{Width: l.termWidth, Height: StatusBarHeight}

	return true
}

// IsTooSmall returns true when the last known terminal dimensions fall below
// the minimum supported size (MinTerminalWidth x MinTerminalHeight).
func (l Layout) IsTooSmall() bool {
	return l.termWidth < MinTerminalWidth || l.termHeight < MinTerminalHeight
}

// TerminalSize returns the most recently recorded terminal dimensions in
// (width, height) order. Both values are zero until the first Resize call.
func (l Layout) TerminalSize() (int, int) {
	return l.termWidth, l.termHeight
}

// Render assembles the complete dashboard frame from the five pre-rendered
// content strings, applying exact panel sizing and the vertical divider. The
// theme parameter supplies the divider color.
//
// The content strings should be produced by the individual panel sub-models
// (tree, detail, etc.) and must NOT already have width/height applied; Render
// sizes them to match the computed PanelDimensions.
func (l Layout) Render(theme Theme, titleBar, tree, detail, eventLog, statusBar string) string {
	titleBarView := lipgloss.NewStyle().
		Width(l.TitleBar.Width).
		Height(l.TitleBar.Height).
		Render(titleBar)

	treeView := lipgloss.NewStyle().
		Width(l.Tree.Width).
		Height(l.Tree.Height).
		Render(tree)

	detailView := lipgloss.NewStyle().
		Width(l.Detail.Width).
		Height(l.Detail.Height).
		Render(detail)

	eventView := lipgloss.NewStyle().
		Width(l.EventLog.Width).
		Height(l.EventLog.Height).
		Render(eventLog)

	statusView := lipgloss.NewStyle().
		Width(l.StatusBar.Width).
		Height(l.StatusBar.Height).
		Render(statusBar)

	// Build the vertical divider: one "|" per row, spanning the content height.
	dividerContent := strings.Repeat("|\n", l.Tree.Height-1) + "|"
	divider := lipgloss.NewStyle().
		Width(BorderWidth).
		Height(l.Tree.Height).
		Foreground(ColorBorder).
		Render(dividerContent)

	// Stack the two right-side panels vertically, then join with tree + divider.
	mainArea := lipgloss.JoinVertical(lipgloss.Left, detailView, eventView)
	middle := lipgloss.JoinHorizontal(lipgloss.Top, treeView, divider, mainArea)

	return lipgloss.JoinVertical(lipgloss.Left, titleBarView, middle, statusView)
}

// RenderTooSmall returns a message instructing the user to enlarge their
// terminal. When a terminal size has been recorded the message is centered
// within the available area using lipgloss.Place; otherwise the raw
// theme.ErrorText style is applied without placement.
func (l Layout) RenderTooSmall(theme Theme) string {
	msg := "Terminal too small.\nPlease resize to at least 80x24."
	styled := theme.ErrorText.Render(msg)

	if l.termWidth <= 0 || l.termHeight <= 0 {
		return styled
	}

	return lipgloss.Place(l.termWidth, l.termHeight, lipgloss.Center, lipgloss.Center, styled)
}
