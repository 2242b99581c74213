package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wadevries/sps/internal/task"
)

// ---------------------------------------------------------------------------
// Color palette
// ---------------------------------------------------------------------------

// ColorPrimary is the accent color for titles and the focused panel border.
var ColorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7B78FF"}

// ColorAccent marks selected rows and active elements.
var ColorAccent = lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"}

// ColorSuccess renders completed tasks and clean results.
var ColorSuccess = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#4ADE80"}

// ColorWarning renders deletions and other attention-worthy events.
var ColorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// ColorError renders failed mutations and verification findings.
var ColorError = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}

// ColorMuted is the subdued foreground for secondary text: ids, timestamps,
// assignee labels.
var ColorMuted = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

// ColorSubtle provides very low-contrast dividers.
var ColorSubtle = lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#4B5563"}

// ColorBorder is the resting panel border color.
var ColorBorder = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#374151"}

// ColorHighlight is the background for the tree cursor row.
var ColorHighlight = lipgloss.AdaptiveColor{Light: "#F3F4F6", Dark: "#1F2937"}

// ---------------------------------------------------------------------------
// Theme
// ---------------------------------------------------------------------------

// Theme holds the lipgloss styles for every dashboard component. Styles carry
// no Width or Height; the layout applies sizing at render time.
type Theme struct {
	// Title bar
	TitleBar     lipgloss.Style
	TitleVersion lipgloss.Style
	TitleHint    lipgloss.Style

	// PanelTitle is the shared one-line header style for the three panels
	// ("TASKS", "DETAIL", "EVENTS").
	PanelTitle lipgloss.Style

	// Task tree
	TreeContainer lipgloss.Style
	TreeItem         lipgloss.Style
	TreeSelected     lipgloss.Style
	TreeSelectedBlur lipgloss.Style
	TreeDone         lipgloss.Style
	TreeMeta         lipgloss.Style

	// Detail panel
	DetailContainer lipgloss.Style
	DetailHeader    lipgloss.Style
	DetailLabel     lipgloss.Style
	DetailValue     lipgloss.Style

	// Event feed
	EventContainer lipgloss.Style
	EventTimestamp lipgloss.Style
	EventMessage   lipgloss.Style

	// Status bar
	StatusBar       lipgloss.Style
	StatusKey       lipgloss.Style
	StatusValue     lipgloss.Style
	StatusSeparator lipgloss.Style

	// Progress bars
	ProgressFilled  lipgloss.Style
	ProgressEmpty   lipgloss.Style
	ProgressPercent lipgloss.Style

	// Task state glyphs
	StateDone      lipgloss.Style
	StateOpen      lipgloss.Style
	StateComposite lipgloss.Style

	// General
	HelpKey   lipgloss.Style
	HelpDesc  lipgloss.Style
	ErrorText lipgloss.Style
}

// DefaultTheme returns the dashboard theme. Every color is a
// lipgloss.AdaptiveColor, so light and dark terminals both get readable
// contrast without configuration.
func DefaultTheme() Theme {
	return Theme{
		TitleBar: lipgloss.NewStyle().
			Bold(true).
			Background(ColorPrimary).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1),

		TitleVersion: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#E0DFFF", Dark: "#C4C2FF"}),

		TitleHint: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#C7C5FF", Dark: "#A8A5FF"}),

		PanelTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		TreeContainer: lipgloss.NewStyle().
			PaddingLeft(1),

		TreeItem: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#E5E7EB"}),

		TreeSelected: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			Background(ColorHighlight),

		TreeSelectedBlur: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#374151", Dark: "#D1D5DB"}).
			Background(ColorHighlight),

		TreeDone: lipgloss.NewStyle().
			Foreground(ColorMuted).
			Strikethrough(true),

		TreeMeta: lipgloss.NewStyle().
			Foreground(ColorMuted),

		DetailContainer: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1),

		DetailHeader: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		DetailLabel: lipgloss.NewStyle().
			Foreground(ColorMuted),

		DetailValue: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F9FAFB"}),

		EventContainer: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1),

		EventTimestamp: lipgloss.NewStyle().
			Foreground(ColorMuted),

		EventMessage: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F9FAFB"}),

		StatusBar: lipgloss.NewStyle().
			Background(ColorHighlight).
			Foreground(ColorMuted).
			Padding(0, 1),

		StatusKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		StatusValue: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#374151", Dark: "#D1D5DB"}),

		StatusSeparator: lipgloss.NewStyle().
			Foreground(ColorSubtle),

		ProgressFilled: lipgloss.NewStyle().
			Foreground(ColorAccent),

		ProgressEmpty: lipgloss.NewStyle().
			Foreground(ColorSubtle),

		ProgressPercent: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent),

		StateDone: lipgloss.NewStyle().
			Foreground(ColorSuccess),

		StateOpen: lipgloss.NewStyle().
			Foreground(ColorMuted),

		StateComposite: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		HelpKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		HelpDesc: lipgloss.NewStyle().
			Foreground(ColorMuted),

		ErrorText: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError),
	}
}

// TaskGlyph returns the one-cell state symbol for a task row:
//
//   - "✓" for a completed task
//   - "◆" for an open composite (its completion is derived)
//   - "○" for an open atomic task
func (t Theme) TaskGlyph(tk *task.Task) string {
	switch {
	case tk.Complete:
		return t.StateDone.Render("✓")
	case !tk.IsAtomic():
		return t.StateComposite.Render("◆")
	default:
		return t.StateOpen.Render("○")
	}
}

// ProgressBar renders a text progress bar of the given total width using
// U+2588 (FULL BLOCK) for the filled part and U+2591 (LIGHT SHADE) for the
// rest. filled is clamped to [0.0, 1.0]; width <= 0 yields "".
func (t Theme) ProgressBar(filled float64, width int) string {
	if width <= 0 {
		return ""
	}
	if filled < 0.0 {
		filled = 0.0
	}
	if filled > 1.0 {
		filled = 1.0
	}

	filledCount := int(filled * float64(width))
	emptyCount := width - filledCount

	var sb strings.Builder
	if filledCount > 0 {
		sb.WriteString(t.ProgressFilled.Render(strings.Repeat("█", filledCount)))
	}
	if emptyCount > 0 {
		sb.WriteString(t.ProgressEmpty.Render(strings.Repeat("░", emptyCount)))
	}
	return sb.String()
}

// clip truncates s to fit within max visible columns, appending an ellipsis
// "…" (1 column wide) when something was cut. Widths are measured with
// lipgloss.Width so double-width runes count correctly. max <= 0 yields "".
func clip(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= max {
		return s
	}
	// Walk runes until we consume max-1 columns, leaving room for "…".
	target := max - 1
	var sb strings.Builder
	col := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if col+rw > target {
			break
		}
		sb.WriteRune(r)
		col += rw
	}
	sb.WriteString("…")
	return sb.String()
}

// shortID shows the first eight characters of a task or context id, enough
// to tell tasks apart in a panel without eating the row.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
