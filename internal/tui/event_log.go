package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wadevries/sps/internal/planner"
)

// MaxEventLogEntries is the maximum number of entries retained in the event
// feed. When the buffer is full the oldest entry is evicted to make room.
const MaxEventLogEntries = 500

// ---------------------------------------------------------------------------
// EventCategory
// ---------------------------------------------------------------------------

// EventCategory classifies an event feed entry for colour-coded display.
type EventCategory int

const (
	// EventInfo is the default category for informational messages.
	EventInfo EventCategory = iota
	// EventSuccess indicates a successful operation.
	EventSuccess
	// EventWarning indicates an attention-worthy change such as a deletion.
	EventWarning
	// EventError indicates a failure.
	EventError
)

// ---------------------------------------------------------------------------
// EventEntry
// ---------------------------------------------------------------------------

// EventEntry is a single entry in the event feed ring buffer.
type EventEntry struct {
	// Timestamp records when the event occurred.
	Timestamp time.Time
	// Category classifies the entry for display purposes.
	Category EventCategory
	// Message is the human-readable description of the event.
	Message string
}

// ---------------------------------------------------------------------------
// EventLogModel
// ---------------------------------------------------------------------------

// EventLogModel is the Bubble Tea sub-model for the scrollable event feed
// rendered in the lower-right area of the dashboard. It shows engine
// mutations as they happen, including ones made by concurrent CLI or API
// clients, in a bounded ring buffer driven through a bubbles/viewport.
//
// EventLogModel follows Bubble Tea's Elm architecture: Update returns a new
// value, and View is a pure function of the model state.
type EventLogModel struct {
	theme      Theme
	width      int
	height     int
	focused    bool
	entries    []EventEntry
	viewport   viewport.Model
	autoScroll bool
}

// NewEventLogModel creates an EventLogModel with auto-scroll enabled. The
// entries buffer starts empty.
func NewEventLogModel(theme Theme) EventLogModel {
	return EventLogModel{
		theme:      theme,
		autoScroll: true,
		viewport:   viewport.New(0, 0),
	}
}

// SetDimensions updates the panel width and height and resizes the internal
// viewport. The viewport height is (height - 1) to reserve one row for the
// panel header.
func (el *EventLogModel) SetDimensions(width, height int) {
	el.width = width
	el.height = height

	vpHeight := height - 1
	if vpHeight < 0 {
		vpHeight = 0
	}
	el.viewport.Width = width
	el.viewport.Height = vpHeight

	// Re-render content at the new width.
	el.rebuildContent()
}

// SetFocused sets whether the event feed currently holds keyboard focus.
func (el *EventLogModel) SetFocused(focused bool) {
	el.focused = focused
}

// AddEntry appends a new entry stamped with the current time. When the
// buffer exceeds MaxEventLogEntries the oldest entry is evicted. The
// viewport content is rebuilt after every insertion and, when autoScroll is
// enabled, the viewport is scrolled to the bottom.
func (el *EventLogModel) AddEntry(category EventCategory, message string) {
	el.addEntryAt(time.Now(), category, message)
}

func (el *EventLogModel) addEntryAt(ts time.Time, category EventCategory, message string) {
	el.entries = append(el.entries, EventEntry{
		Timestamp: ts,
		Category:  category,
		Message:   message,
	})

	if len(el.entries) > MaxEventLogEntries {
		el.entries = el.entries[len(el.entries)-MaxEventLogEntries:]
	}

	el.rebuildContent()
}

// Entries returns the buffered entries, oldest first.
func (el EventLogModel) Entries() []EventEntry {
	return el.entries
}

// rebuildContent replaces the viewport content with all formatted entries
// joined by newlines, then auto-scrolls if enabled.
func (el *EventLogModel) rebuildContent() {
	if len(el.entries) == 0 {
		el.viewport.SetContent("")
		return
	}

	lines := make([]string, len(el.entries))
	for i, e := range el.entries {
		lines[i] = el.formatEntry(e)
	}
	el.viewport.SetContent(strings.Join(lines, "\n"))

	if el.autoScroll {
		el.viewport.GotoBottom()
	}
}

// formatEntry renders a single EventEntry as "HH:MM:SS message". The
// timestamp is styled with EventTimestamp (muted colour) and the message is
// styled according to its category.
func (el EventLogModel) formatEntry(entry EventEntry) string {
	ts := el.theme.EventTimestamp.Render(entry.Timestamp.Format("15:04:05"))
	msg := el.categoryStyle(entry.Category).Render(entry.Message)
	return ts + " " + msg
}

// categoryStyle returns the lipgloss style appropriate for the given category.
func (el EventLogModel) categoryStyle(cat EventCategory) lipgloss.Style {
	switch cat {
	case EventSuccess:
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	case EventWarning:
		return lipgloss.NewStyle().Foreground(ColorWarning)
	case EventError:
		return lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	default: // EventInfo
		return el.theme.EventMessage
	}
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

// Update processes incoming tea.Msg values and returns the updated model and
// any follow-up command.
//
// Handled messages:
//   - EngineEventMsg  — classified and added to the feed
//   - ErrorMsg        — added as EventError
//   - FocusChangedMsg — updates the focused flag
//   - tea.KeyMsg      — viewport navigation when focused
func (el EventLogModel) Update(msg tea.Msg) (EventLogModel, tea.Cmd) {
	switch msg := msg.(type) {
	case EngineEventMsg:
		cat, text := classifyEngineEvent(msg.Event)
		ts := msg.Event.Time
		if ts.IsZero() {
			ts = time.Now()
		}
		el.addEntryAt(ts, cat, text)

	case ErrorMsg:
		text := msg.Detail
		if text == "" {
			text = msg.Source
		} else if msg.Source != "" {
			text = msg.Source + ": " + text
		}
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		el.addEntryAt(ts, EventError, text)

	case FocusChangedMsg:
		el.focused = msg.Panel == FocusEventLog

	case tea.KeyMsg:
		if el.focused {
			return el.handleKey(msg)
		}
	}

	return el, nil
}

// handleKey routes navigation key events to the viewport and manages the
// autoScroll flag. Scrolling away from the bottom disables auto-scroll;
// returning to the bottom re-enables it.
func (el EventLogModel) handleKey(msg tea.KeyMsg) (EventLogModel, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		el.viewport.ScrollUp(1)
		el.autoScroll = false

	case tea.KeyDown:
		el.viewport.ScrollDown(1)
		if el.viewport.AtBottom() {
			el.autoScroll = true
		}

	case tea.KeyPgUp:
		el.viewport.PageUp()
		el.autoScroll = false

	case tea.KeyPgDown:
		el.viewport.PageDown()
		if el.viewport.AtBottom() {
			el.autoScroll = true
		}

	case tea.KeyEnd:
		el.viewport.GotoBottom()
		el.autoScroll = true

	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "k":
			el.viewport.ScrollUp(1)
			el.autoScroll = false
		case "j":
			el.viewport.ScrollDown(1)
			if el.viewport.AtBottom() {
				el.autoScroll = true
			}
		case "g":
			el.viewport.GotoTop()
			el.autoScroll = false
		case "G":
			el.viewport.GotoBottom()
			el.autoScroll = true
		}

	default:
	}

	return el, nil
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

// View renders the event feed as a string. It returns an empty string when
// dimensions have not been set. The rendered output consists of a one-line
// header followed by the scrollable viewport. When the panel has focus a
// highlighted border colour is used.
func (el EventLogModel) View() string {
	if el.width <= 0 || el.height <= 0 {
		return ""
	}

	var sb strings.Builder

	header := el.theme.PanelTitle.Render("EVENTS")
	sb.WriteString(header)
	sb.WriteString("\n")

	if len(el.entries) == 0 {
		placeholder := lipgloss.NewStyle().Foreground(ColorMuted).Render("No events yet")
		sb.WriteString(placeholder)
	} else {
		sb.WriteString(el.viewport.View())
	}

	content := sb.String()

	containerStyle := el.theme.EventContainer
	if el.focused {
		containerStyle = containerStyle.
			BorderForeground(ColorPrimary)
	}

	return containerStyle.
		Width(el.width).
		Render(content)
}

// ---------------------------------------------------------------------------
// Classify helpers
// ---------------------------------------------------------------------------

// classifyEngineEvent maps a planner event to an EventCategory and a
// human-readable feed message such as "alice completed task 1f0c9a2e".
func classifyEngineEvent(ev planner.Event) (EventCategory, string) {
	actor := ev.Actor
	if actor == "" {
		actor = "someone"
	}
	id := shortID(ev.TaskID)

	switch ev.Kind {
	case planner.EventTaskCreated:
		return EventSuccess, fmt.Sprintf("%s created task %s", actor, id)
	case planner.EventTaskUpdated:
		return EventInfo, fmt.Sprintf("%s updated task %s", actor, id)
	case planner.EventTaskDeleted:
		return EventWarning, fmt.Sprintf("%s deleted task %s", actor, id)
	case planner.EventTaskCommented:
		return EventInfo, fmt.Sprintf("%s commented on task %s", actor, id)
	default:
		return EventInfo, fmt.Sprintf("%s: task %s", ev.Kind, id)
	}
}
