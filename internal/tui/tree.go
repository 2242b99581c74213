package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wadevries/sps/internal/task"
)

// ---------------------------------------------------------------------------
// TreeRow
// ---------------------------------------------------------------------------

// TreeRow is one visible row of the flattened task forest: the task plus its
// nesting depth (0 for roots). Collapsed subtrees contribute no rows.
type TreeRow struct {
	Task  *task.Task
	Depth int
}

// ---------------------------------------------------------------------------
// TreeModel
// ---------------------------------------------------------------------------

// TreeModel renders the task forest in the left panel and tracks the cursor.
// The forest is flattened depth-first into rows; roots are ordered oldest
// first and children follow their parent's child order, matching the CLI
// tree view. Selection is keyed by task id so it survives snapshot reloads.
type TreeModel struct {
	theme  Theme
	keyMap KeyMap

	width   int
	height  int
	focused bool

	// index maps task id to task for the current snapshot.
	index map[string]*task.Task
	roots []*task.Task
	rows  []TreeRow

	cursor int
	offset int

	// collapsed holds ids of composites whose subtree is hidden.
	collapsed map[string]bool

	doneCount  int
	totalCount int
}

// NewTreeModel creates an empty tree panel.
func NewTreeModel(theme Theme, keyMap KeyMap) TreeModel {
	return TreeModel{
		theme:     theme,
		keyMap:    keyMap,
		index:     make(map[string]*task.Task),
		collapsed: make(map[string]bool),
	}
}

// SetDimensions updates the panel size. This should be called whenever the
// parent App processes a tea.WindowSizeMsg.
func (m *TreeModel) SetDimensions(width, height int) {
	m.width = width
	m.height = height
	m.offset = adjustScroll(m.offset, m.cursor, m.visibleRows())
}

// SetFocused sets whether the tree has keyboard focus. When focused is
// false, navigation key events are ignored.
func (m *TreeModel) SetFocused(focused bool) {
	m.focused = focused
}

// SetTasks replaces the forest with a fresh snapshot. The cursor stays on
// the previously selected task when it still exists; otherwise it is clamped
// to the nearest row.
func (m *TreeModel) SetTasks(tasks []*task.Task) {
	keepID := ""
	if sel := m.Selected(); sel != nil {
		keepID = sel.ID
	}

	index := make(map[string]*task.Task, len(tasks))
	done := 0
	for _, tk := range tasks {
		index[tk.ID] = tk
		if tk.Complete {
			done++
		}
	}

	// A task whose parent is missing from the snapshot is shown as a root
	// rather than dropped.
	var roots []*task.Task
	for _, tk := range tasks {
		if tk.ParentID == "" {
			roots = append(roots, tk)
			continue
		}
		if _, ok := index[tk.ParentID]; !ok {
			roots = append(roots, tk)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if !roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].CreatedAt.Before(roots[j].CreatedAt)
		}
		return roots[i].ID < roots[j].ID
	})

	m.index = index
	m.roots = roots
	m.doneCount = done
	m.totalCount = len(tasks)

	m.rebuildRows(keepID)
}

// rebuildRows reflattens the forest and restores the cursor. keepID is the
// task that should stay selected; when it is hidden inside a collapsed
// subtree the cursor moves to its nearest visible ancestor.
func (m *TreeModel) rebuildRows(keepID string) {
	rows := make([]TreeRow, 0, len(m.index))
	var walk func(tk *task.Task, depth int)
	walk = func(tk *task.Task, depth int) {
		rows = append(rows, TreeRow{Task: tk, Depth: depth})
		if m.collapsed[tk.ID] {
			return
		}
		for _, childID := range tk.ChildIDs {
			child, ok := m.index[childID]
			if !ok {
				continue
			}
			walk(child, depth+1)
		}
	}
	for _, root := range m.roots {
		walk(root, 0)
	}
	m.rows = rows

	cursor := -1
	for id := keepID; id != "" && cursor < 0; {
		cursor = m.rowIndex(id)
		if cursor < 0 {
			parent, ok := m.index[id]
			if !ok {
				break
			}
			id = parent.ParentID
		}
	}
	if cursor < 0 {
		cursor = m.cursor
	}
	m.cursor = clampIdx(cursor, len(m.rows))
	m.offset = adjustScroll(m.offset, m.cursor, m.visibleRows())
}

// rowIndex returns the row position of the given task id, or -1 when the id
// is not currently visible.
func (m TreeModel) rowIndex(id string) int {
	for i, row := range m.rows {
		if row.Task.ID == id {
			return i
		}
	}
	return -1
}

// Selected returns the task under the cursor, or nil when the tree is empty.
func (m TreeModel) Selected() *task.Task {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].Task
}

// Rows returns the currently visible rows, oldest root first.
func (m TreeModel) Rows() []TreeRow {
	return m.rows
}

// Counts returns the number of completed tasks and the total task count in
// the current snapshot.
func (m TreeModel) Counts() (done, total int) {
	return m.doneCount, m.totalCount
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

// Update processes incoming tea.Msg values and returns the updated model.
//
// Handled messages:
//   - FocusChangedMsg — updates the focused flag
//   - tea.KeyMsg      — cursor movement and collapse/expand when focused
func (m TreeModel) Update(msg tea.Msg) (TreeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case FocusChangedMsg:
		m.focused = msg.Panel == FocusTree

	case tea.KeyMsg:
		if m.focused {
			m = m.handleKey(msg)
		}
	}

	return m, nil
}

// handleKey processes navigation key events when the tree is focused.
func (m TreeModel) handleKey(msg tea.KeyMsg) TreeModel {
	if len(m.rows) == 0 {
		return m
	}

	switch {
	case key.Matches(msg, m.keyMap.Up):
		m.cursor = clampIdx(m.cursor-1, len(m.rows))
	case key.Matches(msg, m.keyMap.Down):
		m.cursor = clampIdx(m.cursor+1, len(m.rows))
	case key.Matches(msg, m.keyMap.PageUp):
		m.cursor = clampIdx(m.cursor-m.visibleRows(), len(m.rows))
	case key.Matches(msg, m.keyMap.PageDown):
		m.cursor = clampIdx(m.cursor+m.visibleRows(), len(m.rows))
	case key.Matches(msg, m.keyMap.Home):
		m.cursor = 0
	case key.Matches(msg, m.keyMap.End):
		m.cursor = len(m.rows) - 1
	case key.Matches(msg, m.keyMap.Collapse):
		m = m.collapseSelected()
	case key.Matches(msg, m.keyMap.Expand):
		m = m.expandSelected()
	}

	m.offset = adjustScroll(m.offset, m.cursor, m.visibleRows())
	return m
}

// collapseSelected hides the subtree under the cursor. When the selected
// task has no expanded subtree the cursor jumps to its parent instead, so
// repeated presses walk up the hierarchy.
func (m TreeModel) collapseSelected() TreeModel {
	sel := m.Selected()
	if sel == nil {
		return m
	}

	if sel.IsComposite() && !m.collapsed[sel.ID] {
		m = m.setCollapsed(sel.ID, true)
		m.rebuildRows(sel.ID)
		return m
	}

	if sel.ParentID != "" {
		if idx := m.rowIndex(sel.ParentID); idx >= 0 {
			m.cursor = idx
		}
	}
	return m
}

// expandSelected reveals the subtree under the cursor.
func (m TreeModel) expandSelected() TreeModel {
	sel := m.Selected()
	if sel == nil || !sel.IsComposite() || !m.collapsed[sel.ID] {
		return m
	}
	m = m.setCollapsed(sel.ID, false)
	m.rebuildRows(sel.ID)
	return m
}

// setCollapsed records the collapse state for id. The map is copied to
// preserve value-receiver immutability.
func (m TreeModel) setCollapsed(id string, v bool) TreeModel {
	next := make(map[string]bool, len(m.collapsed)+1)
	for k, val := range m.collapsed {
		next[k] = val
	}
	if v {
		next[id] = true
	} else {
		delete(next, id)
	}
	m.collapsed = next
	return m
}

// clampIdx clamps idx to [0, n-1].
func clampIdx(idx, n int) int {
	if n <= 0 {
		return 0
	}
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// adjustScroll ensures the selected row is visible in the scroll window.
// It returns the updated scroll offset.
func adjustScroll(offset, selected, visible int) int {
	if visible <= 0 {
		return 0
	}
	if selected < offset {
		return selected
	}
	if selected >= offset+visible {
		return selected - visible + 1
	}
	return offset
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

// visibleRows returns the number of rows available for task entries inside
// the panel. Two rows are reserved for the header block (header text plus
// one blank line).
func (m TreeModel) visibleRows() int {
	const headerRows = 2
	h := m.height - headerRows
	if h < 0 {
		return 0
	}
	return h
}

// View renders the tree panel: a header with completion counts followed by
// the visible window of rows. The outer container applies left padding only;
// the layout applies exact sizing.
func (m TreeModel) View() string {
	var sb strings.Builder

	header := m.theme.PanelTitle.Render("TASKS")
	if m.totalCount > 0 {
		header += m.theme.TreeMeta.Render(fmt.Sprintf("  %d/%d done", m.doneCount, m.totalCount))
	}
	sb.WriteString(header)
	sb.WriteString("\n\n")

	if len(m.rows) == 0 {
		sb.WriteString(m.theme.TreeMeta.Render("No tasks yet."))
		sb.WriteString("\n")
		sb.WriteString(m.theme.TreeMeta.Render(`Create one: sps task new "..."`))
		return m.theme.TreeContainer.Render(sb.String())
	}

	visible := m.visibleRows()
	if visible < 1 {
		visible = 1
	}
	start := m.offset
	end := start + visible
	if end > len(m.rows) {
		end = len(m.rows)
	}

	for i := start; i < end; i++ {
		sb.WriteString(m.renderRow(m.rows[i], i == m.cursor))
		if i < end-1 {
			sb.WriteString("\n")
		}
	}

	return m.theme.TreeContainer.Render(sb.String())
}

// renderRow renders one task row: indentation, an expander for composites,
// the state glyph, the clipped title, and a compact suffix (direct child
// completion for composites, assignee for atomics).
func (m TreeModel) renderRow(row TreeRow, selected bool) string {
	tk := row.Task
	indent := strings.Repeat("  ", row.Depth)

	expander := "  "
	if tk.IsComposite() {
		if m.collapsed[tk.ID] {
			expander = "▸ "
		} else {
			expander = "▾ "
		}
	}

	suffix := ""
	if tk.IsComposite() {
		done := 0
		for _, childID := range tk.ChildIDs {
			if child, ok := m.index[childID]; ok && child.Complete {
				done++
			}
		}
		suffix = fmt.Sprintf(" %d/%d", done, len(tk.ChildIDs))
	} else if tk.Assignee != "" {
		suffix = " @" + tk.Assignee
	}

	// Budget: container padding (1) + indent + expander + glyph + space.
	titleWidth := m.width - 1 - len(indent) - 2 - 2 - len(suffix)
	if titleWidth < 1 {
		titleWidth = 1
	}
	title := clip(tk.Title, titleWidth)

	// The selected row is styled as a whole line so the highlight background
	// spans every segment.
	if selected {
		line := indent + expander + plainGlyph(tk) + " " + title + suffix
		if m.focused {
			return m.theme.TreeSelected.Render(line)
		}
		return m.theme.TreeSelectedBlur.Render(line)
	}

	titleStyle := m.theme.TreeItem
	if tk.Complete {
		titleStyle = m.theme.TreeDone
	}
	return indent + expander + m.theme.TaskGlyph(tk) + " " + titleStyle.Render(title) + m.theme.TreeMeta.Render(suffix)
}

// plainGlyph returns the unstyled state symbol, used inside whole-line
// highlighted rows.
func plainGlyph(tk *task.Task) string {
	switch {
	case tk.Complete:
		return "✓"
	case !tk.IsAtomic():
		return "◆"
	default:
		return "○"
	}
}
