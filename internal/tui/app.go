// Package tui implements the interactive dashboard: a tree of tasks, a
// detail pane, and a live event log, all driven by the planner service
// through Bubble Tea commands.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wadevries/sps/internal/logging"
	"github.com/wadevries/sps/internal/planner"
	"github.com/wadevries/sps/internal/task"
)

// FocusPanel identifies which panel currently has keyboard focus.
type FocusPanel int

const (
	// FocusTree indicates the task tree panel has focus.
	FocusTree FocusPanel = iota
	// FocusDetail indicates the task detail panel has focus.
	FocusDetail
	// FocusEventLog indicates the event feed panel has focus.
	FocusEventLog
)

// Config holds everything the dashboard needs from the CLI runtime.
type Config struct {
	// Version is the sps semantic version string shown in the title bar.
	Version string
	// ProjectName is the configured project name, shown in the status bar.
	ProjectName string
	// Ctx bounds every store read and mutation issued by the dashboard.
	Ctx context.Context
	// Cancel tears down Ctx; called when the user quits.
	Cancel context.CancelFunc
	// Service executes queries and mutations against the store.
	Service *planner.Service
	// Events is the planner's notification channel; nil disables live updates.
	Events <-chan planner.Event
	// Actor is recorded as the author of mutations issued from the dashboard.
	Actor string
}

// App is the top-level Bubble Tea model for the sps dashboard. It owns the
// layout and the four panel sub-models, routes messages between them, and
// keeps an in-memory index of the latest snapshot so the detail panel can
// show a task's neighbours without extra store reads.
type App struct {
	config Config
	engine Engine
	theme  Theme
	keyMap KeyMap

	layout    Layout
	tree      TreeModel
	detail    DetailModel
	eventLog  EventLogModel
	statusBar StatusBarModel
	help      HelpOverlay

	focus    FocusPanel
	ready    bool // true after first WindowSizeMsg
	quitting bool

	// Snapshot index, rebuilt on every SnapshotMsg.
	index        map[string]*task.Task
	contextPaths map[string]string
}

// NewApp constructs the dashboard model. Focus starts on the task tree.
func NewApp(cfg Config) App {
	theme := DefaultTheme()
	keyMap := DefaultKeyMap()

	return App{
		config: cfg,
		engine: Engine{
			Service: cfg.Service,
			Events:  cfg.Events,
			Actor:   cfg.Actor,
		},
		theme:        theme,
		keyMap:       keyMap,
		layout:       NewLayout(),
		tree:         NewTreeModel(theme, keyMap),
		detail:       NewDetailModel(theme),
		eventLog:     NewEventLogModel(theme),
		statusBar:    NewStatusBarModel(theme, cfg.ProjectName, cfg.Actor),
		help:         NewHelpOverlay(theme, keyMap),
		focus:        FocusTree,
		index:        make(map[string]*task.Task),
		contextPaths: make(map[string]string),
	}
}

// Init loads the first snapshot and arms the event pump.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.engine.LoadSnapshot(a.config.Ctx),
		a.engine.NextEvent(a.config.Ctx),
	)
}

// Update dispatches incoming messages to the panels and returns the updated
// model plus any follow-up command.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		return a.handleResize(m), nil

	case tea.KeyMsg:
		return a.handleKey(m)

	case SnapshotMsg:
		return a.handleSnapshot(m)

	case EngineEventMsg:
		var cmd tea.Cmd
		a.eventLog, cmd = a.eventLog.Update(m)
		// Re-arm the pump and fold the mutation into the snapshot.
		return a, tea.Batch(
			cmd,
			a.engine.NextEvent(a.config.Ctx),
			a.engine.LoadSnapshot(a.config.Ctx),
		)

	case TaskLogMsg:
		if m.Err != nil {
			a.eventLog.AddEntry(EventError, "log: "+m.Err.Error())
			return a, nil
		}
		a.detail.SetLog(m.TaskID, m.Entries)
		return a, nil

	case MutationDoneMsg:
		if m.Err != nil {
			a.eventLog.AddEntry(EventError, m.Err.Error())
		}
		// The success path refreshes through the engine event.
		return a, nil

	case ErrorMsg:
		var cmd tea.Cmd
		a.eventLog, cmd = a.eventLog.Update(m)
		return a, cmd
	}

	return a, nil
}

// handleResize recalculates the layout and pushes the new dimensions into
// every panel.
func (a App) handleResize(msg tea.WindowSizeMsg) App {
	a.ready = true
	a.help.SetDimensions(msg.Width, msg.Height)

	if !a.layout.Resize(msg.Width, msg.Height) {
		return a
	}

	a.tree.SetDimensions(a.layout.Tree.Width, a.layout.Tree.Height)
	a.detail.SetDimensions(a.layout.Detail.Width, a.layout.Detail.Height)
	a.eventLog.SetDimensions(a.layout.EventLog.Width, a.layout.EventLog.Height)
	a.statusBar.SetWidth(a.layout.StatusBar.Width)
	return a
}

// handleKey routes key events: the help overlay swallows everything while
// visible, global bindings come next, and whatever remains goes to the
// focused panel.
func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.help.IsVisible() {
		var cmd tea.Cmd
		a.help, cmd = a.help.Update(msg)
		return a, cmd
	}

	switch {
	case key.Matches(msg, a.keyMap.Quit):
		a.quitting = true
		if a.config.Cancel != nil {
			a.config.Cancel()
		}
		return a, tea.Quit

	case key.Matches(msg, a.keyMap.Help):
		a.help.Toggle()
		return a, nil

	case key.Matches(msg, a.keyMap.Refresh):
		return a, a.engine.LoadSnapshot(a.config.Ctx)

	case key.Matches(msg, a.keyMap.FocusNext):
		return a.setFocus(NextFocus(a.focus))

	case key.Matches(msg, a.keyMap.FocusPrev):
		return a.setFocus(PrevFocus(a.focus))

	case key.Matches(msg, a.keyMap.ToggleDone) && a.focus == FocusTree:
		if sel := a.tree.Selected(); sel != nil {
			return a, a.engine.ToggleComplete(a.config.Ctx, sel)
		}
		return a, nil
	}

	return a.updatePanels(msg)
}

// setFocus moves keyboard focus and notifies every panel.
func (a App) setFocus(panel FocusPanel) (tea.Model, tea.Cmd) {
	a.focus = panel
	return a.updatePanels(FocusChangedMsg{Panel: panel})
}

// updatePanels forwards msg to all panel sub-models and, when the tree
// selection moved, refreshes the detail panel.
func (a App) updatePanels(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	before := a.tree.Selected()

	a.tree, cmd = a.tree.Update(msg)
	cmds = append(cmds, cmd)
	a.detail, cmd = a.detail.Update(msg)
	cmds = append(cmds, cmd)
	a.eventLog, cmd = a.eventLog.Update(msg)
	cmds = append(cmds, cmd)
	a.statusBar = a.statusBar.Update(msg)

	after := a.tree.Selected()
	if selectionChanged(before, after) {
		cmds = append(cmds, a.selectTask(after))
	}

	return a, tea.Batch(cmds...)
}

// selectionChanged reports whether the tree cursor moved to a different task.
func selectionChanged(before, after *task.Task) bool {
	switch {
	case before == nil && after == nil:
		return false
	case before == nil || after == nil:
		return true
	default:
		return before.ID != after.ID
	}
}

// selectTask points the detail panel and the status bar at tk and requests
// its audit log. A nil tk clears the detail panel.
func (a *App) selectTask(tk *task.Task) tea.Cmd {
	if tk == nil {
		a.detail.Clear()
		a.statusBar.SetSelected("")
		return nil
	}

	a.detail.SetTask(tk, a.relations(tk))
	a.statusBar.SetSelected(tk.ID)
	return a.engine.LoadLog(a.config.Ctx, tk.ID)
}

// handleSnapshot folds a fresh task forest into every panel.
func (a App) handleSnapshot(msg SnapshotMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		a.eventLog.AddEntry(EventError, "snapshot: "+msg.Err.Error())
		return a, nil
	}

	index := make(map[string]*task.Task, len(msg.Tasks))
	for _, tk := range msg.Tasks {
		index[tk.ID] = tk
	}
	a.index = index
	a.contextPaths = msg.ContextPaths

	a.tree.SetTasks(msg.Tasks)
	a.statusBar = a.statusBar.Update(msg)

	// Re-point the detail panel at the task under the cursor; the snapshot
	// may have replaced or removed it.
	return a, a.selectTask(a.tree.Selected())
}

// relations assembles the selected task's neighbours from the snapshot index.
func (a App) relations(tk *task.Task) TaskRelations {
	rel := TaskRelations{
		ContextPath: a.contextPaths[tk.ContextID],
	}

	if tk.ParentID != "" {
		rel.Parent = a.index[tk.ParentID]
	}
	for _, id := range tk.ChildIDs {
		if child, ok := a.index[id]; ok {
			rel.Children = append(rel.Children, child)
		}
	}
	for _, id := range tk.DependencyIDs {
		if dep, ok := a.index[id]; ok {
			rel.Dependencies = append(rel.Dependencies, dep)
		}
	}
	for _, other := range a.index {
		if other.ID != tk.ID && other.DependsOn(tk.ID) {
			rel.Dependents = append(rel.Dependents, other)
		}
	}
	sort.Slice(rel.Dependents, func(i, j int) bool {
		return rel.Dependents[i].ID < rel.Dependents[j].ID
	})

	return rel
}

// View renders the complete dashboard frame.
func (a App) View() string {
	if a.quitting {
		return ""
	}

	if !a.ready {
		return "Loading sps dashboard..."
	}

	if a.layout.IsTooSmall() {
		return a.layout.RenderTooSmall(a.theme)
	}

	if a.help.IsVisible() {
		return a.help.View()
	}

	return a.layout.Render(
		a.theme,
		a.renderTitleBar(),
		a.tree.View(),
		a.detail.View(),
		a.eventLog.View(),
		a.statusBar.View(),
	)
}

// renderTitleBar builds the full-width title line: name, version, and a
// right-aligned quit hint.
func (a App) renderTitleBar() string {
	left := "sps " + a.theme.TitleVersion.Render("v"+a.config.Version)
	hint := a.theme.TitleHint.Render("q quit · ? help")

	width := a.layout.TitleBar.Width
	gap := width - lipgloss.Width(left) - lipgloss.Width(hint) - 2 // bar padding
	if gap < 1 {
		return a.theme.TitleBar.Width(width).Render(left)
	}

	return a.theme.TitleBar.Width(width).Render(left + strings.Repeat(" ", gap) + hint)
}

// Run starts the dashboard in the alternate screen and blocks until the user
// quits or the program fails.
func Run(cfg Config) error {
	logger := logging.New("tui")
	logger.Debug("starting dashboard", "project", cfg.ProjectName)

	p := tea.NewProgram(
		NewApp(cfg),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}

	return nil
}
