package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wadevries/sps/internal/buildinfo"
	"github.com/wadevries/sps/internal/logging"
	"github.com/wadevries/sps/internal/planner"
	"github.com/wadevries/sps/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"ui"},
	Short:   "Launch the interactive TUI",
	Long: `Launch the interactive sps dashboard.

The dashboard shows the task forest alongside the selected task's detail and
audit log, updating live as mutations land. Use keyboard shortcuts (press ?
for help) to navigate, complete, and assign tasks.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

// runDashboard is the RunE handler for the dashboard command. It opens the
// store with a live event channel and hands everything to the TUI.
func runDashboard(cmd *cobra.Command, _ []string) error {
	logger := logging.New("dashboard")

	// Set up a cancellation context that also responds to OS signals.
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Buffered so a burst of commits never blocks the engine; the planner
	// drops events past the buffer rather than stalling writers.
	events := make(chan planner.Event, 64)

	r, err := openRuntime(ctx, planner.WithEventChannel(events))
	if err != nil {
		return err
	}
	defer r.Close()

	// A fresh store should open on the inbox rather than an empty screen.
	if _, err := r.defaultContext(ctx); err != nil {
		return err
	}

	info := buildinfo.GetInfo()
	cfg := tui.Config{
		Version:     info.Version,
		ProjectName: r.resolved.Config.Project.Name,
		Ctx:         ctx,
		Cancel:      cancel,
		Service:     r.svc,
		Events:      events,
		Actor:       r.actor(),
	}

	logger.Info("launching dashboard",
		"version", info.Version,
		"project", cfg.ProjectName,
	)

	return tui.Run(cfg)
}
