package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/wadevries/sps/internal/config"
	"github.com/wadevries/sps/internal/httpapi"
	"github.com/wadevries/sps/internal/logging"
	"github.com/wadevries/sps/internal/metrics"
	"github.com/wadevries/sps/internal/planner"
	"github.com/wadevries/sps/internal/task"
)

// shutdownGrace is how long in-flight requests get to finish after SIGINT.
const shutdownGrace = 10 * time.Second

type serveFlags struct {
	Addr string
}

// newServeCmd creates the "sps serve" command: the HTTP API server over the
// configured store, with Prometheus metrics and live status-set reload.
func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Run the sps HTTP API server against the configured store. The server
exposes the full operation surface under /v1, a health probe on /healthz,
and Prometheus metrics on /metrics.

While the server runs, edits to sps.toml are picked up live: a changed
[statuses] section swaps the planner's status set without a restart.`,
		Example: `  sps serve
  sps serve --addr 0.0.0.0:8321
  SPS_STORE_BACKEND=memory sps serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Addr, "addr", "", "Listen address (default: [server].addr from sps.toml)")

	return cmd
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}

// runServe wires store, planner, metrics, and HTTP server together and runs
// until interrupted.
func runServe(cmd *cobra.Command, flags serveFlags) error {
	logger := logging.New("serve")

	// Set up a cancellation context that also responds to OS signals.
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The status set is swappable at runtime: the watcher below replaces the
	// pointer when sps.toml changes, and the planner reads it per mutation.
	var statuses atomic.Pointer[task.StatusSet]

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	r, err := openRuntime(ctx,
		planner.WithMetrics(m),
		planner.WithStatusSource(func() *task.StatusSet { return statuses.Load() }),
	)
	if err != nil {
		return err
	}
	defer r.Close()
	statuses.Store(r.statuses)

	cfg := r.resolved.Config
	addr := cfg.Server.Addr
	if flags.Addr != "" {
		addr = flags.Addr
	}

	// The API needs a context to file unscoped task creations under.
	defaultCtx, err := r.defaultContext(ctx)
	if err != nil {
		return err
	}

	server := httpapi.New(addr, r.svc,
		httpapi.WithLogger(logging.New("http")),
		httpapi.WithMetrics(reg),
		httpapi.WithDefaultContext(defaultCtx.ID),
		httpapi.WithDefaultActor(r.actor()),
	)

	// Watch sps.toml for status-set changes while the server runs. Without a
	// config file there is nothing to watch.
	if r.resolved.Path != "" {
		watcher, watchErr := config.NewWatcher(r.resolved.Path, config.DefaultDebounce, func(next *config.Config) {
			set, setErr := task.NewStatusSet(next.Statuses.Values, next.Statuses.Default)
			if setErr != nil {
				logger.Error("rejecting reloaded status set", "error", setErr)
				return
			}
			statuses.Store(set)
			logger.Info("status set reloaded", "values", set.Values(), "default", set.Default())
		})
		if watchErr != nil {
			logger.Warn("config watching disabled", "error", watchErr)
		} else if startErr := watcher.Start(); startErr != nil {
			logger.Warn("config watching disabled", "error", startErr)
		} else {
			defer watcher.Stop()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("serving",
		"addr", addr,
		"backend", cfg.Store.Backend,
		"default_context", defaultCtx.Name,
	)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("running http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "grace", shutdownGrace)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
