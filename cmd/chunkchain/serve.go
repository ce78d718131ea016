package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"chunkchain/internal/maintenance"
	"chunkchain/internal/server"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var (
		listen string
		seed   uint64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generation API over HTTP and WebSocket",
		Long: `Serve the JSON API and run scheduled database maintenance.

Endpoints:
  GET  /samples/{id}/generate?chunk_size=&output_size=
  POST /samples/{id}/analyse
  GET  /ws       WebSocket: {"type":"generate","sample_id":...}
  GET  /health
  GET  /version`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return opts.run(cmd, func(_ context.Context, a *app) error {
				svc, err := a.service(seed)
				if err != nil {
					return err
				}

				scheduler := newMaintenanceScheduler(a)
				if err := scheduler.Start(); err != nil {
					a.log.Warn("maintenance scheduler not started", "error", err)
				}
				defer scheduler.Stop()

				addr := a.cfg.Server.ListenAddr
				if listen != "" {
					addr = listen
				}
				srv := server.New(server.Config{ListenAddr: addr}, svc, a.log)
				return srv.Start(ctx)
			})
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides server.listen_addr)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 uses the configured seed)")
	return cmd
}

// newMaintenanceScheduler registers every maintenance task on a scheduler
// configured from the maintenance section.
func newMaintenanceScheduler(a *app) *maintenance.Scheduler {
	cfg := maintenance.Config{
		Enabled:  a.cfg.Maintenance.Enabled,
		Schedule: a.cfg.Maintenance.Schedule,
		Vacuum:   a.cfg.Maintenance.Vacuum,
	}
	scheduler := maintenance.NewScheduler(cfg, a.log)
	scheduler.RegisterTask(maintenance.NewOrphanChunkCleanupTask(a.db, a.log))
	scheduler.RegisterTask(maintenance.NewDatabaseMaintenanceTask(a.db, cfg.Vacuum, a.log))
	return scheduler
}

func maintenanceCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Database maintenance operations",
		Long: `Remove chunks left behind by deleted samples and optimize the database.
The same tasks run on the maintenance.schedule while serve is running.`,
	}
	cmd.AddCommand(maintenanceRunCmd(opts), maintenanceStatusCmd(opts))
	return cmd
}

func maintenanceRunCmd(opts *rootOptions) *cobra.Command {
	var (
		outputJSON bool
		vacuum     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run maintenance tasks immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if vacuum {
					a.cfg.Maintenance.Vacuum = true
				}
				scheduler := newMaintenanceScheduler(a)

				ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
				defer cancel()
				results := scheduler.RunNow(ctx)

				if outputJSON {
					if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
						return err
					}
				} else {
					printMaintenanceResults(cmd, a.styles, results)
				}

				for name, r := range results {
					if !r.Success {
						return fmt.Errorf("maintenance task %s failed: %v", name, r.Error)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output results in JSON format")
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "also VACUUM the database")
	return cmd
}

func maintenanceStatusCmd(opts *rootOptions) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the maintenance schedule and tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				scheduler := newMaintenanceScheduler(a)
				next, err := scheduler.NextRun(time.Now())
				if err != nil {
					return err
				}

				status := scheduler.GetStatus()
				for name, st := range status {
					st.NextRun = next
					status[name] = st
				}
				if outputJSON {
					return writeJSON(cmd.OutOrStdout(), status)
				}

				out := cmd.OutOrStdout()
				st := a.styles
				if next.IsZero() {
					fmt.Fprintf(out, "%s %s\n", st.Label.Render("Schedule:"), st.Muted.Render("disabled"))
				} else {
					fmt.Fprintf(out, "%s %s (next %s)\n", st.Label.Render("Schedule:"),
						a.cfg.Maintenance.Schedule, next.Format(time.RFC3339))
				}

				names := make([]string, 0, len(status))
				for name := range status {
					names = append(names, name)
				}
				sort.Strings(names)

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TASK\tDESTRUCTIVE\tDESCRIPTION")
				for _, name := range names {
					fmt.Fprintf(w, "%s\t%t\t%s\n", name, status[name].Destructive, status[name].Description)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	return cmd
}

func printMaintenanceResults(cmd *cobra.Command, st styles, results map[string]maintenance.TaskResult) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tDURATION\tMESSAGE")
	for _, name := range names {
		r := results[name]
		status := st.Success.Render("ok")
		if !r.Success {
			status = st.Error.Render("failed")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, status, r.Duration.Round(time.Millisecond), r.Message)
	}
	w.Flush()
}
