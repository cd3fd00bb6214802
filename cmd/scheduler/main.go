// Command scheduler runs the periodic ledger jobs outside the API process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tally/internal/clock"
	"tally/internal/config"
	"tally/internal/database"
	"tally/internal/logger"
	"tally/internal/server"
	"tally/internal/worker"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.Get().Errorw("scheduler command failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tally-scheduler",
		Short:         "Run recurring transactions and monthly snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var catchUp bool
	process := &cobra.Command{
		Use:   "process",
		Short: "Materialize every due recurring template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := func(cfg *config.Config) worker.Options {
				return worker.Options{CatchUp: catchUp, CatchUpLimit: cfg.CatchUpLimit}
			}
			return withRunner(opts, func(_ *config.Config, r *worker.Runner) error {
				result, err := r.ProcessDue(cmd.Context())
				if err != nil {
					return err
				}
				if len(result.Failures) > 0 {
					return fmt.Errorf("%d recurring templates failed", len(result.Failures))
				}
				return nil
			})
		},
	}
	process.Flags().BoolVar(&catchUp, "catch-up", false, "repeat until no template is due")

	snapshot := &cobra.Command{
		Use:   "snapshot",
		Short: "Take the current month's snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(defaultOptions, func(_ *config.Config, r *worker.Runner) error {
				_, err := r.Snapshot(cmd.Context())
				return err
			})
		},
	}

	var days int
	remind := &cobra.Command{
		Use:   "remind",
		Short: "Log templates falling due soon",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withRunner(defaultOptions, func(_ *config.Config, r *worker.Runner) error {
				_, err := r.Remind(days)
				return err
			})
		},
	}
	remind.Flags().IntVar(&days, "days", 0, "horizon in days (defaults to REMINDER_HORIZON_DAYS)")

	run := &cobra.Command{
		Use:   "run",
		Short: "Process due templates and take snapshots every SCHEDULER_INTERVAL until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := func(cfg *config.Config) worker.Options {
				return worker.Options{
					CatchUp:      true,
					CatchUpLimit: cfg.CatchUpLimit,
					TakeSnapshot: true,
					ReminderDays: cfg.ReminderHorizonDays,
				}
			}
			return withRunner(opts, func(cfg *config.Config, r *worker.Runner) error {
				return r.Loop(ctx, cfg.Interval())
			})
		},
	}

	root.AddCommand(process, snapshot, remind, run)
	return root
}

func defaultOptions(cfg *config.Config) worker.Options {
	return worker.Options{ReminderDays: cfg.ReminderHorizonDays}
}

// withRunner loads configuration, opens and migrates the database, and hands
// fn a Runner built over the ledger services.
func withRunner(options func(*config.Config) worker.Options, fn func(*config.Config, *worker.Runner) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	svc := server.NewServices(dbManager.DB(), clock.NewSystem(loc), cfg.SchedulerWorkers)
	runner := worker.NewRunner(svc.Recurring, svc.Snapshots, svc.Audit, options(cfg))
	return fn(cfg, runner)
}
