package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/backend"
	"budgetbuddy/internal/cli"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/worker"
)

// recurring-worker materializes due recurring expenses and sends reminder
// emails on the configured cron schedules. It runs both sweeps once at
// start-up so a restart never waits a full day.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, nil)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}

	opts, err := backend.OptionsFromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid rule configuration", err)
	}
	// Sweeps act on every owner, so no credentials are resolved here.
	app := backend.NewApp(res.Store, res.Dispatcher, auth.StaticResolver{}, opts)

	scheduler := worker.NewScheduler(opts.Clock, logger)
	if err := scheduler.Add("recurring", cfg.RecurringSchedule, app.Recurring.ProcessDueRules); err != nil {
		cli.Fatal(logger, "Failed to schedule recurring sweep", err)
	}
	if err := scheduler.Add("reminders", cfg.ReminderSchedule, app.ReminderSweeps.ProcessDueReminders); err != nil {
		cli.Fatal(logger, "Failed to schedule reminder sweep", err)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler did not stop in time", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	})

	logger.Info("Starting recurring-worker",
		"recurring_schedule", cfg.RecurringSchedule,
		"reminder_schedule", cfg.ReminderSchedule,
		"backend", cfg.DataBackend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		results := scheduler.RunAll(gctx)
		logger.Info("Initial sweeps complete", "jobs", len(results), log.FieldDuration, time.Since(start).Milliseconds())
		return nil
	})
	g.Go(func() error {
		scheduler.Start(gctx)
		<-gctx.Done()
		return nil
	})
	_ = g.Wait()

	cli.WaitForShutdown(ctx, done)
}
