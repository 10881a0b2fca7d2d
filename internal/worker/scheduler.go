package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/services"
)

// SweepFunc is one scheduled pass over the data for a given day.
type SweepFunc func(ctx context.Context, today core.Date) (services.SweepResult, error)

type job struct {
	name string
	spec string
	run  SweepFunc
}

// Scheduler runs sweeps on cron specs. A sweep still running when its next
// tick fires is skipped rather than overlapped.
type Scheduler struct {
	cron   *cron.Cron
	clock  services.Clock
	logger *log.Logger

	mu   sync.Mutex
	jobs []job
	ctx  context.Context
}

func NewScheduler(clock services.Clock, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentScheduler)
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		clock:  clock,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Add registers a sweep under a standard five-field cron spec or a
// descriptor such as "@daily".
func (s *Scheduler) Add(name, spec string, run SweepFunc) error {
	j := job{name: name, spec: spec, run: run}
	if _, err := s.cron.AddFunc(spec, func() { s.runJob(s.context(), j) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, j)
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// RunAll runs every registered sweep once, in registration order.
func (s *Scheduler) RunAll(ctx context.Context) map[string]services.SweepResult {
	s.mu.Lock()
	jobs := append([]job(nil), s.jobs...)
	s.mu.Unlock()

	out := make(map[string]services.SweepResult, len(jobs))
	for _, j := range jobs {
		res, err := s.runJob(ctx, j)
		if err == nil {
			out[j.name] = res
		}
	}
	return out
}

func (s *Scheduler) runJob(ctx context.Context, j job) (services.SweepResult, error) {
	today := s.clock.Today()
	res, err := j.run(ctx, today)
	if err != nil {
		s.logger.ErrorContext(ctx, "Sweep failed",
			log.FieldOperation, log.OpSweep,
			"job", j.name,
			"date", today.String(),
			log.FieldError, err)
		return res, err
	}
	s.logger.InfoContext(ctx, "Sweep complete",
		log.FieldOperation, log.OpSweep,
		"job", j.name,
		"date", today.String(),
		"checked", res.Checked,
		"materialized", res.Materialized,
		"sent", res.Sent,
		"expired", res.Expired,
		"failed", res.Failed,
		"diagnostics", len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		s.logger.WarnContext(ctx, "Sweep diagnostic", "job", j.name, "detail", d)
	}
	return res, nil
}

// Start begins firing jobs in the background. Scheduled runs use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.InfoContext(ctx, "Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents further runs and waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, log.FieldError, err)...)
}
