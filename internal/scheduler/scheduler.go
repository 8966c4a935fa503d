// Package scheduler runs the reminder jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	applog "mysubs/internal/log"
	"mysubs/internal/services"
)

// Runner executes one named job.
type Runner interface {
	Run(ctx context.Context, job string, now time.Time) (services.JobResult, error)
}

type Config struct {
	BillingReminder string
	TrialReminder   string
	MonthlyReport   string
	// Location is both the cron time zone and the zone "today" is taken in.
	Location *time.Location
}

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	cfg    Config
	logger *applog.Logger
	now    func() time.Time
}

func New(runner Runner, cfg Config, logger *applog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger = logger.WithComponent(applog.ComponentScheduler)
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	return &Scheduler{
		cron:   c,
		runner: runner,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Start registers the jobs and starts the cron loop. Jobs receive ctx, so
// cancelling it aborts a run in progress. A job with an empty schedule is
// not registered.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name     string
		schedule string
	}{
		{services.JobBillingReminder, s.cfg.BillingReminder},
		{services.JobTrialReminder, s.cfg.TrialReminder},
		{services.JobMonthlyReport, s.cfg.MonthlyReport},
	}
	for _, j := range jobs {
		if j.schedule == "" {
			s.logger.Info("Job disabled", applog.FieldJob, j.name)
			continue
		}
		name := j.name
		if _, err := s.cron.AddFunc(j.schedule, func() { s.runJob(ctx, name) }); err != nil {
			return fmt.Errorf("schedule %s %q: %w", name, j.schedule, err)
		}
		s.logger.Info("Scheduled job", applog.FieldJob, name, "schedule", j.schedule)
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries reports the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runJob(ctx context.Context, job string) {
	if ctx.Err() != nil {
		return
	}
	start := s.now()
	res, err := s.runner.Run(ctx, job, start.In(s.cfg.Location))
	if err != nil {
		s.logger.Error("Job failed", applog.FieldJob, job, applog.FieldError, err)
		return
	}
	s.logger.Info("Job finished",
		applog.FieldJob, job,
		applog.FieldProcessed, res.Processed,
		applog.FieldSent, res.Sent,
		applog.FieldFailed, res.Failed,
		applog.FieldDuration, time.Since(start).Milliseconds())
}
