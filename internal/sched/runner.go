package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibet/taibet/internal/domain"
)

// lockTTL bounds how long a crashed holder can block the next run.
const lockTTL = 10 * time.Minute

// Job is one recurring task. Run must be idempotent per period: the cron
// trigger is at-least-once across instances and restarts.
type Job struct {
	Name string
	Cron string
	Run  func(ctx context.Context) error
}

// Runner fires jobs on their cron schedules, serializing each job across
// process instances with a distributed lock.
type Runner struct {
	locks  domain.LockManager
	logger *slog.Logger
	jobs   []Job
}

// NewRunner creates a Runner with the given jobs.
func NewRunner(locks domain.LockManager, logger *slog.Logger, jobs ...Job) *Runner {
	return &Runner{
		locks:  locks,
		logger: logger.With(slog.String("component", "sched")),
		jobs:   jobs,
	}
}

// Start launches one goroutine per job and blocks until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	for _, job := range r.jobs {
		if _, err := Parse(job.Cron); err != nil {
			return fmt.Errorf("sched: job %s: %w", job.Name, err)
		}
	}

	for _, job := range r.jobs {
		go r.runLoop(ctx, job)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (r *Runner) runLoop(ctx context.Context, job Job) {
	schedule, _ := Parse(job.Cron)

	r.logger.Info("job scheduled",
		slog.String("job", job.Name),
		slog.String("cron", job.Cron),
	)

	for {
		next, err := schedule.Next(time.Now().UTC())
		if err != nil {
			r.logger.Error("job schedule exhausted",
				slog.String("job", job.Name),
				slog.String("error", err.Error()),
			)
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("job stopped", slog.String("job", job.Name))
			return
		case <-timer.C:
			r.fire(ctx, job)
		}
	}
}

func (r *Runner) fire(ctx context.Context, job Job) {
	unlock, err := r.locks.Acquire(ctx, "job:"+job.Name, lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			r.logger.Info("job skipped, lock held elsewhere", slog.String("job", job.Name))
			return
		}
		r.logger.Error("job lock failed",
			slog.String("job", job.Name),
			slog.String("error", err.Error()),
		)
		return
	}
	defer unlock()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		r.logger.Error("job run failed",
			slog.String("job", job.Name),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Info("job completed",
		slog.String("job", job.Name),
		slog.Duration("elapsed", time.Since(start)),
	)
}
