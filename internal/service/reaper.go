package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// StaleJobMessage is the error set on jobs the reaper fails.
const StaleJobMessage = "job exceeded maximum duration"

// Reaper periodically fails jobs stuck in processing longer than the maximum
// job duration and purges expired keys from stores that need it.
type Reaper struct {
	jobs     port.JobRepository
	purger   port.Purger
	notifier port.Notifier
	maxAge   time.Duration
	schedule string
	logger   *slog.Logger
	now      func() time.Time
	cron     *cron.Cron
}

// NewReaper creates a Reaper. purger and notifier may be nil.
func NewReaper(jobs port.JobRepository, purger port.Purger, notifier port.Notifier, maxAge time.Duration, schedule string, logger *slog.Logger) *Reaper {
	if schedule == "" {
		schedule = "@every 1m"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		jobs:     jobs,
		purger:   purger,
		notifier: notifier,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules Sweep and returns. Stop the reaper with Stop.
func (r *Reaper) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.Sweep(ctx); err != nil {
			r.logger.Error("reaper.Sweep: failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduling reaper %q: %w", r.schedule, err)
	}
	r.cron = c
	c.Start()
	r.logger.Info("reaper: started", "schedule", r.schedule, "max_job_duration", r.maxAge)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// Sweep fails stale jobs and purges expired keys. It returns the number of
// jobs it failed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	if r.purger != nil {
		n, err := r.purger.Purge(ctx)
		if err != nil {
			r.logger.Warn("reaper.Sweep: purge failed", "error", err)
		} else if n > 0 {
			r.logger.Info("reaper.Sweep: purged expired keys", "count", n)
		}
	}
	if r.maxAge <= 0 {
		return 0, nil
	}

	jobs, err := r.jobs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing jobs: %w", err)
	}

	now := r.now().UTC()
	reaped := 0
	for i := range jobs {
		job := &jobs[i]
		if job.Status != domain.JobStatusProcessing || job.StartedAt == nil {
			continue
		}
		if now.Sub(*job.StartedAt) <= r.maxAge {
			continue
		}
		if err := job.Fail(StaleJobMessage, now); err != nil {
			continue
		}
		if err := r.jobs.Update(ctx, job); err != nil {
			r.logger.Error("reaper.Sweep: saving stale job", "job_id", job.ID, "error", err)
			continue
		}
		reaped++
		r.logger.Warn("reaper.Sweep: stale job failed",
			"job_id", job.ID,
			"patient", job.Subject,
			"started_at", job.StartedAt,
			"stage", job.Stage,
		)
		if r.notifier != nil {
			if err := r.notifier.Notify(ctx, domain.NewJobEvent(domain.JobEventFailed, job, now)); err != nil {
				r.logger.Warn("reaper.Sweep: notify failed", "job_id", job.ID, "error", err)
			}
		}
	}
	return reaped, nil
}
