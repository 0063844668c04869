package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"claimease/internal/port"
)

// JobRunner executes one job end to end.
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// WorkerPoolConfig holds settings for the worker pool.
type WorkerPoolConfig struct {
	Concurrency int
	PollTimeout time.Duration
	// JobTimeout bounds a single job run. Zero means no bound.
	JobTimeout time.Duration
	// ErrorBackoff is the pause after a failed dequeue.
	ErrorBackoff time.Duration
}

// WorkerPool pulls job ids from the queue and runs up to Concurrency jobs at
// a time.
type WorkerPool struct {
	queue  port.JobQueue
	runner JobRunner
	cfg    WorkerPoolConfig
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewWorkerPool creates a new WorkerPool.
func NewWorkerPool(queue port.JobQueue, runner JobRunner, cfg WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{queue: queue, runner: runner, cfg: cfg, logger: logger}
}

// Start runs the dequeue loop until ctx is canceled. It blocks until all
// in-flight jobs have finished. Jobs still running at shutdown see ctx
// canceled and stop at their next stage boundary.
func (w *WorkerPool) Start(ctx context.Context) {
	sem := make(chan struct{}, w.cfg.Concurrency)

	w.logger.Info("workerPool: started",
		"concurrency", w.cfg.Concurrency,
		"poll_timeout", w.cfg.PollTimeout,
	)

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return
		case sem <- struct{}{}: // acquire
		}

		msg, err := w.queue.Dequeue(ctx, w.cfg.PollTimeout)
		if err != nil {
			<-sem
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("workerPool: dequeue failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(w.cfg.ErrorBackoff):
			}
			continue
		}
		if msg == nil {
			<-sem
			continue
		}

		w.wg.Add(1)
		go func(msg *port.QueueMessage) {
			defer w.wg.Done()
			defer func() { <-sem }() // release
			w.process(ctx, msg)
		}(msg)
	}
}

func (w *WorkerPool) process(ctx context.Context, msg *port.QueueMessage) {
	runCtx := ctx
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}

	w.logger.Info("workerPool: dispatching job", "job_id", msg.JobID)
	if err := w.runner.Run(runCtx, msg.JobID); err != nil {
		w.logger.Warn("workerPool: job ended with error", "job_id", msg.JobID, "error", err)
	}

	// The outcome is on the job record either way; the message is done.
	if err := w.queue.Ack(context.WithoutCancel(ctx), msg); err != nil {
		w.logger.Error("workerPool: ack failed", "job_id", msg.JobID, "error", err)
	}
}

func (w *WorkerPool) shutdown() {
	w.logger.Info("workerPool: shutting down, waiting for in-flight jobs...")
	w.wg.Wait()
	w.logger.Info("workerPool: shutdown complete")
}
