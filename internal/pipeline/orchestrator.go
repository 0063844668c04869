package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// Progress bands per stage. A stage reports Start when it begins and End once
// its artifact is written; OCR interpolates between them per page.
type band struct {
	Start, End int
}

var stageBands = map[domain.StageName]band{
	domain.StageAnalysis:      {0, 10},
	domain.StageOCR:           {25, 50},
	domain.StageNLP:           {50, 75},
	domain.StageForm:          {75, 90},
	domain.StageConsolidation: {90, 100},
}

func (b band) at(done, total int) int {
	if total <= 0 {
		return b.Start
	}
	if done > total {
		done = total
	}
	return b.Start + (b.End-b.Start)*done/total
}

// errAbandoned stops a run whose job record was finalized elsewhere.
var errAbandoned = errors.New("job finalized by another process")

// Stages bundles the stage workers the orchestrator sequences.
type Stages struct {
	Analysis      port.AnalysisStage
	OCR           port.OCRStage
	NLP           port.NLPStage
	Form          port.FormStage
	Consolidation port.Consolidator
}

// Config holds orchestrator settings.
type Config struct {
	Retry        RetryPolicy
	StageTimeout time.Duration
}

// Orchestrator drives one job through the pipeline stages, persisting
// progress and artifacts and applying the retry policy.
type Orchestrator struct {
	jobs      port.JobRepository
	artifacts *ArtifactStore
	stages    Stages
	notifier  port.Notifier
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator. notifier may be nil.
func NewOrchestrator(jobs port.JobRepository, artifacts *ArtifactStore, stages Stages, notifier port.Notifier, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		jobs:      jobs,
		artifacts: artifacts,
		stages:    stages,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// run is the in-memory state of one job execution.
type run struct {
	job       *domain.Job
	abandoned bool
	timings   []domain.StageTiming
	analysis  *domain.DocumentAnalysis
	ocr       *domain.OCRResult
	entities  *domain.EntityResult
	form      *domain.FormResult
}

// Run executes every stage for jobID in order. A stage failure marks the job
// failed and is returned; terminal jobs are skipped.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("orchestrator.Run: loading job %s: %w", jobID, err)
	}
	if job.Status.IsTerminal() {
		o.logger.Info("orchestrator.Run: job already terminal, skipping", "job_id", jobID, "status", job.Status)
		return nil
	}

	r := &run{job: job}
	if job.Status == domain.JobStatusPending {
		canceled, err := o.jobs.CancelRequested(ctx, jobID)
		if err != nil {
			o.logger.Warn("orchestrator.Run: cancel check failed", "job_id", jobID, "error", err)
		}
		if canceled {
			return o.fail(ctx, r, "", domain.ErrJobCanceled)
		}
		if err := job.Start(o.now()); err != nil {
			return fmt.Errorf("orchestrator.Run: %w", err)
		}
		// The job may have been canceled since it was loaded.
		if err := o.save(ctx, r); err != nil {
			if errors.Is(err, errAbandoned) {
				o.logger.Info("orchestrator.Run: job finalized before start, skipping", "job_id", jobID)
				return nil
			}
			return fmt.Errorf("orchestrator.Run: saving started job %s: %w", jobID, err)
		}
		o.notify(ctx, domain.JobEventStarted, job)
	} else {
		// A redelivered message for a job whose worker died. Stages are
		// re-run from the start; artifacts are overwritten per run key.
		o.logger.Warn("orchestrator.Run: resuming job left in processing", "job_id", jobID)
	}

	o.logger.Info("orchestrator.Run: started", "job_id", jobID, "patient", job.Subject)

	steps := []struct {
		stage domain.StageName
		fn    func(context.Context, *run) error
	}{
		{domain.StageAnalysis, o.runAnalysis},
		{domain.StageOCR, o.runOCR},
		{domain.StageNLP, o.runNLP},
		{domain.StageForm, o.runForm},
		{domain.StageConsolidation, o.runConsolidation},
	}
	for _, step := range steps {
		if err := o.checkpoint(ctx, r); err != nil {
			return o.fail(ctx, r, step.stage, err)
		}
		if err := step.fn(ctx, r); err != nil {
			return o.fail(ctx, r, step.stage, err)
		}
	}

	o.logger.Info("orchestrator.Run: completed", "job_id", jobID, "patient", job.Subject,
		"filled", r.job.Result.FilledFields, "total", r.job.Result.TotalFields)
	return nil
}

// checkpoint runs at every stage boundary. It stops the run when the job was
// canceled or finalized by someone else.
func (o *Orchestrator) checkpoint(ctx context.Context, r *run) error {
	if r.abandoned {
		return errAbandoned
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	stored, err := o.jobs.GetByID(ctx, r.job.ID)
	if err == nil && stored.Status.IsTerminal() {
		r.abandoned = true
		return errAbandoned
	}
	canceled, err := o.jobs.CancelRequested(ctx, r.job.ID)
	if err != nil {
		o.logger.Warn("orchestrator.checkpoint: cancel check failed", "job_id", r.job.ID, "error", err)
		return nil
	}
	if canceled {
		return domain.ErrJobCanceled
	}
	return nil
}

func (o *Orchestrator) runAnalysis(ctx context.Context, r *run) error {
	o.advance(ctx, r, domain.StageAnalysis, stageBands[domain.StageAnalysis].Start)
	err := o.attempt(ctx, r, domain.StageAnalysis, func(ctx context.Context) error {
		res, err := o.stages.Analysis.Analyze(ctx, r.job.Subject)
		if err != nil {
			return err
		}
		if err := o.artifacts.Put(ctx, domain.StageAnalysis, r.job.Subject, r.job.ID, res); err != nil {
			return err
		}
		r.analysis = res
		return nil
	})
	if err != nil {
		return err
	}
	o.advance(ctx, r, domain.StageAnalysis, stageBands[domain.StageAnalysis].End)
	return nil
}

func (o *Orchestrator) runOCR(ctx context.Context, r *run) error {
	var analysis domain.DocumentAnalysis
	if err := o.loadInput(ctx, r, domain.StageAnalysis, &analysis); err != nil {
		return err
	}

	b := stageBands[domain.StageOCR]
	o.advance(ctx, r, domain.StageOCR, b.Start)
	progress := func(done, total int) {
		o.advance(ctx, r, domain.StageOCR, b.at(done, total))
	}
	err := o.attempt(ctx, r, domain.StageOCR, func(ctx context.Context) error {
		res, err := o.stages.OCR.Extract(ctx, &analysis, progress)
		if err != nil {
			return err
		}
		if err := o.artifacts.Put(ctx, domain.StageOCR, r.job.Subject, r.job.ID, res); err != nil {
			return err
		}
		r.ocr = res
		return nil
	})
	if err != nil {
		return err
	}
	o.advance(ctx, r, domain.StageOCR, b.End)
	return nil
}

func (o *Orchestrator) runNLP(ctx context.Context, r *run) error {
	var ocr domain.OCRResult
	if err := o.loadInput(ctx, r, domain.StageOCR, &ocr); err != nil {
		return err
	}

	o.advance(ctx, r, domain.StageNLP, stageBands[domain.StageNLP].Start)
	err := o.attempt(ctx, r, domain.StageNLP, func(ctx context.Context) error {
		res, err := o.stages.NLP.Recognize(ctx, &ocr)
		if err != nil {
			return err
		}
		if err := o.artifacts.Put(ctx, domain.StageNLP, r.job.Subject, r.job.ID, res); err != nil {
			return err
		}
		r.entities = res
		return nil
	})
	if err != nil {
		return err
	}
	o.advance(ctx, r, domain.StageNLP, stageBands[domain.StageNLP].End)
	return nil
}

func (o *Orchestrator) runForm(ctx context.Context, r *run) error {
	var analysis domain.DocumentAnalysis
	if err := o.loadInput(ctx, r, domain.StageAnalysis, &analysis); err != nil {
		return err
	}
	var entities domain.EntityResult
	if err := o.loadInput(ctx, r, domain.StageNLP, &entities); err != nil {
		return err
	}

	o.advance(ctx, r, domain.StageForm, stageBands[domain.StageForm].Start)
	err := o.attempt(ctx, r, domain.StageForm, func(ctx context.Context) error {
		res, err := o.stages.Form.Fill(ctx, &analysis, &entities)
		if err != nil {
			return err
		}
		if err := o.artifacts.Put(ctx, domain.StageForm, r.job.Subject, r.job.ID, res); err != nil {
			return err
		}
		r.form = res
		return nil
	})
	if err != nil {
		return err
	}
	o.advance(ctx, r, domain.StageForm, stageBands[domain.StageForm].End)
	return nil
}

func (o *Orchestrator) runConsolidation(ctx context.Context, r *run) error {
	in := port.ConsolidationInput{
		JobID:    r.job.ID,
		Subject:  r.job.Subject,
		Analysis: &domain.DocumentAnalysis{},
		OCR:      &domain.OCRResult{},
		Entities: &domain.EntityResult{},
		Form:     &domain.FormResult{},
	}
	if err := o.loadInput(ctx, r, domain.StageAnalysis, in.Analysis); err != nil {
		return err
	}
	if err := o.loadInput(ctx, r, domain.StageOCR, in.OCR); err != nil {
		return err
	}
	if err := o.loadInput(ctx, r, domain.StageNLP, in.Entities); err != nil {
		return err
	}
	if err := o.loadInput(ctx, r, domain.StageForm, in.Form); err != nil {
		return err
	}
	in.Timings = append([]domain.StageTiming(nil), r.timings...)

	o.advance(ctx, r, domain.StageConsolidation, stageBands[domain.StageConsolidation].Start)
	var final *domain.FinalResult
	err := o.attempt(ctx, r, domain.StageConsolidation, func(ctx context.Context) error {
		res, err := o.stages.Consolidation.Consolidate(ctx, in)
		if err != nil {
			return err
		}
		if err := o.artifacts.Put(ctx, domain.StageConsolidation, r.job.Subject, r.job.ID, res); err != nil {
			return err
		}
		final = res
		return nil
	})
	if err != nil {
		return err
	}

	// r.job only becomes completed once the completed record is stored, so a
	// failed write still leaves a job that can be marked failed.
	done := *r.job
	if err := done.Complete(final.Summary(), o.now()); err != nil {
		return domain.Permanent(err)
	}
	_, err = o.cfg.Retry.Do(ctx, func(ctx context.Context, _ int) error {
		err := o.saveJob(ctx, r, &done)
		if err != nil && !errors.Is(err, errAbandoned) {
			return domain.Transient(err)
		}
		return err
	}, func(attempt int, err error, wait time.Duration) {
		o.logger.Warn("orchestrator.runConsolidation: saving completed job failed, retrying",
			"job_id", r.job.ID, "attempt", attempt, "wait", wait, "error", err)
	})
	if err != nil {
		if errors.Is(err, errAbandoned) {
			return err
		}
		return fmt.Errorf("saving completed job: %w", err)
	}
	*r.job = done
	o.notify(ctx, domain.JobEventCompleted, r.job)
	return nil
}

// attempt runs one stage body under the retry policy, bounding each attempt
// by the stage timeout, and records the stage timing.
func (o *Orchestrator) attempt(ctx context.Context, r *run, stage domain.StageName, fn func(context.Context) error) error {
	started := o.now()
	attempts, err := o.cfg.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		return o.withTimeout(ctx, fn)
	}, func(attempt int, err error, wait time.Duration) {
		o.logger.Warn("orchestrator.attempt: transient stage failure, retrying",
			"job_id", r.job.ID, "stage", stage, "attempt", attempt, "wait", wait, "error", err)
	})
	r.timings = append(r.timings, domain.StageTiming{
		Stage:      stage,
		StartedAt:  started.UTC(),
		DurationMS: o.now().Sub(started).Milliseconds(),
		Attempts:   attempts,
	})
	return err
}

// loadInput reads back a previous stage's artifact for this run.
func (o *Orchestrator) loadInput(ctx context.Context, r *run, stage domain.StageName, out any) error {
	_, err := o.cfg.Retry.Do(ctx, func(ctx context.Context, _ int) error {
		return o.artifacts.Load(ctx, stage, r.job.Subject, r.job.ID, out)
	}, nil)
	return err
}

// withTimeout bounds one attempt. An attempt that runs out of time while the
// parent context is still live is a transient failure.
func (o *Orchestrator) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if o.cfg.StageTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	err := fn(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return domain.Transient(fmt.Errorf("stage timed out after %s: %w", o.cfg.StageTimeout, err))
	}
	return err
}

// advance records stage progress. Failures to persist progress are logged
// and do not stop the run.
func (o *Orchestrator) advance(ctx context.Context, r *run, stage domain.StageName, progress int) {
	before := r.job.Progress
	beforeStage := r.job.Stage
	if err := r.job.Advance(stage, progress, o.now()); err != nil {
		o.logger.Warn("orchestrator.advance: rejected", "job_id", r.job.ID, "error", err)
		return
	}
	if r.job.Progress == before && r.job.Stage == beforeStage {
		return
	}
	if err := o.save(ctx, r); err != nil && !errors.Is(err, errAbandoned) {
		o.logger.Warn("orchestrator.advance: saving progress failed", "job_id", r.job.ID, "progress", r.job.Progress, "error", err)
	}
}

// save writes the job record unless the stored copy was already finalized by
// someone else, such as the stale-job reaper.
func (o *Orchestrator) save(ctx context.Context, r *run) error {
	return o.saveJob(ctx, r, r.job)
}

// saveJob writes job, a copy of r.job or r.job itself, under the same guard.
func (o *Orchestrator) saveJob(ctx context.Context, r *run, job *domain.Job) error {
	if r.abandoned {
		return errAbandoned
	}
	ctx = context.WithoutCancel(ctx)
	stored, err := o.jobs.GetByID(ctx, job.ID)
	if err == nil && stored.Status.IsTerminal() {
		r.abandoned = true
		return errAbandoned
	}
	return o.jobs.Update(ctx, job)
}

// fail marks the job failed with a human-readable message. Completed stages'
// artifacts stay in the store.
func (o *Orchestrator) fail(ctx context.Context, r *run, stage domain.StageName, cause error) error {
	if errors.Is(cause, errAbandoned) {
		o.logger.Warn("orchestrator.Run: job finalized elsewhere, stopping", "job_id", r.job.ID, "stage", stage)
		return nil
	}

	msg := FailureMessage(stage, cause)
	if err := r.job.Fail(msg, o.now()); err != nil {
		return fmt.Errorf("orchestrator.Run: %w", err)
	}
	if err := o.save(ctx, r); err != nil {
		if errors.Is(err, errAbandoned) {
			o.logger.Warn("orchestrator.Run: job finalized elsewhere, stopping", "job_id", r.job.ID, "stage", stage)
			return nil
		}
		o.logger.Error("orchestrator.Run: saving failed job", "job_id", r.job.ID, "error", err)
	}
	o.notify(ctx, domain.JobEventFailed, r.job)
	o.logger.Error("orchestrator.Run: job failed", "job_id", r.job.ID, "stage", stage,
		"kind", domain.KindOf(cause), "progress", r.job.Progress, "error", cause)
	return fmt.Errorf("job %s failed: %w", r.job.ID, cause)
}

// FailureMessage renders the error surfaced on a failed job.
func FailureMessage(stage domain.StageName, err error) string {
	switch {
	case errors.Is(err, domain.ErrJobCanceled):
		return "job canceled"
	case errors.Is(err, context.Canceled):
		return "job interrupted: worker shutting down"
	case stage == "":
		return err.Error()
	case errors.Is(err, domain.ErrTransientExhausted):
		return fmt.Sprintf("%s stage: %v", stage, err)
	default:
		return fmt.Sprintf("%s stage failed: %v", stage, err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, t domain.JobEventType, job *domain.Job) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(context.WithoutCancel(ctx), domain.NewJobEvent(t, job, o.now())); err != nil {
		o.logger.Warn("orchestrator.notify: delivery failed", "job_id", job.ID, "event", t, "error", err)
	}
}
