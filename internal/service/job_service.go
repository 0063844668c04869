package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"claimease/internal/domain"
	"claimease/internal/pipeline"
	"claimease/internal/port"
	"claimease/internal/report"
	"claimease/internal/stage/analysis"
)

// SubmitInput carries a processing request for one patient folder.
type SubmitInput struct {
	Subject string
	Options domain.JobOptions
}

// ReportFile is a generated download.
type ReportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// JobService is the submission and status surface of the pipeline.
type JobService interface {
	Submit(ctx context.Context, input SubmitInput) (*domain.Job, error)
	GetStatus(ctx context.Context, jobID string) (*domain.Job, error)
	List(ctx context.Context) ([]domain.Job, error)
	Cancel(ctx context.Context, jobID string) (*domain.Job, error)
	Report(ctx context.Context, jobID string) (*ReportFile, error)
	Artifact(ctx context.Context, subject string, stage domain.StageName) (*domain.ArtifactEnvelope, error)
}

type jobService struct {
	jobs      port.JobRepository
	queue     port.JobQueue
	artifacts *pipeline.ArtifactStore
	notifier  port.Notifier
	inputDir  string
	logger    *slog.Logger
	now       func() time.Time
}

// NewJobService creates a JobService. notifier may be nil.
func NewJobService(jobs port.JobRepository, queue port.JobQueue, artifacts *pipeline.ArtifactStore, notifier port.Notifier, inputDir string, logger *slog.Logger) JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobService{
		jobs:      jobs,
		queue:     queue,
		artifacts: artifacts,
		notifier:  notifier,
		inputDir:  inputDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates the subject, records a pending job and enqueues it. It
// returns as soon as the job is queued.
func (s *jobService) Submit(ctx context.Context, input SubmitInput) (*domain.Job, error) {
	subject := strings.TrimSpace(input.Subject)
	dir, err := analysis.SubjectDir(s.inputDir, subject)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, domain.NewValidationError("patient_name", fmt.Sprintf("input folder for %q not found", subject))
	}

	job := domain.NewJob(uuid.New().String(), subject, input.Options, s.now().UTC())
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, job.ID, job.Options.Priority); err != nil {
		s.logger.Error("jobService.Submit: enqueue failed", "job_id", job.ID, "error", err)
		if ferr := job.Fail("job could not be queued", s.now().UTC()); ferr == nil {
			if uerr := s.jobs.Update(context.WithoutCancel(ctx), job); uerr != nil {
				s.logger.Error("jobService.Submit: marking unqueued job failed", "job_id", job.ID, "error", uerr)
			}
		}
		return nil, fmt.Errorf("enqueuing job: %w", err)
	}

	s.logger.Info("jobService.Submit: job queued",
		"job_id", job.ID,
		"patient", subject,
		"priority", job.Options.Priority,
	)
	s.notify(ctx, domain.JobEventSubmitted, job)
	return job, nil
}

func (s *jobService) GetStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// List returns every known job, newest first.
func (s *jobService) List(ctx context.Context) ([]domain.Job, error) {
	jobs, err := s.jobs.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Cancel requests cancellation. A pending job fails immediately; a
// processing job stops at its next stage boundary.
func (s *jobService) Cancel(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrJobTerminal, jobID, job.Status)
	}
	if err := s.jobs.RequestCancel(ctx, jobID); err != nil {
		return nil, fmt.Errorf("requesting cancel: %w", err)
	}

	if job.Status == domain.JobStatusPending {
		if err := job.Fail(pipeline.FailureMessage("", domain.ErrJobCanceled), s.now().UTC()); err != nil {
			return nil, err
		}
		if err := s.jobs.Update(ctx, job); err != nil {
			return nil, fmt.Errorf("saving canceled job: %w", err)
		}
		s.notify(ctx, domain.JobEventFailed, job)
	}

	s.logger.Info("jobService.Cancel: cancel requested", "job_id", jobID, "status", job.Status)
	return job, nil
}

// Report builds the missing-fields workbook of a completed job from its
// stored artifacts.
func (s *jobService) Report(ctx context.Context, jobID string) (*ReportFile, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusCompleted {
		return nil, domain.NewValidationError("job", fmt.Sprintf("report is available once the job has completed (status %s)", job.Status))
	}

	var (
		final    domain.FinalResult
		form     domain.FormResult
		entities domain.EntityResult
	)
	loads := []struct {
		stage domain.StageName
		out   any
	}{
		{domain.StageConsolidation, &final},
		{domain.StageForm, &form},
		{domain.StageNLP, &entities},
	}
	for _, l := range loads {
		if err := s.artifacts.Load(ctx, l.stage, job.Subject, job.ID, l.out); err != nil {
			if errors.Is(err, domain.ErrStageInputMissing) {
				return nil, fmt.Errorf("%w: %s artifact for job %s has expired", domain.ErrNotFound, l.stage, job.ID)
			}
			return nil, fmt.Errorf("loading %s artifact: %w", l.stage, err)
		}
	}

	content, err := report.Workbook(report.Input{
		Result:   &final,
		Fields:   form.Fields,
		Entities: entities.Entities,
	})
	if err != nil {
		return nil, fmt.Errorf("building report: %w", err)
	}
	return &ReportFile{
		Filename:    report.BuildFilename(job.Subject, "xlsx", s.now()),
		ContentType: xlsxContentType,
		Content:     content,
	}, nil
}

// Artifact returns the latest artifact a stage wrote for subject.
func (s *jobService) Artifact(ctx context.Context, subject string, stage domain.StageName) (*domain.ArtifactEnvelope, error) {
	if !domain.ValidStages[stage] {
		return nil, domain.NewValidationError("stage", fmt.Sprintf("unknown stage %q", stage))
	}
	if _, err := analysis.SubjectDir(s.inputDir, subject); err != nil {
		return nil, err
	}
	return s.artifacts.Latest(ctx, stage, strings.TrimSpace(subject))
}

func (s *jobService) notify(ctx context.Context, t domain.JobEventType, job *domain.Job) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), domain.NewJobEvent(t, job, s.now().UTC())); err != nil {
		s.logger.Warn("jobService.notify: delivery failed", "job_id", job.ID, "event", t, "error", err)
	}
}
