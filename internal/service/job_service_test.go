package service_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"claimease/internal/domain"
	"claimease/internal/pipeline"
	"claimease/internal/port"
	"claimease/internal/queue/memory"
	"claimease/internal/repository/kvstore"
	"claimease/internal/service"
	memstore "claimease/internal/store/memory"
	"claimease/mocks"
)

type jobFixture struct {
	svc       service.JobService
	jobs      port.JobRepository
	queue     *memory.Queue
	artifacts *pipeline.ArtifactStore
	inputDir  string
}

func newJobFixture(t *testing.T, subjects ...string) *jobFixture {
	t.Helper()
	inputDir := t.TempDir()
	for _, s := range subjects {
		require.NoError(t, os.MkdirAll(filepath.Join(inputDir, s), 0o755))
	}
	kv := memstore.New()
	repo := kvstore.NewJobRepo(kv, time.Hour)
	artifacts, err := pipeline.NewArtifactStore(kv, time.Hour)
	require.NoError(t, err)
	q := memory.New()
	return &jobFixture{
		svc:       service.NewJobService(repo, q, artifacts, nil, inputDir, nil),
		jobs:      repo,
		queue:     q,
		artifacts: artifacts,
		inputDir:  inputDir,
	}
}

func TestJobService_Submit_QueuesPendingJob(t *testing.T) {
	f := newJobFixture(t, "Akshay_Chaudhari")

	job, err := f.svc.Submit(context.Background(), service.SubmitInput{
		Subject: "Akshay_Chaudhari",
		Options: domain.JobOptions{Priority: domain.PriorityHigh, CallbackURL: "https://example.com/hook"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Zero(t, job.Progress)
	assert.Equal(t, 1, f.queue.Len())

	stored, err := f.svc.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Akshay_Chaudhari", stored.Subject)
	assert.Equal(t, domain.PriorityHigh, stored.Options.Priority)
}

func TestJobService_Submit_Validation(t *testing.T) {
	f := newJobFixture(t, "Akshay_Chaudhari")

	for _, subject := range []string{"", "  ", "..", "../etc", "Jane_Doe"} {
		_, err := f.svc.Submit(context.Background(), service.SubmitInput{Subject: subject})
		assert.True(t, errors.Is(err, domain.ErrValidation), "subject %q", subject)
	}
	assert.Zero(t, f.queue.Len())
}

func TestJobService_Submit_EnqueueFailureFailsJob(t *testing.T) {
	inputDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(inputDir, "p1"), 0o755))

	repo := new(mocks.MockJobRepo)
	queue := new(mocks.MockJobQueue)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	queue.On("Enqueue", mock.Anything, mock.Anything, domain.PriorityNormal).Return(errors.New("redis down"))
	repo.On("Update", mock.Anything, mock.MatchedBy(func(j *domain.Job) bool {
		return j.Status == domain.JobStatusFailed && j.Error == "job could not be queued"
	})).Return(nil)

	svc := service.NewJobService(repo, queue, nil, nil, inputDir, nil)
	_, err := svc.Submit(context.Background(), service.SubmitInput{Subject: "p1"})

	assert.ErrorContains(t, err, "redis down")
	repo.AssertExpectations(t)
}

func TestJobService_Submit_NotifiesSubmitted(t *testing.T) {
	inputDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(inputDir, "p1"), 0o755))

	repo := new(mocks.MockJobRepo)
	queue := new(mocks.MockJobQueue)
	notifier := new(mocks.MockNotifier)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	queue.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(e domain.JobEvent) bool {
		return e.Type == domain.JobEventSubmitted && e.Job.Subject == "p1"
	})).Return(nil)

	svc := service.NewJobService(repo, queue, nil, notifier, inputDir, nil)
	_, err := svc.Submit(context.Background(), service.SubmitInput{Subject: "p1"})

	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestJobService_GetStatus_NotFound(t *testing.T) {
	f := newJobFixture(t)
	_, err := f.svc.GetStatus(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrJobNotFound))
}

func TestJobService_List_NewestFirst(t *testing.T) {
	repo := new(mocks.MockJobRepo)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.On("List", mock.Anything).Return([]domain.Job{
		{ID: "a", CreatedAt: base},
		{ID: "c", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "b", CreatedAt: base.Add(time.Minute)},
	}, nil)

	jobs, err := service.NewJobService(repo, nil, nil, nil, "", nil).List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
	assert.Equal(t, "a", jobs[2].ID)
}

func TestJobService_Cancel_PendingFailsImmediately(t *testing.T) {
	f := newJobFixture(t, "p1")
	job, err := f.svc.Submit(context.Background(), service.SubmitInput{Subject: "p1"})
	require.NoError(t, err)

	canceled, err := f.svc.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, canceled.Status)
	assert.Equal(t, "job canceled", canceled.Error)

	_, err = f.svc.Cancel(context.Background(), job.ID)
	assert.True(t, errors.Is(err, domain.ErrJobTerminal))
}

func TestJobService_Cancel_ProcessingSetsFlag(t *testing.T) {
	repo := new(mocks.MockJobRepo)
	job := domain.NewJob("j1", "p1", domain.JobOptions{}, time.Now())
	require.NoError(t, job.Start(time.Now()))
	repo.On("GetByID", mock.Anything, "j1").Return(job, nil)
	repo.On("RequestCancel", mock.Anything, "j1").Return(nil)

	got, err := service.NewJobService(repo, nil, nil, nil, "", nil).Cancel(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestJobService_Report_RequiresCompletedJob(t *testing.T) {
	f := newJobFixture(t, "p1")
	job, err := f.svc.Submit(context.Background(), service.SubmitInput{Subject: "p1"})
	require.NoError(t, err)

	_, err = f.svc.Report(context.Background(), job.ID)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func completeWithArtifacts(t *testing.T, f *jobFixture, job *domain.Job) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	var groups domain.EntityGroups
	groups.Add(domain.GroupPatient, domain.Entity{Key: domain.KeyPatientName, Text: "Akshay Chaudhari", Confidence: 0.9})
	groups.Normalize()
	entities := &domain.EntityResult{Subject: job.Subject, Entities: groups, TotalEntities: 1, ConfidenceScore: 0.9}

	missing := []domain.MissingField{{FieldName: "Patient Address", Reason: domain.ReasonNotFoundInSource}}
	form := &domain.FormResult{
		Subject:        job.Subject,
		FilledFormPath: "out/p1/filled_pa_form.pdf",
		RenderMode:     domain.RenderModeWidget,
		Fields: []domain.FieldAssignment{
			{FieldName: "Patient Name", Value: "Akshay Chaudhari", Status: domain.FieldStatusFilled},
			{FieldName: "Patient Address", Status: domain.FieldStatusMissing, Reason: domain.ReasonNotFoundInSource},
		},
		MissingFields: missing,
		FilledCount:   1,
		TotalCount:    2,
		FilledAt:      now,
	}
	final := &domain.FinalResult{
		JobID:          job.ID,
		Subject:        job.Subject,
		EntityCounts:   map[string]int{"patient": 1},
		FilledFormPath: form.FilledFormPath,
		RenderMode:     form.RenderMode,
		FilledCount:    1,
		TotalCount:     2,
		MissingFields:  missing,
		Timings:        []domain.StageTiming{},
		OutputFiles:    []string{form.FilledFormPath},
		CompletedAt:    now,
	}
	require.NoError(t, f.artifacts.Put(ctx, domain.StageNLP, job.Subject, job.ID, entities))
	require.NoError(t, f.artifacts.Put(ctx, domain.StageForm, job.Subject, job.ID, form))
	require.NoError(t, f.artifacts.Put(ctx, domain.StageConsolidation, job.Subject, job.ID, final))

	require.NoError(t, job.Start(now))
	require.NoError(t, job.Complete(final.Summary(), now))
	require.NoError(t, f.jobs.Update(ctx, job))
}

func TestJobService_Report_BuildsWorkbook(t *testing.T) {
	f := newJobFixture(t, "p1")
	job, err := f.svc.Submit(context.Background(), service.SubmitInput{Subject: "p1"})
	require.NoError(t, err)
	completeWithArtifacts(t, f, job)

	file, err := f.svc.Report(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Contains(t, file.Filename, ".xlsx")
	assert.Contains(t, file.ContentType, "spreadsheetml")

	wb, err := excelize.OpenReader(bytes.NewReader(file.Content))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Missing Fields")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Patient Address", rows[1][0])
}

func TestJobService_Artifact(t *testing.T) {
	f := newJobFixture(t, "p1")
	job, err := f.svc.Submit(context.Background(), service.SubmitInput{Subject: "p1"})
	require.NoError(t, err)
	completeWithArtifacts(t, f, job)

	env, err := f.svc.Artifact(context.Background(), "p1", domain.StageForm)
	require.NoError(t, err)
	assert.Equal(t, domain.StageForm, env.Stage)
	assert.Equal(t, job.ID, env.JobID)

	_, err = f.svc.Artifact(context.Background(), "p1", "bogus")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = f.svc.Artifact(context.Background(), "p1", domain.StageOCR)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
