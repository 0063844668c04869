package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimease/internal/domain"
	"claimease/internal/pipeline"
	"claimease/internal/port"
	"claimease/internal/repository/kvstore"
	"claimease/internal/store/memory"
)

// --- fakes ---

type recordingRepo struct {
	port.JobRepository
	mu       sync.Mutex
	progress []int
	statuses []domain.JobStatus

	// updateErr, when set, may reject a write before it reaches the store.
	updateErr func(job *domain.Job) error
	// onCancelCheck runs after each cancel flag lookup.
	onCancelCheck func()
}

func (r *recordingRepo) Update(ctx context.Context, job *domain.Job) error {
	if r.updateErr != nil {
		if err := r.updateErr(job); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.progress = append(r.progress, job.Progress)
	r.statuses = append(r.statuses, job.Status)
	r.mu.Unlock()
	return r.JobRepository.Update(ctx, job)
}

func (r *recordingRepo) CancelRequested(ctx context.Context, id string) (bool, error) {
	canceled, err := r.JobRepository.CancelRequested(ctx, id)
	if r.onCancelCheck != nil {
		r.onCancelCheck()
	}
	return canceled, err
}

type fakeAnalysis struct {
	err   error
	calls int
}

func (f *fakeAnalysis) Analyze(_ context.Context, subject string) (*domain.DocumentAnalysis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.DocumentAnalysis{
		Subject:      subject,
		PAFormPath:   "data/input/" + subject + "/pa.pdf",
		ReferralPath: "data/input/" + subject + "/referral_package.pdf",
		TemplateID:   "pa",
		Form: domain.FormAnalysis{
			TotalPages:   1,
			TotalFields:  2,
			WidgetFields: 2,
			Fields: []domain.FormField{
				{Name: "Patient Name", Type: domain.FieldTypeText, Page: 1},
				{Name: "Member ID", Type: domain.FieldTypeText, Page: 1},
			},
			FieldTypes: []domain.FieldType{domain.FieldTypeText},
		},
		Referral: domain.ReferralAnalysis{TotalPages: 2, Pages: []domain.PageInfo{}},
	}, nil
}

type fakeOCR struct {
	fn    func(ctx context.Context, attempt int) error
	calls int
}

func (f *fakeOCR) Extract(ctx context.Context, a *domain.DocumentAnalysis, progress port.ProgressFunc) (*domain.OCRResult, error) {
	f.calls++
	if f.fn != nil {
		if err := f.fn(ctx, f.calls); err != nil {
			return nil, err
		}
	}
	progress(1, 2)
	progress(2, 2)
	return &domain.OCRResult{
		Subject:      a.Subject,
		ReferralPath: a.ReferralPath,
		DPI:          300,
		Pages:        2,
		Blocks:       []domain.TextBlock{{Text: "Patient: Akshay", Confidence: 0.9, Page: 1}},
		Text:         "Patient: Akshay",
		Metrics:      domain.OCRMetrics{TotalBlocks: 1, AverageConfidence: 0.9, BlankPages: []int{}},
	}, nil
}

type fakeNLP struct {
	hook  func()
	calls int
}

func (f *fakeNLP) Recognize(_ context.Context, ocr *domain.OCRResult) (*domain.EntityResult, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	res := &domain.EntityResult{Subject: ocr.Subject, Threshold: 0.6}
	res.Entities.Add(domain.GroupPatient, domain.Entity{Key: domain.KeyPatientName, Text: "Akshay", Confidence: 0.85})
	res.Entities.Add(domain.GroupInsurance, domain.Entity{Key: domain.KeyMemberID, Text: "AB1234567", Confidence: 0.4})
	res.Entities.Normalize()
	res.TotalEntities = 2
	res.LowConfidenceCount = 1
	return res, nil
}

type fakeForm struct {
	calls int
	got   *domain.EntityResult
}

func (f *fakeForm) Fill(_ context.Context, a *domain.DocumentAnalysis, e *domain.EntityResult) (*domain.FormResult, error) {
	f.calls++
	f.got = e
	return &domain.FormResult{
		Subject:        a.Subject,
		TemplateID:     a.TemplateID,
		FilledFormPath: "data/output/" + a.Subject + "/filled_pa_form.pdf",
		RenderMode:     domain.RenderModeWidget,
		Fields: []domain.FieldAssignment{
			{FieldName: "Patient Name", Value: "Akshay", Status: domain.FieldStatusFilled},
			{FieldName: "Member ID", Value: "AB1234567", Status: domain.FieldStatusFilled},
		},
		MissingFields: []domain.MissingField{},
		FilledCount:   2,
		TotalCount:    2,
	}, nil
}

type fakeConsolidator struct {
	calls int
	in    port.ConsolidationInput
}

func (f *fakeConsolidator) Consolidate(_ context.Context, in port.ConsolidationInput) (*domain.FinalResult, error) {
	f.calls++
	f.in = in
	return &domain.FinalResult{
		JobID:          in.JobID,
		Subject:        in.Subject,
		FilledFormPath: in.Form.FilledFormPath,
		FilledCount:    in.Form.FilledCount,
		TotalCount:     in.Form.TotalCount,
		MissingFields:  []domain.MissingField{},
		Score:          domain.QualityScore{Overall: 0.82},
		Timings:        in.Timings,
		OutputFiles:    []string{"result.json"},
	}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.JobEventType
}

func (n *recordingNotifier) Notify(_ context.Context, e domain.JobEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e.Type)
	return nil
}

// --- harness ---

type harness struct {
	repo     *recordingRepo
	notifier *recordingNotifier
	analysis *fakeAnalysis
	ocr      *fakeOCR
	nlp      *fakeNLP
	form     *fakeForm
	consol   *fakeConsolidator
	orch     *pipeline.Orchestrator
	kv       *memory.Store
}

func newHarness(t *testing.T, cfg pipeline.Config) *harness {
	t.Helper()
	kv := memory.New()
	artifacts, err := pipeline.NewArtifactStore(kv, time.Hour)
	require.NoError(t, err)

	h := &harness{
		repo:     &recordingRepo{JobRepository: kvstore.NewJobRepo(kv, 0)},
		notifier: &recordingNotifier{},
		analysis: &fakeAnalysis{},
		ocr:      &fakeOCR{},
		nlp:      &fakeNLP{},
		form:     &fakeForm{},
		consol:   &fakeConsolidator{},
		kv:       kv,
	}
	h.orch = pipeline.NewOrchestrator(h.repo, artifacts, pipeline.Stages{
		Analysis:      h.analysis,
		OCR:           h.ocr,
		NLP:           h.nlp,
		Form:          h.form,
		Consolidation: h.consol,
	}, h.notifier, cfg, nil)
	return h
}

func (h *harness) submit(t *testing.T, id string) {
	t.Helper()
	job := domain.NewJob(id, "Akshay", domain.JobOptions{}, time.Now())
	require.NoError(t, h.repo.Create(context.Background(), job))
}

func (h *harness) job(t *testing.T, id string) *domain.Job {
	t.Helper()
	job, err := h.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return job
}

func defaultConfig() pipeline.Config {
	return pipeline.Config{Retry: fastPolicy(3), StageTimeout: time.Second}
}

// --- tests ---

func TestOrchestrator_Run_Completes(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.submit(t, "j1")

	require.NoError(t, h.orch.Run(context.Background(), "j1"))

	job := h.job(t, "j1")
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.Result)
	assert.Equal(t, 2, job.Result.FilledFields)
	assert.Equal(t, 2, job.Result.TotalFields)
	assert.InDelta(t, 0.82, job.Result.OverallScore, 1e-9)
	assert.NotNil(t, job.Result.MissingFields)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)

	assert.Equal(t, []domain.JobEventType{domain.JobEventStarted, domain.JobEventCompleted}, h.notifier.events)

	require.Len(t, h.consol.in.Timings, 4)
	for i, stage := range []domain.StageName{domain.StageAnalysis, domain.StageOCR, domain.StageNLP, domain.StageForm} {
		assert.Equal(t, stage, h.consol.in.Timings[i].Stage)
		assert.Equal(t, 1, h.consol.in.Timings[i].Attempts)
	}
}

func TestOrchestrator_Run_ProgressIsMonotonic(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.submit(t, "j1")

	require.NoError(t, h.orch.Run(context.Background(), "j1"))

	require.NotEmpty(t, h.repo.progress)
	for i := 1; i < len(h.repo.progress); i++ {
		assert.GreaterOrEqual(t, h.repo.progress[i], h.repo.progress[i-1], "progress went backwards at update %d: %v", i, h.repo.progress)
	}
	assert.Equal(t, 100, h.repo.progress[len(h.repo.progress)-1])
	assert.Contains(t, h.repo.progress, 10)
	assert.Contains(t, h.repo.progress, 25)
	assert.Contains(t, h.repo.progress, 37)
	assert.Contains(t, h.repo.progress, 50)
	assert.Contains(t, h.repo.progress, 75)
	assert.Contains(t, h.repo.progress, 90)
}

func TestOrchestrator_Run_LowConfidenceEntityReachesFormStage(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.submit(t, "j1")

	require.NoError(t, h.orch.Run(context.Background(), "j1"))

	require.NotNil(t, h.form.got)
	require.Len(t, h.form.got.Entities.Insurance, 1)
	assert.Equal(t, "AB1234567", h.form.got.Entities.Insurance[0].Text)
	assert.InDelta(t, 0.4, h.form.got.Entities.Insurance[0].Confidence, 1e-9)
}

func TestOrchestrator_Run_MissingReferralFailsAtAnalysis(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.analysis.err = domain.Permanent(fmt.Errorf("%w: referral package not found for Akshay", domain.ErrDocumentsNotFound))
	h.submit(t, "j1")

	err := h.orch.Run(context.Background(), "j1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDocumentsNotFound))

	job := h.job(t, "j1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "referral")
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, 1, h.analysis.calls)
	assert.Zero(t, h.ocr.calls)
	assert.Equal(t, []domain.JobEventType{domain.JobEventStarted, domain.JobEventFailed}, h.notifier.events)

	_, err = h.kv.Get(context.Background(), "ocr:Akshay:j1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrchestrator_Run_TransientOCRRecovers(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.ocr.fn = func(_ context.Context, attempt int) error {
		if attempt < 3 {
			return domain.Transient(errors.New("ocr engine unavailable"))
		}
		return nil
	}
	h.submit(t, "j1")

	require.NoError(t, h.orch.Run(context.Background(), "j1"))

	job := h.job(t, "j1")
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, h.ocr.calls)
	require.Len(t, h.consol.in.Timings, 4)
	assert.Equal(t, 3, h.consol.in.Timings[1].Attempts)
}

func TestOrchestrator_Run_TransientOCRExhausted(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.ocr.fn = func(context.Context, int) error {
		return domain.Transient(errors.New("ocr engine unavailable"))
	}
	h.submit(t, "j1")

	err := h.orch.Run(context.Background(), "j1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransientExhausted))

	job := h.job(t, "j1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "transient failure persisted after 3 attempts")
	assert.Contains(t, job.Error, "ocr engine unavailable")
	assert.Equal(t, 25, job.Progress)
	assert.Equal(t, 3, h.ocr.calls)
	assert.Zero(t, h.nlp.calls)

	// the analysis artifact is kept
	_, err = h.kv.Get(context.Background(), "analysis:Akshay:j1")
	assert.NoError(t, err)
}

func TestOrchestrator_Run_StageTimeoutIsTransient(t *testing.T) {
	h := newHarness(t, pipeline.Config{Retry: fastPolicy(2), StageTimeout: 20 * time.Millisecond})
	h.ocr.fn = func(ctx context.Context, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	}
	h.submit(t, "j1")

	err := h.orch.Run(context.Background(), "j1")
	require.Error(t, err)

	job := h.job(t, "j1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "after 2 attempts")
	assert.Equal(t, 2, h.ocr.calls)
}

func TestOrchestrator_Run_PermanentStageErrorIsNotRetried(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.ocr.fn = func(context.Context, int) error {
		return errors.New("tesseract: language data missing")
	}
	h.submit(t, "j1")

	require.Error(t, h.orch.Run(context.Background(), "j1"))

	job := h.job(t, "j1")
	assert.Equal(t, "ocr stage failed: tesseract: language data missing", job.Error)
	assert.Equal(t, 1, h.ocr.calls)
}

func TestOrchestrator_Run_CanceledBeforeStart(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.submit(t, "j1")
	require.NoError(t, h.repo.RequestCancel(context.Background(), "j1"))

	err := h.orch.Run(context.Background(), "j1")
	require.Error(t, err)

	job := h.job(t, "j1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "job canceled", job.Error)
	assert.Zero(t, h.analysis.calls)
}

func TestOrchestrator_Run_CanceledBetweenStages(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.submit(t, "j1")
	h.nlp.hook = func() {
		require.NoError(t, h.repo.RequestCancel(context.Background(), "j1"))
	}

	err := h.orch.Run(context.Background(), "j1")
	require.ErrorIs(t, err, domain.ErrJobCanceled)

	job := h.job(t, "j1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "job canceled", job.Error)
	assert.Equal(t, 75, job.Progress)
	assert.Equal(t, 1, h.nlp.calls)
	assert.Zero(t, h.form.calls)
}

func TestOrchestrator_Run_CanceledWhileStarting(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.submit(t, "j1")
	h.repo.onCancelCheck = func() {
		h.repo.onCancelCheck = nil
		ctx := context.Background()
		require.NoError(t, h.repo.RequestCancel(ctx, "j1"))
		job := h.job(t, "j1")
		require.NoError(t, job.Fail("job canceled", time.Now()))
		require.NoError(t, h.repo.JobRepository.Update(ctx, job))
	}

	require.NoError(t, h.orch.Run(context.Background(), "j1"))

	job := h.job(t, "j1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "job canceled", job.Error)
	assert.Empty(t, h.repo.statuses, "the canceled record is never overwritten")
	assert.Empty(t, h.notifier.events)
	assert.Zero(t, h.analysis.calls)
}

func TestOrchestrator_Run_CompletionSaveRetried(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.submit(t, "j1")
	rejected := 0
	h.repo.updateErr = func(job *domain.Job) error {
		if job.Status == domain.JobStatusCompleted && rejected == 0 {
			rejected++
			return errors.New("connection reset")
		}
		return nil
	}

	require.NoError(t, h.orch.Run(context.Background(), "j1"))

	job := h.job(t, "j1")
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, []domain.JobEventType{domain.JobEventStarted, domain.JobEventCompleted}, h.notifier.events)
}

func TestOrchestrator_Run_CompletionSaveFailsJob(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.submit(t, "j1")
	h.repo.updateErr = func(job *domain.Job) error {
		if job.Status == domain.JobStatusCompleted {
			return errors.New("connection reset")
		}
		return nil
	}

	err := h.orch.Run(context.Background(), "j1")
	require.ErrorIs(t, err, domain.ErrTransientExhausted)

	job := h.job(t, "j1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, 90, job.Progress)
	assert.Contains(t, job.Error, "saving completed job")
	assert.Nil(t, job.Result)
	assert.Equal(t, []domain.JobEventType{domain.JobEventStarted, domain.JobEventFailed}, h.notifier.events)
}

func TestOrchestrator_Run_SkipsTerminalJob(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.submit(t, "j1")
	job := h.job(t, "j1")
	require.NoError(t, job.Fail("job canceled", time.Now()))
	require.NoError(t, h.repo.JobRepository.Update(context.Background(), job))

	require.NoError(t, h.orch.Run(context.Background(), "j1"))
	assert.Zero(t, h.analysis.calls)
	assert.Empty(t, h.notifier.events)
}

func TestOrchestrator_Run_AbandonsJobFinalizedElsewhere(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.submit(t, "j1")
	h.nlp.hook = func() {
		job := h.job(t, "j1")
		require.NoError(t, job.Fail("job exceeded maximum duration", time.Now()))
		require.NoError(t, h.repo.JobRepository.Update(context.Background(), job))
	}

	require.NoError(t, h.orch.Run(context.Background(), "j1"))

	job := h.job(t, "j1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "job exceeded maximum duration", job.Error)
	assert.Zero(t, h.form.calls)
}

func TestOrchestrator_Run_ResumesRedeliveredJob(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.submit(t, "j1")
	job := h.job(t, "j1")
	require.NoError(t, job.Start(time.Now()))
	require.NoError(t, job.Advance(domain.StageOCR, 30, time.Now()))
	require.NoError(t, h.repo.JobRepository.Update(context.Background(), job))

	require.NoError(t, h.orch.Run(context.Background(), "j1"))

	job = h.job(t, "j1")
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	for _, p := range h.repo.progress {
		assert.GreaterOrEqual(t, p, 30)
	}
}

func TestOrchestrator_Run_UnknownJob(t *testing.T) {
	h := newHarness(t, defaultConfig())
	err := h.orch.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "job canceled", pipeline.FailureMessage(domain.StageNLP, domain.ErrJobCanceled))
	assert.Equal(t, "form stage failed: boom", pipeline.FailureMessage(domain.StageForm, errors.New("boom")))
	exhausted := &pipeline.ExhaustedError{Attempts: 3, Err: errors.New("busy")}
	assert.Equal(t, "ocr stage: transient failure persisted after 3 attempts: busy", pipeline.FailureMessage(domain.StageOCR, exhausted))
}
