package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"claimease/internal/domain"
	"claimease/internal/service"
)

// JobHandler handles job submission and status endpoints.
type JobHandler struct {
	jobService service.JobService
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// Process handles POST /api/v1/patients/:name/process
// @Summary Start processing a patient folder
// @Description Queue the PA form and referral package of a patient for extraction. Returns immediately.
// @Tags jobs
// @Accept json
// @Produce json
// @Param name path string true "Patient folder name"
// @Param request body ProcessRequest false "Processing options"
// @Success 202 {object} Response{data=ProcessResponse} "Job accepted"
// @Failure 400 {object} ErrorResponseBody "Invalid patient name or options"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security BearerAuth
// @Router /patients/{name}/process [post]
func (h *JobHandler) Process(c *gin.Context) {
	var req ProcessRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}

	job, err := h.jobService.Submit(c.Request.Context(), service.SubmitInput{
		Subject: c.Param("name"),
		Options: domain.JobOptions{
			Priority:    domain.Priority(req.Priority),
			CallbackURL: req.CallbackURL,
			NotifyEmail: req.NotifyEmail,
			Metadata:    req.Metadata,
		},
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondAccepted(c, ProcessResponse{
		JobID:       job.ID,
		PatientName: job.Subject,
		Status:      job.Status,
	})
}

// Status handles GET /api/v1/jobs/:id/status
// @Summary Get job status
// @Description Status, progress and current stage of a job; the result summary with missing fields once completed
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} Response{data=JobStatusResponse} "Job status"
// @Failure 404 {object} ErrorResponseBody "Job not found"
// @Security BearerAuth
// @Router /jobs/{id}/status [get]
func (h *JobHandler) Status(c *gin.Context) {
	job, err := h.jobService.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, newJobStatusResponse(job))
}

// List handles GET /api/v1/jobs
// @Summary List jobs
// @Description List known jobs, newest first. Filter with ?status=
// @Tags jobs
// @Produce json
// @Param status query string false "Filter by status (pending, processing, completed, failed)"
// @Success 200 {object} Response{data=[]JobStatusResponse} "Jobs"
// @Failure 400 {object} ErrorResponseBody "Invalid status filter"
// @Security BearerAuth
// @Router /jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	status := domain.JobStatus(c.Query("status"))
	if status != "" && !validStatuses[status] {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid status %q", status))
		return
	}

	jobs, err := h.jobService.List(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	if status != "" {
		jobs = lo.Filter(jobs, func(j domain.Job, _ int) bool { return j.Status == status })
	}
	out := lo.Map(jobs, func(j domain.Job, _ int) JobStatusResponse { return newJobStatusResponse(&j) })
	RespondList(c, out, len(out))
}

var validStatuses = map[domain.JobStatus]bool{
	domain.JobStatusPending:    true,
	domain.JobStatusProcessing: true,
	domain.JobStatusCompleted:  true,
	domain.JobStatusFailed:     true,
}

// Cancel handles POST /api/v1/jobs/:id/cancel
// @Summary Cancel a job
// @Description A pending job fails at once; a processing job stops at its next stage boundary
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} Response{data=JobStatusResponse} "Cancel requested"
// @Failure 404 {object} ErrorResponseBody "Job not found"
// @Failure 409 {object} ErrorResponseBody "Job already finished"
// @Security BearerAuth
// @Router /jobs/{id}/cancel [post]
func (h *JobHandler) Cancel(c *gin.Context) {
	job, err := h.jobService.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, newJobStatusResponse(job))
}

// Report handles GET /api/v1/jobs/:id/report.xlsx
// @Summary Download the missing-fields workbook
// @Tags jobs
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Job ID"
// @Success 200 {file} file "XLSX workbook"
// @Failure 400 {object} ErrorResponseBody "Job not completed"
// @Failure 404 {object} ErrorResponseBody "Job or artifacts not found"
// @Security BearerAuth
// @Router /jobs/{id}/report.xlsx [get]
func (h *JobHandler) Report(c *gin.Context) {
	file, err := h.jobService.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// Artifact handles GET /api/v1/patients/:name/artifacts/:stage
// @Summary Inspect a stage artifact
// @Description The latest artifact a stage wrote for the patient
// @Tags artifacts
// @Produce json
// @Param name path string true "Patient folder name"
// @Param stage path string true "Stage (analysis, ocr, nlp, form, result)"
// @Success 200 {object} Response{data=domain.ArtifactEnvelope} "Artifact"
// @Failure 400 {object} ErrorResponseBody "Unknown stage"
// @Failure 404 {object} ErrorResponseBody "No artifact"
// @Security BearerAuth
// @Router /patients/{name}/artifacts/{stage} [get]
func (h *JobHandler) Artifact(c *gin.Context) {
	env, err := h.jobService.Artifact(c.Request.Context(), c.Param("name"), domain.StageName(c.Param("stage")))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, env)
}
