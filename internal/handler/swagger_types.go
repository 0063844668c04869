package handler

import (
	"time"

	"claimease/internal/domain"
)

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// ProcessRequest represents the optional body of a processing request.
type ProcessRequest struct {
	Priority    string            `json:"priority" binding:"omitempty,oneof=normal high" example:"normal"`
	CallbackURL string            `json:"callback_url" binding:"omitempty,url" example:"https://intake.example.com/hooks/claimease"`
	NotifyEmail string            `json:"notify_email" binding:"omitempty,email" example:"pa-team@example.com"`
	Metadata    map[string]string `json:"metadata" example:"source:fax-intake"`
}

// --- Response Types ---

// ProcessResponse is returned when a job is accepted.
type ProcessResponse struct {
	JobID       string           `json:"job_id" example:"3f0c5a8e-8d3b-4b8e-9a57-2f1b7c0d9e11"`
	PatientName string           `json:"patient_name" example:"Akshay_Chaudhari"`
	Status      domain.JobStatus `json:"status" example:"pending"`
}

// JobStatusResponse is the status view of a job.
type JobStatusResponse struct {
	JobID       string             `json:"job_id" example:"3f0c5a8e-8d3b-4b8e-9a57-2f1b7c0d9e11"`
	PatientName string             `json:"patient_name" example:"Akshay_Chaudhari"`
	Status      domain.JobStatus   `json:"status" example:"processing"`
	Progress    int                `json:"progress" example:"50"`
	Stage       domain.StageName   `json:"stage,omitempty" example:"nlp"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Result      *domain.JobSummary `json:"result,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}

// Response wraps a successful response.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *ListMeta   `json:"meta,omitempty"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}

func newJobStatusResponse(j *domain.Job) JobStatusResponse {
	return JobStatusResponse{
		JobID:       j.ID,
		PatientName: j.Subject,
		Status:      j.Status,
		Progress:    j.Progress,
		Stage:       j.Stage,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
}
