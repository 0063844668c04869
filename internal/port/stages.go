package port

import (
	"context"

	"claimease/internal/domain"
)

// ProgressFunc reports completed units out of total inside a stage.
type ProgressFunc func(done, total int)

// AnalysisStage locates and inspects a subject's input documents.
type AnalysisStage interface {
	Analyze(ctx context.Context, subject string) (*domain.DocumentAnalysis, error)
}

// OCRStage recognizes the text of the referral package.
type OCRStage interface {
	Extract(ctx context.Context, analysis *domain.DocumentAnalysis, progress ProgressFunc) (*domain.OCRResult, error)
}

// NLPStage extracts entities from recognized text.
type NLPStage interface {
	Recognize(ctx context.Context, ocr *domain.OCRResult) (*domain.EntityResult, error)
}

// FormStage maps entities onto the destination form and renders it.
type FormStage interface {
	Fill(ctx context.Context, analysis *domain.DocumentAnalysis, entities *domain.EntityResult) (*domain.FormResult, error)
}

// ConsolidationInput carries every stage artifact of one run.
type ConsolidationInput struct {
	JobID    string
	Subject  string
	Analysis *domain.DocumentAnalysis
	OCR      *domain.OCRResult
	Entities *domain.EntityResult
	Form     *domain.FormResult
	Timings  []domain.StageTiming
}

// Consolidator merges stage artifacts into the final result and writes the
// output files.
type Consolidator interface {
	Consolidate(ctx context.Context, in ConsolidationInput) (*domain.FinalResult, error)
}
