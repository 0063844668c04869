package domain

import (
	"fmt"
	"time"
)

// JobOptions carries optional submission metadata.
type JobOptions struct {
	Priority    Priority          `json:"priority"`
	CallbackURL string            `json:"callback_url,omitempty"`
	NotifyEmail string            `json:"notify_email,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Job represents one end-to-end processing request for a subject.
type Job struct {
	ID          string      `json:"job_id"`
	Subject     string      `json:"patient_name"`
	Status      JobStatus   `json:"status"`
	Progress    int         `json:"progress"`
	Stage       StageName   `json:"stage,omitempty"`
	Error       string      `json:"error,omitempty"`
	Options     JobOptions  `json:"options"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Result      *JobSummary `json:"result,omitempty"`
}

// JobSummary is the consolidated outcome exposed on a completed job.
// MissingFields is always present, even when empty.
type JobSummary struct {
	FilledFormPath string            `json:"filled_form_path"`
	FilledFields   int               `json:"filled_fields"`
	TotalFields    int               `json:"total_fields"`
	OverallScore   float64           `json:"overall_score"`
	MissingFields  []MissingField    `json:"missing_fields"`
	OutputFiles    []string          `json:"output_files"`
	DownloadURLs   map[string]string `json:"download_urls,omitempty"`
}

// NewJob creates a pending job.
func NewJob(id, subject string, opts JobOptions, now time.Time) *Job {
	if opts.Priority == "" {
		opts.Priority = PriorityNormal
	}
	return &Job{
		ID:        id,
		Subject:   subject,
		Status:    JobStatusPending,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start moves a pending job to processing.
func (j *Job) Start(now time.Time) error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusProcessing)
	}
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// Advance records the current stage and raises progress. Progress never
// decreases; a lower value is ignored.
func (j *Job) Advance(stage StageName, progress int, now time.Time) error {
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: cannot advance %s job", ErrInvalidTransition, j.Status)
	}
	if progress > 100 {
		progress = 100
	}
	if stage != "" {
		j.Stage = stage
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	j.UpdatedAt = now
	return nil
}

// Complete marks a processing job as completed with its summary.
func (j *Job) Complete(summary *JobSummary, now time.Time) error {
	if j.Status != JobStatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusCompleted)
	}
	if summary != nil && summary.MissingFields == nil {
		summary.MissingFields = []MissingField{}
	}
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.Result = summary
	j.Error = ""
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// Fail marks a non-terminal job as failed. Progress is left at its last value.
func (j *Job) Fail(msg string, now time.Time) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobStatusFailed)
	}
	j.Status = JobStatusFailed
	j.Error = msg
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// --- Document analysis artifact ---

// Rect is a rectangle in PDF user space (lower-left / upper-right).
type Rect struct {
	LLX float64 `json:"llx"`
	LLY float64 `json:"lly"`
	URX float64 `json:"urx"`
	URY float64 `json:"ury"`
}

// FormField describes one fillable field declared by a destination form.
type FormField struct {
	Name      string    `json:"field_name"`
	Type      FieldType `json:"field_type"`
	Page      int       `json:"page"`
	Rect      Rect      `json:"rect"`
	Required  bool      `json:"required"`
	MaxLength int       `json:"max_length,omitempty"`
}

// FormAnalysis is the structure of the PA form template.
type FormAnalysis struct {
	TotalPages   int         `json:"total_pages"`
	TotalFields  int         `json:"total_fields"`
	WidgetFields int         `json:"widget_fields"`
	Fields       []FormField `json:"fields"`
	FieldTypes   []FieldType `json:"field_types"`
}

// HasWidgets reports whether the template declares fillable widgets. Fields
// of a flat template come from its overlay table instead.
func (f FormAnalysis) HasWidgets() bool {
	return f.WidgetFields > 0
}

// PageInfo describes one referral package page.
type PageInfo struct {
	PageNumber int  `json:"page_number"`
	HasText    bool `json:"has_text"`
	HasImages  bool `json:"has_images"`
	TextLength int  `json:"text_length"`
	IsScanned  bool `json:"is_scanned"`
}

// ReferralSummary aggregates referral page classification.
type ReferralSummary struct {
	ScannedPages    int  `json:"scanned_pages"`
	TextPages       int  `json:"text_pages"`
	TotalTextLength int  `json:"total_text_length"`
	RequiresOCR     bool `json:"requires_ocr"`
}

// ReferralAnalysis is the page-level inspection of the referral package.
type ReferralAnalysis struct {
	TotalPages int             `json:"total_pages"`
	Pages      []PageInfo      `json:"pages_info"`
	Summary    ReferralSummary `json:"summary"`
}

// DocumentAnalysis is the artifact produced by the document analysis stage.
type DocumentAnalysis struct {
	Subject      string           `json:"patient_name"`
	PAFormPath   string           `json:"pa_form_path"`
	ReferralPath string           `json:"referral_path"`
	TemplateID   string           `json:"template_id"`
	Form         FormAnalysis     `json:"form_analysis"`
	Referral     ReferralAnalysis `json:"referral_analysis"`
	AnalyzedAt   time.Time        `json:"analyzed_at"`
}

// --- OCR artifact ---

// BoundingBox is a block position in raster pixel coordinates (origin top-left).
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// TextBlock is one block of recognized text.
type TextBlock struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
	Page       int         `json:"page"`
}

// OCRMetrics summarizes recognition quality.
type OCRMetrics struct {
	TotalBlocks         int     `json:"total_blocks"`
	TotalTextLength     int     `json:"total_text_length"`
	AverageConfidence   float64 `json:"average_confidence"`
	LowConfidenceBlocks int     `json:"low_confidence_blocks"`
	BlankPages          []int   `json:"blank_pages"`
}

// OCRResult is the artifact produced by the OCR stage.
type OCRResult struct {
	Subject      string      `json:"patient_name"`
	ReferralPath string      `json:"referral_path"`
	DPI          int         `json:"dpi"`
	Pages        int         `json:"pages"`
	Blocks       []TextBlock `json:"ocr_results"`
	Text         string      `json:"text"`
	Metrics      OCRMetrics  `json:"metrics"`
	ExtractedAt  time.Time   `json:"extracted_at"`
}

// --- NLP artifact ---

// Entity is one extracted, typed record.
type Entity struct {
	Key        EntityKey `json:"key"`
	Text       string    `json:"text"`
	Normalized string    `json:"normalized,omitempty"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Source     string    `json:"source,omitempty"`
}

// Value returns the normalized value when present, otherwise the raw text.
func (e Entity) Value() string {
	if e.Normalized != "" {
		return e.Normalized
	}
	return e.Text
}

// EntityGroups holds the entity lists by group. Empty groups are valid.
type EntityGroups struct {
	Patient     []Entity `json:"patient"`
	Insurance   []Entity `json:"insurance"`
	Medications []Entity `json:"medications"`
	Providers   []Entity `json:"providers"`
	Diagnoses   []Entity `json:"diagnoses"`
	Dates       []Entity `json:"dates"`
}

// Each visits every entity in group order.
func (g EntityGroups) Each(fn func(group EntityGroup, e Entity)) {
	for _, ge := range []struct {
		group    EntityGroup
		entities []Entity
	}{
		{GroupPatient, g.Patient},
		{GroupInsurance, g.Insurance},
		{GroupMedications, g.Medications},
		{GroupProviders, g.Providers},
		{GroupDiagnoses, g.Diagnoses},
		{GroupDates, g.Dates},
	} {
		for _, e := range ge.entities {
			fn(ge.group, e)
		}
	}
}

// Add appends e to the list for group.
func (g *EntityGroups) Add(group EntityGroup, e Entity) {
	switch group {
	case GroupPatient:
		g.Patient = append(g.Patient, e)
	case GroupInsurance:
		g.Insurance = append(g.Insurance, e)
	case GroupMedications:
		g.Medications = append(g.Medications, e)
	case GroupProviders:
		g.Providers = append(g.Providers, e)
	case GroupDiagnoses:
		g.Diagnoses = append(g.Diagnoses, e)
	case GroupDates:
		g.Dates = append(g.Dates, e)
	}
}

// Normalize replaces nil groups with empty slices so absence serializes as [].
func (g *EntityGroups) Normalize() {
	for _, p := range []*[]Entity{&g.Patient, &g.Insurance, &g.Medications, &g.Providers, &g.Diagnoses, &g.Dates} {
		if *p == nil {
			*p = []Entity{}
		}
	}
}

// EntityResult is the artifact produced by the NLP stage.
type EntityResult struct {
	Subject            string       `json:"patient_name"`
	Entities           EntityGroups `json:"entities"`
	Threshold          float64      `json:"confidence_threshold"`
	TotalEntities      int          `json:"total_entities"`
	LowConfidenceCount int          `json:"low_confidence_count"`
	ConfidenceScore    float64      `json:"confidence_score"`
	AnalyzedAt         time.Time    `json:"analyzed_at"`
}

// --- Form-fill artifact ---

// Provenance records which entity a field value came from.
type Provenance struct {
	EntityKey  EntityKey     `json:"entity_key"`
	Group      EntityGroup   `json:"group"`
	Confidence float64       `json:"confidence"`
	Strategy   MatchStrategy `json:"strategy"`
}

// FieldAssignment is the mapping outcome for one declared form field.
type FieldAssignment struct {
	FieldName  string        `json:"field_name"`
	Value      string        `json:"value"`
	Status     FieldStatus   `json:"status"`
	Reason     MissingReason `json:"reason,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	Required   bool          `json:"required"`
	Provenance *Provenance   `json:"provenance,omitempty"`
}

// MissingField is one entry of the user-facing missing-fields report.
type MissingField struct {
	FieldName string        `json:"field_name"`
	Reason    MissingReason `json:"reason"`
	Required  bool          `json:"required"`
	Detail    string        `json:"detail,omitempty"`
}

// FormResult is the artifact produced by the form-fill stage.
type FormResult struct {
	Subject        string            `json:"patient_name"`
	TemplateID     string            `json:"template_id"`
	FilledFormPath string            `json:"filled_form_path"`
	RenderMode     RenderMode        `json:"render_mode"`
	Fields         []FieldAssignment `json:"fields"`
	MissingFields  []MissingField    `json:"missing_fields"`
	FilledCount    int               `json:"filled_count"`
	TotalCount     int               `json:"total_count"`
	FilledAt       time.Time         `json:"filled_at"`
}

// --- Consolidated artifact ---

// StageTiming records wall-clock duration and attempts for one stage.
type StageTiming struct {
	Stage      StageName `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Attempts   int       `json:"attempts"`
}

// QualityScore is the weighted confidence/completeness score of a run.
type QualityScore struct {
	OCRConfidence    float64 `json:"ocr_confidence"`
	EntityConfidence float64 `json:"entity_confidence"`
	Completeness     float64 `json:"completeness"`
	Overall          float64 `json:"overall"`
}

// FinalResult is the consolidated record of one pipeline run.
type FinalResult struct {
	JobID          string          `json:"job_id"`
	Subject        string          `json:"patient_name"`
	TemplateID     string          `json:"template_id"`
	Referral       ReferralSummary `json:"referral_summary"`
	OCR            OCRMetrics      `json:"ocr_metrics"`
	EntityCounts   map[string]int  `json:"entity_counts"`
	FilledFormPath string          `json:"filled_form_path"`
	RenderMode     RenderMode      `json:"render_mode"`
	FilledCount    int             `json:"filled_count"`
	TotalCount     int             `json:"total_count"`
	MissingFields  []MissingField  `json:"missing_fields"`
	Score          QualityScore    `json:"score"`
	Timings        []StageTiming   `json:"timings"`
	OutputFiles    []string        `json:"output_files"`
	CompletedAt    time.Time       `json:"completed_at"`
	// DownloadURLs maps an output file name to a presigned URL when the
	// outputs are uploaded.
	DownloadURLs map[string]string `json:"download_urls,omitempty"`
}

// Summary builds the job summary exposed on the job record.
func (r *FinalResult) Summary() *JobSummary {
	missing := r.MissingFields
	if missing == nil {
		missing = []MissingField{}
	}
	return &JobSummary{
		FilledFormPath: r.FilledFormPath,
		FilledFields:   r.FilledCount,
		TotalFields:    r.TotalCount,
		OverallScore:   r.Score.Overall,
		MissingFields:  missing,
		OutputFiles:    r.OutputFiles,
		DownloadURLs:   r.DownloadURLs,
	}
}
