package domain

// JobStatus represents the lifecycle of a processing job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Priority controls where a job is placed in the processing queue.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ValidPriorities is the set of accepted priority values.
var ValidPriorities = map[Priority]bool{
	PriorityNormal: true,
	PriorityHigh:   true,
}

// StageName identifies one pipeline stage. The value doubles as the artifact key prefix.
type StageName string

const (
	StageAnalysis      StageName = "analysis"
	StageOCR           StageName = "ocr"
	StageNLP           StageName = "nlp"
	StageForm          StageName = "form"
	StageConsolidation StageName = "result"
)

// PipelineStages lists the stages in execution order.
var PipelineStages = []StageName{
	StageAnalysis,
	StageOCR,
	StageNLP,
	StageForm,
	StageConsolidation,
}

// ValidStages maps a stage name to whether it produces an inspectable artifact.
var ValidStages = map[StageName]bool{
	StageAnalysis:      true,
	StageOCR:           true,
	StageNLP:           true,
	StageForm:          true,
	StageConsolidation: true,
}

// ErrorKind classifies a stage failure for the retry policy.
type ErrorKind string

const (
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindPermanent ErrorKind = "permanent"
)

// FieldStatus is the outcome of mapping a single destination form field.
type FieldStatus string

const (
	FieldStatusFilled  FieldStatus = "filled"
	FieldStatusMissing FieldStatus = "missing"
)

// MissingReason explains why a destination form field was left empty.
type MissingReason string

const (
	ReasonNotFoundInSource  MissingReason = "not_found_in_source"
	ReasonValidationFailed  MissingReason = "validation_failed"
	ReasonNoMatchingPattern MissingReason = "no_matching_pattern"
)

// ValidMissingReasons is the fixed missing-field taxonomy.
var ValidMissingReasons = map[MissingReason]bool{
	ReasonNotFoundInSource:  true,
	ReasonValidationFailed:  true,
	ReasonNoMatchingPattern: true,
}

// MatchStrategy records how a field value was assigned.
type MatchStrategy string

const (
	StrategySemantic   MatchStrategy = "semantic"
	StrategyPositional MatchStrategy = "positional"
)

// RenderMode records how assigned values were placed onto the destination form.
type RenderMode string

const (
	RenderModeWidget  RenderMode = "widget"
	RenderModeOverlay RenderMode = "overlay"
	RenderModeNone    RenderMode = "none"
)

// FieldType is the declared type of a fillable form field.
type FieldType string

const (
	FieldTypeText       FieldType = "text"
	FieldTypeCheckbox   FieldType = "checkbox"
	FieldTypeRadio      FieldType = "radiobutton"
	FieldTypePushButton FieldType = "pushbutton"
	FieldTypeChoice     FieldType = "choice"
	FieldTypeSignature  FieldType = "signature"
	FieldTypeUnknown    FieldType = "unknown"
)

// AcceptsText reports whether a field of type t can hold a free-text value.
func (t FieldType) AcceptsText() bool {
	return t == FieldTypeText || t == FieldTypeChoice || t == FieldTypeUnknown || t == ""
}

// EntityGroup names one group of extracted entities.
type EntityGroup string

const (
	GroupPatient     EntityGroup = "patient"
	GroupInsurance   EntityGroup = "insurance"
	GroupMedications EntityGroup = "medications"
	GroupProviders   EntityGroup = "providers"
	GroupDiagnoses   EntityGroup = "diagnoses"
	GroupDates       EntityGroup = "dates"
)
