package domain

import (
	"encoding/json"
	"time"
)

// ArtifactEnvelope wraps a stage payload in the key-value store.
type ArtifactEnvelope struct {
	Stage     StageName       `json:"stage"`
	Subject   string          `json:"subject"`
	JobID     string          `json:"job_id"`
	WrittenAt time.Time       `json:"written_at"`
	Payload   json.RawMessage `json:"payload"`
}

// OverlayField places one field value at fixed page coordinates.
type OverlayField struct {
	Name      string    `mapstructure:"name" json:"name"`
	Page      int       `mapstructure:"page" json:"page"`
	X         float64   `mapstructure:"x" json:"x"`
	Y         float64   `mapstructure:"y" json:"y"`
	FontSize  int       `mapstructure:"font_size" json:"font_size,omitempty"`
	MaxLength int       `mapstructure:"max_length" json:"max_length,omitempty"`
	Type      FieldType `mapstructure:"type" json:"type,omitempty"`
	Required  bool      `mapstructure:"required" json:"required,omitempty"`
}

// OverlayTable is the versioned coordinate table for one form template.
type OverlayTable struct {
	TemplateID    string         `mapstructure:"template_id" json:"template_id"`
	Version       int            `mapstructure:"version" json:"version"`
	PreferOverlay bool           `mapstructure:"prefer_overlay" json:"prefer_overlay"`
	FontName      string         `mapstructure:"font_name" json:"font_name,omitempty"`
	FontSize      int            `mapstructure:"font_size" json:"font_size,omitempty"`
	Fields        []OverlayField `mapstructure:"fields" json:"fields"`
}

// Field returns the overlay entry for name.
func (t *OverlayTable) Field(name string) (OverlayField, bool) {
	if t == nil {
		return OverlayField{}, false
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return OverlayField{}, false
}

// FormFields converts the overlay entries into declared form fields, used for
// templates that carry no fillable widgets.
func (t *OverlayTable) FormFields() []FormField {
	if t == nil {
		return nil
	}
	fields := make([]FormField, 0, len(t.Fields))
	for _, f := range t.Fields {
		ft := f.Type
		if ft == "" {
			ft = FieldTypeText
		}
		fields = append(fields, FormField{
			Name:      f.Name,
			Type:      ft,
			Page:      f.Page,
			Rect:      Rect{LLX: f.X, LLY: f.Y, URX: f.X, URY: f.Y},
			Required:  f.Required,
			MaxLength: f.MaxLength,
		})
	}
	return fields
}

// JobEventType names a job lifecycle transition.
type JobEventType string

const (
	JobEventSubmitted JobEventType = "job.submitted"
	JobEventStarted   JobEventType = "job.started"
	JobEventCompleted JobEventType = "job.completed"
	JobEventFailed    JobEventType = "job.failed"
)

// IsTerminal reports whether the event closes the job.
func (t JobEventType) IsTerminal() bool {
	return t == JobEventCompleted || t == JobEventFailed
}

// JobEvent is published on every job lifecycle transition.
type JobEvent struct {
	Type       JobEventType `json:"type"`
	Job        Job          `json:"job"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// NewJobEvent snapshots job into an event.
func NewJobEvent(t JobEventType, job *Job, at time.Time) JobEvent {
	return JobEvent{Type: t, Job: *job, OccurredAt: at}
}
