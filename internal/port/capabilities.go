package port

import (
	"context"

	"claimease/internal/domain"
)

// FormInspector reads the fillable-field structure of a form template.
type FormInspector interface {
	InspectForm(ctx context.Context, path string) (*domain.FormAnalysis, error)
}

// PageProbe is the raw per-page inspection of a PDF.
type PageProbe struct {
	PageNumber int
	TextLength int
	HasImages  bool
}

// PDFTextProbe reports the embedded text and images of each page.
type PDFTextProbe interface {
	ProbePages(ctx context.Context, path string) ([]PageProbe, error)
}

// PageImage is one rasterized page.
type PageImage struct {
	Page  int
	Image []byte
}

// Rasterizer converts PDF pages to images.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, dpi int) ([]PageImage, error)
}

// TextRecognizer runs OCR over one page image. Confidence is in [0,1] and
// boxes are in pixel coordinates.
type TextRecognizer interface {
	Recognize(ctx context.Context, img PageImage) ([]domain.TextBlock, error)
}

// RecognitionInput is the text handed to an entity recognizer.
type RecognitionInput struct {
	Text    string
	Subject string
}

// EntityRecognizer extracts typed entities from free text.
type EntityRecognizer interface {
	Extract(ctx context.Context, in RecognitionInput) (domain.EntityGroups, error)
}

// FieldValue is one assigned value handed to the renderer.
type FieldValue struct {
	Name  string
	Value string
	Type  domain.FieldType
	Page  int
}

// RenderRequest describes one filled-form render.
type RenderRequest struct {
	TemplatePath string
	OutputPath   string
	Mode         domain.RenderMode
	Values       []FieldValue
	Overlay      *domain.OverlayTable
}

// FormRenderer writes assigned values onto a form template.
type FormRenderer interface {
	Render(ctx context.Context, req RenderRequest) error
}

// OverlayTables resolves the coordinate table for a template id. It returns
// nil and no error when the template has no table.
type OverlayTables interface {
	Lookup(templateID string) (*domain.OverlayTable, error)
}
