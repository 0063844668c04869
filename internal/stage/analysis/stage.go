package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// ScannedTextThreshold is the embedded text length under which a page is
// treated as scanned.
const ScannedTextThreshold = 100

// Stage locates a subject's documents and inspects both of them.
type Stage struct {
	inputDir string
	forms    port.FormInspector
	probe    port.PDFTextProbe
	overlays port.OverlayTables
	logger   *slog.Logger
	now      func() time.Time
}

// NewStage creates the document analysis stage. overlays may be nil.
func NewStage(inputDir string, forms port.FormInspector, probe port.PDFTextProbe, overlays port.OverlayTables, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		inputDir: inputDir,
		forms:    forms,
		probe:    probe,
		overlays: overlays,
		logger:   logger,
		now:      time.Now,
	}
}

// Analyze produces the document analysis artifact for subject. Missing or
// unreadable documents fail permanently.
func (s *Stage) Analyze(ctx context.Context, subject string) (*domain.DocumentAnalysis, error) {
	dir, err := SubjectDir(s.inputDir, subject)
	if err != nil {
		return nil, domain.Permanent(err)
	}
	docs, err := Locate(dir)
	if err != nil {
		return nil, domain.Permanent(err)
	}

	form, err := s.forms.InspectForm(ctx, docs.PAForm)
	if err != nil {
		return nil, classify(fmt.Errorf("inspecting PA form: %w", err))
	}
	templateID := TemplateID(docs.PAForm)
	if err := s.applyOverlayFields(templateID, form); err != nil {
		return nil, domain.Permanent(err)
	}

	probes, err := s.probe.ProbePages(ctx, docs.Referral)
	if err != nil {
		return nil, classify(fmt.Errorf("inspecting referral package: %w", err))
	}

	res := &domain.DocumentAnalysis{
		Subject:      subject,
		PAFormPath:   docs.PAForm,
		ReferralPath: docs.Referral,
		TemplateID:   templateID,
		Form:         *form,
		Referral:     ClassifyPages(probes),
		AnalyzedAt:   s.now().UTC(),
	}
	s.logger.Info("analysis.Analyze: documents analyzed",
		"patient", subject,
		"template_id", templateID,
		"form_fields", res.Form.TotalFields,
		"referral_pages", res.Referral.TotalPages,
		"scanned_pages", res.Referral.Summary.ScannedPages,
	)
	return res, nil
}

// applyOverlayFields declares the overlay table's fields for a form that has
// no fillable widgets of its own.
func (s *Stage) applyOverlayFields(templateID string, form *domain.FormAnalysis) error {
	if form.Fields == nil {
		form.Fields = []domain.FormField{}
	}
	if form.FieldTypes == nil {
		form.FieldTypes = []domain.FieldType{}
	}
	if len(form.Fields) > 0 || s.overlays == nil {
		return nil
	}
	table, err := s.overlays.Lookup(templateID)
	if err != nil {
		return fmt.Errorf("loading overlay table %s: %w", templateID, err)
	}
	if table == nil {
		return nil
	}
	form.Fields = table.FormFields()
	form.TotalFields = len(form.Fields)
	form.FieldTypes = lo.Uniq(lo.Map(form.Fields, func(f domain.FormField, _ int) domain.FieldType {
		return f.Type
	}))
	s.logger.Info("analysis.Analyze: form has no widgets, using overlay fields",
		"template_id", templateID, "fields", form.TotalFields)
	return nil
}

// ClassifyPages turns raw page probes into the referral analysis.
func ClassifyPages(probes []port.PageProbe) domain.ReferralAnalysis {
	res := domain.ReferralAnalysis{
		TotalPages: len(probes),
		Pages:      make([]domain.PageInfo, 0, len(probes)),
	}
	for _, p := range probes {
		info := domain.PageInfo{
			PageNumber: p.PageNumber,
			HasText:    p.TextLength > 0,
			HasImages:  p.HasImages,
			TextLength: p.TextLength,
			IsScanned:  p.TextLength < ScannedTextThreshold,
		}
		if info.IsScanned {
			res.Summary.ScannedPages++
		} else {
			res.Summary.TextPages++
		}
		res.Summary.TotalTextLength += p.TextLength
		res.Pages = append(res.Pages, info)
	}
	res.Summary.RequiresOCR = res.Summary.ScannedPages > 0
	return res
}

// classify keeps explicit classifications and deadline errors; anything else
// from the document readers is permanent.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Transient(err)
	}
	var se *domain.StageError
	if errors.As(err, &se) {
		return err
	}
	return domain.Permanent(err)
}
