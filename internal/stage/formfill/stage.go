package formfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// DefaultOutputFileName is the filled form's file name inside the subject's
// output folder.
const DefaultOutputFileName = "filled_pa_form.pdf"

// Config holds form-fill stage settings.
type Config struct {
	OutputDir      string
	OutputFileName string
}

// Stage maps entities onto the PA form and renders the filled copy.
type Stage struct {
	mapper   *Mapper
	renderer port.FormRenderer
	overlays port.OverlayTables
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewStage creates the form-fill stage. overlays may be nil.
func NewStage(mapper *Mapper, renderer port.FormRenderer, overlays port.OverlayTables, cfg Config, logger *slog.Logger) *Stage {
	if cfg.OutputFileName == "" {
		cfg.OutputFileName = DefaultOutputFileName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{mapper: mapper, renderer: renderer, overlays: overlays, cfg: cfg, logger: logger, now: time.Now}
}

// Fill maps every declared form field and writes the filled form. Fields
// without a value are reported as missing; only an unusable template fails.
func (s *Stage) Fill(ctx context.Context, analysis *domain.DocumentAnalysis, entities *domain.EntityResult) (*domain.FormResult, error) {
	var table *domain.OverlayTable
	if s.overlays != nil {
		t, err := s.overlays.Lookup(analysis.TemplateID)
		if err != nil {
			return nil, domain.Permanent(fmt.Errorf("loading overlay table: %w", err))
		}
		table = t
	}

	assignments := s.mapper.Map(analysis.Form.Fields, entities.Entities)
	mode := SelectRenderMode(analysis.Form, table)
	out := filepath.Join(s.cfg.OutputDir, analysis.Subject, s.cfg.OutputFileName)

	err := s.renderer.Render(ctx, port.RenderRequest{
		TemplatePath: analysis.PAFormPath,
		OutputPath:   out,
		Mode:         mode,
		Values:       fieldValues(analysis.Form.Fields, assignments),
		Overlay:      table,
	})
	if err != nil {
		return nil, classifyRender(fmt.Errorf("rendering %s: %w", out, err))
	}

	res := &domain.FormResult{
		Subject:        analysis.Subject,
		TemplateID:     analysis.TemplateID,
		FilledFormPath: out,
		RenderMode:     mode,
		Fields:         assignments,
		MissingFields:  MissingFields(assignments),
		TotalCount:     len(assignments),
		FilledAt:       s.now().UTC(),
	}
	res.FilledCount = res.TotalCount - len(res.MissingFields)

	s.logger.Info("formfill.Fill: form rendered",
		"patient", analysis.Subject,
		"template_id", analysis.TemplateID,
		"mode", mode,
		"filled", res.FilledCount,
		"total", res.TotalCount,
	)
	return res, nil
}

// SelectRenderMode picks how values are written: overlay stamping when the
// table asks for it or the form has no widgets, widget fill otherwise.
func SelectRenderMode(form domain.FormAnalysis, table *domain.OverlayTable) domain.RenderMode {
	switch {
	case table != nil && table.PreferOverlay:
		return domain.RenderModeOverlay
	case form.HasWidgets():
		return domain.RenderModeWidget
	case table != nil:
		return domain.RenderModeOverlay
	default:
		return domain.RenderModeNone
	}
}

func fieldValues(fields []domain.FormField, assignments []domain.FieldAssignment) []port.FieldValue {
	values := make([]port.FieldValue, 0, len(assignments))
	for i, a := range assignments {
		if a.Status != domain.FieldStatusFilled {
			continue
		}
		values = append(values, port.FieldValue{
			Name:  a.FieldName,
			Value: a.Value,
			Type:  fields[i].Type,
			Page:  fields[i].Page,
		})
	}
	return values
}

func classifyRender(err error) error {
	var se *domain.StageError
	switch {
	case errors.As(err, &se):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Transient(err)
	default:
		return domain.Permanent(err)
	}
}
