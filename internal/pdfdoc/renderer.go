package pdfdoc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"claimease/internal/domain"
	"claimease/internal/port"
)

const (
	defaultFontName = "Helvetica"
	defaultFontSize = 10
)

// Renderer writes form values with pdfcpu, either into AcroForm widgets or
// as text stamped at fixed coordinates.
type Renderer struct {
	conf   *model.Configuration
	logger *slog.Logger
}

// NewRenderer creates a Renderer.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{conf: model.NewDefaultConfiguration(), logger: logger}
}

// Render writes req.Values onto req.TemplatePath and saves the result at
// req.OutputPath.
func (r *Renderer) Render(ctx context.Context, req port.RenderRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return fmt.Errorf("creating output folder: %w", err)
	}

	switch req.Mode {
	case domain.RenderModeWidget:
		return r.fillWidgets(req)
	case domain.RenderModeOverlay:
		return r.stampOverlay(ctx, req)
	default:
		return copyFile(req.TemplatePath, req.OutputPath)
	}
}

// formJSON is the subset of the pdfcpu form export format used for filling.
type formJSON struct {
	Forms []formGroup `json:"forms"`
}

type formGroup struct {
	TextFields []formValue `json:"textfield,omitempty"`
	ComboBoxes []formValue `json:"combobox,omitempty"`
}

type formValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FormFillJSON builds the pdfcpu fill document for the text-holding values.
func FormFillJSON(values []port.FieldValue) ([]byte, error) {
	var g formGroup
	for _, v := range values {
		switch v.Type {
		case domain.FieldTypeChoice:
			g.ComboBoxes = append(g.ComboBoxes, formValue{Name: v.Name, Value: v.Value})
		case domain.FieldTypeText, domain.FieldTypeUnknown, "":
			g.TextFields = append(g.TextFields, formValue{Name: v.Name, Value: v.Value})
		}
	}
	return json.Marshal(formJSON{Forms: []formGroup{g}})
}

func (r *Renderer) fillWidgets(req port.RenderRequest) error {
	if len(req.Values) == 0 {
		return copyFile(req.TemplatePath, req.OutputPath)
	}
	body, err := FormFillJSON(req.Values)
	if err != nil {
		return fmt.Errorf("encoding form values: %w", err)
	}

	in, err := os.Open(req.TemplatePath)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTemplateUnreadable, err)
	}
	defer in.Close()

	var out bytes.Buffer
	if err := api.FillForm(in, bytes.NewReader(body), &out, r.conf); err != nil {
		return fmt.Errorf("filling form widgets: %w", err)
	}
	if err := os.WriteFile(req.OutputPath, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing filled form: %w", err)
	}
	r.logger.Debug("pdfdoc.Render: widgets filled", "output", req.OutputPath, "values", len(req.Values))
	return nil
}

func (r *Renderer) stampOverlay(ctx context.Context, req port.RenderRequest) error {
	if err := copyFile(req.TemplatePath, req.OutputPath); err != nil {
		return err
	}
	stamped := 0
	for _, v := range req.Values {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, ok := req.Overlay.Field(v.Name)
		if !ok {
			r.logger.Warn("pdfdoc.Render: no overlay coordinates for field", "field", v.Name)
			continue
		}
		pages := []string{strconv.Itoa(max(f.Page, 1))}
		desc := StampDescription(req.Overlay, f)
		if err := api.AddTextWatermarksFile(req.OutputPath, "", pages, true, v.Value, desc, r.conf); err != nil {
			return fmt.Errorf("stamping field %q: %w", v.Name, err)
		}
		stamped++
	}
	r.logger.Debug("pdfdoc.Render: overlay stamped", "output", req.OutputPath, "values", stamped)
	return nil
}

// StampDescription renders the pdfcpu text stamp description that places a
// value at the overlay field's bottom-left anchored coordinates.
func StampDescription(table *domain.OverlayTable, f domain.OverlayField) string {
	font := defaultFontName
	size := defaultFontSize
	if table != nil {
		if table.FontName != "" {
			font = table.FontName
		}
		if table.FontSize > 0 {
			size = table.FontSize
		}
	}
	if f.FontSize > 0 {
		size = f.FontSize
	}
	return fmt.Sprintf("fontname:%s, points:%d, scalefactor:1 abs, position:bl, offset:%s %s, rotation:0, fillcolor:#000000, opacity:1",
		font, size, formatCoord(f.X), formatCoord(f.Y))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTemplateUnreadable, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying template: %w", err)
	}
	return out.Close()
}
