package pdfdoc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lpdf "github.com/ledongthuc/pdf"

	"claimease/internal/port"
)

// TextProbe reports per-page embedded text and image presence using
// ledongthuc/pdf.
type TextProbe struct {
	logger *slog.Logger
}

// NewTextProbe creates a TextProbe.
func NewTextProbe(logger *slog.Logger) *TextProbe {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextProbe{logger: logger}
}

// ProbePages inspects every page of the PDF at path.
func (p *TextProbe) ProbePages(ctx context.Context, path string) ([]port.PageProbe, error) {
	f, r, err := lpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	n := r.NumPage()
	probes := make([]port.PageProbe, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		probe := port.PageProbe{PageNumber: i}
		if !page.V.IsNull() {
			probe.TextLength = p.textLength(page, i)
			probe.HasImages = hasImages(page)
		}
		probes = append(probes, probe)
	}
	return probes, nil
}

// textLength returns the trimmed plain-text length of a page. Pages whose
// fonts cannot be decoded count as having no text.
func (p *TextProbe) textLength(page lpdf.Page, n int) (length int) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Warn("pdfdoc.ProbePages: text extraction panicked", "page", n, "panic", rec)
			length = 0
		}
	}()
	text, err := page.GetPlainText(nil)
	if err != nil {
		p.logger.Warn("pdfdoc.ProbePages: text extraction failed", "page", n, "error", err)
		return 0
	}
	return len(strings.TrimSpace(text))
}

func hasImages(page lpdf.Page) bool {
	xobjects := page.Resources().Key("XObject")
	if xobjects.IsNull() {
		return false
	}
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			return true
		}
	}
	return false
}
