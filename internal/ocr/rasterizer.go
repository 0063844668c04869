package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// DefaultPdftoppm is the rasterizer binary looked up on PATH.
const DefaultPdftoppm = "pdftoppm"

var pageFileRe = regexp.MustCompile(`-(\d+)\.png$`)

// PdftoppmRasterizer renders PDF pages to PNG with poppler's pdftoppm.
type PdftoppmRasterizer struct {
	binary string
	runner Runner
}

// NewRasterizer creates a rasterizer. An empty binary uses pdftoppm from PATH.
func NewRasterizer(binary string, runner Runner) *PdftoppmRasterizer {
	if binary == "" {
		binary = DefaultPdftoppm
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PdftoppmRasterizer{binary: binary, runner: runner}
}

// Rasterize renders every page of the PDF at path at the given DPI and
// returns the images in page order.
func (r *PdftoppmRasterizer) Rasterize(ctx context.Context, path string, dpi int) ([]port.PageImage, error) {
	tmpDir, err := os.MkdirTemp("", "claimease-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("creating raster folder: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	_, stderr, err := r.runner.Run(ctx, r.binary, "-r", strconv.Itoa(dpi), "-png", path, prefix)
	if err != nil {
		return nil, classifyExec(ctx, r.binary, err, stderr)
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("listing rendered pages: %w", err)
	}
	pages := make([]port.PageImage, 0, len(matches))
	for _, m := range matches {
		n, ok := PageNumber(m)
		if !ok {
			continue
		}
		img, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("reading rendered page %d: %w", n, err)
		}
		pages = append(pages, port.PageImage{Page: n, Image: img})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })
	if len(pages) == 0 {
		return nil, domain.Permanent(fmt.Errorf("%s produced no page images for %s", r.binary, path))
	}
	return pages, nil
}

// PageNumber parses the page number from a pdftoppm output name such as
// page-07.png.
func PageNumber(name string) (int, bool) {
	m := pageFileRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// classifyExec maps a command failure onto the retry taxonomy. A missing
// binary is permanent; a killed or timed-out run is transient.
func classifyExec(ctx context.Context, binary string, err error, stderr []byte) error {
	msg := strings.TrimSpace(string(stderr))
	if msg != "" {
		err = fmt.Errorf("%w: %s", err, truncate(msg, 512))
	}
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return domain.Permanent(fmt.Errorf("%w: %s: %v", domain.ErrCapabilityMissing, binary, err))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.Transient(fmt.Errorf("%s timed out: %w", binary, err))
	default:
		return domain.Permanent(fmt.Errorf("%s failed: %w", binary, err))
	}
}
