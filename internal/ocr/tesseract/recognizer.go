// Package tesseract adapts gosseract to the text recognizer capability.
package tesseract

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// Recognizer runs Tesseract over page images at block level.
//
// A Tesseract call cannot be interrupted. When the caller's context expires
// the page result is abandoned but the engine keeps running until it returns,
// still holding its slot. At most one engine call per CPU is in flight, so
// abandoned pages delay later ones instead of piling up.
type Recognizer struct {
	language      string
	dpi           int
	clientFactory func() *gosseract.Client
	slots         chan struct{}
	engine        func(port.PageImage) ([]domain.TextBlock, error)
}

// NewRecognizer creates a Recognizer for the given language and raster DPI.
func NewRecognizer(language string, dpi int) *Recognizer {
	r := &Recognizer{
		language:      language,
		dpi:           dpi,
		clientFactory: gosseract.NewClient,
		slots:         make(chan struct{}, runtime.NumCPU()),
	}
	r.engine = r.recognize
	return r
}

type outcome struct {
	blocks []domain.TextBlock
	err    error
}

// Recognize returns the text blocks of one page. The engine call itself cannot
// be interrupted; on context expiry the result is abandoned.
func (r *Recognizer) Recognize(ctx context.Context, img port.PageImage) ([]domain.TextBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, domain.Transient(fmt.Errorf("waiting for tesseract on page %d: %w", img.Page, ctx.Err()))
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() { <-r.slots }()
		blocks, err := r.engine(img)
		done <- outcome{blocks: blocks, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, domain.Transient(fmt.Errorf("recognizing page %d: %w", img.Page, ctx.Err()))
	case o := <-done:
		return o.blocks, o.err
	}
}

func (r *Recognizer) recognize(img port.PageImage) ([]domain.TextBlock, error) {
	c := r.clientFactory()
	defer c.Close()

	if r.language != "" {
		if err := c.SetLanguage(r.language); err != nil {
			return nil, domain.Permanent(fmt.Errorf("%w: tesseract language %s: %v", domain.ErrCapabilityMissing, r.language, err))
		}
	}
	if r.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(r.dpi)); err != nil {
			return nil, domain.Permanent(fmt.Errorf("set dpi: %w", err))
		}
	}
	if err := c.SetImageFromBytes(img.Image); err != nil {
		return nil, domain.Permanent(fmt.Errorf("set image for page %d: %w", img.Page, err))
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_BLOCK)
	if err != nil {
		return nil, domain.Permanent(fmt.Errorf("%w: tesseract page %d: %v", domain.ErrCapabilityMissing, img.Page, err))
	}
	return blocksFromBoxes(img.Page, boxes), nil
}

func blocksFromBoxes(page int, boxes []gosseract.BoundingBox) []domain.TextBlock {
	blocks := make([]domain.TextBlock, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		conf := b.Confidence / 100.0
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		blocks = append(blocks, domain.TextBlock{
			Text:       text,
			Confidence: conf,
			BBox: domain.BoundingBox{
				X0: float64(b.Box.Min.X),
				Y0: float64(b.Box.Min.Y),
				X1: float64(b.Box.Max.X),
				Y1: float64(b.Box.Max.Y),
			},
			Page: page,
		})
	}
	return blocks
}
