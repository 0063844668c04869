package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// Config holds OCR stage settings.
type Config struct {
	DPI           int
	LowConfidence float64
}

// Stage rasterizes the referral package and recognizes every page.
type Stage struct {
	raster     port.Rasterizer
	recognizer port.TextRecognizer
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewStage creates the OCR stage.
func NewStage(raster port.Rasterizer, recognizer port.TextRecognizer, cfg Config, logger *slog.Logger) *Stage {
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{raster: raster, recognizer: recognizer, cfg: cfg, logger: logger, now: time.Now}
}

// Extract runs OCR over every referral page, reporting per-page progress.
// A page without recognizable text is recorded as blank.
func (s *Stage) Extract(ctx context.Context, analysis *domain.DocumentAnalysis, progress port.ProgressFunc) (*domain.OCRResult, error) {
	images, err := s.raster.Rasterize(ctx, analysis.ReferralPath, s.cfg.DPI)
	if err != nil {
		return nil, fmt.Errorf("rasterizing referral package: %w", err)
	}

	pages := make([]int, 0, len(images))
	var blocks []domain.TextBlock
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := s.recognizer.Recognize(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("recognizing page %d: %w", img.Page, err)
		}
		pages = append(pages, img.Page)
		blocks = append(blocks, found...)
		if progress != nil {
			progress(i+1, len(images))
		}
	}

	res := Aggregate(blocks, pages, s.cfg.LowConfidence)
	res.Subject = analysis.Subject
	res.ReferralPath = analysis.ReferralPath
	res.DPI = s.cfg.DPI
	res.ExtractedAt = s.now().UTC()

	s.logger.Info("ocr.Extract: referral recognized",
		"patient", analysis.Subject,
		"pages", res.Pages,
		"blocks", res.Metrics.TotalBlocks,
		"avg_confidence", res.Metrics.AverageConfidence,
		"blank_pages", len(res.Metrics.BlankPages),
	)
	return res, nil
}

// Aggregate orders blocks by page, then top edge, then left edge, and
// computes the quality metrics. pages lists every page that was recognized.
func Aggregate(blocks []domain.TextBlock, pages []int, lowConfidence float64) *domain.OCRResult {
	ordered := make([]domain.TextBlock, len(blocks))
	copy(ordered, blocks)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.BBox.Y0 != b.BBox.Y0 {
			return a.BBox.Y0 < b.BBox.Y0
		}
		return a.BBox.X0 < b.BBox.X0
	})

	perPage := make(map[int]int, len(pages))
	texts := make([]string, 0, len(ordered))
	metrics := domain.OCRMetrics{BlankPages: []int{}}
	var confSum float64
	for _, b := range ordered {
		perPage[b.Page]++
		texts = append(texts, b.Text)
		confSum += b.Confidence
		metrics.TotalTextLength += len(b.Text)
		if b.Confidence < lowConfidence {
			metrics.LowConfidenceBlocks++
		}
	}
	metrics.TotalBlocks = len(ordered)
	if metrics.TotalBlocks > 0 {
		metrics.AverageConfidence = confSum / float64(metrics.TotalBlocks)
	}
	for _, p := range pages {
		if perPage[p] == 0 {
			metrics.BlankPages = append(metrics.BlankPages, p)
		}
	}

	return &domain.OCRResult{
		Pages:   len(pages),
		Blocks:  ordered,
		Text:    strings.Join(texts, "\n"),
		Metrics: metrics,
	}
}
