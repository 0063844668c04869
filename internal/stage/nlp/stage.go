package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"claimease/internal/domain"
	"claimease/internal/port"
)

// DefaultThreshold is used when no confidence threshold is configured.
const DefaultThreshold = 0.6

// Stage extracts typed entities from the OCR text.
type Stage struct {
	recognizer port.EntityRecognizer
	threshold  float64
	logger     *slog.Logger
	now        func() time.Time
}

// NewStage creates the NLP stage. A threshold outside (0,1] falls back to
// DefaultThreshold.
func NewStage(recognizer port.EntityRecognizer, threshold float64, logger *slog.Logger) *Stage {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{recognizer: recognizer, threshold: threshold, logger: logger, now: time.Now}
}

// Recognize runs the entity recognizer over the OCR text. Entities below the
// threshold are kept and counted as low confidence.
func (s *Stage) Recognize(ctx context.Context, ocr *domain.OCRResult) (*domain.EntityResult, error) {
	groups, err := s.recognizer.Extract(ctx, port.RecognitionInput{Text: ocr.Text, Subject: ocr.Subject})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.Transient(fmt.Errorf("extracting entities: %w", err))
		}
		return nil, domain.Permanent(fmt.Errorf("extracting entities: %w", err))
	}
	groups.Normalize()

	res := Summarize(groups, s.threshold)
	res.Subject = ocr.Subject
	res.AnalyzedAt = s.now().UTC()

	s.logger.Info("nlp.Recognize: entities extracted",
		"patient", ocr.Subject,
		"entities", res.TotalEntities,
		"low_confidence", res.LowConfidenceCount,
		"confidence_score", res.ConfidenceScore,
	)
	return res, nil
}

// Summarize counts the entities and computes the mean confidence over all of
// them.
func Summarize(groups domain.EntityGroups, threshold float64) *domain.EntityResult {
	res := &domain.EntityResult{Entities: groups, Threshold: threshold}
	var sum float64
	groups.Each(func(_ domain.EntityGroup, e domain.Entity) {
		res.TotalEntities++
		sum += e.Confidence
		if e.Confidence < threshold {
			res.LowConfidenceCount++
		}
	})
	if res.TotalEntities > 0 {
		res.ConfidenceScore = sum / float64(res.TotalEntities)
	}
	return res
}
