package consolidate

import "claimease/internal/domain"

// Weights are the quality score component weights.
type Weights struct {
	OCR          float64
	Entity       float64
	Completeness float64
}

// DefaultWeights is 0.3 OCR, 0.3 entities, 0.4 completeness.
var DefaultWeights = Weights{OCR: 0.3, Entity: 0.3, Completeness: 0.4}

// EntityConfidence is the mean confidence of entities at or above threshold,
// scaled by the share of entities that reach it.
func EntityConfidence(groups domain.EntityGroups, threshold float64) float64 {
	var total, passed int
	var sum float64
	groups.Each(func(_ domain.EntityGroup, e domain.Entity) {
		total++
		if e.Confidence >= threshold {
			passed++
			sum += e.Confidence
		}
	})
	if total == 0 || passed == 0 {
		return 0
	}
	return (sum / float64(passed)) * (float64(passed) / float64(total))
}

// Score computes the weighted quality score of a run.
func Score(ocr *domain.OCRResult, entities *domain.EntityResult, form *domain.FormResult, w Weights) domain.QualityScore {
	s := domain.QualityScore{
		OCRConfidence:    ocr.Metrics.AverageConfidence,
		EntityConfidence: EntityConfidence(entities.Entities, entities.Threshold),
	}
	if form.TotalCount > 0 {
		s.Completeness = float64(form.FilledCount) / float64(form.TotalCount)
	}
	s.Overall = clamp(w.OCR*s.OCRConfidence + w.Entity*s.EntityConfidence + w.Completeness*s.Completeness)
	return s
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
