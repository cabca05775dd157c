package dashboard

import (
	"github.com/samber/lo"

	"github.com/octvision/octvision/internal/domain/diagnosis"
)

// Progression compares the two most recent predictions.
type Progression string

const (
	ProgressionWorsening     Progression = "Worsening"
	ProgressionImproving     Progression = "Improving"
	ProgressionStable        Progression = "Stable"
	ProgressionNotEnoughData Progression = "Not enough data"
)

// ProgressionOf takes confidences ordered newest first. A higher latest
// confidence means the finding became more certain, which reads as Worsening.
func ProgressionOf(confidences []float64) Progression {
	if len(confidences) < 2 {
		return ProgressionNotEnoughData
	}
	latest, previous := confidences[0], confidences[1]
	switch {
	case latest > previous:
		return ProgressionWorsening
	case latest < previous:
		return ProgressionImproving
	default:
		return ProgressionStable
	}
}

// ProgressionByDisease applies ProgressionOf per predicted label. preds must
// be ordered newest first; GroupBy keeps that order within each group.
func ProgressionByDisease(preds []*diagnosis.PredictionWithScan) map[string]Progression {
	groups := lo.GroupBy(preds, func(p *diagnosis.PredictionWithScan) string { return p.DiseaseType })
	return lo.MapValues(groups, func(items []*diagnosis.PredictionWithScan, _ string) Progression {
		return ProgressionOf(confidences(items))
	})
}

func confidences(preds []*diagnosis.PredictionWithScan) []float64 {
	return lo.Map(preds, func(p *diagnosis.PredictionWithScan, _ int) float64 { return p.ConfidenceScore })
}
