package services

import (
	"math"

	"github.com/custodia-labs/classmate/internal/core/domain"
)

// agreementDriverGap is how far below the top score disagreement must pull
// confidence before it is reported as the driving factor.
const agreementDriverGap = 0.1

// ConfidenceWeights are the tunable constants of the confidence formula
//
//	confidence = clamp01(TopWeight*top + (1-TopWeight)*mean - SpreadPenalty*stddev)
//
// over the retained similarity scores, each clamped to [0, 1].
// SpreadPenalty must stay below 2*TopWeight for confidence to be
// non-decreasing in the top score.
type ConfidenceWeights struct {
	TopWeight     float64
	SpreadPenalty float64
}

// ConfidenceWeightsFromConfig extracts the weights from QA configuration.
func ConfidenceWeightsFromConfig(cfg domain.QAConfig) ConfidenceWeights {
	return ConfidenceWeights{TopWeight: cfg.TopWeight, SpreadPenalty: cfg.SpreadPenalty}
}

// ConfidenceBreakdown is a confidence value with the terms that produced it.
type ConfidenceBreakdown struct {
	Score   float64
	Top     float64
	Mean    float64
	Spread  float64
	Penalty float64
	Factor  domain.ConfidenceFactor
}

// ScoreConfidence computes confidence for similarity scores ordered best first.
func ScoreConfidence(scores []float64, w ConfidenceWeights) ConfidenceBreakdown {
	if len(scores) == 0 {
		return ConfidenceBreakdown{Factor: domain.FactorNone}
	}

	clamped := make([]float64, len(scores))
	top, sum := 0.0, 0.0
	for i, s := range scores {
		clamped[i] = clamp01(s)
		sum += clamped[i]
		if clamped[i] > top {
			top = clamped[i]
		}
	}
	mean := sum / float64(len(clamped))

	variance := 0.0
	for _, s := range clamped {
		variance += (s - mean) * (s - mean)
	}
	spread := math.Sqrt(variance / float64(len(clamped)))

	penalty := w.SpreadPenalty * spread
	raw := w.TopWeight*top + (1-w.TopWeight)*mean - penalty

	b := ConfidenceBreakdown{
		Score:   clamp01(raw),
		Top:     top,
		Mean:    mean,
		Spread:  spread,
		Penalty: penalty,
		Factor:  domain.FactorSimilarity,
	}
	if top-raw >= agreementDriverGap {
		b.Factor = domain.FactorAgreement
	}
	return b
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
