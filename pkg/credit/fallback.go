// pkg/credit/fallback.go
package credit

import (
	"context"
	"math"
)

// FallbackExplanation is recorded on breakdowns produced by the
// deterministic formula.
const FallbackExplanation = "Fallback calculation used due to AI service error"

// FallbackEstimator computes credits with a fixed formula:
//
//	base       = difficulty * 2
//	timeFactor = clamp(expected/actual or 1, 0.5, 1.5)
//	total      = round(base * timeFactor * (0.75 if overdue else 1))
//
// An overdue submission additionally reports a late penalty of a quarter
// of the base. Stored awards are derived from these exact numbers, so the
// formula must not drift.
type FallbackEstimator struct{}

// Estimate never returns an error.
func (FallbackEstimator) Estimate(_ context.Context, in EstimationInput) (Breakdown, error) {
	base := float64(in.Difficulty) * 2

	ratio := 1.0
	if in.ActualMinutes > 0 {
		ratio = float64(in.ExpectedMinutes) / float64(in.ActualMinutes)
	}
	timeFactor := clamp(ratio, 0.5, 1.5)

	multiplier := 1.0
	latePenalty := 0.0
	if in.IsOverdue {
		multiplier = 0.75
		latePenalty = base * 0.25
	}

	return Breakdown{
		TotalCredits:     int(math.Round(base * timeFactor * multiplier)),
		TimeFactor:       timeFactor,
		DifficultyFactor: base,
		QualityFactor:    1,
		BonusCredits:     0,
		LatePenalty:      latePenalty,
		Explanation:      FallbackExplanation,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
