// Package credit computes credit awards for completed task submissions.
//
// Estimation is a two-stage strategy: a primary estimator backed by the
// Anthropic Messages API, and a deterministic fallback formula used when
// the AI path is disabled or failing. The chain never fails; callers
// always receive a usable breakdown.
package credit

import (
	"context"
	"fmt"
	"math"
)

// Breakdown is the structured explanation of a credit award.
type Breakdown struct {
	TotalCredits     int     `json:"total_credits"`
	TimeFactor       float64 `json:"time_factor"`
	DifficultyFactor float64 `json:"difficulty_factor"`
	QualityFactor    float64 `json:"quality_factor"`
	BonusCredits     float64 `json:"bonus_credits"`
	LatePenalty      float64 `json:"late_penalty"`
	Explanation      string  `json:"explanation"`
}

// PastPerformance summarizes a user's completion history, used to give
// the AI estimator context.
type PastPerformance struct {
	CompletedTasks int
	AvgCredits     float64
}

// EstimationInput carries everything an estimator may consider.
type EstimationInput struct {
	Difficulty      int // 1-10
	ExpectedMinutes int
	ActualMinutes   int // 0 means unknown
	IsOverdue       bool
	SubmissionText  string
	PastPerformance *PastPerformance
}

// Validate checks the input ranges before estimation.
func (in EstimationInput) Validate() error {
	if in.Difficulty < 1 || in.Difficulty > 10 {
		return fmt.Errorf("difficulty must be between 1 and 10, got %d", in.Difficulty)
	}
	if in.ExpectedMinutes <= 0 {
		return fmt.Errorf("expected minutes must be positive, got %d", in.ExpectedMinutes)
	}
	if in.ActualMinutes < 0 {
		return fmt.Errorf("actual minutes must not be negative, got %d", in.ActualMinutes)
	}
	return nil
}

// Estimator produces a credit breakdown for a completed submission.
type Estimator interface {
	Estimate(ctx context.Context, in EstimationInput) (Breakdown, error)
}

// Normalized returns a copy with negative bonus/penalty clamped to zero
// and TotalCredits recomputed from the components:
//
//	round(difficultyFactor * timeFactor * qualityFactor) + bonus - penalty
//
// floored at zero. Applied to AI responses so a partially-populated or
// inconsistent response still yields a coherent award.
func (b Breakdown) Normalized() Breakdown {
	if b.BonusCredits < 0 {
		b.BonusCredits = 0
	}
	if b.LatePenalty < 0 {
		b.LatePenalty = 0
	}
	raw := math.Round(b.DifficultyFactor*b.TimeFactor*b.QualityFactor) + b.BonusCredits - b.LatePenalty
	total := int(math.Round(raw))
	if total < 0 {
		total = 0
	}
	b.TotalCredits = total
	return b
}
