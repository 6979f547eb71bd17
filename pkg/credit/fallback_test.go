// pkg/credit/fallback_test.go
package credit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackEstimator_Formula(t *testing.T) {
	tests := []struct {
		name        string
		input       EstimationInput
		wantTotal   int
		wantTime    float64
		wantBase    float64
		wantPenalty float64
	}{
		{
			name: "faster than expected clamps at 1.5",
			input: EstimationInput{
				Difficulty:      5,
				ExpectedMinutes: 240,
				ActualMinutes:   120,
			},
			wantTotal:   15,
			wantTime:    1.5,
			wantBase:    10,
			wantPenalty: 0,
		},
		{
			name: "slow and overdue clamps at 0.5 with penalty",
			input: EstimationInput{
				Difficulty:      8,
				ExpectedMinutes: 240,
				ActualMinutes:   600,
				IsOverdue:       true,
			},
			wantTotal:   6,
			wantTime:    0.5,
			wantBase:    16,
			wantPenalty: 4,
		},
		{
			name: "unknown actual time uses neutral ratio",
			input: EstimationInput{
				Difficulty:      7,
				ExpectedMinutes: 240,
				ActualMinutes:   0,
			},
			wantTotal:   14,
			wantTime:    1,
			wantBase:    14,
			wantPenalty: 0,
		},
		{
			name: "exact expected time",
			input: EstimationInput{
				Difficulty:      3,
				ExpectedMinutes: 60,
				ActualMinutes:   60,
			},
			wantTotal:   6,
			wantTime:    1,
			wantBase:    6,
			wantPenalty: 0,
		},
		{
			name: "overdue without time report",
			input: EstimationInput{
				Difficulty:      10,
				ExpectedMinutes: 240,
				ActualMinutes:   0,
				IsOverdue:       true,
			},
			wantTotal:   15,
			wantTime:    1,
			wantBase:    20,
			wantPenalty: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breakdown, err := FallbackEstimator{}.Estimate(context.Background(), tt.input)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTotal, breakdown.TotalCredits)
			assert.InDelta(t, tt.wantTime, breakdown.TimeFactor, 1e-9)
			assert.InDelta(t, tt.wantBase, breakdown.DifficultyFactor, 1e-9)
			assert.InDelta(t, 1.0, breakdown.QualityFactor, 1e-9)
			assert.Zero(t, breakdown.BonusCredits)
			assert.InDelta(t, tt.wantPenalty, breakdown.LatePenalty, 1e-9)
			assert.Equal(t, FallbackExplanation, breakdown.Explanation)
		})
	}
}

func TestFallbackEstimator_FullDifficultyRange(t *testing.T) {
	// The formula must hold exactly for every difficulty when the ratio
	// is neutral: total = difficulty * 2.
	for d := 1; d <= 10; d++ {
		breakdown, err := FallbackEstimator{}.Estimate(context.Background(), EstimationInput{
			Difficulty:      d,
			ExpectedMinutes: 240,
			ActualMinutes:   240,
		})
		require.NoError(t, err)
		assert.Equal(t, d*2, breakdown.TotalCredits, "difficulty %d", d)
	}
}
