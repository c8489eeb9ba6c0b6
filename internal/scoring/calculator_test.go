package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cindralabs/riskcore/api/schemas"
	"github.com/cindralabs/riskcore/internal/scoring"
)

// TestCompute_WeightedSumWithMultipliers verifies the canonical example: two
// severity-bucket factors under a criticality and an exposure multiplier.
func TestCompute_WeightedSumWithMultipliers(t *testing.T) {
	factors := []schemas.Factor{
		{Name: "critical", RawValue: 2, Weight: 10},
		{Name: "high", RawValue: 1, Weight: 7},
	}

	// criticality=critical doubles, internet-facing adds 50%.
	result, err := scoring.Compute(factors, []float64{2.0, 1.5})
	require.NoError(t, err)

	assert.Equal(t, 81, result.Score) // (2*10 + 1*7) * 2.0 * 1.5
	assert.Equal(t, 3.0, result.Multiplier)
	assert.Equal(t, 20.0, result.Breakdown["critical"])
	assert.Equal(t, 7.0, result.Breakdown["high"])
	assert.False(t, result.ComputedAt.IsZero())
}

func TestCompute_ClampsToHundred(t *testing.T) {
	factors := []schemas.Factor{{Name: "critical", RawValue: 50, Weight: 10}}

	result, err := scoring.Compute(factors, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Score)
	// The breakdown keeps the uncapped contribution for transparency.
	assert.Equal(t, 500.0, result.Breakdown["critical"])
}

func TestCompute_MaxContributionCapsFactor(t *testing.T) {
	factors := []schemas.Factor{
		{Name: "epss", RawValue: 0.97, Weight: 100, MaxContribution: 25},
		{Name: "cvss", RawValue: 9.8, Weight: 6, MaxContribution: 60},
	}

	result, err := scoring.Compute(factors, nil)
	require.NoError(t, err)
	assert.Equal(t, 25.0, result.Breakdown["epss"])
	assert.InDelta(t, 58.8, result.Breakdown["cvss"], 1e-9)
	assert.Equal(t, 84, result.Score) // 25 + 58.8 = 83.8, rounded half-up
}

func TestCompute_RoundsHalfUp(t *testing.T) {
	cases := []struct {
		name     string
		rawValue float64
		want     int
	}{
		{"exact half rounds up", 10.5, 11},
		{"below half rounds down", 10.4, 10},
		{"above half rounds up", 10.6, 11},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := scoring.Compute([]schemas.Factor{{Name: "v", RawValue: tc.rawValue, Weight: 1}}, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Score)
		})
	}
}

func TestCompute_MissingValuesContributeZero(t *testing.T) {
	factors := []schemas.Factor{
		{Name: "present", RawValue: 3, Weight: 5},
		{Name: "absent", Weight: 10}, // no measured value
	}

	result, err := scoring.Compute(factors, nil)
	require.NoError(t, err)
	assert.Equal(t, 15, result.Score)
	assert.Equal(t, 0.0, result.Breakdown["absent"])
}

func TestCompute_EmptyInputsYieldZero(t *testing.T) {
	result, err := scoring.Compute(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 1.0, result.Multiplier)
	assert.Empty(t, result.Breakdown)
}

func TestCompute_NegativeWeightRejected(t *testing.T) {
	_, err := scoring.Compute([]schemas.Factor{{Name: "bad", RawValue: 1, Weight: -2}}, nil)

	var verr *schemas.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "bad", verr.Field)
}

func TestCompute_NegativeMultiplierRejected(t *testing.T) {
	_, err := scoring.Compute([]schemas.Factor{{Name: "v", RawValue: 1, Weight: 1}}, []float64{-1})

	var verr *schemas.ValidationError
	require.ErrorAs(t, err, &verr)
}

// TestCompute_Deterministic ensures identical inputs always yield an identical
// score and breakdown.
func TestCompute_Deterministic(t *testing.T) {
	factors := []schemas.Factor{
		{Name: "cvss", RawValue: 7.5, Weight: 6, MaxContribution: 60},
		{Name: "kev", RawValue: 1, Weight: 10, MaxContribution: 10},
	}
	multipliers := []float64{1.25}

	first, err := scoring.Compute(factors, multipliers)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		next, err := scoring.Compute(factors, multipliers)
		require.NoError(t, err)
		assert.Equal(t, first.Score, next.Score)
		assert.Equal(t, first.Breakdown, next.Breakdown)
		assert.Equal(t, first.Multiplier, next.Multiplier)
	}
}

func TestCompute_ScoreAlwaysWithinBounds(t *testing.T) {
	cases := [][]schemas.Factor{
		{{Name: "huge", RawValue: 1e6, Weight: 1e3}},
		{{Name: "tiny", RawValue: 0.0001, Weight: 0.0001}},
		{{Name: "zero", RawValue: 0, Weight: 100}},
	}

	for _, factors := range cases {
		result, err := scoring.Compute(factors, []float64{2.0, 1.5})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Score, 0)
		assert.LessOrEqual(t, result.Score, 100)
	}
}
