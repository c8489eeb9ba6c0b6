// Package scoring implements the composite risk/compliance score engine. One
// calculator serves every entity class; the per-class differences are weight
// tables (see profiles.go), not separate algorithms.
package scoring

import (
	"math"
	"time"

	"github.com/cindralabs/riskcore/api/schemas"
)

// Compute produces a normalized 0-100 composite score from weighted factors.
//
// Each factor contributes rawValue * weight, optionally capped at its
// MaxContribution. The contributions are summed, multiplied by the product of
// all context multipliers (asset criticality, internet exposure, ...), rounded
// half-up and clamped to [0, 100].
//
// Factors with a zero raw value contribute nothing and are never an error.
// The function has no side effects; callers persist the result themselves.
func Compute(factors []schemas.Factor, contextMultipliers []float64) (schemas.ScoreResult, error) {
	breakdown := make(map[string]float64, len(factors))
	var sum float64

	for _, f := range factors {
		if f.Weight < 0 {
			return schemas.ScoreResult{}, &schemas.ValidationError{
				Field:  f.Name,
				Reason: "factor weight must not be negative",
			}
		}

		contribution := f.RawValue * f.Weight
		if f.MaxContribution > 0 && contribution > f.MaxContribution {
			contribution = f.MaxContribution
		}
		breakdown[f.Name] = contribution
		sum += contribution
	}

	multiplier := 1.0
	for _, m := range contextMultipliers {
		if m < 0 {
			return schemas.ScoreResult{}, &schemas.ValidationError{
				Field:  "context_multipliers",
				Reason: "context multiplier must not be negative",
			}
		}
		multiplier *= m
	}

	return schemas.ScoreResult{
		Score:      clampScore(roundHalfUp(sum * multiplier)),
		Breakdown:  breakdown,
		Multiplier: multiplier,
		ComputedAt: time.Now().UTC(),
	}, nil
}

// roundHalfUp rounds to the nearest integer, with .5 always rounding up.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
