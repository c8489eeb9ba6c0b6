package schemas

import "time"

// -- Scoring Schemas --

// Factor is a single weighted input to a composite score. Factors are supplied
// by the caller per entity class; the engine never stores them.
type Factor struct {
	// Name identifies the factor inside the score breakdown (e.g., "cvss", "kev").
	Name string `json:"name"`

	// RawValue is the measured value for this factor. A zero value contributes
	// nothing and is never an error.
	RawValue float64 `json:"raw_value"`

	// Weight multiplies the raw value. Negative weights are rejected.
	Weight float64 `json:"weight"`

	// MaxContribution caps this factor's contribution when greater than zero.
	// Zero or negative means uncapped.
	MaxContribution float64 `json:"max_contribution,omitempty"`
}

// ScoreResult is the outcome of one composite score computation. It is derived
// data, recomputed on demand whenever the inputs change, and persisted by the
// caller rather than by the engine.
type ScoreResult struct {
	// Score is the final normalized value in [0, 100].
	Score int `json:"score"`

	// Breakdown maps each factor name to its contribution before the context
	// multipliers are applied.
	Breakdown map[string]float64 `json:"breakdown"`

	// Multiplier is the product of all context multipliers applied to the sum.
	Multiplier float64 `json:"multiplier"`

	// ComputedAt is the timestamp the score was calculated.
	ComputedAt time.Time `json:"computed_at"`
}
