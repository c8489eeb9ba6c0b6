package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cindralabs/riskcore/api/schemas"
)

// -- Scoring Profiles --

// FactorSpec declares the weight and optional contribution cap for one named
// factor inside a profile.
type FactorSpec struct {
	Weight          float64 `yaml:"weight"`
	MaxContribution float64 `yaml:"max_contribution,omitempty"`
}

// Profile is the weight table for one entity class. The profile turns raw
// measurements into the Factor slice the calculator consumes, so adding or
// tuning a class is a configuration change rather than a new formula.
type Profile struct {
	Class   schemas.EntityClass   `yaml:"class"`
	Factors map[string]FactorSpec `yaml:"factors"`
}

// Build assembles the calculator input from raw measurements. Measurements
// with no corresponding factor spec are ignored; factors with no measurement
// contribute zero.
func (p Profile) Build(rawValues map[string]float64) []schemas.Factor {
	factors := make([]schemas.Factor, 0, len(p.Factors))
	for name, spec := range p.Factors {
		factors = append(factors, schemas.Factor{
			Name:            name,
			RawValue:        rawValues[name],
			Weight:          spec.Weight,
			MaxContribution: spec.MaxContribution,
		})
	}
	return factors
}

// Score is a convenience wrapper combining Build and Compute.
func (p Profile) Score(rawValues map[string]float64, contextMultipliers []float64) (schemas.ScoreResult, error) {
	return Compute(p.Build(rawValues), contextMultipliers)
}

// DefaultProfiles returns the built-in weight tables for the entity classes
// shipped with the product suite. These defaults should be confirmed with
// domain owners before production use; deployments override them with a
// profiles file (see LoadProfiles).
func DefaultProfiles() map[schemas.EntityClass]Profile {
	return map[schemas.EntityClass]Profile{
		// Vulnerability/asset risk: severity bucket counts weighted by impact.
		schemas.ClassVulnerability: {
			Class: schemas.ClassVulnerability,
			Factors: map[string]FactorSpec{
				"critical": {Weight: 10},
				"high":     {Weight: 7},
				"medium":   {Weight: 4},
				"low":      {Weight: 1},
			},
		},
		schemas.ClassAsset: {
			Class: schemas.ClassAsset,
			Factors: map[string]FactorSpec{
				"critical": {Weight: 10},
				"high":     {Weight: 7},
				"medium":   {Weight: 4},
				"low":      {Weight: 1},
			},
		},
		// CVE risk: CVSS base blended with exploitation signals.
		schemas.ClassCVE: {
			Class: schemas.ClassCVE,
			Factors: map[string]FactorSpec{
				"cvss":              {Weight: 6, MaxContribution: 60},   // 0-10 base score
				"epss":              {Weight: 25, MaxContribution: 25},  // 0-1 exploit probability
				"kev":               {Weight: 10, MaxContribution: 10},  // binary known-exploited flag
				"exploit_available": {Weight: 5, MaxContribution: 5},    // binary public-exploit flag
			},
		},
		// PII sensitivity risk: data category weights plus volume.
		schemas.ClassPII: {
			Class: schemas.ClassPII,
			Factors: map[string]FactorSpec{
				"special_category": {Weight: 15},
				"financial":        {Weight: 10},
				"identifier":       {Weight: 6},
				"contact":          {Weight: 3},
				"record_volume":    {Weight: 0.001, MaxContribution: 20},
			},
		},
		// Tracker compliance risk: consent and disclosure violations.
		schemas.ClassTracker: {
			Class: schemas.ClassTracker,
			Factors: map[string]FactorSpec{
				"missing_consent":     {Weight: 12},
				"undisclosed":         {Weight: 8},
				"third_party":         {Weight: 4},
				"cross_site_profile":  {Weight: 10},
			},
		},
	}
}

// LoadProfiles reads a YAML profiles file and merges it over the built-in
// defaults, so a deployment only declares the tables it changes.
func LoadProfiles(path string) (map[schemas.EntityClass]Profile, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scoring profiles file: %w", err)
	}

	var loaded []Profile
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse scoring profiles file: %w", err)
	}

	for _, p := range loaded {
		if p.Class == "" {
			return nil, &schemas.ValidationError{Field: "class", Reason: "scoring profile is missing an entity class"}
		}
		for name, spec := range p.Factors {
			if spec.Weight < 0 {
				return nil, &schemas.ValidationError{
					Field:  fmt.Sprintf("%s.%s", p.Class, name),
					Reason: "factor weight must not be negative",
				}
			}
		}
		profiles[p.Class] = p
	}
	return profiles, nil
}
