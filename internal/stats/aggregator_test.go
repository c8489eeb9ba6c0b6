package stats_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cindralabs/riskcore/api/schemas"
	"github.com/cindralabs/riskcore/internal/stats"
)

func entityWith(severity schemas.Severity, state schemas.State, score int) *schemas.Entity {
	return &schemas.Entity{
		ID:        "e-" + string(severity) + "-" + string(state),
		Class:     schemas.ClassVulnerability,
		Severity:  severity,
		CreatedAt: time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC),
		Lifecycle: schemas.LifecycleEntity{CurrentState: state},
		Score:     &schemas.ScoreResult{Score: score},
	}
}

// TestAggregate_CountsBySeverity covers the canonical dashboard query: five
// entities grouped by severity.
func TestAggregate_CountsBySeverity(t *testing.T) {
	entities := []*schemas.Entity{
		entityWith(schemas.SeverityCritical, schemas.RemediationOpen, 90),
		entityWith(schemas.SeverityCritical, schemas.RemediationAssigned, 80),
		entityWith(schemas.SeverityHigh, schemas.RemediationOpen, 60),
		entityWith(schemas.SeverityMedium, schemas.RemediationOpen, 40),
		entityWith(schemas.SeverityLow, schemas.RemediationClosed, 10),
	}

	result := stats.Aggregate(entities, []string{stats.DimSeverity}, nil)
	assert.Equal(t, 5, result.Total)

	wantCounts := map[string]int{"critical": 2, "high": 1, "medium": 1, "low": 1}
	gotCounts := map[string]int{}
	for _, g := range result.Groups {
		gotCounts[g.Key[stats.DimSeverity]] = g.Count
	}
	if diff := cmp.Diff(wantCounts, gotCounts); diff != "" {
		t.Errorf("severity counts mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_SumsAndAverages(t *testing.T) {
	entities := []*schemas.Entity{
		entityWith(schemas.SeverityCritical, schemas.RemediationOpen, 90),
		entityWith(schemas.SeverityCritical, schemas.RemediationAssigned, 80),
	}

	result := stats.Aggregate(entities, []string{stats.DimSeverity}, nil)
	group, ok := result.Get(map[string]string{stats.DimSeverity: "critical"})
	require.True(t, ok)

	assert.Equal(t, 2, group.Count)
	assert.Equal(t, 170.0, group.Sums["score"])
	assert.Equal(t, 85.0, group.Averages["score"])
}

func TestAggregate_MultipleDimensions(t *testing.T) {
	entities := []*schemas.Entity{
		entityWith(schemas.SeverityCritical, schemas.RemediationOpen, 90),
		entityWith(schemas.SeverityCritical, schemas.RemediationClosed, 85),
		entityWith(schemas.SeverityCritical, schemas.RemediationOpen, 70),
	}

	result := stats.Aggregate(entities, []string{stats.DimSeverity, stats.DimStatus}, nil)
	require.Len(t, result.Groups, 2)

	open, ok := result.Get(map[string]string{stats.DimSeverity: "critical", stats.DimStatus: "open"})
	require.True(t, ok)
	assert.Equal(t, 2, open.Count)

	closed, ok := result.Get(map[string]string{stats.DimSeverity: "critical", stats.DimStatus: "closed"})
	require.True(t, ok)
	assert.Equal(t, 1, closed.Count)
}

func TestAggregate_TimeBuckets(t *testing.T) {
	early := entityWith(schemas.SeverityHigh, schemas.RemediationOpen, 50)
	late := entityWith(schemas.SeverityHigh, schemas.RemediationOpen, 50)
	late.CreatedAt = late.CreatedAt.AddDate(0, 0, 3)

	result := stats.Aggregate([]*schemas.Entity{early, late, late}, []string{stats.DimTimeBucket}, nil)
	require.Len(t, result.Groups, 2)

	g, ok := result.Get(map[string]string{stats.DimTimeBucket: "2024-05-13"})
	require.True(t, ok)
	assert.Equal(t, 2, g.Count)
}

// TestAggregate_CustomProjector verifies heterogeneous entity shapes work
// through a caller-declared projection instead of raw structure.
func TestAggregate_CustomProjector(t *testing.T) {
	entities := []*schemas.Entity{
		{ID: "a", Severity: schemas.SeverityHigh, Sla: &schemas.SlaState{Breached: true}},
		{ID: "b", Severity: schemas.SeverityHigh},
		{ID: "c", Severity: schemas.SeverityLow, Sla: &schemas.SlaState{Breached: true}},
	}

	breachProjector := func(e *schemas.Entity) stats.Projection {
		breached := "false"
		if e.Sla != nil && e.Sla.Breached {
			breached = "true"
		}
		return stats.Projection{Dimensions: map[string]string{"breached": breached}}
	}

	result := stats.Aggregate(entities, []string{"breached"}, breachProjector)
	g, ok := result.Get(map[string]string{"breached": "true"})
	require.True(t, ok)
	assert.Equal(t, 2, g.Count)
}

func TestAggregate_DoesNotMutateInputs(t *testing.T) {
	entity := entityWith(schemas.SeverityCritical, schemas.RemediationOpen, 90)
	before := *entity

	stats.Aggregate([]*schemas.Entity{entity}, []string{stats.DimSeverity}, nil)
	assert.Equal(t, before, *entity)
}

func TestAggregate_EmptyAndNilEntries(t *testing.T) {
	result := stats.Aggregate(nil, []string{stats.DimSeverity}, nil)
	assert.Zero(t, result.Total)
	assert.Empty(t, result.Groups)

	result = stats.Aggregate([]*schemas.Entity{nil, entityWith(schemas.SeverityLow, schemas.RemediationOpen, 5)}, []string{stats.DimSeverity}, nil)
	assert.Equal(t, 1, result.Total)
}

func TestAggregate_DeterministicOrdering(t *testing.T) {
	entities := []*schemas.Entity{
		entityWith(schemas.SeverityMedium, schemas.RemediationOpen, 1),
		entityWith(schemas.SeverityCritical, schemas.RemediationOpen, 1),
		entityWith(schemas.SeverityLow, schemas.RemediationOpen, 1),
	}

	first := stats.Aggregate(entities, []string{stats.DimSeverity}, nil)
	for i := 0; i < 5; i++ {
		again := stats.Aggregate(entities, []string{stats.DimSeverity}, nil)
		require.Equal(t, len(first.Groups), len(again.Groups))
		for j := range first.Groups {
			assert.Equal(t, first.Groups[j].Key, again.Groups[j].Key)
		}
	}
}
