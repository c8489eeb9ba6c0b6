package sla_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cindralabs/riskcore/api/schemas"
	"github.com/cindralabs/riskcore/internal/sla"
)

func testPolicy() schemas.SlaPolicy {
	return schemas.SlaPolicy{
		Hours: map[schemas.Severity]int{
			schemas.SeverityCritical: 24,
			schemas.SeverityHigh:     72,
			schemas.SeverityMedium:   168,
			schemas.SeverityLow:      720,
		},
		DefaultSeverity:       schemas.SeverityMedium,
		WarningThresholdHours: 12,
	}
}

func TestDeriveDueDate_HighSeverity(t *testing.T) {
	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	due, err := sla.DeriveDueDate(createdAt, schemas.SeverityHigh, testPolicy())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), due)
}

func TestDeriveDueDate_NeverBeforeCreation(t *testing.T) {
	createdAt := time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)
	policy := testPolicy()

	for severity := range policy.Hours {
		due, err := sla.DeriveDueDate(createdAt, severity, policy)
		require.NoError(t, err)
		assert.False(t, due.Before(createdAt), "due date for %s before creation", severity)
	}
}

func TestDeriveDueDate_UnmappedSeverityFallsBackToDefault(t *testing.T) {
	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// "info" has no entry; the default tier is medium (168h).
	due, err := sla.DeriveDueDate(createdAt, schemas.SeverityInfo, testPolicy())
	require.NoError(t, err)
	assert.Equal(t, createdAt.Add(168*time.Hour), due)
}

func TestDeriveDueDate_NoEntryAndNoDefaultFails(t *testing.T) {
	policy := schemas.SlaPolicy{Hours: map[schemas.Severity]int{schemas.SeverityHigh: 72}}

	_, err := sla.DeriveDueDate(time.Now(), schemas.SeverityLow, policy)
	var verr *schemas.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestEvaluate_FlagsBreachOncePastDueDate(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	state := schemas.SlaState{DueDate: due}

	// Before the due date nothing happens.
	result := sla.Evaluate(state, due.Add(-time.Hour), false, schemas.SlaPolicy{})
	assert.False(t, result.Breached)
	assert.False(t, result.State.Breached)

	// One second past and the breach is flagged exactly once.
	now := due.Add(time.Second)
	result = sla.Evaluate(state, now, false, schemas.SlaPolicy{})
	assert.True(t, result.Breached)
	assert.True(t, result.State.Breached)
	require.NotNil(t, result.State.BreachedAt)
	assert.Equal(t, now, *result.State.BreachedAt)

	// Re-evaluating an already-breached state raises no new event.
	result = sla.Evaluate(result.State, now.Add(time.Hour), false, schemas.SlaPolicy{})
	assert.False(t, result.Breached)
	assert.True(t, result.State.Breached)
}

func TestEvaluate_TerminalEntitiesExemptFromBreach(t *testing.T) {
	state := schemas.SlaState{DueDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}

	// Past due, but the entity is remediated: no breach.
	result := sla.Evaluate(state, state.DueDate.Add(48*time.Hour), true, schemas.SlaPolicy{})
	assert.False(t, result.Breached)
	assert.False(t, result.State.Breached)
}

func TestEvaluate_BreachIsMonotonicAcrossTerminalTransition(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	state := schemas.SlaState{DueDate: due, Breached: true}

	// An entity that breached before reaching a terminal state stays breached.
	result := sla.Evaluate(state, due.Add(time.Hour), true, schemas.SlaPolicy{})
	assert.True(t, result.State.Breached)
	assert.False(t, result.Breached)
}

func TestEvaluate_WarningFiresOnceInsideThreshold(t *testing.T) {
	due := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	state := schemas.SlaState{DueDate: due}
	policy := schemas.SlaPolicy{WarningThresholdHours: 12}

	// Outside the threshold: silent.
	result := sla.Evaluate(state, due.Add(-13*time.Hour), false, policy)
	assert.False(t, result.Warn)

	// Inside the threshold: the warning fires.
	result = sla.Evaluate(state, due.Add(-6*time.Hour), false, policy)
	assert.True(t, result.Warn)
	assert.True(t, result.State.WarningSent)

	// Never twice.
	result = sla.Evaluate(result.State, due.Add(-3*time.Hour), false, policy)
	assert.False(t, result.Warn)
}

func TestEvaluate_NoWarningWhenThresholdDisabled(t *testing.T) {
	due := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	state := schemas.SlaState{DueDate: due}

	result := sla.Evaluate(state, due.Add(-time.Minute), false, schemas.SlaPolicy{})
	assert.False(t, result.Warn)
}

func TestExtend_PushesDueDateAndLogsRecord(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := due.Add(-time.Hour)
	state := schemas.SlaState{DueDate: due}

	extended, err := sla.Extend(state, 48, "vendor patch pending", now)
	require.NoError(t, err)

	assert.Equal(t, due.Add(48*time.Hour), extended.DueDate)
	require.Len(t, extended.Extensions, 1)
	record := extended.Extensions[0]
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, 48, record.Hours)
	assert.Equal(t, "vendor patch pending", record.Reason)
	assert.Equal(t, now, record.At)

	// The input state is untouched.
	assert.Empty(t, state.Extensions)
	assert.Equal(t, due, state.DueDate)
}

func TestExtend_ClearsBreachWhenNewDueDateInFuture(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	breachedAt := due.Add(time.Hour)
	state := schemas.SlaState{DueDate: due, Breached: true, BreachedAt: &breachedAt, WarningSent: true}

	now := due.Add(2 * time.Hour)
	extended, err := sla.Extend(state, 72, "accepted extension request", now)
	require.NoError(t, err)

	assert.False(t, extended.Breached)
	assert.Nil(t, extended.BreachedAt)
	// The warning is re-armed for the new deadline.
	assert.False(t, extended.WarningSent)
}

func TestExtend_TooShortToClearBreachKeepsIt(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	state := schemas.SlaState{DueDate: due, Breached: true}

	// 1 hour extension while 10 hours overdue: still breached.
	now := due.Add(10 * time.Hour)
	extended, err := sla.Extend(state, 1, "partial fix", now)
	require.NoError(t, err)
	assert.True(t, extended.Breached)
}

func TestExtend_RejectsNonPositiveHours(t *testing.T) {
	state := schemas.SlaState{DueDate: time.Now()}

	for _, hours := range []int{0, -24} {
		_, err := sla.Extend(state, hours, "bogus", time.Now())
		var verr *schemas.ValidationError
		require.ErrorAs(t, err, &verr)
	}
}

func TestRemainingHours_SignedAndStalenessFree(t *testing.T) {
	due := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	state := schemas.SlaState{DueDate: due}

	assert.InDelta(t, 6, state.RemainingHours(due.Add(-6*time.Hour)), 1e-9)
	assert.InDelta(t, -3, state.RemainingHours(due.Add(3*time.Hour)), 1e-9)
	assert.True(t, state.Overdue(due.Add(time.Second)))
	assert.False(t, state.Overdue(due))
}
