package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cindralabs/riskcore/api/schemas"
	"github.com/cindralabs/riskcore/internal/lifecycle"
)

func fixedClock() func() time.Time {
	at := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestTransition_AppendsExactlyOneHistoryEntry(t *testing.T) {
	m := lifecycle.NewMachine(lifecycle.ScanTable(), lifecycle.WithClock(fixedClock()))
	entity := m.NewEntity()
	require.Equal(t, schemas.ScanQueued, entity.CurrentState)

	next, err := m.Transition(entity, schemas.ScanInitializing, "scheduler", "picked up")
	require.NoError(t, err)

	assert.Equal(t, schemas.ScanInitializing, next.CurrentState)
	require.Len(t, next.History, 1)
	record := next.History[0]
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, schemas.ScanQueued, record.From)
	assert.Equal(t, schemas.ScanInitializing, record.To)
	assert.Equal(t, "scheduler", record.Actor)
	assert.Equal(t, "picked up", record.Reason)
	assert.Equal(t, fixedClock()(), record.At)

	// The input entity is untouched.
	assert.Equal(t, schemas.ScanQueued, entity.CurrentState)
	assert.Empty(t, entity.History)
}

func TestTransition_RejectsEdgesNotInTable(t *testing.T) {
	m := lifecycle.NewMachine(lifecycle.ScanTable())
	entity := m.NewEntity()

	// queued cannot jump straight to running.
	unchanged, err := m.Transition(entity, schemas.ScanRunning, "scheduler", "")
	var terr *schemas.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, schemas.ScanQueued, terr.From)
	assert.Equal(t, schemas.ScanRunning, terr.To)

	// Rejection is never partially applied.
	assert.Equal(t, entity, unchanged)
}

func TestScanLifecycle_FullRunWithPauseResume(t *testing.T) {
	m := lifecycle.NewMachine(lifecycle.ScanTable())
	entity := m.NewEntity()

	path := []schemas.State{
		schemas.ScanInitializing,
		schemas.ScanRunning,
		schemas.ScanPaused,
		schemas.ScanRunning,
		schemas.ScanCompleted,
	}
	for _, target := range path {
		var err error
		entity, err = m.Transition(entity, target, "engine", "")
		require.NoError(t, err, "transition to %s", target)
	}

	assert.Equal(t, schemas.ScanCompleted, entity.CurrentState)
	assert.Len(t, entity.History, len(path))
	assert.True(t, m.IsTerminal(entity))
}

func TestScanLifecycle_TerminalStatesAcceptNothing(t *testing.T) {
	m := lifecycle.NewMachine(lifecycle.ScanTable())

	for _, terminal := range []schemas.State{
		schemas.ScanCompleted,
		schemas.ScanCompletedWithErrs,
		schemas.ScanFailed,
		schemas.ScanCancelled,
		schemas.ScanTimeout,
	} {
		entity := schemas.LifecycleEntity{CurrentState: terminal}
		_, err := m.Transition(entity, schemas.ScanRunning, "engine", "")
		var terr *schemas.InvalidTransitionError
		require.ErrorAs(t, err, &terr, "terminal state %s accepted a transition", terminal)
	}
}

func TestRemediationLifecycle_HappyPathToRemediated(t *testing.T) {
	m := lifecycle.NewMachine(lifecycle.RemediationTable())
	entity := m.NewEntity()
	require.Equal(t, schemas.RemediationOpen, entity.CurrentState)

	for _, target := range []schemas.State{
		schemas.RemediationAssigned,
		schemas.RemediationInProgress,
		schemas.RemediationBlocked,
		schemas.RemediationInProgress,
		schemas.RemediationPendingVerify,
		schemas.RemediationRemediated,
	} {
		var err error
		entity, err = m.Transition(entity, target, "analyst", "")
		require.NoError(t, err, "transition to %s", target)
	}

	assert.True(t, m.IsTerminal(entity))
	assert.Zero(t, entity.ReopenCount)
}

func TestRemediationLifecycle_VerificationFailureLoopsBack(t *testing.T) {
	m := lifecycle.NewMachine(lifecycle.RemediationTable())
	entity := schemas.LifecycleEntity{CurrentState: schemas.RemediationPendingVerify}

	entity, err := m.Transition(entity, schemas.RemediationVerificationFailed, "verifier", "regression")
	require.NoError(t, err)

	entity, err = m.Transition(entity, schemas.RemediationInProgress, "analyst", "rework")
	require.NoError(t, err)
	assert.Equal(t, schemas.RemediationInProgress, entity.CurrentState)
}

func TestRemediationLifecycle_ClosedRejectsDirectInProgress(t *testing.T) {
	m := lifecycle.NewMachine(lifecycle.RemediationTable())
	entity := schemas.LifecycleEntity{CurrentState: schemas.RemediationClosed}

	// Closed is terminal; a direct transition request to in_progress fails
	// even though that is where the reopen edge leads. Leaving a terminal
	// state requires the explicit reopen action.
	unchanged, err := m.Transition(entity, schemas.RemediationInProgress, "analyst", "regression found")
	var terr *schemas.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, entity, unchanged)
}

func TestRemediationLifecycle_ReopenFromEveryTerminalState(t *testing.T) {
	m := lifecycle.NewMachine(lifecycle.RemediationTable())

	for _, terminal := range []schemas.State{
		schemas.RemediationRemediated,
		schemas.RemediationRiskAccepted,
		schemas.RemediationFalsePositive,
		schemas.RemediationClosed,
	} {
		entity := schemas.LifecycleEntity{CurrentState: terminal, ReopenCount: 2}
		reopened, err := m.Reopen(entity, "analyst", "regression found")
		require.NoError(t, err, "reopen from %s", terminal)
		assert.Equal(t, schemas.RemediationInProgress, reopened.CurrentState)
		assert.Equal(t, 3, reopened.ReopenCount)

		// Each reopen appends its own history record.
		require.Len(t, reopened.History, 1)
		assert.Equal(t, terminal, reopened.History[0].From)
	}
}

func TestReopen_RejectedOutsideTerminalStates(t *testing.T) {
	m := lifecycle.NewMachine(lifecycle.RemediationTable())

	_, err := m.Reopen(schemas.LifecycleEntity{CurrentState: schemas.RemediationInProgress}, "analyst", "")
	var terr *schemas.InvalidTransitionError
	require.ErrorAs(t, err, &terr)

	// Scan lifecycles define no reopen edge at all.
	scan := lifecycle.NewMachine(lifecycle.ScanTable())
	_, err = scan.Reopen(schemas.LifecycleEntity{CurrentState: schemas.ScanCompleted}, "operator", "")
	require.ErrorAs(t, err, &terr)
}

func TestRemediationLifecycle_DispositionsFromActiveStates(t *testing.T) {
	m := lifecycle.NewMachine(lifecycle.RemediationTable())

	for _, from := range []schemas.State{
		schemas.RemediationOpen,
		schemas.RemediationAssigned,
		schemas.RemediationInProgress,
	} {
		for _, to := range []schemas.State{
			schemas.RemediationRiskAccepted,
			schemas.RemediationFalsePositive,
			schemas.RemediationClosed,
		} {
			entity := schemas.LifecycleEntity{CurrentState: from}
			next, err := m.Transition(entity, to, "triager", "disposition")
			require.NoError(t, err, "%s -> %s", from, to)
			assert.True(t, m.IsTerminal(next))
		}
	}
}

func TestEveryHistoryEntryMatchesTableEdge(t *testing.T) {
	table := lifecycle.RemediationTable()
	m := lifecycle.NewMachine(table)
	entity := m.NewEntity()

	for _, target := range []schemas.State{
		schemas.RemediationAssigned,
		schemas.RemediationInProgress,
		schemas.RemediationPendingVerify,
		schemas.RemediationRemediated,
	} {
		var err error
		entity, err = m.Transition(entity, target, "analyst", "")
		require.NoError(t, err)
	}
	var err error
	entity, err = m.Reopen(entity, "analyst", "regression")
	require.NoError(t, err)

	for _, record := range entity.History {
		assert.True(t, table.CanTransition(record.From, record.To),
			"history entry %s -> %s not in table", record.From, record.To)
	}
}

func TestTableFor_SelectsByClass(t *testing.T) {
	assert.Equal(t, schemas.ScanQueued, lifecycle.TableFor(schemas.ClassSchedule).Initial)
	assert.Equal(t, schemas.RemediationOpen, lifecycle.TableFor(schemas.ClassVulnerability).Initial)
}
