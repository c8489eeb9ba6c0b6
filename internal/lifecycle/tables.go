package lifecycle

import "github.com/cindralabs/riskcore/api/schemas"

// -- Concrete Transition Tables --

// ScanTable governs scan execution status. Scans run to one of five terminal
// outcomes and are never reopened; a new execution is a new entity.
func ScanTable() Table {
	return Table{
		Initial: schemas.ScanQueued,
		Allowed: map[schemas.State][]schemas.State{
			schemas.ScanQueued:       {schemas.ScanInitializing, schemas.ScanCancelled},
			schemas.ScanInitializing: {schemas.ScanRunning, schemas.ScanFailed, schemas.ScanCancelled},
			schemas.ScanRunning: {
				schemas.ScanPaused,
				schemas.ScanCompleted,
				schemas.ScanCompletedWithErrs,
				schemas.ScanFailed,
				schemas.ScanCancelled,
				schemas.ScanTimeout,
			},
			schemas.ScanPaused: {schemas.ScanRunning, schemas.ScanCancelled},
		},
		Terminal: map[schemas.State]bool{
			schemas.ScanCompleted:         true,
			schemas.ScanCompletedWithErrs: true,
			schemas.ScanFailed:            true,
			schemas.ScanCancelled:         true,
			schemas.ScanTimeout:           true,
		},
	}
}

// RemediationTable governs remediation workflow status. Dispositions
// (risk_accepted, false_positive, closed) may be taken from any active state;
// remediated is only reachable through verification. All terminal states can
// be reopened back to in_progress through the explicit reopen edge.
func RemediationTable() Table {
	dispositions := []schemas.State{
		schemas.RemediationRiskAccepted,
		schemas.RemediationFalsePositive,
		schemas.RemediationClosed,
	}
	withDispositions := func(states ...schemas.State) []schemas.State {
		return append(states, dispositions...)
	}

	return Table{
		Initial:  schemas.RemediationOpen,
		ReopenTo: schemas.RemediationInProgress,
		Allowed: map[schemas.State][]schemas.State{
			schemas.RemediationOpen:     withDispositions(schemas.RemediationAssigned),
			schemas.RemediationAssigned: withDispositions(schemas.RemediationInProgress),
			schemas.RemediationInProgress: withDispositions(
				schemas.RemediationBlocked,
				schemas.RemediationPendingVerify,
			),
			schemas.RemediationBlocked: withDispositions(schemas.RemediationInProgress),
			schemas.RemediationPendingVerify: withDispositions(
				schemas.RemediationRemediated,
				schemas.RemediationVerificationFailed,
			),
			schemas.RemediationVerificationFailed: withDispositions(schemas.RemediationInProgress),
		},
		Terminal: map[schemas.State]bool{
			schemas.RemediationRemediated:    true,
			schemas.RemediationRiskAccepted:  true,
			schemas.RemediationFalsePositive: true,
			schemas.RemediationClosed:        true,
		},
	}
}

// TableFor selects the transition table governing an entity class. Schedules
// and scans share the scan execution table; everything else follows the
// remediation workflow.
func TableFor(class schemas.EntityClass) Table {
	if class == schemas.ClassSchedule {
		return ScanTable()
	}
	return RemediationTable()
}
