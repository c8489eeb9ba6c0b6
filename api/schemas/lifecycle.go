package schemas

import "time"

// -- Lifecycle Schemas --

// State is a lifecycle state name. Values are lowercase to align with
// database ENUMs.
type State string

// Scan lifecycle states.
const (
	ScanQueued            State = "queued"
	ScanInitializing      State = "initializing"
	ScanRunning           State = "running"
	ScanPaused            State = "paused"
	ScanCompleted         State = "completed"
	ScanCompletedWithErrs State = "completed_with_errors"
	ScanFailed            State = "failed"
	ScanCancelled         State = "cancelled"
	ScanTimeout           State = "timeout"
)

// Remediation lifecycle states.
const (
	RemediationOpen               State = "open"
	RemediationAssigned           State = "assigned"
	RemediationInProgress         State = "in_progress"
	RemediationBlocked            State = "blocked"
	RemediationPendingVerify      State = "pending_verification"
	RemediationVerificationFailed State = "verification_failed"
	RemediationRemediated         State = "remediated"
	RemediationRiskAccepted       State = "risk_accepted"
	RemediationFalsePositive      State = "false_positive"
	RemediationClosed             State = "closed"
)

// TransitionRecord is one immutable entry in an entity's lifecycle history.
type TransitionRecord struct {
	ID     string    `json:"id"`
	From   State     `json:"from"`
	To     State     `json:"to"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// LifecycleEntity carries the lifecycle state of an entity together with the
// full transition history. Every transition in History must correspond to an
// edge in the governing transition table.
type LifecycleEntity struct {
	CurrentState State              `json:"current_state"`
	History      []TransitionRecord `json:"history,omitempty"`

	// ReopenCount is incremented every time a terminal state is left through
	// the explicit reopen edge.
	ReopenCount int `json:"reopen_count,omitempty"`
}
