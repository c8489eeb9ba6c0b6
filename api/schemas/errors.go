package schemas

import (
	"fmt"
	"time"
)

// -- Error Schemas --
//
// The core returns typed errors so callers can branch with errors.As and map
// them to transport-level responses. None of these are retried automatically
// by the core itself, except VersionConflictError which the periodic
// evaluator retries on its next tick.

// ValidationError reports malformed or unmappable input, such as a severity
// with no SLA policy entry or a factor with a negative weight.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a lifecycle transition request that is not
// present in the transition table. The entity is left unchanged.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle transition from %q to %q", e.From, e.To)
}

// ScheduleExpiredError reports a recurrence computation whose next run would
// fall past the schedule's end date.
type ScheduleExpiredError struct {
	EndDate time.Time
}

func (e *ScheduleExpiredError) Error() string {
	return fmt.Sprintf("schedule expired: end date %s has passed", e.EndDate.Format(time.RFC3339))
}

// VersionConflictError reports a lost optimistic-update race. The caller
// should reload and retry; the periodic evaluator simply waits for its next
// tick.
type VersionConflictError struct {
	EntityID        string
	ExpectedVersion int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on entity %q (expected version %d)", e.EntityID, e.ExpectedVersion)
}
