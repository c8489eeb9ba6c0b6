// Package sla computes remediation deadlines from severity and policy, and
// tracks breach and warning state over time. All functions are pure: they
// take a snapshot, return a new state, and leave persistence to the caller.
package sla

import (
	"time"

	"github.com/google/uuid"

	"github.com/cindralabs/riskcore/api/schemas"
)

// DeriveDueDate computes the remediation deadline for an entity created at
// createdAt with the given severity. Severities without a policy entry fall
// back to the policy's default tier; if no default tier exists either, the
// call fails with a ValidationError rather than silently assigning zero.
func DeriveDueDate(createdAt time.Time, severity schemas.Severity, policy schemas.SlaPolicy) (time.Time, error) {
	hours, ok := policy.Hours[severity]
	if !ok && policy.DefaultSeverity != "" {
		hours, ok = policy.Hours[policy.DefaultSeverity]
	}
	if !ok {
		return time.Time{}, &schemas.ValidationError{
			Field:  "severity",
			Reason: "no SLA policy entry for severity " + string(severity) + " and no default tier",
		}
	}
	return createdAt.Add(time.Duration(hours) * time.Hour), nil
}

// NewState initializes SLA tracking for a freshly created entity.
func NewState(createdAt time.Time, severity schemas.Severity, policy schemas.SlaPolicy) (schemas.SlaState, error) {
	due, err := DeriveDueDate(createdAt, severity, policy)
	if err != nil {
		return schemas.SlaState{}, err
	}
	return schemas.SlaState{DueDate: due}, nil
}

// Evaluation is the outcome of one periodic SLA check. Breached and Warn are
// newly-raised flags: they are true only when this evaluation crossed the
// respective threshold, so the caller can notify exactly once.
type Evaluation struct {
	State    schemas.SlaState
	Breached bool
	Warn     bool
}

// Evaluate advances the SLA state to the given instant. terminal marks
// entities whose lifecycle has ended; they are exempt from new breaches.
//
// An already-breached state stays breached: Evaluate never clears the flag.
// Only Extend, by pushing the due date into the future, can revert it. The
// warning fires at most once per threshold crossing and is re-armed by
// Extend.
func Evaluate(state schemas.SlaState, now time.Time, terminal bool, policy schemas.SlaPolicy) Evaluation {
	out := Evaluation{State: state}

	if !state.Breached && !terminal && now.After(state.DueDate) {
		out.State.Breached = true
		at := now
		out.State.BreachedAt = &at
		out.Breached = true
		return out
	}

	threshold := time.Duration(policy.WarningThresholdHours) * time.Hour
	if threshold > 0 &&
		!out.State.Breached && !terminal && !state.WarningSent &&
		!now.After(state.DueDate) && state.DueDate.Sub(now) <= threshold {
		out.State.WarningSent = true
		out.Warn = true
	}

	return out
}

// Extend pushes the due date forward by the given number of hours and records
// an immutable extension entry. Extensions are strictly additive: a
// non-positive hour count is a ValidationError, so the due date can never
// move backward.
//
// If the new due date lands in the future the breach flag is cleared and the
// warning is re-armed.
func Extend(state schemas.SlaState, hours int, reason string, now time.Time) (schemas.SlaState, error) {
	if hours <= 0 {
		return schemas.SlaState{}, &schemas.ValidationError{
			Field:  "hours",
			Reason: "extension must add a positive number of hours",
		}
	}

	out := state
	out.DueDate = state.DueDate.Add(time.Duration(hours) * time.Hour)
	out.Extensions = append(append([]schemas.Extension(nil), state.Extensions...), schemas.Extension{
		ID:     uuid.NewString(),
		Hours:  hours,
		Reason: reason,
		At:     now,
	})

	if out.DueDate.After(now) {
		out.Breached = false
		out.BreachedAt = nil
		out.WarningSent = false
	}
	return out, nil
}
