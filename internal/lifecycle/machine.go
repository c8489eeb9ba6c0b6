// Package lifecycle implements a generic, table-driven finite state machine
// for scan execution and remediation workflow status. Allowed edges are data,
// not scattered conditionals, so auditing or extending a workflow is a
// one-place change.
package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/cindralabs/riskcore/api/schemas"
)

// Table declares the allowed transitions for one workflow.
type Table struct {
	// Allowed maps each state to the set of states it may move to.
	Allowed map[schemas.State][]schemas.State

	// Terminal states accept no further automatic transitions.
	Terminal map[schemas.State]bool

	// ReopenTo, when set, defines the single explicit edge out of any
	// terminal state. Taking it increments the entity's reopen counter.
	ReopenTo schemas.State

	// Initial is the state newly created entities start in.
	Initial schemas.State
}

// CanTransition reports whether the edge from -> to exists in the table. The
// explicit reopen edge out of terminal states is part of the table and is
// included here; it is still only taken through Machine.Reopen, never through
// Machine.Transition.
func (t Table) CanTransition(from, to schemas.State) bool {
	if t.Terminal[from] {
		return t.ReopenTo != "" && to == t.ReopenTo
	}
	for _, allowed := range t.Allowed[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state accepts no further automatic
// transitions.
func (t Table) IsTerminal(state schemas.State) bool {
	return t.Terminal[state]
}

// Machine validates transitions against a table and records history.
type Machine struct {
	table Table
	now   func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a state machine over the given transition table.
func NewMachine(table Table, opts ...Option) *Machine {
	m := &Machine{table: table, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Table returns the machine's transition table.
func (m *Machine) Table() Table { return m.table }

// NewEntity returns lifecycle state positioned at the table's initial state.
func (m *Machine) NewEntity() schemas.LifecycleEntity {
	return schemas.LifecycleEntity{CurrentState: m.table.Initial}
}

// Transition moves the entity to targetState if the table permits it,
// appending exactly one history record. Terminal states reject every direct
// transition request, even toward the reopen destination; leaving a terminal
// state requires the explicit Reopen action. The input is never mutated: on
// success a new entity value is returned, on failure the request is rejected
// with an InvalidTransitionError and nothing is applied.
func (m *Machine) Transition(entity schemas.LifecycleEntity, targetState schemas.State, actor, reason string) (schemas.LifecycleEntity, error) {
	from := entity.CurrentState
	if m.table.Terminal[from] || !m.table.CanTransition(from, targetState) {
		return entity, &schemas.InvalidTransitionError{From: from, To: targetState}
	}
	return m.apply(entity, targetState, actor, reason), nil
}

// Reopen takes the explicit reopen edge out of a terminal state, incrementing
// the entity's reopen counter. It fails when the entity is not in a terminal
// state or the table defines no reopen edge.
func (m *Machine) Reopen(entity schemas.LifecycleEntity, actor, reason string) (schemas.LifecycleEntity, error) {
	from := entity.CurrentState
	if m.table.ReopenTo == "" || !m.table.Terminal[from] {
		return entity, &schemas.InvalidTransitionError{From: from, To: m.table.ReopenTo}
	}

	out := m.apply(entity, m.table.ReopenTo, actor, reason)
	out.ReopenCount = entity.ReopenCount + 1
	return out, nil
}

func (m *Machine) apply(entity schemas.LifecycleEntity, targetState schemas.State, actor, reason string) schemas.LifecycleEntity {
	out := entity
	out.CurrentState = targetState
	out.History = append(append([]schemas.TransitionRecord(nil), entity.History...), schemas.TransitionRecord{
		ID:     uuid.NewString(),
		From:   entity.CurrentState,
		To:     targetState,
		Actor:  actor,
		At:     m.now().UTC(),
		Reason: reason,
	})
	return out
}

// IsTerminal reports whether the entity currently sits in a terminal state.
func (m *Machine) IsTerminal(entity schemas.LifecycleEntity) bool {
	return m.table.Terminal[entity.CurrentState]
}
