package schemas

import "time"

// -- Entity Schemas --

// EntityClass identifies which product entity a record belongs to. The class
// selects the scoring weight table; the algorithms are shared.
type EntityClass string

const (
	ClassVulnerability EntityClass = "vulnerability"
	ClassAsset         EntityClass = "asset"
	ClassCVE           EntityClass = "cve"
	ClassPII           EntityClass = "pii"
	ClassTracker       EntityClass = "tracker"
	ClassSchedule      EntityClass = "schedule"
)

// Entity is the persisted record the core operates on. It unites the scoring,
// SLA, schedule and lifecycle state of one finding, asset or schedule. The
// record itself is owned by the persistence collaborator; the core reads a
// snapshot, recomputes, and writes back guarded by Version.
type Entity struct {
	ID       string      `json:"id"`
	Class    EntityClass `json:"class"`
	Severity Severity    `json:"severity"`

	// Category is a free-form grouping dimension (e.g. scanner module,
	// regulation, asset group) used by the statistics aggregator.
	Category string `json:"category,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is the optimistic concurrency token. Save requests carry the
	// version they read; a mismatch loses the race and is retried next tick.
	Version int64 `json:"version"`

	Lifecycle LifecycleEntity `json:"lifecycle"`
	Sla       *SlaState       `json:"sla,omitempty"`
	Score     *ScoreResult    `json:"score,omitempty"`

	Schedule      *ScheduleSpec  `json:"schedule,omitempty"`
	ScheduleState *ScheduleState `json:"schedule_state,omitempty"`
}

// EventType categorizes the notifications the core emits toward the notifier
// collaborator.
type EventType string

const (
	EventSlaBreached     EventType = "SLA_BREACHED"
	EventSlaWarning      EventType = "SLA_WARNING"
	EventTerminalState   EventType = "TERMINAL_STATE"
	EventScheduleExpired EventType = "SCHEDULE_EXPIRED"
)
